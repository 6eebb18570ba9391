package heap

// FakeDevice is a dependency-free Device test double: PendingSerial
// and CompletedSerial are plain counters the test controls directly,
// and CreateBuffer hands back freshly bumped Buffer handles.
type FakeDevice struct {
	Pending   ExecutionSerial
	Completed ExecutionSerial

	nextBufferID uint64
}

// NewFakeDevice creates a FakeDevice starting at serial 0.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{}
}

// PendingSerial implements Device.
func (d *FakeDevice) PendingSerial() ExecutionSerial { return d.Pending }

// CompletedSerial implements Device.
func (d *FakeDevice) CompletedSerial() ExecutionSerial { return d.Completed }

// CreateBuffer implements Device.
func (d *FakeDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.nextBufferID++
	return Buffer{ID: d.nextBufferID, Size: desc.Size, Usage: desc.Usage}, nil
}

// Advance bumps both Pending and Completed by n, the common case of
// "issue a submission and immediately finish it" in single-step tests.
func (d *FakeDevice) Advance(n ExecutionSerial) {
	d.Pending += n
	d.Completed += n
}

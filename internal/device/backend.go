package device

// Info identifies an attached capture device.
type Info struct {
	Index int
	Name  string
	Path  string
}

// Backend discovers and opens capture devices.
type Backend interface {
	// Devices lists attached devices. No devices is an empty slice, not an
	// error.
	Devices() ([]Info, error)

	// Open claims the device at index.
	Open(index int) (Handle, error)
}

// Prober reports the modes a device can stream.
type Prober interface {
	Encodings() ([]Encoding, error)
	Resolutions(enc Encoding) ([]ResolutionRates, error)
}

// Handle is an open device as seen by the driver.
type Handle interface {
	Prober

	Name() string

	// SetFormat asks the driver for f and returns what it negotiated.
	SetFormat(f CaptureFormat) (CaptureFormat, error)

	StartStreaming() error
	StopStreaming() error

	// ReadFrame blocks until the driver delivers one frame payload. The
	// returned slice belongs to the caller.
	ReadFrame() ([]byte, error)

	// Close releases the device and unblocks a pending ReadFrame.
	Close() error
}

// ListDevices enumerates devices attached to b.
func ListDevices(b Backend) ([]Info, error) {
	infos, err := b.Devices()
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []Info{}
	}
	return infos, nil
}

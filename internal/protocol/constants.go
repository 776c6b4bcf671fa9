package protocol

import "time"

// USB identity of the AES1660 sensor.
const (
	VendorID  = 0x08ff
	ProductID = 0x1660
)

// DefaultTimeout bounds every send and receive on the bulk endpoints.
const DefaultTimeout = 4000 * time.Millisecond

// Response type tags, carried in the first byte of every response.
const (
	TagFingerDetect byte = 0x01
	TagCalibrate    byte = 0x06
	TagReadID       byte = 0x07
	TagInit         byte = 0x42
	TagImage        byte = 0x49
)

// Expected response sizes.
const (
	ReadIDResponseSize       = 8
	InitResponseSize         = 4
	CalibrateResponseSize    = 4
	FingerDetectResponseSize = 4
	CaptureResponseSize      = 583
)

// ContainerFrameSize is the payload size of an image record in a dump file.
const ContainerFrameSize = 0x244

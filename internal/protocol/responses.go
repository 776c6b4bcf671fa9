package protocol

import "fmt"

// Identity is the sensor identification carried by a read-id response.
//
// Response layout (8 bytes):
//
//	[TAG 0x07][?][?][ID_LO][ID_HI][BCD_MAJOR][BCD_MINOR][INIT_STATUS]
type Identity struct {
	DeviceID   uint16
	BCDDevice  [2]byte
	InitStatus byte
}

// NeedsLongInit reports whether the sensor asks for the full init sequence.
func (id Identity) NeedsLongInit() bool {
	return id.InitStatus == 0
}

func (id Identity) String() string {
	return fmt.Sprintf("Sensor device id: %04x, bcdDevice: %02x.%02x, init status: %02x",
		id.DeviceID, id.BCDDevice[0], id.BCDDevice[1], id.InitStatus)
}

// ParseReadIDResponse extracts the identity from a read-id response.
func ParseReadIDResponse(resp []byte) (Identity, error) {
	if len(resp) != ReadIDResponseSize {
		return Identity{}, fmt.Errorf("invalid length for read id response: got %d bytes, expected %d", len(resp), ReadIDResponseSize)
	}
	return Identity{
		DeviceID:   uint16(resp[4])<<8 | uint16(resp[3]),
		BCDDevice:  [2]byte{resp[5], resp[6]},
		InitStatus: resp[7],
	}, nil
}

// FingerPresent reports whether a finger-detect response signals a finger.
func FingerPresent(resp []byte) bool {
	return len(resp) == FingerDetectResponseSize && resp[3] == 0x01
}

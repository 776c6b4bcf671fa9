package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// CommandSet supplies the opaque command payloads sent to the sensor.
type CommandSet interface {
	SetIdle() []byte
	ReadID() []byte
	Calibrate() []byte
	LEDBlink() []byte
	FingerDetect() []byte
	Capture() []byte
	// LongInit returns the ordered initialization payloads sent when the
	// sensor reports a zero init status.
	LongInit() [][]byte
}

// Commands is an immutable table of payloads. Accessors return copies.
type Commands struct {
	setIdle      []byte
	readID       []byte
	calibrate    []byte
	ledBlink     []byte
	fingerDetect []byte
	capture      []byte
	longInit     [][]byte
}

var (
	setIdleCmd      = []byte{0x0d}
	readIDCmd       = []byte{0x44, 0x02, 0x00, 0x08, 0x00, 0x07}
	calibrateCmd    = []byte{0x44, 0x02, 0x00, 0x04, 0x00, 0x06}
	fingerDetectCmd = []byte{0x20, 0x40, 0x04, 0x00, 0x02, 0x1e, 0x00, 0x32}
)

// DefaultCommands returns the built-in payloads. LED blink, capture and the
// long init sequence are device-firmware specific and come from a command
// table (see LoadCommands).
func DefaultCommands() *Commands {
	return &Commands{
		setIdle:      setIdleCmd,
		readID:       readIDCmd,
		calibrate:    calibrateCmd,
		fingerDetect: fingerDetectCmd,
	}
}

// CommandTable is the on-disk form of a command set: hex strings keyed by
// command name. Whitespace inside hex strings is ignored.
type CommandTable struct {
	SetIdle      string   `json:"set_idle,omitempty" cbor:"set_idle,omitempty"`
	ReadID       string   `json:"read_id,omitempty" cbor:"read_id,omitempty"`
	Calibrate    string   `json:"calibrate,omitempty" cbor:"calibrate,omitempty"`
	LEDBlink     string   `json:"led_blink,omitempty" cbor:"led_blink,omitempty"`
	FingerDetect string   `json:"finger_detect,omitempty" cbor:"finger_detect,omitempty"`
	Capture      string   `json:"capture,omitempty" cbor:"capture,omitempty"`
	LongInit     []string `json:"long_init,omitempty" cbor:"long_init,omitempty"`
}

// NewCommands builds a command set from a table. Entries left empty in the
// table fall back to the built-in payloads.
func NewCommands(table CommandTable) (*Commands, error) {
	c := DefaultCommands()
	fields := []struct {
		name string
		hex  string
		dst  *[]byte
	}{
		{"set_idle", table.SetIdle, &c.setIdle},
		{"read_id", table.ReadID, &c.readID},
		{"calibrate", table.Calibrate, &c.calibrate},
		{"led_blink", table.LEDBlink, &c.ledBlink},
		{"finger_detect", table.FingerDetect, &c.fingerDetect},
		{"capture", table.Capture, &c.capture},
	}
	for _, f := range fields {
		if f.hex == "" {
			continue
		}
		b, err := decodeHex(f.hex)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", f.name, err)
		}
		*f.dst = b
	}
	for i, step := range table.LongInit {
		b, err := decodeHex(step)
		if err != nil {
			return nil, fmt.Errorf("long_init[%d]: %w", i, err)
		}
		c.longInit = append(c.longInit, b)
	}
	return c, nil
}

// LoadCommands reads a command table from a .json or .cbor file.
func LoadCommands(path string) (*Commands, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var table CommandTable
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbor":
		err = cbor.Unmarshal(data, &table)
	default:
		err = json.Unmarshal(data, &table)
	}
	if err != nil {
		return nil, fmt.Errorf("parse command table %s: %w", path, err)
	}
	return NewCommands(table)
}

// Validate reports the commands a capture run needs but the set lacks.
func (c *Commands) Validate() error {
	var missing []string
	for _, f := range []struct {
		name string
		cmd  []byte
	}{
		{"set_idle", c.setIdle},
		{"read_id", c.readID},
		{"calibrate", c.calibrate},
		{"led_blink", c.ledBlink},
		{"finger_detect", c.fingerDetect},
		{"capture", c.capture},
	} {
		if len(f.cmd) == 0 {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("command set is missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Commands) SetIdle() []byte      { return clone(c.setIdle) }
func (c *Commands) ReadID() []byte       { return clone(c.readID) }
func (c *Commands) Calibrate() []byte    { return clone(c.calibrate) }
func (c *Commands) LEDBlink() []byte     { return clone(c.ledBlink) }
func (c *Commands) FingerDetect() []byte { return clone(c.fingerDetect) }
func (c *Commands) Capture() []byte      { return clone(c.capture) }

func (c *Commands) LongInit() [][]byte {
	out := make([][]byte, len(c.longInit))
	for i, step := range c.longInit {
		out[i] = clone(step)
	}
	return out
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func decodeHex(s string) ([]byte, error) {
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	for i, f := range fields {
		fields[i] = strings.TrimPrefix(strings.ToLower(f), "0x")
	}
	return hex.DecodeString(strings.Join(fields, ""))
}

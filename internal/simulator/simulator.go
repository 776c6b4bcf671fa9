// Package simulator emulates an AES1660 sensor behind an io.ReadWriteCloser
// so a session can run without hardware.
package simulator

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"aes1660-go/internal/nibble"
	"aes1660-go/internal/protocol"
)

var ErrNoResponse = errors.New("simulator: no response pending")

// Config shapes the simulated session.
type Config struct {
	// InitStatus is reported by read-id until the long init completes
	InitStatus byte
	// FingerAfter is the finger-detect poll (1-based) that first sees a finger
	FingerAfter int
	// Peak is the intensity of the first frame, roughly in 0..15 per pixel
	Peak float64
	// Decay scales the intensity after every frame as the finger leaves
	Decay float64
	// Latency delays every response
	Latency time.Duration
	Seed    int64
}

func DefaultConfig() Config {
	return Config{
		InitStatus:  0,
		FingerAfter: 3,
		Peak:        12,
		Decay:       0.6,
		Seed:        1,
	}
}

// Commands returns the command set the simulator understands.
func Commands() *protocol.Commands {
	cmds, err := protocol.NewCommands(protocol.CommandTable{
		LEDBlink: "77 18 00",
		Capture:  "13 20 00",
		LongInit: []string{"50 01", "50 02", "50 03"},
	})
	if err != nil {
		panic(err)
	}
	return cmds
}

// Device is the emulated sensor.
type Device struct {
	mu       sync.Mutex
	cfg      Config
	cmds     protocol.CommandSet
	rng      *rand.Rand
	pending  [][]byte
	initDone int
	polls    int
	frames   int
	ridges   []float64
	written  [][]byte
	closed   bool
}

// New builds a device answering to cmds.
func New(cmds protocol.CommandSet, cfg Config) *Device {
	d := &Device{
		cfg:  cfg,
		cmds: cmds,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}
	d.ridges = make([]float64, nibble.Rows*nibble.Cols)
	for i := range d.ridges {
		x := float64(i % nibble.Cols)
		y := float64(i / nibble.Cols)
		// slanted ridges, brightest along the middle of the strip
		ridge := 0.5 + 0.5*math.Sin((x*0.9+y*0.35))
		dx := (x - float64(nibble.Cols)/2) / float64(nibble.Cols)
		d.ridges[i] = ridge * math.Exp(-dx*dx*2)
	}
	return d
}

// Written returns every command received so far.
func (d *Device) Written() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.written))
	copy(out, d.written)
	return out
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errors.New("simulator: closed")
	}
	d.written = append(d.written, append([]byte(nil), p...))

	switch {
	case bytes.Equal(p, d.cmds.SetIdle()):
		d.polls = 0
	case bytes.Equal(p, d.cmds.ReadID()):
		d.pending = append(d.pending, d.readID())
	case bytes.Equal(p, d.cmds.Calibrate()):
		d.pending = append(d.pending, []byte{protocol.TagCalibrate, 0, 0, 0})
	case bytes.Equal(p, d.cmds.LEDBlink()):
	case bytes.Equal(p, d.cmds.FingerDetect()):
		d.polls++
		present := byte(0)
		if d.polls >= d.cfg.FingerAfter {
			present = 1
		}
		d.pending = append(d.pending, []byte{protocol.TagFingerDetect, 0, 0, present})
	case bytes.Equal(p, d.cmds.Capture()):
		d.pending = append(d.pending, d.capture())
	default:
		for _, step := range d.cmds.LongInit() {
			if bytes.Equal(p, step) {
				d.initDone++
				d.pending = append(d.pending, []byte{protocol.TagInit, 0, 0, 0})
				break
			}
		}
	}
	return len(p), nil
}

func (d *Device) Read(p []byte) (int, error) {
	if d.cfg.Latency > 0 {
		time.Sleep(d.cfg.Latency)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return 0, ErrNoResponse
	}
	resp := d.pending[0]
	d.pending = d.pending[1:]
	return copy(p, resp), nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Device) readID() []byte {
	status := d.cfg.InitStatus
	if steps := len(d.cmds.LongInit()); steps > 0 && d.initDone >= steps {
		status = 1
	}
	return []byte{protocol.TagReadID, 0, 0,
		byte(protocol.ProductID & 0xff), byte(protocol.ProductID >> 8),
		0x01, 0x00, status}
}

func (d *Device) capture() []byte {
	frame := make([]byte, protocol.CaptureResponseSize)
	frame[0] = protocol.TagImage
	frame[1] = byte(protocol.CaptureResponseSize & 0xff)
	frame[2] = byte(protocol.CaptureResponseSize >> 8)

	amp := d.cfg.Peak * math.Pow(d.cfg.Decay, float64(d.frames))
	d.frames++
	for i := 0; i < nibble.Rows*nibble.RowBytes; i++ {
		hi := d.sample(amp, i*2)
		lo := d.sample(amp, i*2+1)
		frame[nibble.CaptureOffset+i] = hi<<4 | lo
	}
	return frame
}

func (d *Device) sample(amp float64, idx int) byte {
	v := amp*d.ridges[idx] + d.rng.NormFloat64()*0.3*amp/d.cfg.Peak
	if v < 0 {
		v = 0
	}
	if v > nibble.MaxValue {
		v = nibble.MaxValue
	}
	return byte(v)
}

package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"aes1660-go/internal/protocol"
)

// SerialConfig configures a serial bridge to the sensor.
type SerialConfig struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	Baud int

	// ReadTimeout ends a response once the line stays quiet this long
	ReadTimeout time.Duration

	// Timeout bounds a whole response, including the wait for its first byte
	Timeout time.Duration
}

func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
		Timeout:     protocol.DefaultTimeout,
	}
}

// SerialPort frames responses on a byte stream: a Read collects bytes until
// the buffer is full or the line times out.
type SerialPort struct {
	port io.ReadWriteCloser
	cfg  SerialConfig
	now  func() time.Time
}

func OpenSerial(cfg SerialConfig) (*SerialPort, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device cannot be empty")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return newSerialPort(port, cfg), nil
}

func newSerialPort(port io.ReadWriteCloser, cfg SerialConfig) *SerialPort {
	return &SerialPort{port: port, cfg: cfg, now: time.Now}
}

func (p *SerialPort) Read(b []byte) (int, error) {
	deadline := p.now().Add(Timeout(p.cfg.Timeout, protocol.DefaultTimeout))
	return readFrame(p.port, b, deadline, p.now)
}

// Write hands b to the driver. The port is never flushed: tcflush would drop
// a response that is already waiting.
func (p *SerialPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *SerialPort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// ErrTimeout is returned when no byte arrives before the read timeout.
var ErrTimeout = errors.New("transport: read timed out")

type byteReader interface {
	Read(b []byte) (int, error)
}

// readFrame fills b from r. Before the first byte a quiet line is retried
// until deadline; after it, a quiet line ends the frame. The serial driver
// reports a quiet line as a zero-length read or io.EOF.
func readFrame(r byteReader, b []byte, deadline time.Time, now func() time.Time) (int, error) {
	total := 0
	for total < len(b) {
		n, err := r.Read(b[total:])
		total += n
		if err != nil && !errors.Is(err, io.EOF) {
			return total, err
		}
		if n > 0 && err == nil {
			continue
		}
		if total > 0 || !now().Before(deadline) {
			break
		}
	}
	if total == 0 && len(b) > 0 {
		return 0, ErrTimeout
	}
	return total, nil
}

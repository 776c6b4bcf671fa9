package protocol

import (
	"fmt"
	"io"
	"strings"
)

// Logger is the optional logging interface used by the protocol packages.
// Any nil Logger disables logging.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Channel exchanges opaque commands and fixed-size responses with the sensor.
// It does not interpret response tags.
type Channel struct {
	t   io.ReadWriter
	log Logger
}

func NewChannel(t io.ReadWriter, log Logger) *Channel {
	if t == nil {
		panic("transport cannot be nil")
	}
	return &Channel{t: t, log: log}
}

// Send writes payload in a single transfer.
func (c *Channel) Send(payload []byte) error {
	c.logDebug("sending command", "len", len(payload))
	n, err := c.t.Write(payload)
	if err != nil {
		c.logError("failed to send command", "len", len(payload), "written", n, "err", err)
		return &TransportError{Op: "send", Expected: len(payload), Actual: n, Err: err}
	}
	if n != len(payload) {
		c.logError("failed to send command", "len", len(payload), "written", n)
		return &TransportError{Op: "send", Expected: len(payload), Actual: n}
	}
	return nil
}

// Receive reads one response of exactly size bytes.
func (c *Channel) Receive(size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := c.t.Read(buf)
	if err != nil {
		c.logError("failed to receive response", "err", err)
		return nil, &TransportError{Op: "receive", Expected: size, Actual: n, Err: err}
	}
	c.logDebug("received response", "bytes", n)
	if n != size {
		c.logError("unexpected response size", "expected", size, "actual", n)
		return nil, &ShortReadError{Expected: size, Actual: n}
	}
	if c.log != nil {
		c.log.Debug("response dump\n" + HexDump(buf))
	}
	return buf, nil
}

// TagMatches reports whether a response tag is the expected one.
func TagMatches(expected, actual byte) bool {
	return expected == actual
}

// HexDump formats b as space-separated hex bytes, 8 per line.
func HexDump(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		fmt.Fprintf(&sb, "%02x ", v)
		if i%8 == 7 {
			sb.WriteByte('\n')
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Channel) logDebug(msg string, keysAndValues ...interface{}) {
	if c.log != nil {
		c.log.Debug(msg, keysAndValues...)
	}
}

func (c *Channel) logError(msg string, keysAndValues ...interface{}) {
	if c.log != nil {
		c.log.Error(msg, keysAndValues...)
	}
}

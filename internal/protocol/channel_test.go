package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// MockDevice returns queued responses, one per Read.
type MockDevice struct {
	writeBuf  bytes.Buffer
	responses [][]byte
	respIdx   int
	readErr   error
	writeErr  error
	shortBy   int
}

func (m *MockDevice) Read(p []byte) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.respIdx >= len(m.responses) {
		return 0, io.EOF
	}
	resp := m.responses[m.respIdx]
	m.respIdx++
	return copy(p, resp), nil
}

func (m *MockDevice) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	n, _ := m.writeBuf.Write(p[:len(p)-m.shortBy])
	return n, nil
}

type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) { l.debugMsgs = append(l.debugMsgs, msg) }
func (l *MockLogger) Info(msg string, kv ...interface{})  { l.infoMsgs = append(l.infoMsgs, msg) }
func (l *MockLogger) Error(msg string, kv ...interface{}) { l.errorMsgs = append(l.errorMsgs, msg) }

func TestSend(t *testing.T) {
	dev := &MockDevice{}
	ch := NewChannel(dev, nil)

	if err := ch.Send([]byte{0x44, 0x02}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !bytes.Equal(dev.writeBuf.Bytes(), []byte{0x44, 0x02}) {
		t.Fatalf("unexpected bytes written: %x", dev.writeBuf.Bytes())
	}
}

func TestSendShortWrite(t *testing.T) {
	dev := &MockDevice{shortBy: 1}
	logger := &MockLogger{}
	ch := NewChannel(dev, logger)

	err := ch.Send([]byte{1, 2, 3})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Expected != 3 || te.Actual != 2 {
		t.Fatalf("unexpected counts: %+v", te)
	}
	if !IsFatal(err) {
		t.Fatalf("short write should be fatal")
	}
	if len(logger.errorMsgs) != 1 {
		t.Fatalf("expected one error log, got %v", logger.errorMsgs)
	}
}

func TestSendTransportFailure(t *testing.T) {
	cause := errors.New("LIBUSB_ERROR_PIPE")
	ch := NewChannel(&MockDevice{writeErr: cause}, nil)

	err := ch.Send([]byte{0x0d})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, cause) {
		t.Fatalf("expected transport error wrapping cause, got %v", err)
	}
}

func TestReceive(t *testing.T) {
	dev := &MockDevice{responses: [][]byte{{0x06, 0, 0, 0}}}
	logger := &MockLogger{}
	ch := NewChannel(dev, logger)

	resp, err := ch.Receive(4)
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if !bytes.Equal(resp, []byte{0x06, 0, 0, 0}) {
		t.Fatalf("unexpected response %x", resp)
	}
	if len(logger.errorMsgs) != 0 {
		t.Fatalf("unexpected errors logged: %v", logger.errorMsgs)
	}
}

func TestReceiveShortRead(t *testing.T) {
	dev := &MockDevice{responses: [][]byte{{0x07, 0, 0}}}
	ch := NewChannel(dev, nil)

	_, err := ch.Receive(8)
	var sre *ShortReadError
	if !errors.As(err, &sre) {
		t.Fatalf("expected ShortReadError, got %v", err)
	}
	if sre.Expected != 8 || sre.Actual != 3 {
		t.Fatalf("unexpected counts: %+v", sre)
	}
	if errors.Is(err, ErrTransport) {
		t.Fatalf("short read must be distinct from transport failure")
	}
	if !IsFatal(err) {
		t.Fatalf("short read should be fatal")
	}
}

func TestReceiveTransportFailure(t *testing.T) {
	ch := NewChannel(&MockDevice{readErr: errors.New("timeout")}, nil)

	_, err := ch.Receive(4)
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "receive" {
		t.Fatalf("expected receive TransportError, got %v", err)
	}
}

func TestTagMatches(t *testing.T) {
	if !TagMatches(TagImage, 0x49) {
		t.Fatalf("0x49 should match TagImage")
	}
	if TagMatches(TagReadID, 0x42) {
		t.Fatalf("0x42 should not match TagReadID")
	}
}

func TestHexDump(t *testing.T) {
	got := HexDump([]byte{0, 1, 2, 3, 4, 5, 6, 7, 0xff})
	want := "00 01 02 03 04 05 06 07 \nff "
	if got != want {
		t.Fatalf("HexDump = %q, want %q", got, want)
	}
}

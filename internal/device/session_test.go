package device

import (
	"bytes"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"aes1660-go/internal/nibble"
	"aes1660-go/internal/protocol"
	"aes1660-go/internal/types"
)

// MockDevice replays scripted responses and records every command written.
type MockDevice struct {
	responses [][]byte
	respIdx   int
	writes    [][]byte
	writeErr  error
	afterRead func(n int)
}

func (m *MockDevice) Read(p []byte) (int, error) {
	if m.respIdx >= len(m.responses) {
		return 0, errors.New("no scripted response")
	}
	resp := m.responses[m.respIdx]
	m.respIdx++
	n := copy(p, resp)
	if m.afterRead != nil {
		m.afterRead(m.respIdx)
	}
	return n, nil
}

func (m *MockDevice) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (m *MockDevice) Add(resp ...[]byte) *MockDevice {
	m.responses = append(m.responses, resp...)
	return m
}

type MockLogger struct {
	infoMsgs  []string
	errorMsgs []string
	errorKVs  [][]interface{}
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {}
func (l *MockLogger) Info(msg string, kv ...interface{})  { l.infoMsgs = append(l.infoMsgs, msg) }
func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errorMsgs = append(l.errorMsgs, msg)
	l.errorKVs = append(l.errorKVs, kv)
}

// testCommands uses one-byte payloads so the command stream is easy to read.
type testCommands struct {
	longInit [][]byte
}

const (
	cmdIdle    = 0xA0
	cmdReadID  = 0xA1
	cmdCal     = 0xA2
	cmdLED     = 0xA3
	cmdFinger  = 0xA4
	cmdCapture = 0xA5
)

func (testCommands) SetIdle() []byte      { return []byte{cmdIdle} }
func (testCommands) ReadID() []byte       { return []byte{cmdReadID} }
func (testCommands) Calibrate() []byte    { return []byte{cmdCal} }
func (testCommands) LEDBlink() []byte     { return []byte{cmdLED} }
func (testCommands) FingerDetect() []byte { return []byte{cmdFinger} }
func (testCommands) Capture() []byte      { return []byte{cmdCapture} }
func (c testCommands) LongInit() [][]byte { return c.longInit }

func idResponse(initStatus byte) []byte {
	return []byte{protocol.TagReadID, 0, 0, 0x60, 0x16, 0x01, 0x00, initStatus}
}

func ack(tag byte) []byte { return []byte{tag, 0, 0, 0} }

func fingerResponse(present byte) []byte {
	return []byte{protocol.TagFingerDetect, 0, 0, present}
}

// frameWithSum builds a capture response whose pixels add up to sum.
func frameWithSum(sum int) []byte {
	buf := make([]byte, protocol.CaptureResponseSize)
	buf[0] = protocol.TagImage
	for i := nibble.CaptureOffset; sum > 0; i++ {
		switch {
		case sum >= 30:
			buf[i] = 0xFF
			sum -= 30
		case sum > 15:
			buf[i] = 0xF0 | byte(sum-15)
			sum = 0
		default:
			buf[i] = byte(sum)
			sum = 0
		}
	}
	return buf
}

func commandBytes(writes [][]byte) []byte {
	out := make([]byte, 0, len(writes))
	for _, w := range writes {
		out = append(out, w[0])
	}
	return out
}

// bringUp scripts the responses up to and including the first calibration.
func bringUp(dev *MockDevice, initStatus byte) {
	dev.Add(idResponse(initStatus), idResponse(1), ack(protocol.TagCalibrate))
}

func TestFrameWithSumHelper(t *testing.T) {
	for _, want := range []int{0, 7, 90, 100, 101, 150, nibble.Rows * nibble.Cols * nibble.MaxValue} {
		got, err := nibble.IntensitySum(frameWithSum(want))
		if err != nil || got != want {
			t.Fatalf("frameWithSum(%d) sums to %d (%v)", want, got, err)
		}
	}
}

func TestRunSequence(t *testing.T) {
	dev := &MockDevice{}
	bringUp(dev, 1)
	dev.Add(fingerResponse(1), ack(protocol.TagCalibrate), frameWithSum(50))

	var captured []types.Capture
	s := New(dev, testCommands{}, nil, WithSink(SinkFunc(func(c types.Capture) error {
		captured = append(captured, c)
		return nil
	})))

	res, err := s.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := []byte{cmdIdle, cmdReadID, cmdReadID, cmdCal, cmdLED, cmdFinger, cmdCal, cmdCapture, cmdIdle}
	if got := commandBytes(dev.writes); !bytes.Equal(got, want) {
		t.Fatalf("command sequence = %x, want %x", got, want)
	}
	if res.LongInit {
		t.Fatalf("long init ran with a non-zero init status")
	}
	if res.Identity.DeviceID != 0x1660 {
		t.Fatalf("unexpected identity %+v", res.Identity)
	}
	if res.Frames != 1 || len(captured) != 1 || captured[0].Sum != 50 {
		t.Fatalf("unexpected capture result %+v (%d sink calls)", res, len(captured))
	}
	if captured[0].Tag != protocol.TagImage || captured[0].Width != 8 || captured[0].Height != 128 {
		t.Fatalf("unexpected capture %+v", captured[0])
	}
}

func TestRunLongInit(t *testing.T) {
	cmds := testCommands{longInit: [][]byte{{0xB0}, {0xB1}, {0xB2}}}
	dev := &MockDevice{}
	dev.Add(idResponse(0), ack(protocol.TagInit), ack(protocol.TagInit), ack(protocol.TagInit))
	dev.Add(idResponse(1), ack(protocol.TagCalibrate), fingerResponse(1), ack(protocol.TagCalibrate), frameWithSum(0))

	res, err := New(dev, cmds, nil).Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !res.LongInit {
		t.Fatalf("long init not reported")
	}
	want := []byte{cmdIdle, cmdReadID, 0xB0, 0xB1, 0xB2, cmdReadID, cmdCal, cmdLED, cmdFinger, cmdCal, cmdCapture, cmdIdle}
	if got := commandBytes(dev.writes); !bytes.Equal(got, want) {
		t.Fatalf("command sequence = %x, want %x", got, want)
	}
}

func TestFingerDetectLoopCount(t *testing.T) {
	dev := &MockDevice{}
	bringUp(dev, 1)
	dev.Add(fingerResponse(0), fingerResponse(0), fingerResponse(1))
	dev.Add(ack(protocol.TagCalibrate), frameWithSum(10))

	res, err := New(dev, testCommands{}, nil).Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.FingerPolls != 3 || !res.Finger {
		t.Fatalf("finger polls = %d (finger=%v), want 3", res.FingerPolls, res.Finger)
	}
}

func TestCaptureLoopStopsAtCutoff(t *testing.T) {
	dev := &MockDevice{}
	bringUp(dev, 1)
	dev.Add(fingerResponse(1), ack(protocol.TagCalibrate))
	dev.Add(frameWithSum(150), frameWithSum(120), frameWithSum(90), frameWithSum(500))

	var sums []int
	s := New(dev, testCommands{}, nil, WithSink(SinkFunc(func(c types.Capture) error {
		sums = append(sums, c.Sum)
		return nil
	})))

	res, err := s.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Frames != 3 || res.LastSum != 90 {
		t.Fatalf("frames = %d last sum = %d, want 3 and 90", res.Frames, res.LastSum)
	}
	if len(sums) != 3 || sums[0] != 150 || sums[1] != 120 || sums[2] != 90 {
		t.Fatalf("unexpected sink sums %v", sums)
	}
	if dev.respIdx != len(dev.responses)-1 {
		t.Fatalf("capture loop read past the cutoff frame")
	}
}

func TestCaptureCutoffIsExclusive(t *testing.T) {
	dev := &MockDevice{}
	bringUp(dev, 1)
	dev.Add(fingerResponse(1), ack(protocol.TagCalibrate))
	dev.Add(frameWithSum(101), frameWithSum(100))

	res, err := New(dev, testCommands{}, nil).Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Frames != 2 {
		t.Fatalf("frames = %d, want 2", res.Frames)
	}
}

func TestAbortDuringFingerDetect(t *testing.T) {
	var abort atomic.Bool
	dev := &MockDevice{}
	bringUp(dev, 1)
	dev.Add(fingerResponse(0))
	dev.Add(ack(protocol.TagCalibrate), frameWithSum(500), frameWithSum(500))

	fingerRead := 4
	dev.afterRead = func(n int) {
		if n == fingerRead {
			abort.Store(true)
		}
	}

	res, err := New(dev, testCommands{}, &abort).Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.FingerPolls != 1 {
		t.Fatalf("finger polls = %d, want 1", res.FingerPolls)
	}
	if !res.Aborted || res.Finger {
		t.Fatalf("unexpected result %+v", res)
	}
	// the capture loop still runs its first iteration before seeing the flag
	if res.Frames != 1 {
		t.Fatalf("frames = %d, want 1", res.Frames)
	}
	if got := commandBytes(dev.writes); got[len(got)-1] != cmdIdle {
		t.Fatalf("sensor not returned to idle after abort: %x", got)
	}
}

func TestAbortDuringCapture(t *testing.T) {
	var abort atomic.Bool
	dev := &MockDevice{}
	bringUp(dev, 1)
	dev.Add(fingerResponse(1), ack(protocol.TagCalibrate))
	dev.Add(frameWithSum(400), frameWithSum(400), frameWithSum(400))

	firstCapture := len(dev.responses) - 2
	dev.afterRead = func(n int) {
		if n == firstCapture {
			abort.Store(true)
		}
	}

	frames := 0
	s := New(dev, testCommands{}, &abort, WithSink(SinkFunc(func(types.Capture) error {
		frames++
		return nil
	})))
	res, err := s.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Frames != 1 || frames != 1 || !res.Aborted {
		t.Fatalf("frames = %d emitted = %d aborted = %v, want exactly one frame", res.Frames, frames, res.Aborted)
	}
	if !abort.Load() {
		t.Fatalf("abort flag must stay set")
	}
}

func TestTagMismatchIsNotFatal(t *testing.T) {
	dev := &MockDevice{}
	dev.Add(idResponse(1), idResponse(1))
	dev.Add(ack(0x99)) // bogus calibrate tag
	dev.Add(fingerResponse(1), ack(protocol.TagCalibrate), frameWithSum(0))

	logger := &MockLogger{}
	res, err := New(dev, testCommands{}, nil, WithLogger(logger)).Run()
	if err != nil {
		t.Fatalf("tag mismatch aborted the run: %v", err)
	}
	if res.Frames != 1 {
		t.Fatalf("frames = %d, want 1", res.Frames)
	}
	if len(logger.errorMsgs) != 1 || logger.errorMsgs[0] != "unexpected response tag" {
		t.Fatalf("unexpected error logs %v", logger.errorMsgs)
	}
	kv := logger.errorKVs[0]
	if kv[1] != StepCalibrate || kv[3] != "0x06" || kv[5] != "0x99" {
		t.Fatalf("unexpected mismatch detail %v", kv)
	}
}

func TestShortReadIsFatal(t *testing.T) {
	dev := &MockDevice{}
	bringUp(dev, 1)
	dev.Add(fingerResponse(1), ack(protocol.TagCalibrate))
	dev.Add(frameWithSum(300), frameWithSum(300)[:100])

	res, err := New(dev, testCommands{}, nil).Run()
	var sre *protocol.ShortReadError
	if !errors.As(err, &sre) {
		t.Fatalf("expected ShortReadError, got %v", err)
	}
	if sre.Expected != protocol.CaptureResponseSize || sre.Actual != 100 {
		t.Fatalf("unexpected short read %+v", sre)
	}
	if !strings.HasPrefix(err.Error(), StepCapture+":") {
		t.Fatalf("error not tagged with the step: %v", err)
	}
	if res.Frames != 1 {
		t.Fatalf("partial result lost: frames = %d", res.Frames)
	}
	if got := commandBytes(dev.writes); got[len(got)-1] != cmdCapture {
		t.Fatalf("session kept going after a fatal error: %x", got)
	}
}

func TestIdentifyShortReadIsFatal(t *testing.T) {
	dev := &MockDevice{}
	dev.Add([]byte{protocol.TagReadID, 0, 0})

	_, err := New(dev, testCommands{}, nil).Run()
	if !errors.Is(err, protocol.ErrShortRead) {
		t.Fatalf("expected short read, got %v", err)
	}
	if len(dev.writes) != 2 {
		t.Fatalf("unexpected writes after failure: %d", len(dev.writes))
	}
}

func TestTransportErrorIsFatal(t *testing.T) {
	dev := &MockDevice{writeErr: errors.New("LIBUSB_ERROR_NO_DEVICE")}

	_, err := New(dev, testCommands{}, nil).Run()
	if !errors.Is(err, protocol.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), StepIdle) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSinkErrorIsReported(t *testing.T) {
	dev := &MockDevice{}
	bringUp(dev, 1)
	dev.Add(fingerResponse(1), ack(protocol.TagCalibrate), frameWithSum(200), frameWithSum(20))

	logger := &MockLogger{}
	calls := 0
	s := New(dev, testCommands{}, nil,
		WithLogger(logger),
		WithSink(SinkFunc(func(types.Capture) error {
			calls++
			return errors.New("disk full")
		})),
	)
	res, err := s.Run()
	if err != nil {
		t.Fatalf("sink failure aborted the run: %v", err)
	}
	if res.Frames != 2 || calls != 2 {
		t.Fatalf("frames = %d sink calls = %d, want 2", res.Frames, calls)
	}
	if len(logger.errorMsgs) != 2 || logger.errorMsgs[0] != "capture sink failed" {
		t.Fatalf("unexpected error logs %v", logger.errorMsgs)
	}
}

func TestCaptureTimestamps(t *testing.T) {
	dev := &MockDevice{}
	bringUp(dev, 1)
	dev.Add(fingerResponse(1), ack(protocol.TagCalibrate), frameWithSum(1))

	fixed := time.Unix(1700000000, 500000000)
	var got types.Capture
	s := New(dev, testCommands{}, nil,
		WithClock(func() time.Time { return fixed }),
		WithSink(SinkFunc(func(c types.Capture) error {
			got = c
			return nil
		})),
	)
	if _, err := s.Run(); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got.Timestamp != 1700000000.5 {
		t.Fatalf("unexpected timestamp %v", got.Timestamp)
	}
}

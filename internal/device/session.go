package device

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"aes1660-go/internal/nibble"
	"aes1660-go/internal/protocol"
	"aes1660-go/internal/types"
)

// LivenessCutoff is the intensity sum at or below which the finger is
// considered gone and capture stops.
const LivenessCutoff = 100

// Step names used in errors and logs.
const (
	StepIdle        = "set idle"
	StepIdentify    = "identify"
	StepLongInit    = "long init"
	StepCalibrate   = "calibrate"
	StepArm         = "arm"
	StepFingerWait  = "finger detect"
	StepCapture     = "capture"
	StepIdleRelease = "release"
)

// Result describes what a session achieved, including a partial run.
type Result struct {
	Identity    protocol.Identity
	LongInit    bool
	FingerPolls int
	Finger      bool
	Frames      int
	LastSum     int
	Aborted     bool
}

// Session runs the capture sequence against one sensor.
type Session struct {
	ch     *protocol.Channel
	cmds   protocol.CommandSet
	abort  *atomic.Bool
	config Config
}

// New creates a session. abort may be nil when no interruption source exists.
func New(t io.ReadWriter, cmds protocol.CommandSet, abort *atomic.Bool, opts ...Option) *Session {
	if cmds == nil {
		panic("command set cannot be nil")
	}
	if abort == nil {
		abort = new(atomic.Bool)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Session{
		ch:     protocol.NewChannel(t, cfg.Logger),
		cmds:   cmds,
		abort:  abort,
		config: cfg,
	}
}

// Run performs the whole sequence. On failure the returned Result still
// reports the frames captured so far.
func (s *Session) Run() (Result, error) {
	var res Result

	if err := s.ch.Send(s.cmds.SetIdle()); err != nil {
		return res, fmt.Errorf("%s: %w", StepIdle, err)
	}

	id, err := s.identify()
	if err != nil {
		return res, err
	}

	if id.NeedsLongInit() {
		s.logInfo("performing long init")
		res.LongInit = true
		if err := s.longInit(); err != nil {
			return res, err
		}
	} else {
		s.logInfo("no need for long init")
	}

	if res.Identity, err = s.identify(); err != nil {
		return res, err
	}

	if err := s.calibrate(); err != nil {
		return res, err
	}

	if err := s.ch.Send(s.cmds.LEDBlink()); err != nil {
		return res, fmt.Errorf("%s: %w", StepArm, err)
	}

	if err := s.waitForFinger(&res); err != nil {
		return res, err
	}
	if res.Finger {
		s.logInfo("finger detected")
	}

	if err := s.calibrate(); err != nil {
		return res, err
	}

	if err := s.captureLoop(&res); err != nil {
		return res, err
	}
	s.logInfo("capture done", "frames", res.Frames, "last_sum", res.LastSum, "aborted", res.Aborted)

	if err := s.ch.Send(s.cmds.SetIdle()); err != nil {
		return res, fmt.Errorf("%s: %w", StepIdleRelease, err)
	}
	return res, nil
}

func (s *Session) identify() (protocol.Identity, error) {
	resp, err := s.command(StepIdentify, s.cmds.ReadID(), protocol.ReadIDResponseSize, protocol.TagReadID)
	if err != nil {
		return protocol.Identity{}, err
	}
	id, err := protocol.ParseReadIDResponse(resp)
	if err != nil {
		return protocol.Identity{}, fmt.Errorf("%s: %w", StepIdentify, err)
	}
	s.logInfo(id.String())
	return id, nil
}

func (s *Session) longInit() error {
	steps := s.cmds.LongInit()
	if len(steps) == 0 {
		s.logError("long init requested but the command set has no init sequence")
	}
	for i, payload := range steps {
		if _, err := s.command(StepLongInit, payload, protocol.InitResponseSize, protocol.TagInit); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func (s *Session) calibrate() error {
	_, err := s.command(StepCalibrate, s.cmds.Calibrate(), protocol.CalibrateResponseSize, protocol.TagCalibrate)
	return err
}

func (s *Session) waitForFinger(res *Result) error {
	for {
		resp, err := s.command(StepFingerWait, s.cmds.FingerDetect(), protocol.FingerDetectResponseSize, protocol.TagFingerDetect)
		if err != nil {
			return err
		}
		res.FingerPolls++
		if protocol.FingerPresent(resp) {
			res.Finger = true
			return nil
		}
		if s.abort.Load() {
			res.Aborted = true
			return nil
		}
	}
}

func (s *Session) captureLoop(res *Result) error {
	for {
		resp, err := s.command(StepCapture, s.cmds.Capture(), protocol.CaptureResponseSize, protocol.TagImage)
		if err != nil {
			return err
		}
		grid, err := nibble.Decode(resp, nibble.CaptureOffset)
		if err != nil {
			return fmt.Errorf("%s: %w", StepCapture, err)
		}

		c := types.NewCapture(res.Frames, timestamp(s.config.Now), resp, grid)
		res.Frames++
		res.LastSum = c.Sum
		s.emit(c)
		s.logInfo(fmt.Sprintf("Image sum is %d", c.Sum), "frame", c.Index)

		if c.Sum <= LivenessCutoff {
			return nil
		}
		if s.abort.Load() {
			res.Aborted = true
			return nil
		}
	}
}

// command sends payload, reads a size-byte response and checks its tag.
// A tag mismatch is only reported.
func (s *Session) command(step string, payload []byte, size int, tag byte) ([]byte, error) {
	if err := s.ch.Send(payload); err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	resp, err := s.ch.Receive(size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	if !protocol.TagMatches(tag, resp[0]) {
		s.logError("unexpected response tag",
			"step", step,
			"expected", fmt.Sprintf("0x%02x", tag),
			"actual", fmt.Sprintf("0x%02x", resp[0]),
		)
	}
	return resp, nil
}

func (s *Session) emit(c types.Capture) {
	for _, sink := range s.config.Sinks {
		if err := sink.WriteCapture(c); err != nil {
			s.logError("capture sink failed", "frame", c.Index, "err", err)
		}
	}
}

func timestamp(now func() time.Time) float64 {
	return float64(now().UnixNano()) / 1e9
}

func (s *Session) logInfo(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Info(msg, keysAndValues...)
	}
}

func (s *Session) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, keysAndValues...)
	}
}

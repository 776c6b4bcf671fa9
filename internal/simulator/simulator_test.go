package simulator

import (
	"errors"
	"sync/atomic"
	"testing"

	"aes1660-go/internal/device"
	"aes1660-go/internal/nibble"
	"aes1660-go/internal/protocol"
	"aes1660-go/internal/types"
)

func TestCommandsAreComplete(t *testing.T) {
	if err := Commands().Validate(); err != nil {
		t.Fatalf("simulator command set incomplete: %v", err)
	}
}

func TestReadWithoutCommand(t *testing.T) {
	d := New(Commands(), DefaultConfig())
	if _, err := d.Read(make([]byte, 4)); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
}

func TestCaptureIntensityDecays(t *testing.T) {
	cmds := Commands()
	d := New(cmds, DefaultConfig())

	prev := -1
	for i := 0; i < 4; i++ {
		if _, err := d.Write(cmds.Capture()); err != nil {
			t.Fatal(err)
		}
		buf := make([]byte, protocol.CaptureResponseSize)
		n, err := d.Read(buf)
		if err != nil || n != protocol.CaptureResponseSize {
			t.Fatalf("capture read = %d, %v", n, err)
		}
		sum, err := nibble.IntensitySum(buf)
		if err != nil {
			t.Fatal(err)
		}
		if prev >= 0 && sum > prev {
			t.Fatalf("frame %d sum %d rose above %d", i, sum, prev)
		}
		prev = sum
	}
}

func TestSessionAgainstSimulator(t *testing.T) {
	cmds := Commands()
	cfg := DefaultConfig()
	d := New(cmds, cfg)

	var sums []int
	var abort atomic.Bool
	s := device.New(d, cmds, &abort, device.WithSink(device.SinkFunc(func(c types.Capture) error {
		sums = append(sums, c.Sum)
		return nil
	})))

	res, err := s.Run()
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !res.LongInit {
		t.Fatalf("long init should run when the sensor reports status 0")
	}
	if res.Identity.InitStatus != 1 || res.Identity.DeviceID != protocol.ProductID {
		t.Fatalf("unexpected identity after init %+v", res.Identity)
	}
	if res.FingerPolls != cfg.FingerAfter {
		t.Fatalf("finger polls = %d, want %d", res.FingerPolls, cfg.FingerAfter)
	}
	if res.Frames < 2 || res.Frames != len(sums) {
		t.Fatalf("frames = %d sums = %v", res.Frames, sums)
	}
	if sums[len(sums)-1] > device.LivenessCutoff {
		t.Fatalf("session stopped while the finger was still present: %v", sums)
	}
	for _, sum := range sums[:len(sums)-1] {
		if sum <= device.LivenessCutoff {
			t.Fatalf("session kept capturing after the finger left: %v", sums)
		}
	}

	written := d.Written()
	if last := written[len(written)-1]; string(last) != string(cmds.SetIdle()) {
		t.Fatalf("session did not end with set idle: %x", last)
	}
}

package ingest

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"aes1660-go/internal/types"
)

// Stream returns a channel of captures published by a capture process.
// Expects CBOR messages shaped like types.FrameMessage:
// { "type": "frame", "capture": { "index": <int>, "sum": <int>, "width": 8, "height": 128, "pixels": <bytes>, ... } }
func Stream(ctx context.Context, endpoint string) (<-chan types.Capture, error) {
	return streamWithConfig(ctx, endpoint, 1)
}

func StreamWithLogEvery(ctx context.Context, endpoint string, logEvery int) (<-chan types.Capture, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	return streamWithConfig(ctx, endpoint, logEvery)
}

func streamWithConfig(ctx context.Context, endpoint string, logEvery int) (<-chan types.Capture, error) {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	// lets the loop notice ctx while the stream is idle
	if err := socket.SetRcvtimeo(250 * time.Millisecond); err != nil {
		_ = socket.Close()
		return nil, err
	}

	out := make(chan types.Capture, 128)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) != zmq4.Errno(syscall.EAGAIN) {
					logEveryN(logEvery, "ingest recv error: %v", err)
				}
				continue
			}

			capture, ok := decodeMessage(msg, logEvery)
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- capture:
			}
		}
	}()

	return out, nil
}

func decodeMessage(msg []byte, logEvery int) (types.Capture, bool) {
	var payload types.FrameMessage
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		logEveryN(logEvery, "ingest CBOR decode error: %v", err)
		return types.Capture{}, false
	}
	if payload.Type != types.MessageFrame {
		logEveryN(logEvery, "ingest ignoring message type %q", payload.Type)
		return types.Capture{}, false
	}
	if err := validate(payload.Capture); err != nil {
		logEveryN(logEvery, "ingest invalid capture: %v", err)
		return types.Capture{}, false
	}
	return payload.Capture, true
}

func validate(c types.Capture) error {
	if c.Index < 0 {
		return fmt.Errorf("negative index %d", c.Index)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("bad shape %dx%d", c.Width, c.Height)
	}
	if len(c.Pixels) != c.Width*c.Height {
		return fmt.Errorf("pixel count %d does not match %dx%d", len(c.Pixels), c.Width, c.Height)
	}
	return nil
}

var logCounter atomic.Int64

func logEveryN(n int, format string, args ...any) {
	if logCounter.Add(1)%int64(n) == 0 {
		log.Printf(format, args...)
	}
}

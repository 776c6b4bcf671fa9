package container

import (
	"errors"
	"fmt"
	"io"

	"aes1660-go/internal/nibble"
	"aes1660-go/internal/protocol"
)

// GridWriter stores a decoded image and names it with the frame counter.
type GridWriter interface {
	WriteGrid(g nibble.Grid) (string, error)
}

// Extract decodes every well-formed image record in r and hands it to w.
// It returns the number of images written. Records of other types and
// anomalous image records are reported through log and skipped.
func Extract(r io.Reader, w GridWriter, log protocol.Logger) (int, error) {
	p := NewParser(r)
	p.OnAnomaly(func(h Header, offset int64) {
		logError(log, "bogus frame size",
			"size", fmt.Sprintf("%04x", h.Size()),
			"offset", fmt.Sprintf("%08x", offset),
		)
	})
	frames := 0
	for {
		rec, err := p.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}

		if !rec.IsImage() {
			logInfo(log, fmt.Sprintf("header type is %02x", rec.Header.Type), "size", rec.Header.Size())
			continue
		}
		if len(rec.Payload) >= 2 {
			logInfo(log, fmt.Sprintf("%02x %02x", rec.Payload[0], rec.Payload[1]))
		}
		if !rec.Decodable() {
			continue
		}

		g, err := nibble.Decode(rec.Payload, nibble.ContainerOffset)
		if err != nil {
			return frames, err
		}
		name, err := w.WriteGrid(g)
		if err != nil {
			return frames, fmt.Errorf("write frame %d: %w", frames, err)
		}
		logInfo(log, "wrote frame", "path", name)
		frames++
	}
}

func logInfo(log protocol.Logger, msg string, keysAndValues ...interface{}) {
	if log != nil {
		log.Info(msg, keysAndValues...)
	}
}

func logError(log protocol.Logger, msg string, keysAndValues ...interface{}) {
	if log != nil {
		log.Error(msg, keysAndValues...)
	}
}

package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"aes1660-go/internal/types"
)

// RawLogRecord is one entry read back from a raw capture log.
type RawLogRecord struct {
	Time    time.Time
	Payload []byte
}

// Capture decodes the record payload.
func (r RawLogRecord) Capture() (types.Capture, error) {
	var c types.Capture
	err := cbor.Unmarshal(r.Payload, &c)
	return c, err
}

// RawLogReader reads records written by RawLogWriter.
type RawLogReader struct {
	r io.Reader
}

// NewRawLogReader checks the magic and positions the reader at the first record.
func NewRawLogReader(r io.Reader) (*RawLogReader, error) {
	header := make([]byte, len(RawLogMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(header) != RawLogMagic {
		return nil, fmt.Errorf("unexpected rawlog magic %q", string(header))
	}
	return &RawLogReader{r: r}, nil
}

// Next returns io.EOF after the last complete record.
func (l *RawLogReader) Next() (RawLogRecord, error) {
	var meta [12]byte
	if _, err := io.ReadFull(l.r, meta[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return RawLogRecord{}, io.EOF
		}
		return RawLogRecord{}, fmt.Errorf("read record header: %w", err)
	}
	ts := int64(binary.LittleEndian.Uint64(meta[:8]))
	size := binary.LittleEndian.Uint32(meta[8:12])
	payload := make([]byte, size)
	if _, err := io.ReadFull(l.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return RawLogRecord{}, io.EOF
		}
		return RawLogRecord{}, fmt.Errorf("read payload: %w", err)
	}
	return RawLogRecord{Time: time.Unix(0, ts), Payload: payload}, nil
}

// Package container walks capture dump files: a concatenation of records
// laid out as
//
//	[TYPE][SIZE_LSB][SIZE_MSB][PAYLOAD (SIZE bytes)]
//
// Image records (type 0x49) carry a 0x244-byte frame with pixel data at
// offset 40. Every other record is skipped.
package container

import (
	"errors"
	"fmt"
	"io"

	"aes1660-go/internal/protocol"
)

// HeaderSize is the size of a record header on the wire.
const HeaderSize = 3

// Header precedes every record.
type Header struct {
	Type    byte
	SizeLSB byte
	SizeMSB byte
}

// Size is the payload length declared by the header.
func (h Header) Size() int {
	return int(h.SizeMSB)*256 + int(h.SizeLSB)
}

// Record is one parsed record. Payload is only read for image records.
type Record struct {
	Header Header
	// Offset is the stream position of the first payload byte
	Offset int64
	// Payload holds the image record bytes; nil for other record types
	Payload []byte
}

// IsImage reports whether the record carries an image frame.
func (r Record) IsImage() bool {
	return r.Header.Type == protocol.TagImage
}

// Anomalous reports an image record whose size is not the frame size.
func (r Record) Anomalous() bool {
	return r.IsImage() && r.Header.Size() != protocol.ContainerFrameSize
}

// Decodable reports whether the payload can be handed to the image decoder.
func (r Record) Decodable() bool {
	return r.IsImage() && !r.Anomalous() && len(r.Payload) == protocol.ContainerFrameSize
}

// Parser reads records lazily. It cannot be rewound.
type Parser struct {
	r         io.Reader
	offset    int64
	done      bool
	onAnomaly func(h Header, offset int64)
}

func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

// OnAnomaly registers fn to run when an image header declares a size other
// than the frame size. It runs before the payload is read, so a truncated
// anomalous record is still reported.
func (p *Parser) OnAnomaly(fn func(h Header, offset int64)) {
	p.onAnomaly = fn
}

// Offset is the number of bytes consumed so far.
func (p *Parser) Offset() int64 {
	return p.offset
}

// Next returns the next record. The end of the dump, including a truncated
// header or payload, is reported as io.EOF. Other read errors are returned
// as is and also end the sequence.
func (p *Parser) Next() (Record, error) {
	if p.done {
		return Record{}, io.EOF
	}

	var raw [HeaderSize]byte
	n, err := io.ReadFull(p.r, raw[:])
	p.offset += int64(n)
	if err != nil {
		return Record{}, p.finish(err)
	}

	rec := Record{
		Header: Header{Type: raw[0], SizeLSB: raw[1], SizeMSB: raw[2]},
		Offset: p.offset,
	}
	size := rec.Header.Size()

	if !rec.IsImage() {
		skipped, err := io.CopyN(io.Discard, p.r, int64(size))
		p.offset += skipped
		if err != nil {
			return Record{}, p.finish(err)
		}
		return rec, nil
	}

	if rec.Anomalous() && p.onAnomaly != nil {
		p.onAnomaly(rec.Header, rec.Offset)
	}
	rec.Payload = make([]byte, size)
	n, err = io.ReadFull(p.r, rec.Payload)
	p.offset += int64(n)
	if err != nil {
		return Record{}, p.finish(err)
	}
	return rec, nil
}

func (p *Parser) finish(err error) error {
	p.done = true
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return fmt.Errorf("read dump at offset %d: %w", p.offset, err)
}

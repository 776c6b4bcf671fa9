// Package nibble decodes the packed 4-bit images produced by the AES1660 sensor.
//
// A frame region holds 128 rows of 4 bytes. Each byte carries two pixels, high
// nibble first, so a decoded image is 8 pixels wide and 128 pixels tall with
// values in 0..15.
package nibble

import (
	"errors"
	"fmt"
	"image"
)

const (
	Rows     = 128
	RowBytes = 4
	Cols     = RowBytes * 2
	MaxValue = 15

	// ContainerOffset is where pixel data starts in a 0x244-byte dump record.
	ContainerOffset = 40
	// CaptureOffset is where pixel data starts in a 583-byte capture response.
	CaptureOffset = 42
)

var ErrShortBuffer = errors.New("nibble: buffer too short for image region")

// ShortBufferError reports a region that does not fit in the source buffer.
type ShortBufferError struct {
	Offset int
	Need   int
	Have   int
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("nibble: region at offset %d needs %d bytes, buffer has %d", e.Offset, e.Need, e.Have)
}

func (e *ShortBufferError) Unwrap() error { return ErrShortBuffer }

// Grid is a row-major image of 4-bit samples.
type Grid struct {
	Width  int
	Height int
	Pix    []uint8
}

func (g Grid) At(x, y int) uint8 {
	return g.Pix[y*g.Width+x]
}

func (g Grid) Row(y int) []uint8 {
	return g.Pix[y*g.Width : (y+1)*g.Width]
}

// Sum adds every sample in the grid.
func (g Grid) Sum() int {
	sum := 0
	for _, v := range g.Pix {
		sum += int(v)
	}
	return sum
}

// Image scales the samples onto 0..255.
func (g Grid) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for i, v := range g.Pix {
		img.Pix[i] = v * 17
	}
	return img
}

// Decode unpacks the standard 8x128 image starting at offset.
func Decode(buf []byte, offset int) (Grid, error) {
	return DecodeRegion(buf, offset, Rows, RowBytes)
}

// DecodeRegion unpacks rows*rowBytes bytes starting at offset into a grid
// that is rowBytes*2 samples wide.
func DecodeRegion(buf []byte, offset, rows, rowBytes int) (Grid, error) {
	need := rows * rowBytes
	if offset < 0 || rows < 0 || rowBytes < 0 || len(buf) < offset+need {
		return Grid{}, &ShortBufferError{Offset: offset, Need: need, Have: len(buf)}
	}

	g := Grid{
		Width:  rowBytes * 2,
		Height: rows,
		Pix:    make([]uint8, need*2),
	}
	for i, b := range buf[offset : offset+need] {
		g.Pix[i*2] = b >> 4
		g.Pix[i*2+1] = b & 0x0f
	}
	return g, nil
}

// IntensitySum decodes a capture response and returns the sum of all samples.
func IntensitySum(frame []byte) (int, error) {
	g, err := Decode(frame, CaptureOffset)
	if err != nil {
		return 0, err
	}
	return g.Sum(), nil
}

//go:build !gocv

package render

import (
	"image/png"
	"os"

	"aes1660-go/internal/nibble"
)

// Backend names the implementation compiled in.
const Backend = "image/png"

// WritePNG writes g at native size. Build with -tags gocv for upscaled output.
func WritePNG(path string, g nibble.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, g.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

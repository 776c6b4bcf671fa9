//go:build gocv

package render

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"aes1660-go/internal/nibble"
)

// Backend names the implementation compiled in.
const Backend = "gocv"

// WritePNG stretches g to 8 bits, upscales it and writes it to path.
func WritePNG(path string, g nibble.Grid) error {
	buf := make([]byte, len(g.Pix))
	for i, v := range g.Pix {
		buf[i] = v * 17
	}
	mat, err := gocv.NewMatFromBytes(g.Height, g.Width, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return err
	}
	defer mat.Close()

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(mat, &scaled, image.Point{X: g.Width * Scale, Y: g.Height * Scale}, 0, 0, gocv.InterpolationNearestNeighbor)

	if ok := gocv.IMWrite(path, scaled); !ok {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}

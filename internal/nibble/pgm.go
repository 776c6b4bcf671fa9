package nibble

import (
	"bufio"
	"fmt"
	"io"
)

// WritePGM serializes g as a plain (P2) grayscale image with max value 15.
func WritePGM(w io.Writer, g Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P2\n%d %d\n%d\n", g.Width, g.Height, MaxValue)
	for y := 0; y < g.Height; y++ {
		for _, v := range g.Row(y) {
			fmt.Fprintf(bw, "%02d ", v)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

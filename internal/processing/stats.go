package processing

import (
	"aes1660-go/internal/nibble"
)

// FrameStats describes the pixel distribution of one image.
type FrameStats struct {
	Min  uint8
	Max  uint8
	Sum  int
	Mean float64
	// Lit counts pixels above zero
	Lit int
}

func ProcessFrame(g nibble.Grid) (FrameStats, bool) {
	if len(g.Pix) == 0 {
		return FrameStats{}, false
	}

	st := FrameStats{Min: nibble.MaxValue}
	for _, v := range g.Pix {
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
		if v > 0 {
			st.Lit++
		}
		st.Sum += int(v)
	}
	st.Mean = float64(st.Sum) / float64(len(g.Pix))
	return st, true
}

// RowProfile returns the sum of every row, top to bottom.
func RowProfile(g nibble.Grid) []int {
	if g.Width <= 0 {
		return nil
	}
	profile := make([]int, g.Height)
	for y := 0; y < g.Height; y++ {
		for _, v := range g.Row(y) {
			profile[y] += int(v)
		}
	}
	return profile
}

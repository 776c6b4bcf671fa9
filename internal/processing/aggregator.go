package processing

import (
	"sync"

	"aes1660-go/internal/types"
)

// Aggregator keeps running statistics over the captures of a session and
// the most recent capture for late viewers.
type Aggregator struct {
	mu     sync.Mutex
	frames int
	total  int
	min    int
	max    int
	last   types.Capture
	stats  FrameStats
	have   bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddFrame records c. It returns false when c carries no pixels.
func (a *Aggregator) AddFrame(c types.Capture) bool {
	st, ok := ProcessFrame(c.Grid())
	if !ok {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frames == 0 || c.Sum < a.min {
		a.min = c.Sum
	}
	if a.frames == 0 || c.Sum > a.max {
		a.max = c.Sum
	}
	a.frames++
	a.total += c.Sum
	a.last = c
	a.stats = st
	a.have = true
	return true
}

// WriteCapture lets the aggregator sit among the session sinks.
func (a *Aggregator) WriteCapture(c types.Capture) error {
	a.AddFrame(c)
	return nil
}

func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames, a.total, a.min, a.max = 0, 0, 0, 0
	a.last = types.Capture{}
	a.stats = FrameStats{}
	a.have = false
}

// Latest returns the last capture added, if any.
func (a *Aggregator) Latest() (types.Capture, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last, a.have
}

func (a *Aggregator) Snapshot() types.StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap := types.StatsSnapshot{
		Frames:   a.frames,
		LastSum:  a.last.Sum,
		MinSum:   a.min,
		MaxSum:   a.max,
		LastMean: a.stats.Mean,
		LastLit:  a.stats.Lit,
	}
	if a.frames > 0 {
		snap.MeanSum = float64(a.total) / float64(a.frames)
	}
	return snap
}

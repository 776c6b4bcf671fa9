package types

import "aes1660-go/internal/nibble"

// Capture is one decoded image together with the liveness signal computed
// for it. It is the message shared by the raw log, the publishers and the
// viewer.
type Capture struct {
	Index     int     `json:"index" cbor:"index"`
	Timestamp float64 `json:"timestamp" cbor:"timestamp"`
	Tag       byte    `json:"tag" cbor:"tag"`
	Sum       int     `json:"sum" cbor:"sum"`
	Width     int     `json:"width" cbor:"width"`
	Height    int     `json:"height" cbor:"height"`
	Pixels    []uint8 `json:"pixels" cbor:"pixels"`
	Raw       []byte  `json:"-" cbor:"raw,omitempty"`
}

// NewCapture fills a capture from a decoded grid.
func NewCapture(index int, timestamp float64, raw []byte, g nibble.Grid) Capture {
	var tag byte
	if len(raw) > 0 {
		tag = raw[0]
	}
	return Capture{
		Index:     index,
		Timestamp: timestamp,
		Tag:       tag,
		Sum:       g.Sum(),
		Width:     g.Width,
		Height:    g.Height,
		Pixels:    g.Pix,
		Raw:       raw,
	}
}

func (c Capture) Grid() nibble.Grid {
	return nibble.Grid{Width: c.Width, Height: c.Height, Pix: c.Pixels}
}

// Message types carried by FrameMessage.
const (
	MessageFrame    = "frame"
	MessageSnapshot = "snapshot"
)

// FrameMessage is the envelope used on the ZMQ stream and by the viewer.
type FrameMessage struct {
	Type    string  `json:"type" cbor:"type"`
	Capture Capture `json:"capture" cbor:"capture"`
}

// StatsSnapshot summarises the captures of a session.
type StatsSnapshot struct {
	Frames  int     `json:"frames"`
	LastSum int     `json:"last_sum"`
	MinSum  int     `json:"min_sum"`
	MaxSum  int     `json:"max_sum"`
	MeanSum float64 `json:"mean_sum"`

	// LastMean and LastLit describe the pixels of the last capture
	LastMean float64 `json:"last_mean"`
	LastLit  int     `json:"last_lit"`
}

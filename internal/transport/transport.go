// Package transport opens the byte channels a sensor session runs over.
//
// Implementations:
//   - USB bulk endpoints through libusb (github.com/google/gousb)
//   - a serial bridge (github.com/tarm/serial)
//   - the in-process simulator (package simulator)
package transport

import (
	"io"
	"time"
)

// Port is a duplex byte channel to the sensor. Each Read returns one
// response transfer, each Write sends one command.
type Port interface {
	io.ReadWriteCloser
}

// Timeout falls back to d when t is not positive.
func Timeout(t, d time.Duration) time.Duration {
	if t <= 0 {
		return d
	}
	return t
}

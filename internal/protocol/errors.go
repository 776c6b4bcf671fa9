package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrTransport = errors.New("transport failure")
	ErrShortRead = errors.New("short read")
)

// TransportError wraps a failed or incomplete write/read on the transport.
type TransportError struct {
	// Op is "send" or "receive"
	Op string

	// Expected and Actual are byte counts for short writes
	Expected int
	Actual   int

	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: transferred %d of %d bytes", e.Op, e.Actual, e.Expected)
}

func (e *TransportError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransport, e.Err}
	}
	return []error{ErrTransport}
}

// ShortReadError means the device answered with a response of the wrong size.
type ShortReadError struct {
	Expected int
	Actual   int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("unexpected response, waited for %d bytes, got %d", e.Expected, e.Actual)
}

func (e *ShortReadError) Unwrap() error { return ErrShortRead }

// IsFatal reports whether err came from the transport or a desynchronized response.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrShortRead)
}

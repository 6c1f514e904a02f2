package exbus

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportLost indicates the serial line is no longer usable.
	// It is the only error which leaves the bus loop.
	ErrTransportLost = errors.New("transport lost")
	// ErrFrameTooLarge indicates an encoded frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")
)

// FramingError reports a candidate frame which can't be a valid frame.
type FramingError struct {
	Length int
	Reason string
}

// Error implements error.
func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error: %s (length %d)", e.Reason, e.Length)
}

// ChecksumError reports a complete frame with a mismatching checksum.
type ChecksumError struct {
	Expected uint16
	Actual   uint16
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum error: frame has %04x, calculated %04x", e.Expected, e.Actual)
}

package buffer

import (
	"errors"
	"fmt"
)

// Errors returned by buffer operations.
var (
	// ErrInvalidRange indicates a range with start after end or a row
	// outside the known bounds of the buffer.
	ErrInvalidRange = errors.New("invalid range")

	// ErrHandleClosed indicates the handle was closed on both sides.
	ErrHandleClosed = errors.New("buffer handle closed")

	// ErrNoEngineBuffer indicates the handle has no engine buffer number yet.
	ErrNoEngineBuffer = errors.New("handle has no engine buffer")

	// ErrNoHostEditor indicates the handle has no host editor yet.
	ErrNoHostEditor = errors.New("handle has no host editor")
)

// RangeError describes a rejected range. It wraps ErrInvalidRange.
type RangeError struct {
	Op     string // Operation that rejected the range
	Detail string // What was wrong with it
	Lines  int    // Number of lines known at the time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s (buffer has %d lines): %v", e.Op, e.Detail, e.Lines, ErrInvalidRange)
}

// Unwrap returns ErrInvalidRange.
func (e *RangeError) Unwrap() error {
	return ErrInvalidRange
}

func rangeErr(op string, lines int, format string, args ...any) error {
	return &RangeError{Op: op, Detail: fmt.Sprintf(format, args...), Lines: lines}
}

package engine

import (
	"errors"
	"fmt"
)

// ErrTransport indicates the engine could not be reached.
var ErrTransport = errors.New("engine transport failure")

// TransportError describes a failed engine call.
type TransportError struct {
	Op       string // Client method that failed
	Path     string // Document involved, if known
	Buffer   int    // Engine buffer involved, if known
	Attempts int    // Number of attempts made
	Err      error  // Underlying cause
}

func (e *TransportError) Error() string {
	var target string
	switch {
	case e.Path != "":
		target = " " + e.Path
	case e.Buffer > 0:
		target = fmt.Sprintf(" buffer %d", e.Buffer)
	}
	attempts := e.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return fmt.Sprintf("engine %s%s: %v after %d attempt(s): %v", e.Op, target, ErrTransport, attempts, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Transport wraps err as a transport failure of op.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Attempts: 1, Err: err}
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// Annotate returns err with the document path and buffer number recorded,
// if err is a transport failure. Other errors are returned unchanged.
func Annotate(err error, path string, buf int) error {
	var te *TransportError
	if !errors.As(err, &te) {
		return err
	}
	cp := *te
	if cp.Path == "" {
		cp.Path = path
	}
	if cp.Buffer == 0 {
		cp.Buffer = buf
	}
	return &cp
}

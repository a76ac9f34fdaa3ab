package app

import (
	"errors"
	"fmt"
)

// ErrNotStarted is returned by operations that need a running session.
var ErrNotStarted = errors.New("session not started")

// InitError reports which bootstrap step failed.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

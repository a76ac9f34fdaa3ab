package nvim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/dshills/nvimbed/internal/engine"
)

// classify maps a go-client error onto the engine error taxonomy. Errors
// meaning the session is gone or did not answer become transport failures;
// errors Neovim itself returned stay plain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransport(err) {
		return engine.Transport(op, err)
	}
	return fmt.Errorf("engine %s: %w", op, err)
}

func isTransport(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, os.ErrClosed):
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// go-client reports a dead session with a plain error string.
	return strings.Contains(err.Error(), "session closed")
}

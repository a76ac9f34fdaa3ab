package engine

import "context"

// Client is an RPC connection to the engine.
type Client interface {
	// Input sends keys as if typed by the user.
	Input(ctx context.Context, keys string) error

	// Command executes an ex command (without the leading colon).
	Command(ctx context.Context, cmd string) error

	// CurrentBuffer returns the number of the buffer in the current window.
	CurrentBuffer(ctx context.Context) (int, error)

	// Cursor returns the 1-indexed cursor position in the current window.
	Cursor(ctx context.Context) (row, col int, err error)

	// SetCursor moves the cursor in the current window (1-indexed).
	SetCursor(ctx context.Context, row, col int) error

	// BufferLines returns the full content of a buffer.
	BufferLines(ctx context.Context, buf int) ([]string, error)

	// SetBufferLines replaces lines [start, end) of a buffer.
	SetBufferLines(ctx context.Context, buf, start, end int, lines []string) error

	// OpenBuffer edits path in the current window and returns its buffer.
	OpenBuffer(ctx context.Context, path string) (int, error)

	// BufferPath returns the absolute file name of a buffer, or "" if it has
	// none.
	BufferPath(ctx context.Context, buf int) (string, error)
}

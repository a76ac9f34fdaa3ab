package nvim

import (
	"context"
	"fmt"

	"github.com/neovim/go-client/nvim"
)

// Input sends keys as if typed by the user.
func (c *Client) Input(ctx context.Context, keys string) error {
	_, err := call(ctx, c, "input", func() (int, error) {
		return c.nv.Input(keys)
	})
	return err
}

// Command executes an ex command.
func (c *Client) Command(ctx context.Context, cmd string) error {
	_, err := call(ctx, c, "command", func() (struct{}, error) {
		return struct{}{}, c.nv.Command(cmd)
	})
	return err
}

// CurrentBuffer returns the buffer in the current window.
func (c *Client) CurrentBuffer(ctx context.Context) (int, error) {
	b, err := call(ctx, c, "current buffer", c.nv.CurrentBuffer)
	return int(b), err
}

// Cursor returns the cursor of the current window. The column counts
// characters, not bytes.
func (c *Client) Cursor(ctx context.Context) (row, col int, err error) {
	pos, err := call(ctx, c, "cursor", func() ([]int, error) {
		var pos []int
		err := c.nv.Eval("[line('.'), charcol('.')]", &pos)
		return pos, err
	})
	if err != nil {
		return 0, 0, err
	}
	if len(pos) != 2 {
		return 0, 0, fmt.Errorf("engine cursor: unexpected result %v", pos)
	}
	return pos[0], pos[1], nil
}

// SetCursor moves the cursor of the current window to a character column.
func (c *Client) SetCursor(ctx context.Context, row, col int) error {
	_, err := call(ctx, c, "set cursor", func() (struct{}, error) {
		return struct{}{}, c.nv.Call("setcursorcharpos", nil, row, col)
	})
	return err
}

// BufferLines returns the full content of buf.
func (c *Client) BufferLines(ctx context.Context, buf int) ([]string, error) {
	raw, err := call(ctx, c, "buffer lines", func() ([][]byte, error) {
		return c.nv.BufferLines(nvim.Buffer(buf), 0, -1, true)
	})
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(l)
	}
	return lines, nil
}

// SetBufferLines replaces lines [start, end) of buf.
func (c *Client) SetBufferLines(ctx context.Context, buf, start, end int, lines []string) error {
	repl := make([][]byte, len(lines))
	for i, l := range lines {
		repl[i] = []byte(l)
	}
	_, err := call(ctx, c, "set buffer lines", func() (struct{}, error) {
		return struct{}{}, c.nv.SetBufferLines(nvim.Buffer(buf), start, end, true, repl)
	})
	return err
}

// OpenBuffer edits path in the current window and returns its buffer.
func (c *Client) OpenBuffer(ctx context.Context, path string) (int, error) {
	b, err := call(ctx, c, "open buffer", func() (nvim.Buffer, error) {
		var escaped string
		if err := c.nv.Call("fnameescape", &escaped, path); err != nil {
			return 0, err
		}
		if err := c.nv.Command("edit " + escaped); err != nil {
			return 0, err
		}
		return c.nv.CurrentBuffer()
	})
	return int(b), err
}

// BufferPath returns the file name of buf, or "" for an unnamed buffer.
func (c *Client) BufferPath(ctx context.Context, buf int) (string, error) {
	return call(ctx, c, "buffer path", func() (string, error) {
		return c.nv.BufferName(nvim.Buffer(buf))
	})
}

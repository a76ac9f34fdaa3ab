package enginetest

import (
	"slices"
	"strings"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/event"
)

// The methods below play the part of a user working in the engine. They
// bypass failure injection and are not recorded as client calls.

// Edit replaces lines [first, last) of buffer n as a single undo step.
func (e *Engine) Edit(n, first, last int, lines []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.lookup(n)
	if err != nil {
		return err
	}
	if last < 0 {
		last = len(b.lines)
	}
	e.change(n, b, first, last, lines)
	return nil
}

// Substitute replaces every occurrence of pattern with repl in buffer n as a
// single undo step, like :%s/pattern/repl/g.
func (e *Engine) Substitute(n int, pattern, repl string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.lookup(n)
	if err != nil {
		return err
	}
	next := make([]string, len(b.lines))
	for i, l := range b.lines {
		next[i] = strings.ReplaceAll(l, pattern, repl)
	}
	first, last, lines, changed := buffer.Diff(b.lines, next)
	if !changed {
		return nil
	}
	e.change(n, b, first, last, lines)
	return nil
}

// MoveCursor moves the cursor of the current buffer (1-indexed), scrolling
// it into view.
func (e *Engine) MoveCursor(row, col int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.moveCursor(e.current, e.bufs[e.current], row, col)
}

// Scroll sets the first visible row (0-indexed) of the current buffer
// without moving the cursor.
func (e *Engine) Scroll(top int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bufs[e.current].top = top
	e.emitRedraw()
}

// Redraw publishes the current screen.
func (e *Engine) Redraw() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitRedraw()
}

// Lines returns the content of buffer n, or nil if it does not exist.
func (e *Engine) Lines(n int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.bufs[n]; ok {
		return slices.Clone(b.lines)
	}
	return nil
}

// Current returns the current buffer number.
func (e *Engine) Current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// CursorOf returns the cursor of buffer n (1-indexed).
func (e *Engine) CursorOf(n int) (row, col int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.bufs[n]; ok {
		return b.cursor.Row, b.cursor.Col
	}
	return 0, 0
}

// BufferNumber returns the buffer holding path, or 0.
func (e *Engine) BufferNumber(path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for n, b := range e.bufs {
		if b.path == path {
			return n
		}
	}
	return 0
}

// Buffers returns all buffer numbers in ascending order.
func (e *Engine) Buffers() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, 0, len(e.bufs))
	for n := range e.bufs {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// AddBuffer creates a buffer for path with the given content without
// making it current or reading the file, as if the user ran :badd. It
// publishes the open notification and returns the buffer number.
func (e *Engine) AddBuffer(path string, lines []string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.next
	e.next++
	e.bufs[n] = &fakeBuffer{
		path:   path,
		lines:  buffer.Normalize(slices.Clone(lines)),
		cursor: buffer.EnginePosition{Row: 1, Col: 1},
	}
	_ = e.pub.Emit(event.SourceEngine, event.EngineOpen{Buffer: n, Path: path})
	return n
}

// Package enginetest provides an in-memory engine for tests.
//
// Engine implements engine.Client and publishes the same notifications a
// real engine connection does: buffer opens, switches and deletions, line
// changes (when buffer events are enabled), cursor moves and screen redraws
// (when redraws are enabled). It also exposes helpers that play the part of
// a user typing in the engine, and failure injection for transport errors.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/event"
	"github.com/dshills/nvimbed/internal/viewport"
)

// ErrUnsupported is returned for keys or commands the fake does not model.
var ErrUnsupported = errors.New("unsupported by fake engine")

type fakeBuffer struct {
	path   string
	lines  []string
	undo   [][]string
	redo   [][]string
	cursor buffer.EnginePosition
	top    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where notifications are published.
func WithPublisher(p event.Publisher) Option {
	return func(e *Engine) {
		e.pub = p
	}
}

// WithBufferEvents enables line change notifications.
func WithBufferEvents(enabled bool) Option {
	return func(e *Engine) {
		e.attach = enabled
	}
}

// WithRedraws enables screen redraw notifications.
func WithRedraws(enabled bool) Option {
	return func(e *Engine) {
		e.redraw = enabled
	}
}

// WithScreen sets the screen size used for redraws.
func WithScreen(rows, cols int) Option {
	return func(e *Engine) {
		if rows > 0 {
			e.rows = rows
		}
		if cols > 0 {
			e.cols = cols
		}
	}
}

// Engine is a fake engine. It is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	pub    event.Publisher
	attach bool
	redraw bool
	rows   int
	cols   int

	bufs    map[int]*fakeBuffer
	next    int
	current int

	failures    int
	unreachable bool
	calls       []string
}

var _ engine.Client = (*Engine)(nil)

// New creates an engine holding one empty unnamed buffer, like a freshly
// started editor. Buffer events are enabled by default.
func New(opts ...Option) *Engine {
	e := &Engine{
		pub:    event.Discard,
		attach: true,
		rows:   24,
		cols:   80,
		bufs:   make(map[int]*fakeBuffer),
		next:   2,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.bufs[1] = &fakeBuffer{lines: []string{""}, cursor: buffer.EnginePosition{Row: 1, Col: 1}}
	e.current = 1
	return e
}

// FailNext makes the next n client calls fail with a transport error.
func (e *Engine) FailNext(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = n
}

// SetUnreachable makes every client call fail with a transport error until
// reset.
func (e *Engine) SetUnreachable(unreachable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unreachable = unreachable
}

// Calls returns the client calls made so far, one entry per call.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// CountCalls returns how many calls started with prefix.
func (e *Engine) CountCalls(prefix string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// begin records a call and applies failure injection. Must hold lock.
func (e *Engine) begin(op string, args ...any) error {
	call := op
	if len(args) > 0 {
		call += " " + fmt.Sprint(args...)
	}
	e.calls = append(e.calls, call)

	if e.unreachable {
		return engine.Transport(op, io.ErrClosedPipe)
	}
	if e.failures > 0 {
		e.failures--
		return engine.Transport(op, io.EOF)
	}
	return nil
}

func (e *Engine) lookup(n int) (*fakeBuffer, error) {
	b, ok := e.bufs[n]
	if !ok {
		return nil, fmt.Errorf("E86: Buffer %d does not exist", n)
	}
	return b, nil
}

// Input implements engine.Client. Supported keys: u, <C-r>, dd, G, gg.
func (e *Engine) Input(_ context.Context, keys string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin("input", keys); err != nil {
		return err
	}

	b := e.bufs[e.current]
	switch keys {
	case "u":
		if len(b.undo) == 0 {
			return nil
		}
		prev := b.undo[len(b.undo)-1]
		b.undo = b.undo[:len(b.undo)-1]
		b.redo = append(b.redo, b.lines)
		e.replaceAll(e.current, b, prev)
	case "<C-r>":
		if len(b.redo) == 0 {
			return nil
		}
		next := b.redo[len(b.redo)-1]
		b.redo = b.redo[:len(b.redo)-1]
		b.undo = append(b.undo, b.lines)
		e.replaceAll(e.current, b, next)
	case "dd":
		row := b.cursor.Row - 1
		e.change(e.current, b, row, row+1, nil)
		e.clampCursor(b)
		e.emitCursor(e.current, b)
	case "G":
		e.moveCursor(e.current, b, len(b.lines), 1)
	case "gg":
		e.moveCursor(e.current, b, 1, 1)
	default:
		return fmt.Errorf("input %q: %w", keys, ErrUnsupported)
	}
	return nil
}

// Command implements engine.Client. Supported commands: edit, buffer,
// bdelete and bwipeout.
func (e *Engine) Command(_ context.Context, cmd string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin("command", cmd); err != nil {
		return err
	}

	name, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "e", "edit":
		_, err := e.open(arg)
		return err
	case "b", "buffer":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("E94: No matching buffer for %s", arg)
		}
		if _, err := e.lookup(n); err != nil {
			return err
		}
		e.switchTo(n)
		return nil
	case "bd", "bdelete", "bw", "bwipeout":
		n := e.current
		if arg != "" {
			var err error
			if n, err = strconv.Atoi(arg); err != nil {
				return fmt.Errorf("E94: No matching buffer for %s", arg)
			}
		}
		return e.delete(n)
	default:
		return fmt.Errorf("command %q: %w", cmd, ErrUnsupported)
	}
}

// CurrentBuffer implements engine.Client.
func (e *Engine) CurrentBuffer(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin("current buffer"); err != nil {
		return 0, err
	}
	return e.current, nil
}

// Cursor implements engine.Client.
func (e *Engine) Cursor(context.Context) (int, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin("cursor"); err != nil {
		return 0, 0, err
	}
	c := e.bufs[e.current].cursor
	return c.Row, c.Col, nil
}

// SetCursor implements engine.Client. The column is clamped to the line
// like the engine does in normal mode.
func (e *Engine) SetCursor(_ context.Context, row, col int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin("set cursor", row, col); err != nil {
		return err
	}

	b := e.bufs[e.current]
	if row < 1 || row > len(b.lines) {
		return fmt.Errorf("set cursor: cursor position outside buffer")
	}
	e.moveCursor(e.current, b, row, col)
	return nil
}

// BufferLines implements engine.Client.
func (e *Engine) BufferLines(_ context.Context, n int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin("buffer lines", n); err != nil {
		return nil, err
	}
	b, err := e.lookup(n)
	if err != nil {
		return nil, err
	}
	return slices.Clone(b.lines), nil
}

// SetBufferLines implements engine.Client.
func (e *Engine) SetBufferLines(_ context.Context, n, start, end int, lines []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin("set buffer lines", n, start, end); err != nil {
		return err
	}
	b, err := e.lookup(n)
	if err != nil {
		return err
	}
	if end < 0 {
		end = len(b.lines)
	}
	if start < 0 || start > end || end > len(b.lines) {
		return fmt.Errorf("set buffer lines: index out of bounds")
	}
	e.change(n, b, start, end, lines)
	return nil
}

// OpenBuffer implements engine.Client.
func (e *Engine) OpenBuffer(_ context.Context, path string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin("open buffer", path); err != nil {
		return 0, err
	}
	return e.open(path)
}

// BufferPath implements engine.Client.
func (e *Engine) BufferPath(_ context.Context, n int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin("buffer path", n); err != nil {
		return "", err
	}
	b, err := e.lookup(n)
	if err != nil {
		return "", err
	}
	return b.path, nil
}

// open edits path in the current window. Must hold lock.
func (e *Engine) open(path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("E32: No file name")
	}
	for n, b := range e.bufs {
		if b.path == path {
			e.switchTo(n)
			return n, nil
		}
	}

	lines := []string{""}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		lines = buffer.SplitFile(data)
	case !errors.Is(err, os.ErrNotExist):
		return 0, fmt.Errorf("E484: Can't open file %s: %w", path, err)
	}

	n := e.next
	if cur := e.bufs[e.current]; cur != nil && cur.path == "" && len(cur.undo) == 0 && buffer.Equal(cur.lines, []string{""}) {
		n = e.current
	} else {
		e.next++
	}
	e.bufs[n] = &fakeBuffer{path: path, lines: lines, cursor: buffer.EnginePosition{Row: 1, Col: 1}}
	_ = e.pub.Emit(event.SourceEngine, event.EngineOpen{Buffer: n, Path: path})
	e.switchTo(n)
	return n, nil
}

// switchTo makes n current. Must hold lock.
func (e *Engine) switchTo(n int) {
	if e.current == n {
		e.emitRedraw()
		return
	}
	e.current = n
	_ = e.pub.Emit(event.SourceEngine, event.BufferSwitched{Buffer: n})
	e.emitRedraw()
}

// delete removes buffer n. Must hold lock.
func (e *Engine) delete(n int) error {
	if _, err := e.lookup(n); err != nil {
		return err
	}
	delete(e.bufs, n)
	_ = e.pub.Emit(event.SourceEngine, event.EngineClose{Buffer: n})

	if e.current != n {
		return nil
	}
	if len(e.bufs) == 0 {
		e.bufs[e.next] = &fakeBuffer{lines: []string{""}, cursor: buffer.EnginePosition{Row: 1, Col: 1}}
		e.next++
	}
	numbers := make([]int, 0, len(e.bufs))
	for k := range e.bufs {
		numbers = append(numbers, k)
	}
	e.switchTo(slices.Min(numbers))
	return nil
}

// change replaces lines [first, last) of b, recording undo. Must hold lock.
func (e *Engine) change(n int, b *fakeBuffer, first, last int, repl []string) {
	next, err := buffer.ApplySplice(b.lines, first, last, repl)
	if err != nil {
		return
	}
	b.undo = append(b.undo, b.lines)
	b.redo = nil

	// A buffer never has zero lines; deleting everything leaves one
	// empty line, reported as replacing the whole range with it.
	if len(repl) == 0 && first == 0 && last == len(b.lines) {
		repl = []string{""}
	}
	b.lines = next
	e.emitEdit(n, first, last, repl)
	e.emitRedraw()
}

// replaceAll swaps b's content for lines without touching undo history,
// reporting the minimal changed region. Must hold lock.
func (e *Engine) replaceAll(n int, b *fakeBuffer, lines []string) {
	first, last, repl, changed := buffer.Diff(b.lines, lines)
	b.lines = lines
	e.clampCursor(b)
	if changed {
		e.emitEdit(n, first, last, repl)
	}
	e.emitRedraw()
}

func (e *Engine) emitEdit(n, first, last int, repl []string) {
	if !e.attach {
		return
	}
	_ = e.pub.Emit(event.SourceEngine, event.EngineEdit{
		Buffer: n,
		First:  first,
		Last:   last,
		Lines:  slices.Clone(repl),
	})
}

func (e *Engine) clampCursor(b *fakeBuffer) {
	b.cursor.Row = max(1, min(b.cursor.Row, len(b.lines)))
	b.cursor.Col = max(1, min(b.cursor.Col, len([]rune(b.lines[b.cursor.Row-1]))))
}

// moveCursor moves the cursor and scrolls it into view. Must hold lock.
func (e *Engine) moveCursor(n int, b *fakeBuffer, row, col int) {
	b.cursor = buffer.EnginePosition{Row: row, Col: col}
	e.clampCursor(b)

	switch {
	case b.cursor.Row-1 < b.top:
		b.top = b.cursor.Row - 1
		e.emitRedraw()
	case b.cursor.Row-1 >= b.top+e.rows:
		b.top = b.cursor.Row - e.rows
		e.emitRedraw()
	}
	e.emitCursor(n, b)
}

func (e *Engine) emitCursor(n int, b *fakeBuffer) {
	_ = e.pub.Emit(event.SourceEngine, event.CursorMoved{Buffer: n, Row: b.cursor.Row, Col: b.cursor.Col})
}

// emitRedraw publishes the visible grid of the current buffer. Must hold lock.
func (e *Engine) emitRedraw() {
	if !e.redraw {
		return
	}
	b := e.bufs[e.current]
	b.top = max(0, min(b.top, len(b.lines)-1))
	rows := min(e.rows, len(b.lines)-b.top)
	cells := make([][]viewport.Cell, rows)
	for i := range rows {
		cells[i] = viewport.CellsFromText(b.lines[b.top+i], e.cols)
	}
	_ = e.pub.Emit(event.SourceEngine, event.Redraw{
		Buffer: e.current,
		Top:    b.top,
		Rows:   rows,
		Cols:   e.cols,
		Cells:  cells,
	})
}

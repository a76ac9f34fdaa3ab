// Package memhost is an in-memory host editor.
//
// It keeps one editor per open file, tracks the active editor and each
// editor's cursor, and publishes the host notifications a GUI host would.
// The CLI uses it to run a headless session; tests use it as the host side.
package memhost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/event"
	"github.com/dshills/nvimbed/internal/host"
)

type editor struct {
	id     buffer.EditorID
	path   string
	lines  []string
	cursor buffer.Position
}

// Host is an in-memory host. It is safe for concurrent use.
type Host struct {
	mu      sync.RWMutex
	pub     event.Publisher
	editors map[buffer.EditorID]*editor
	order   []buffer.EditorID
	active  buffer.EditorID
	counter int
}

var _ host.Host = (*Host)(nil)

// New creates an empty host publishing to pub. A nil pub discards events.
func New(pub event.Publisher) *Host {
	if pub == nil {
		pub = event.Discard
	}
	return &Host{
		pub:     pub,
		editors: make(map[buffer.EditorID]*editor),
	}
}

// Open opens path, returning the existing editor if the file is already
// open. A missing file opens as an empty document.
func (h *Host) Open(_ context.Context, path string) (buffer.EditorID, error) {
	canonical, err := buffer.CanonicalPath(path)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range h.order {
		if ed := h.editors[id]; ed.path == canonical {
			h.activateLocked(id)
			return id, nil
		}
	}

	lines := []string{""}
	data, err := os.ReadFile(canonical)
	switch {
	case err == nil:
		lines = buffer.SplitFile(data)
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("open %s: %w", canonical, err)
	}

	h.counter++
	id := buffer.EditorID("editor-" + strconv.Itoa(h.counter))
	h.editors[id] = &editor{id: id, path: canonical, lines: lines}
	h.order = append(h.order, id)

	_ = h.pub.Emit(event.SourceHost, event.HostOpen{Path: canonical, Editor: id})
	h.activateLocked(id)
	return id, nil
}

// Close closes an editor. The most recently opened remaining editor
// becomes active.
func (h *Host) Close(_ context.Context, id buffer.EditorID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.editors[id]; !ok {
		return fmt.Errorf("close %s: %w", id, host.ErrUnknownEditor)
	}
	delete(h.editors, id)
	h.order = slices.DeleteFunc(h.order, func(e buffer.EditorID) bool { return e == id })
	_ = h.pub.Emit(event.SourceHost, event.HostClose{Editor: id})

	if h.active == id {
		h.active = ""
		if len(h.order) > 0 {
			h.activateLocked(h.order[len(h.order)-1])
		}
	}
	return nil
}

// Editors returns the open editors in opening order.
func (h *Host) Editors() []buffer.EditorID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.order)
}

// Path returns the file shown by an editor.
func (h *Host) Path(id buffer.EditorID) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ed, err := h.get(id)
	if err != nil {
		return "", err
	}
	return ed.path, nil
}

// Lines returns an editor's content.
func (h *Host) Lines(id buffer.EditorID) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ed, err := h.get(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(ed.lines), nil
}

// Text returns an editor's content joined with newlines.
func (h *Host) Text(id buffer.EditorID) (string, error) {
	lines, err := h.Lines(id)
	if err != nil {
		return "", err
	}
	return buffer.JoinLines(lines), nil
}

// SetTextInRange replaces the text in r and publishes the change.
func (h *Host) SetTextInRange(id buffer.EditorID, r buffer.Range, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ed, err := h.get(id)
	if err != nil {
		return err
	}
	lines, _, err := buffer.ApplyText(ed.lines, r, text)
	if err != nil {
		return err
	}
	ed.lines = lines
	_ = h.pub.Emit(event.SourceHost, event.HostEdit{Editor: id, Range: r, Text: text})
	return nil
}

// Settle publishes the "stopped changing" signal for an editor.
func (h *Host) Settle(id buffer.EditorID) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, err := h.get(id); err != nil {
		return err
	}
	return h.pub.Emit(event.SourceHost, event.HostSettled{Editor: id})
}

// Cursor returns an editor's cursor.
func (h *Host) Cursor(id buffer.EditorID) (buffer.Position, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ed, err := h.get(id)
	if err != nil {
		return buffer.Position{}, err
	}
	return ed.cursor, nil
}

// SetCursor moves an editor's cursor, clamping it to the content, and
// publishes the move if the cursor changed.
func (h *Host) SetCursor(id buffer.EditorID, pos buffer.Position) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ed, err := h.get(id)
	if err != nil {
		return err
	}
	pos.Row = max(0, min(pos.Row, len(ed.lines)-1))
	pos.Col = max(0, min(pos.Col, len([]rune(ed.lines[pos.Row]))))
	if ed.cursor == pos {
		return nil
	}
	ed.cursor = pos
	_ = h.pub.Emit(event.SourceHost, event.HostCursorMoved{Editor: id, Position: pos})
	return nil
}

// ActiveEditor returns the active editor.
func (h *Host) ActiveEditor() (buffer.EditorID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active, h.active != ""
}

// SetActiveEditor activates an editor and publishes the activation if the
// active editor changed.
func (h *Host) SetActiveEditor(id buffer.EditorID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.get(id); err != nil {
		return err
	}
	h.activateLocked(id)
	return nil
}

func (h *Host) activateLocked(id buffer.EditorID) {
	if h.active == id {
		return
	}
	h.active = id
	_ = h.pub.Emit(event.SourceHost, event.HostTabActivated{Editor: id})
}

func (h *Host) get(id buffer.EditorID) (*editor, error) {
	ed, ok := h.editors[id]
	if !ok {
		return nil, fmt.Errorf("editor %s: %w", id, host.ErrUnknownEditor)
	}
	return ed, nil
}

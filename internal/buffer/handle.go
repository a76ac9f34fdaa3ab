package buffer

import (
	"fmt"
	"path/filepath"
	"sync"
)

// EditorID identifies a host-side editor (a tab or pane item).
type EditorID string

// Side names one of the two synchronized representations.
type Side uint8

const (
	// SideHost is the GUI host editor.
	SideHost Side = iota + 1

	// SideEngine is the modal-editing engine.
	SideEngine
)

// String returns the side name.
func (s Side) String() string {
	switch s {
	case SideHost:
		return "host"
	case SideEngine:
		return "engine"
	default:
		return "unknown"
	}
}

// maxEchoes bounds the expected-echo lists. Echoes that never arrive
// (for example when the engine does not report line changes) must not
// accumulate forever.
const maxEchoes = 32

// State is the mutable synchronization state of a handle.
// It is only reachable through Handle.With.
type State struct {
	// Lines is the authoritative snapshot of the host content.
	Lines []string

	// Shadow is the last content known to be in the engine.
	Shadow []string

	// Pending holds host edits not yet forwarded to the engine.
	Pending []EditOperation

	// HostEchoes are host edits this module applied on behalf of the
	// engine; the host will report them back and they must be dropped.
	HostEchoes []TextEdit

	// EngineEchoes are splices this module sent to the engine; the engine
	// will report them back and they must be dropped.
	EngineEchoes []EditOperation
}

// ExpectHostEcho records a host edit that will be reported back.
func (s *State) ExpectHostEcho(e TextEdit) {
	s.HostEchoes = append(s.HostEchoes, e)
	if len(s.HostEchoes) > maxEchoes {
		s.HostEchoes = s.HostEchoes[len(s.HostEchoes)-maxEchoes:]
	}
}

// ConsumeHostEcho removes and reports a matching expected host echo.
func (s *State) ConsumeHostEcho(e TextEdit) bool {
	for i, want := range s.HostEchoes {
		if want == e {
			s.HostEchoes = append(s.HostEchoes[:i], s.HostEchoes[i+1:]...)
			return true
		}
	}
	return false
}

// ExpectEngineEcho records a splice that the engine will report back.
func (s *State) ExpectEngineEcho(op EditOperation) {
	s.EngineEchoes = append(s.EngineEchoes, op)
	if len(s.EngineEchoes) > maxEchoes {
		s.EngineEchoes = s.EngineEchoes[len(s.EngineEchoes)-maxEchoes:]
	}
}

// ConsumeEngineEcho removes and reports a matching expected engine echo.
func (s *State) ConsumeEngineEcho(op EditOperation) bool {
	for i, want := range s.EngineEchoes {
		if want.Same(op) {
			s.EngineEchoes = append(s.EngineEchoes[:i], s.EngineEchoes[i+1:]...)
			return true
		}
	}
	return false
}

// Handle is the record unifying one document's host and engine identities.
type Handle struct {
	path string

	mu           sync.Mutex
	number       int
	hostID       EditorID
	state        State
	hostOpen     bool
	engineOpen   bool
	closed       bool
	degraded     bool
	lastErr      error
	engineCursor EnginePosition
}

// NewHandle creates a handle for a canonical absolute path.
func NewHandle(path string) *Handle {
	return &Handle{
		path: path,
		state: State{
			Lines:  []string{""},
			Shadow: []string{""},
		},
	}
}

// Path returns the canonical absolute path, the handle's identity key.
func (h *Handle) Path() string {
	return h.path
}

// String returns a short description for logs.
func (h *Handle) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("%s (buf %d, editor %q)", h.path, h.number, h.hostID)
}

// Number returns the engine buffer number, or 0 if none is bound.
func (h *Handle) Number() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.number
}

// BindEngine assigns the engine buffer number. The number is immutable
// for the handle's lifetime; rebinding to a different number fails.
func (h *Handle) BindEngine(number int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if number <= 0 {
		return fmt.Errorf("bind engine buffer %d: invalid number", number)
	}
	if h.number != 0 && h.number != number {
		return fmt.Errorf("bind engine buffer %d: already bound to %d", number, h.number)
	}
	h.number = number
	h.engineOpen = true
	return nil
}

// HostID returns the host editor identifier, or "" if none is bound.
func (h *Handle) HostID() EditorID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hostID
}

// BindHost assigns the host editor identifier.
func (h *Handle) BindHost(id EditorID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hostID = id
	h.hostOpen = id != ""
}

// With runs fn with the handle's mutable state while holding its lock.
// It returns ErrHandleClosed without calling fn once the handle is closed.
func (h *Handle) With(fn func(st *State) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}
	return fn(&h.state)
}

// Lines returns a copy of the snapshot.
func (h *Handle) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Clone(h.state.Lines)
}

// Shadow returns a copy of the engine shadow.
func (h *Handle) Shadow() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Clone(h.state.Shadow)
}

// PendingCount returns the number of host edits awaiting a flush.
func (h *Handle) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.state.Pending)
}

// MarkDegraded records a transport failure affecting this handle.
func (h *Handle) MarkDegraded(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = true
	h.lastErr = err
}

// ClearDegraded marks the handle healthy again.
func (h *Handle) ClearDegraded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = false
	h.lastErr = nil
}

// Degraded reports whether the handle is degraded and the last error.
func (h *Handle) Degraded() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degraded, h.lastErr
}

// IsOpen reports whether the given side still has the document open.
func (h *Handle) IsOpen(side Side) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if side == SideHost {
		return h.hostOpen
	}
	return h.engineOpen
}

// MarkClosed records that one side closed the document and reports
// whether both sides are now closed.
func (h *Handle) MarkClosed(side Side) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch side {
	case SideHost:
		h.hostOpen = false
	case SideEngine:
		h.engineOpen = false
	}
	return !h.hostOpen && !h.engineOpen
}

// Discard closes the handle and drops all pending work.
// It is idempotent.
func (h *Handle) Discard() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.hostOpen = false
	h.engineOpen = false
	h.state.Pending = nil
	h.state.HostEchoes = nil
	h.state.EngineEchoes = nil
}

// Closed reports whether the handle was discarded.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// EngineCursor returns the last engine cursor position seen or set.
func (h *Handle) EngineCursor() EnginePosition {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engineCursor
}

// SetEngineCursor records the engine cursor position.
func (h *Handle) SetEngineCursor(p EnginePosition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.engineCursor = p
}

// CanonicalPath returns the identity key for a file path: absolute, cleaned,
// and with symlinks resolved when the file exists.
func CanonicalPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("canonical path: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("canonical path %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}

package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/host"
	"github.com/dshills/nvimbed/internal/viewport"
)

// ErrConvergenceGap indicates the engine's visible content disagrees with
// the host snapshot.
var ErrConvergenceGap = errors.New("convergence gap")

// DefaultQuiescence is the quiet period after the last host edit before
// pending edits are sent to the engine.
const DefaultQuiescence = 300 * time.Millisecond

// Option configures a Sync.
type Option func(*Sync)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sync) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithQuiescence sets the quiet period before pending host edits are sent.
func WithQuiescence(d time.Duration) Option {
	return func(s *Sync) {
		if d > 0 {
			s.quiescence = d
		}
	}
}

// WithScheduler sets how a flush is run when a handle's quiet period ends.
// The default runs Flush on the timer goroutine.
func WithScheduler(schedule func(h *buffer.Handle)) Option {
	return func(s *Sync) {
		s.schedule = schedule
	}
}

type entry struct {
	timer *flushTimer

	// flushMu serializes engine writes for one handle.
	flushMu sync.Mutex
}

// Sync applies edits between the host and the engine.
type Sync struct {
	engine engine.Client
	host   host.Host
	logger *slog.Logger

	mu         sync.Mutex
	quiescence time.Duration
	entries    map[*buffer.Handle]*entry
	schedule   func(h *buffer.Handle)
}

// New creates a content sync.
func New(eng engine.Client, h host.Host, opts ...Option) *Sync {
	s := &Sync{
		engine:     eng,
		host:       h,
		logger:     slog.New(slog.DiscardHandler),
		quiescence: DefaultQuiescence,
		entries:    make(map[*buffer.Handle]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "content")
	if s.schedule == nil {
		s.schedule = s.flushInBackground
	}
	return s
}

func (s *Sync) flushInBackground(h *buffer.Handle) {
	if err := s.Flush(context.Background(), h); err != nil {
		s.logger.Warn("flush failed", "path", h.Path(), "error", err)
	}
}

// Quiescence returns the current quiet period.
func (s *Sync) Quiescence() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiescence
}

// SetQuiescence changes the quiet period for all handles. Timers already
// running keep their timing.
func (s *Sync) SetQuiescence(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quiescence = d
	for _, e := range s.entries {
		e.timer.setDelay(d)
	}
}

func (s *Sync) entry(h *buffer.Handle) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[h]
	if !ok {
		e = &entry{}
		e.timer = newFlushTimer(s.quiescence, func() { s.schedule(h) })
		s.entries[h] = e
	}
	return e
}

// Forget cancels h's timer and drops its state. Pending edits held by the
// handle are not sent.
func (s *Sync) Forget(h *buffer.Handle) {
	s.mu.Lock()
	e, ok := s.entries[h]
	delete(s.entries, h)
	s.mu.Unlock()

	if ok {
		e.timer.stop()
	}
}

// FlushPending reports whether h has a flush scheduled.
func (s *Sync) FlushPending(h *buffer.Handle) bool {
	s.mu.Lock()
	e, ok := s.entries[h]
	s.mu.Unlock()
	return ok && e.timer.isArmed()
}

// ApplyHostEdit applies a host text replacement to h's snapshot and
// schedules it for the engine. Echoes of edits this package made to the
// host are dropped.
func (s *Sync) ApplyHostEdit(h *buffer.Handle, r buffer.Range, text string) error {
	var (
		echo bool
		op   buffer.EditOperation
	)
	err := h.With(func(st *buffer.State) error {
		if st.ConsumeHostEcho(buffer.TextEdit{Range: r, Text: text}) {
			echo = true
			return nil
		}
		lines, splice, err := buffer.ApplyText(st.Lines, r, text)
		if err != nil {
			return err
		}
		splice.Origin = buffer.OriginHost
		st.Lines = lines
		st.Pending = append(st.Pending, splice)
		op = splice
		return nil
	})
	if err != nil {
		return fmt.Errorf("host edit %s: %w", h.Path(), err)
	}
	if echo {
		s.logger.Debug("dropped host echo", "path", h.Path(), "range", r)
		return nil
	}

	s.logger.Debug("host edit", "path", h.Path(), "op", op)
	s.entry(h).timer.reset()
	return nil
}

// Settled flushes h immediately. It is the host's "stopped changing"
// signal.
func (s *Sync) Settled(ctx context.Context, h *buffer.Handle) error {
	return s.entry(h).timer.settle(func() error {
		return s.Flush(ctx, h)
	})
}

// Flush sends h's pending host edits to the engine as one line splice.
// Any other difference between the snapshot and the engine shadow is sent
// along with them. On failure the pending edits are kept.
func (s *Sync) Flush(ctx context.Context, h *buffer.Handle) error {
	e := s.entry(h)
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	number := h.Number()
	var (
		op      buffer.EditOperation
		target  []string
		changed bool
		flushed int
	)
	err := h.With(func(st *buffer.State) error {
		if len(st.Pending) == 0 && buffer.Equal(st.Lines, st.Shadow) {
			return nil
		}
		if number == 0 {
			return buffer.ErrNoEngineBuffer
		}
		flushed = len(st.Pending)

		var first, last int
		var repl []string
		first, last, repl, changed = buffer.Diff(st.Shadow, st.Lines)
		if !changed {
			// The edits cancelled out.
			st.Pending = nil
			return nil
		}
		op = buffer.EditOperation{
			Kind:   buffer.EditReplace,
			Origin: buffer.OriginHost,
			First:  first,
			Last:   last,
			Lines:  repl,
		}
		target = buffer.Clone(st.Lines)
		st.ExpectEngineEcho(op)
		return nil
	})
	if err != nil {
		return fmt.Errorf("flush %s: %w", h.Path(), err)
	}
	if !changed {
		return nil
	}

	s.logger.Debug("flush to engine", "path", h.Path(), "buffer", number, "edits", flushed, "op", op)
	if err := s.engine.SetBufferLines(ctx, number, op.First, op.Last, op.Lines); err != nil {
		_ = h.With(func(st *buffer.State) error {
			st.ConsumeEngineEcho(op)
			return nil
		})
		return fmt.Errorf("flush %s: %w", h.Path(), engine.Annotate(err, h.Path(), number))
	}

	_ = h.With(func(st *buffer.State) error {
		st.Shadow = target
		st.Pending = st.Pending[min(flushed, len(st.Pending)):]
		return nil
	})
	h.ClearDegraded()
	return nil
}

// ApplyEngineEdit applies an engine line splice to h's shadow and, unless
// the host already holds the result, to the host editor. Echoes of splices
// this package sent to the engine are dropped.
func (s *Sync) ApplyEngineEdit(ctx context.Context, h *buffer.Handle, first, last int, lines []string) error {
	id := hostEditor(h)
	op := buffer.EditOperation{Origin: buffer.OriginEngine, First: first, Last: last, Lines: lines}

	var (
		echo      bool
		pending   int
		next      []string
		edit      buffer.TextEdit
		needsHost bool
		resync    bool
	)
	err := h.With(func(st *buffer.State) error {
		if op.Last < 0 {
			op.Last = len(st.Shadow)
		}
		if st.ConsumeEngineEcho(op) {
			echo = true
			return nil
		}

		shadow, err := buffer.ApplySplice(st.Shadow, op.First, op.Last, op.Lines)
		if err != nil {
			return err
		}
		st.Shadow = shadow
		pending = len(st.Pending)

		next, err = buffer.ApplySplice(st.Lines, op.First, op.Last, op.Lines)
		if err != nil {
			// Pending host edits moved lines away from the engine's view.
			resync = true
			return nil
		}
		if buffer.Equal(next, st.Lines) {
			return nil
		}
		if id == "" {
			st.Lines = next
			return nil
		}

		var ok bool
		edit, ok, err = buffer.SpliceToText(st.Lines, op.First, op.Last, op.Lines)
		if err != nil || !ok {
			return err
		}
		st.ExpectHostEcho(edit)
		needsHost = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("engine edit %s: %w", h.Path(), err)
	}
	if echo {
		s.logger.Debug("dropped engine echo", "path", h.Path(), "op", op)
		return nil
	}
	if pending > 0 {
		s.logger.Warn("engine edit while host edits pending", "path", h.Path(), "pending", pending, "op", op)
	}
	if resync {
		return s.Reconcile(ctx, h)
	}
	if !needsHost {
		return nil
	}

	s.logger.Debug("engine edit to host", "path", h.Path(), "op", op, "edit", edit)
	return s.applyToHost(h, id, edit, next)
}

// hostEditor returns the editor showing h, or "" once the host closed it.
func hostEditor(h *buffer.Handle) buffer.EditorID {
	if !h.IsOpen(buffer.SideHost) {
		return ""
	}
	return h.HostID()
}

// applyToHost performs a host edit whose echo is already expected and
// records next as the snapshot on success.
func (s *Sync) applyToHost(h *buffer.Handle, id buffer.EditorID, edit buffer.TextEdit, next []string) error {
	if err := s.host.SetTextInRange(id, edit.Range, edit.Text); err != nil {
		_ = h.With(func(st *buffer.State) error {
			st.ConsumeHostEcho(edit)
			return nil
		})
		return fmt.Errorf("apply to host %s: %w", h.Path(), err)
	}
	return h.With(func(st *buffer.State) error {
		st.Lines = next
		return nil
	})
}

// Reconcile replaces h's host content with the engine's full content. If
// host edits are pending they are flushed instead, since the engine is
// about to receive them.
func (s *Sync) Reconcile(ctx context.Context, h *buffer.Handle) error {
	if h.PendingCount() > 0 {
		return s.Flush(ctx, h)
	}

	e := s.entry(h)
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	number := h.Number()
	if number == 0 {
		return fmt.Errorf("reconcile %s: %w", h.Path(), buffer.ErrNoEngineBuffer)
	}
	lines, err := s.engine.BufferLines(ctx, number)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", h.Path(), engine.Annotate(err, h.Path(), number))
	}
	lines = buffer.Normalize(lines)
	id := hostEditor(h)

	var (
		edit      buffer.TextEdit
		needsHost bool
	)
	err = h.With(func(st *buffer.State) error {
		st.Shadow = buffer.Clone(lines)
		if buffer.Equal(st.Lines, lines) {
			return nil
		}
		if id == "" {
			st.Lines = buffer.Clone(lines)
			return nil
		}
		first, last, repl, _ := buffer.Diff(st.Lines, lines)
		var ok bool
		var err error
		edit, ok, err = buffer.SpliceToText(st.Lines, first, last, repl)
		if err != nil || !ok {
			return err
		}
		st.ExpectHostEcho(edit)
		needsHost = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", h.Path(), err)
	}
	if !needsHost {
		return nil
	}

	s.logger.Info("reconciled host content", "path", h.Path(), "buffer", number, "edit", edit)
	return s.applyToHost(h, id, edit, buffer.Clone(lines))
}

// VerifyVisible compares the rows the engine shows for h against the host
// snapshot and reconciles on mismatch. Rows outside the viewport cannot be
// verified and are skipped. Nothing is checked while host edits are pending.
func (s *Sync) VerifyVisible(ctx context.Context, h *buffer.Handle, m *viewport.Model) error {
	if h.PendingCount() > 0 {
		return nil
	}
	first, last, ok := m.VisibleRows()
	if !ok {
		return nil
	}
	cols := m.Grid().Cols
	lines := h.Lines()

	for row := first; row < last; row++ {
		got, _ := m.VisibleLine(row)
		want := ""
		if row < len(lines) {
			want = viewport.TextFromCells(viewport.CellsFromText(lines[row], cols))
		}
		if row >= len(lines) || buffer.NormalizeLine(got) != buffer.NormalizeLine(want) {
			s.logger.Warn("visible content differs from host",
				"path", h.Path(),
				"row", row,
				"engine", got,
				"host", want,
				"error", ErrConvergenceGap,
			)
			return s.Reconcile(ctx, h)
		}
	}
	return nil
}

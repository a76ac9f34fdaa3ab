// Package tabs keeps the host's active editor and the engine's current
// buffer pointing at the same document.
package tabs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/host"
)

// Registry resolves engine buffer numbers to handles.
type Registry interface {
	LookupNumber(number int) (*buffer.Handle, bool)
}

// Mapping is the last observed active pair.
type Mapping struct {
	Editor buffer.EditorID
	Buffer int
}

// Router propagates active-buffer changes in both directions. Each
// direction is a no-op when the other side already shows the document.
//
// An activation reported by one side is dropped when that side has moved
// on by the time it is handled. Only the latest activation is propagated,
// so back-to-back switches cannot bounce between the sides.
type Router struct {
	engine   engine.Client
	host     host.Host
	registry Registry
	logger   *slog.Logger

	mu   sync.Mutex
	last Mapping
}

// New creates a router. A nil logger discards output.
func New(eng engine.Client, h host.Host, registry Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		engine:   eng,
		host:     h,
		registry: registry,
		logger:   logger.With("component", "tabs"),
	}
}

// OnHostTabActivated makes h's buffer current in the engine.
func (r *Router) OnHostTabActivated(ctx context.Context, h *buffer.Handle) error {
	number := h.Number()
	if number == 0 {
		return buffer.ErrNoEngineBuffer
	}
	if active, ok := r.host.ActiveEditor(); ok && active != h.HostID() {
		r.logger.Debug("stale host activation", "path", h.Path(), "editor", h.HostID(), "active", active)
		return nil
	}

	current, err := r.engine.CurrentBuffer(ctx)
	if err != nil {
		return fmt.Errorf("tab activated: %w", engine.Annotate(err, h.Path(), number))
	}
	if current == number {
		r.observe(h.HostID(), number)
		return nil
	}

	r.logger.Debug("switch engine buffer", "path", h.Path(), "from", current, "to", number)
	if err := r.engine.Command(ctx, fmt.Sprintf("buffer %d", number)); err != nil {
		return fmt.Errorf("tab activated: %w", engine.Annotate(err, h.Path(), number))
	}
	r.observe(h.HostID(), number)
	return nil
}

// OnEngineBufferChanged activates the host editor showing buffer number.
// Buffers without a handle (for example scratch buffers) are ignored.
func (r *Router) OnEngineBufferChanged(ctx context.Context, number int) error {
	h, ok := r.registry.LookupNumber(number)
	if !ok {
		r.logger.Debug("engine switched to untracked buffer", "buffer", number)
		return nil
	}
	id := h.HostID()
	if id == "" {
		return buffer.ErrNoHostEditor
	}
	if !h.IsOpen(buffer.SideHost) {
		r.logger.Debug("engine switched to buffer closed in host", "path", h.Path(), "buffer", number)
		return nil
	}

	current, err := r.engine.CurrentBuffer(ctx)
	if err != nil {
		return fmt.Errorf("buffer changed: %w", engine.Annotate(err, h.Path(), number))
	}
	if current != number {
		r.logger.Debug("stale engine switch", "path", h.Path(), "buffer", number, "current", current)
		return nil
	}

	if active, ok := r.host.ActiveEditor(); ok && active == id {
		r.observe(id, number)
		return nil
	}

	r.logger.Debug("activate host editor", "path", h.Path(), "editor", id)
	if err := r.host.SetActiveEditor(id); err != nil {
		return fmt.Errorf("buffer changed: %w", err)
	}
	r.observe(id, number)
	return nil
}

// Last returns the last observed active pair.
func (r *Router) Last() Mapping {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Router) observe(id buffer.EditorID, number int) {
	r.mu.Lock()
	r.last = Mapping{Editor: id, Buffer: number}
	r.mu.Unlock()
}

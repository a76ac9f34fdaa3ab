package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/host"
)

// RegisterHostOpen records that the host opened path in editor id.
//
// If the document is already registered its handle is returned with the
// editor bound to it; the engine keeps using the same buffer. Otherwise a
// handle is created and the engine is asked to open the file. When the
// engine cannot be reached the handle is still created, marked degraded and
// returned along with the transport error. A later open of the same path
// retries the engine side.
func (c *Coordinator) RegisterHostOpen(ctx context.Context, path string, id buffer.EditorID) (*buffer.Handle, error) {
	canonical, err := buffer.CanonicalPath(path)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("register host open %s: %w", canonical, buffer.ErrNoHostEditor)
	}

	c.mu.Lock()
	h, existed := c.byPath[canonical]
	if !existed {
		h = buffer.NewHandle(canonical)
		c.byPath[canonical] = h
	}
	reopened := existed && !h.IsOpen(buffer.SideHost)
	if old := h.HostID(); old != "" && old != id && c.byEditor[old] == h {
		delete(c.byEditor, old)
	}
	h.BindHost(id)
	c.byEditor[id] = h
	c.mu.Unlock()

	if !existed {
		lines, err := c.host.Lines(id)
		if err != nil {
			c.remove(h)
			return nil, fmt.Errorf("register host open %s: %w", canonical, err)
		}
		_ = h.With(func(st *buffer.State) error {
			st.Lines = buffer.Clone(buffer.Normalize(lines))
			st.Shadow = buffer.Clone(st.Lines)
			return nil
		})
		c.logger.Info("document opened", "path", canonical, "side", buffer.SideHost, "editor", id)
	}
	if reopened {
		lines, err := c.host.Lines(id)
		if err != nil {
			return h, fmt.Errorf("register host open %s: %w", canonical, err)
		}
		_ = h.With(func(st *buffer.State) error {
			st.Lines = buffer.Clone(buffer.Normalize(lines))
			return nil
		})
		c.logger.Info("document reopened", "path", canonical, "side", buffer.SideHost, "editor", id)
	}

	if h.Number() == 0 {
		return h, c.attachEngine(ctx, h)
	}
	if reopened {
		// The engine kept the buffer; its content wins.
		return h, c.check(h, c.content.Reconcile(ctx, h))
	}
	return h, nil
}

// attachEngine opens h's file in the engine, binds the buffer number and
// sends any host content the engine lacks.
func (c *Coordinator) attachEngine(ctx context.Context, h *buffer.Handle) error {
	number, err := c.engine.OpenBuffer(ctx, h.Path())
	if err != nil {
		return c.engineFailure(h, "open in engine", err)
	}
	if err := c.bindNumber(h, number); err != nil {
		c.logger.Warn("engine buffer already mapped", "path", h.Path(), "buffer", number, "error", err)
		return err
	}

	lines, err := c.engine.BufferLines(ctx, number)
	if err != nil {
		return c.engineFailure(h, "read engine buffer", err)
	}
	_ = h.With(func(st *buffer.State) error {
		st.Shadow = buffer.Normalize(lines)
		return nil
	})
	h.ClearDegraded()
	c.logger.Info("engine buffer attached", "path", h.Path(), "buffer", number)
	return c.flush(ctx, h)
}

func (c *Coordinator) bindNumber(h *buffer.Handle, number int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if other, ok := c.byNumber[number]; ok && other != h {
		return fmt.Errorf("bind buffer %d to %s: %w: bound to %s", number, h.Path(), ErrIdentityConflict, other.Path())
	}
	if err := h.BindEngine(number); err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityConflict, err)
	}
	c.byNumber[number] = h
	return nil
}

func (c *Coordinator) bindEditor(h *buffer.Handle, id buffer.EditorID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.BindHost(id)
	c.byEditor[id] = h
}

// RegisterEngineOpen records that the engine opened path as buffer number.
//
// A new document is opened in the host as well. If the host opened it first
// while the engine was unreachable, the engine buffer is bound to the
// existing handle. If the path is already mapped to a different buffer, the
// engine is switched back to the mapped buffer and the duplicate is wiped.
func (c *Coordinator) RegisterEngineOpen(ctx context.Context, number int, path string) (*buffer.Handle, error) {
	if path == "" {
		return nil, fmt.Errorf("register engine buffer %d: %w", number, ErrUnnamedBuffer)
	}
	canonical, err := buffer.CanonicalPath(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if h, ok := c.byNumber[number]; ok {
		c.mu.Unlock()
		if h.Path() != canonical {
			c.logger.Warn("engine buffer changed file", "buffer", number, "path", h.Path(), "new_path", canonical)
		}
		return h, nil
	}
	h, existed := c.byPath[canonical]
	if existed && h.Number() != 0 {
		c.mu.Unlock()
		return h, c.resolveConflict(ctx, h, number)
	}
	if !existed {
		h = buffer.NewHandle(canonical)
		c.byPath[canonical] = h
	}
	if err := h.BindEngine(number); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.byNumber[number] = h
	c.mu.Unlock()

	lines, err := c.engine.BufferLines(ctx, number)
	if err != nil {
		return h, c.engineFailure(h, "read engine buffer", err)
	}
	lines = buffer.Normalize(lines)

	if existed {
		_ = h.With(func(st *buffer.State) error {
			st.Shadow = lines
			return nil
		})
		h.ClearDegraded()
		c.logger.Info("engine buffer attached", "path", canonical, "buffer", number)
		return h, c.flush(ctx, h)
	}

	_ = h.With(func(st *buffer.State) error {
		st.Lines = buffer.Clone(lines)
		st.Shadow = lines
		return nil
	})
	c.logger.Info("document opened", "path", canonical, "side", buffer.SideEngine, "buffer", number)

	id, err := c.host.Open(ctx, canonical)
	if err != nil {
		return h, fmt.Errorf("open %s in host: %w", canonical, err)
	}
	c.bindEditor(h, id)

	hostLines, err := c.host.Lines(id)
	if err != nil {
		return h, fmt.Errorf("read host editor %s: %w", id, err)
	}
	_ = h.With(func(st *buffer.State) error {
		st.Lines = buffer.Clone(buffer.Normalize(hostLines))
		return nil
	})
	if !buffer.Equal(hostLines, lines) {
		return h, c.check(h, c.content.Reconcile(ctx, h))
	}
	return h, nil
}

// resolveConflict keeps h's buffer and wipes the engine's duplicate.
func (c *Coordinator) resolveConflict(ctx context.Context, h *buffer.Handle, duplicate int) error {
	number := h.Number()
	c.logger.Warn("identity conflict",
		"path", h.Path(),
		"buffer", number,
		"duplicate", duplicate,
		"error", ErrIdentityConflict,
	)
	if err := c.engine.Command(ctx, fmt.Sprintf("buffer %d", number)); err != nil {
		return c.engineFailure(h, "select buffer", err)
	}
	if err := c.engine.Command(ctx, fmt.Sprintf("bwipeout %d", duplicate)); err != nil {
		return c.engineFailure(h, "wipe duplicate buffer", err)
	}
	return nil
}

// Close records that side closed h's document and asks the other side to
// close it too. Pending edits and the flush timer are discarded at once.
// The handle is removed when both sides are closed. If the other side
// cannot close the document the handle stays registered and degraded, and
// another Close retries it. Closing a removed handle does nothing.
func (c *Coordinator) Close(ctx context.Context, h *buffer.Handle, side buffer.Side) error {
	if h.Closed() {
		return nil
	}
	c.content.Forget(h)
	_ = h.With(func(st *buffer.State) error {
		st.Pending = nil
		return nil
	})
	if h.MarkClosed(side) {
		c.removeClosed(h)
		return nil
	}
	c.logger.Info("document closed", "path", h.Path(), "side", side)

	other := buffer.SideEngine
	if side == buffer.SideEngine {
		other = buffer.SideHost
	}
	if err := c.closeSide(ctx, h, other); err != nil {
		return err
	}
	h.MarkClosed(other)
	c.removeClosed(h)
	return nil
}

func (c *Coordinator) closeSide(ctx context.Context, h *buffer.Handle, side buffer.Side) error {
	switch side {
	case buffer.SideEngine:
		if err := c.engine.Command(ctx, fmt.Sprintf("bdelete %d", h.Number())); err != nil {
			return c.engineFailure(h, "close in engine", err)
		}
	case buffer.SideHost:
		if err := c.host.Close(ctx, h.HostID()); err != nil && !errors.Is(err, host.ErrUnknownEditor) {
			return fmt.Errorf("close %s in host: %w", h.Path(), err)
		}
	}
	return nil
}

func (c *Coordinator) removeClosed(h *buffer.Handle) {
	c.remove(h)
	h.Discard()
	c.logger.Info("document removed", "path", h.Path())
}

// flush sends h's pending host edits to the engine.
func (c *Coordinator) flush(ctx context.Context, h *buffer.Handle) error {
	return c.check(h, c.content.Flush(ctx, h))
}

// check marks h degraded when err is a transport failure.
func (c *Coordinator) check(h *buffer.Handle, err error) error {
	if err != nil && engine.IsTransport(err) {
		h.MarkDegraded(err)
		c.logger.Warn("engine unreachable, document degraded", "path", h.Path(), "error", err)
	}
	return err
}

// engineFailure annotates an engine error with h and marks h degraded on
// transport failure.
func (c *Coordinator) engineFailure(h *buffer.Handle, op string, err error) error {
	err = engine.Annotate(err, h.Path(), h.Number())
	return c.check(h, fmt.Errorf("%s %s: %w", op, h.Path(), err))
}

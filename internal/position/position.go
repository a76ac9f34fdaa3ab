// Package position keeps the host and engine cursors in step.
//
// The engine reports cursors 1-indexed on both axes; the host uses 0-indexed
// rows and columns. The mapping is exact: host = engine - 1. Both directions
// return early when the target already holds the position, which stops a
// move from bouncing between the two sides.
package position

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/host"
)

// ToHost converts a 1-indexed engine position to a host position.
func ToHost(p buffer.EnginePosition) (buffer.Position, error) {
	if p.Row < 1 || p.Col < 1 {
		return buffer.Position{}, &buffer.RangeError{
			Op:     "engine cursor",
			Detail: fmt.Sprintf("position %s is not 1-indexed", p),
		}
	}
	return buffer.Position{Row: p.Row - 1, Col: p.Col - 1}, nil
}

// ToEngine converts a host position to a 1-indexed engine position.
func ToEngine(p buffer.Position) (buffer.EnginePosition, error) {
	if p.Row < 0 || p.Col < 0 {
		return buffer.EnginePosition{}, &buffer.RangeError{
			Op:     "host cursor",
			Detail: fmt.Sprintf("position %s is negative", p),
		}
	}
	return buffer.EnginePosition{Row: p.Row + 1, Col: p.Col + 1}, nil
}

// Sync applies cursor moves from one side to the other.
type Sync struct {
	engine engine.Client
	host   host.Host
	logger *slog.Logger
}

// New creates a cursor sync. A nil logger discards output.
func New(eng engine.Client, h host.Host, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sync{
		engine: eng,
		host:   h,
		logger: logger.With("component", "position"),
	}
}

// OnEngineCursorMoved applies an engine cursor (1-indexed) to the host
// editor mapped to h.
func (s *Sync) OnEngineCursorMoved(h *buffer.Handle, row, col int) error {
	ep := buffer.EnginePosition{Row: row, Col: col}
	pos, err := ToHost(ep)
	if err != nil {
		return err
	}
	h.SetEngineCursor(ep)

	id := h.HostID()
	if id == "" {
		return buffer.ErrNoHostEditor
	}
	cur, err := s.host.Cursor(id)
	if err != nil {
		return err
	}
	if cur == pos {
		return nil
	}

	s.logger.Debug("cursor to host", "path", h.Path(), "engine", ep, "host", pos)
	return s.host.SetCursor(id, pos)
}

// OnHostCursorMoved applies a host cursor to the engine when h is the
// engine's current buffer.
func (s *Sync) OnHostCursorMoved(ctx context.Context, h *buffer.Handle, pos buffer.Position) error {
	ep, err := ToEngine(pos)
	if err != nil {
		return err
	}
	if h.EngineCursor() == ep {
		return nil
	}

	number := h.Number()
	if number == 0 {
		return buffer.ErrNoEngineBuffer
	}
	current, err := s.engine.CurrentBuffer(ctx)
	if err != nil {
		return fmt.Errorf("host cursor: %w", engine.Annotate(err, h.Path(), number))
	}
	if current != number {
		return nil
	}

	s.logger.Debug("cursor to engine", "path", h.Path(), "host", pos, "engine", ep)
	if err := s.engine.SetCursor(ctx, ep.Row, ep.Col); err != nil {
		return fmt.Errorf("host cursor: %w", engine.Annotate(err, h.Path(), number))
	}
	h.SetEngineCursor(ep)
	return nil
}

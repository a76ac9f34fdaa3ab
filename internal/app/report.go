package app

import (
	"context"
	"fmt"

	"github.com/dshills/nvimbed/internal/buffer"
)

// DocumentReport compares one synchronized document on both sides.
type DocumentReport struct {
	Path      string
	Buffer    int
	Host      []string
	Engine    []string
	Converged bool
}

// Report reads every registered document from the host and the engine.
// Documents not yet bound on one side are reported as not converged.
func (a *App) Report(ctx context.Context) ([]DocumentReport, error) {
	var out []DocumentReport
	for _, h := range a.coord.Handles() {
		r := DocumentReport{Path: h.Path(), Buffer: h.Number()}

		if id := h.HostID(); id != "" && h.IsOpen(buffer.SideHost) {
			lines, err := a.host.Lines(id)
			if err != nil {
				return nil, fmt.Errorf("read host %s: %w", h.Path(), err)
			}
			r.Host = lines
		}
		if n := h.Number(); n > 0 && h.IsOpen(buffer.SideEngine) {
			lines, err := a.engine.BufferLines(ctx, n)
			if err != nil {
				return nil, fmt.Errorf("read engine %s: %w", h.Path(), err)
			}
			r.Engine = lines
		}

		r.Converged = r.Host != nil && r.Engine != nil && buffer.LinesEqual(r.Host, r.Engine)
		out = append(out, r)
	}
	return out, nil
}

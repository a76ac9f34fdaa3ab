package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/dshills/nvimbed/internal/config"
)

// NewLogger builds the session logger. The level is read through level
// so a config reload can change it.
func NewLogger(w io.Writer, cfg config.LoggingConfig, level *slog.LevelVar) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

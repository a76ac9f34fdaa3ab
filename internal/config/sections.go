package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SyncConfig holds synchronization settings.
type SyncConfig struct {
	// Quiescence is how long a document must stay unchanged in the host
	// before pending edits are pushed to the engine.
	Quiescence time.Duration
}

// EngineConfig holds settings for the Neovim engine.
type EngineConfig struct {
	// Path is the nvim executable started when Address is empty.
	Path string

	// Args are passed to Path; they must include --embed.
	Args []string

	// Address of a running Neovim (socket path or host:port). When set,
	// no process is started.
	Address string

	// RPCTimeout bounds each engine call.
	RPCTimeout time.Duration

	// RetryAttempts and RetryDelay control retry of transport failures.
	RetryAttempts int
	RetryDelay    time.Duration

	// AttachBuffers enables line change notifications. When false,
	// engine edits are only noticed through redraws.
	AttachBuffers bool

	// Width and Height size the attached UI.
	Width  int
	Height int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// SlogLevel returns the level as a slog.Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level %q: %w", l.Level, ErrInvalidValue)
	}
	return level, nil
}

// Sync returns the synchronization settings.
func (c *Config) Sync() SyncConfig {
	return SyncConfig{
		Quiescence: c.durationOr("sync.quiescence", 300*time.Millisecond),
	}
}

// Engine returns the engine settings.
func (c *Config) Engine() EngineConfig {
	return EngineConfig{
		Path:          c.stringOr("engine.path", "nvim"),
		Args:          c.stringsOr("engine.args", []string{"--embed", "--clean"}),
		Address:       c.stringOr("engine.address", ""),
		RPCTimeout:    c.durationOr("engine.rpcTimeout", 2*time.Second),
		RetryAttempts: c.intOr("engine.retryAttempts", 3),
		RetryDelay:    c.durationOr("engine.retryDelay", 100*time.Millisecond),
		AttachBuffers: c.boolOr("engine.attachBuffers", true),
		Width:         c.intOr("engine.width", 80),
		Height:        c.intOr("engine.height", 24),
	}
}

// Logging returns the logging settings.
func (c *Config) Logging() LoggingConfig {
	return LoggingConfig{
		Level:  strings.ToLower(c.stringOr("logging.level", "info")),
		Format: strings.ToLower(c.stringOr("logging.format", "text")),
	}
}

// Validate checks setting types and ranges.
func (c *Config) Validate() error {
	var errs []error

	syncCfg, eng, logCfg := c.Sync(), c.Engine(), c.Logging()
	for _, err := range c.Errors() {
		errs = append(errs, err)
	}

	if syncCfg.Quiescence <= 0 {
		errs = append(errs, fmt.Errorf("sync.quiescence %v: %w", syncCfg.Quiescence, ErrInvalidValue))
	}
	if eng.RPCTimeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.rpcTimeout %v: %w", eng.RPCTimeout, ErrInvalidValue))
	}
	if eng.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("engine.retryAttempts %d: %w", eng.RetryAttempts, ErrInvalidValue))
	}
	if eng.Width < 0 || eng.Height < 0 {
		errs = append(errs, fmt.Errorf("engine size %dx%d: %w", eng.Width, eng.Height, ErrInvalidValue))
	}
	if eng.Address == "" && eng.Path == "" {
		errs = append(errs, fmt.Errorf("engine.path: %w: empty", ErrInvalidValue))
	}
	if _, err := logCfg.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if logCfg.Format != "text" && logCfg.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q: %w", logCfg.Format, ErrInvalidValue))
	}

	return errors.Join(errs...)
}

// Package app wires a synchronization session: configuration, logging,
// the engine connection, the in-memory host and the coordinator.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/nvimbed/internal/config"
	"github.com/dshills/nvimbed/internal/config/watcher"
	"github.com/dshills/nvimbed/internal/coordinator"
	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/engine/nvim"
	"github.com/dshills/nvimbed/internal/event"
	"github.com/dshills/nvimbed/internal/host/memhost"
	"github.com/dshills/nvimbed/internal/integration"
	"github.com/dshills/nvimbed/internal/integration/process"
)

// Connector creates the engine client, publishing its notifications to pub.
type Connector func(ctx context.Context, pub event.Publisher, cfg config.EngineConfig, logger *slog.Logger) (engine.Client, error)

// Options configures New.
type Options struct {
	// ConfigPath is the configuration file. Empty means defaults and
	// environment only.
	ConfigPath string

	// Address overrides engine.address.
	Address string

	// Verbose forces debug logging.
	Verbose bool

	// Watch reloads the configuration file when it changes.
	Watch bool

	// LogOutput receives log records. Defaults to stderr.
	LogOutput io.Writer

	// Connector replaces the Neovim connection, for tests.
	Connector Connector
}

// App is one synchronization session.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	level  *slog.LevelVar

	queue   *event.Queue
	sup     *process.Supervisor
	engine  engine.Client
	host    *memhost.Host
	coord   *coordinator.Coordinator
	watcher *watcher.Watcher

	mu      sync.Mutex
	cancel  context.CancelFunc
	runDone chan error

	shutdownOnce sync.Once
}

// New loads configuration and connects to the engine.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	if opts.Address != "" {
		cfg.Set("engine.address", opts.Address)
	}
	if opts.Verbose {
		cfg.Set("logging.level", "debug")
	}

	a := &App{
		cfg:   cfg,
		level: new(slog.LevelVar),
		queue: event.NewQueue(),
	}
	logCfg := cfg.Logging()
	lvl, _ := logCfg.SlogLevel()
	a.level.Set(lvl)
	a.logger = NewLogger(opts.LogOutput, logCfg, a.level)
	a.sup = process.NewSupervisor(process.WithLogger(a.logger), process.WithExitCallback(a.engineExited))

	connect := opts.Connector
	if connect == nil {
		connect = a.connectNvim
	}
	engCfg := cfg.Engine()
	eng, err := connect(ctx, a.queue, engCfg, a.logger)
	if err != nil {
		a.sup.Shutdown(time.Second)
		return nil, &InitError{Component: "engine", Err: err}
	}
	a.engine = eng

	a.host = memhost.New(a.queue)
	a.coord = coordinator.New(eng, a.host,
		coordinator.WithLogger(a.logger),
		coordinator.WithQuiescence(cfg.Sync().Quiescence),
		coordinator.WithRetry(retryConfig(engCfg)),
		coordinator.WithRedrawVerification(engCfg.Width > 0 && engCfg.Height > 0),
	)

	if opts.Watch && cfg.Path() != "" {
		w, err := watcher.New(cfg.Path(), a.reload, watcher.WithLogger(a.logger))
		if err != nil {
			a.logger.Warn("config live reload disabled", "error", err)
		} else {
			a.watcher = w
		}
	}

	a.logger.Info("session initialized",
		"config", cfg.Path(),
		"engine", engineTarget(engCfg),
		"quiescence", cfg.Sync().Quiescence,
	)
	return a, nil
}

func engineTarget(cfg config.EngineConfig) string {
	if cfg.Address != "" {
		return cfg.Address
	}
	return cfg.Path
}

func retryConfig(cfg config.EngineConfig) integration.RetryConfig {
	rc := integration.DefaultRetryConfig()
	rc.MaxAttempts = cfg.RetryAttempts
	rc.InitialDelay = cfg.RetryDelay
	rc.AttemptTimeout = cfg.RPCTimeout
	return rc
}

func (a *App) connectNvim(ctx context.Context, pub event.Publisher, cfg config.EngineConfig, logger *slog.Logger) (engine.Client, error) {
	opts := []nvim.Option{
		nvim.WithPublisher(pub),
		nvim.WithLogger(logger),
		nvim.WithTimeout(cfg.RPCTimeout),
		nvim.WithBufferEvents(cfg.AttachBuffers),
		nvim.WithUI(cfg.Width, cfg.Height),
	}
	if cfg.Address != "" {
		return nvim.Dial(ctx, cfg.Address, opts...)
	}
	return nvim.Embed(ctx, a.sup, cfg.Path, cfg.Args, opts...)
}

func (a *App) engineExited(p *process.Process) {
	a.logger.Warn("engine process exited", "code", p.ExitCode(), "runtime", p.Runtime().Round(time.Millisecond))
}

// reload applies a changed configuration file to the running session.
func (a *App) reload(path string) {
	if err := a.cfg.Reload(); err != nil {
		a.logger.Warn("config reload failed, keeping previous settings", "path", path, "error", err)
		return
	}
	a.apply()
	a.logger.Info("config reloaded", "path", path)
}

func (a *App) apply() {
	if lvl, err := a.cfg.Logging().SlogLevel(); err == nil {
		a.level.Set(lvl)
	}
	a.coord.SetQuiescence(a.cfg.Sync().Quiescence)
}

// Start processes events in the background until Shutdown or ctx ends.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runDone != nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.runDone = make(chan error, 1)
	done := a.runDone
	integration.SafeGo(func() {
		done <- a.coord.Run(ctx, a.queue.C())
	}, func(r any) {
		a.logger.Error("coordinator panicked", "panic", r)
		done <- fmt.Errorf("coordinator panic: %v", r)
	})
}

// Config returns the session configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the session logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Host returns the in-memory host.
func (a *App) Host() *memhost.Host { return a.host }

// Engine returns the engine client.
func (a *App) Engine() engine.Client { return a.engine }

// Coordinator returns the coordinator.
func (a *App) Coordinator() *coordinator.Coordinator { return a.coord }

// Quiesce waits twice the quiet period for the engine to report back, then
// until the event queue is empty and the coordinator is idle on two
// consecutive checks, or ctx ends.
func (a *App) Quiesce(ctx context.Context) error {
	a.mu.Lock()
	started := a.runDone != nil
	a.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	timer := time.NewTimer(2 * a.cfg.Sync().Quiescence)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for idle := 0; idle < 2; {
		if a.queue.Len() == 0 && a.coord.Idle() {
			idle++
		} else {
			idle = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// Shutdown stops event processing and closes the engine. It is safe to
// call more than once.
func (a *App) Shutdown(timeout time.Duration) error {
	var err error
	a.shutdownOnce.Do(func() {
		if a.watcher != nil {
			_ = a.watcher.Close()
		}

		a.queue.Drain()
		a.mu.Lock()
		cancel, done := a.cancel, a.runDone
		a.mu.Unlock()
		if done != nil {
			select {
			case runErr := <-done:
				if runErr != nil && !errors.Is(runErr, context.Canceled) {
					err = runErr
				}
			case <-time.After(timeout):
				cancel()
				<-done
			}
			cancel()
		}

		if c, ok := a.engine.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close engine: %w", cerr)
			}
		}
		a.sup.Shutdown(timeout)
		a.logger.Info("session stopped")
	})
	return err
}

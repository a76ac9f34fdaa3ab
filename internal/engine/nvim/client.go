package nvim

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neovim/go-client/nvim"

	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/event"
	"github.com/dshills/nvimbed/internal/integration"
	"github.com/dshills/nvimbed/internal/integration/process"
)

// DefaultTimeout bounds a single RPC.
const DefaultTimeout = 2 * time.Second

// Options applied to every session.
const startupOptions = "set nowrap nonumber norelativenumber signcolumn=no foldcolumn=0 nofoldenable laststatus=0 showtabline=0 noshowmode noruler noswapfile shortmess+=F"

var _ engine.Client = (*Client)(nil)

type config struct {
	pub          event.Publisher
	logger       *slog.Logger
	timeout      time.Duration
	bufferEvents bool
	width        int
	height       int
}

// Option configures a Client.
type Option func(*config)

// WithPublisher sets where notifications are published.
func WithPublisher(p event.Publisher) Option {
	return func(c *config) {
		if p != nil {
			c.pub = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds each RPC. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBufferEvents enables line change notifications for file buffers.
func WithBufferEvents(enabled bool) Option {
	return func(c *config) {
		c.bufferEvents = enabled
	}
}

// WithUI attaches a UI of the given size so redraws are published.
// A zero size disables redraws.
func WithUI(width, height int) Option {
	return func(c *config) {
		c.width, c.height = width, height
	}
}

// Client is an engine.Client backed by a Neovim session.
type Client struct {
	nv      *nvim.Nvim
	pub     event.Publisher
	logger  *slog.Logger
	timeout time.Duration

	current atomic.Int64

	screenMu sync.Mutex
	screen   *screen

	proc      *process.Process
	closeOnce sync.Once
}

func newConfig(opts []Option) config {
	cfg := config{
		pub:          event.Discard,
		logger:       slog.New(slog.DiscardHandler),
		timeout:      DefaultTimeout,
		bufferEvents: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.logger = cfg.logger.With("component", "nvim")
	return cfg
}

func newClient(nv *nvim.Nvim, cfg config) *Client {
	c := &Client{
		nv:      nv,
		pub:     cfg.pub,
		logger:  cfg.logger,
		timeout: cfg.timeout,
	}
	if cfg.width > 0 && cfg.height > 0 {
		c.screen = newScreen(cfg.height, cfg.width)
	}
	return c
}

func logf(l *slog.Logger) func(string, ...any) {
	return func(format string, args ...any) {
		l.Debug(fmt.Sprintf(format, args...))
	}
}

// Embed starts path with args (which must include --embed) under sup and
// connects to it over the child's standard input and output.
func Embed(ctx context.Context, sup *process.Supervisor, path string, args []string, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)

	proc, err := sup.Start("nvim", exec.Command(path, args...))
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}

	nv, err := nvim.New(proc.Stdout, proc.Stdin, proc.Stdin, logf(cfg.logger))
	if err != nil {
		_ = proc.Kill()
		return nil, fmt.Errorf("connect engine: %w", err)
	}

	c := newClient(nv, cfg)
	c.proc = proc
	if err := c.register(); err != nil {
		_ = nv.Close()
		_ = proc.Kill()
		return nil, err
	}
	go c.serve()

	if err := c.setup(ctx, cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Dial connects to a running Neovim listening on address, a unix socket
// path or host:port.
func Dial(ctx context.Context, address string, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)

	nv, err := nvim.Dial(address, nvim.DialContext(ctx), nvim.DialLogf(logf(cfg.logger)))
	if err != nil {
		return nil, engine.Transport("dial "+address, err)
	}

	c := newClient(nv, cfg)
	if err := c.register(); err != nil {
		_ = nv.Close()
		return nil, err
	}
	if err := c.setup(ctx, cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) serve() {
	if err := c.nv.Serve(); err != nil {
		c.logger.Warn("engine session ended", "error", err)
		return
	}
	c.logger.Debug("engine session ended")
}

// setup configures the session, installs the notification script and
// attaches the UI.
func (c *Client) setup(ctx context.Context, cfg config) error {
	if err := c.Command(ctx, startupOptions); err != nil {
		return fmt.Errorf("configure engine: %w", err)
	}

	n, err := c.CurrentBuffer(ctx)
	if err != nil {
		return fmt.Errorf("configure engine: %w", err)
	}
	c.current.Store(int64(n))

	_, err = call(ctx, c, "exec lua", func() (struct{}, error) {
		return struct{}{}, c.nv.ExecLua(notifyScript, nil, c.nv.ChannelID(), cfg.bufferEvents)
	})
	if err != nil {
		return fmt.Errorf("install notifications: %w", err)
	}

	if c.screen != nil {
		_, err = call(ctx, c, "attach ui", func() (struct{}, error) {
			return struct{}{}, c.nv.AttachUI(cfg.width, cfg.height, map[string]any{
				"ext_linegrid": true,
				"rgb":          true,
			})
		})
		if err != nil {
			return fmt.Errorf("attach ui: %w", err)
		}
	}

	c.logger.Info("engine ready", "buffer", n, "bufferEvents", cfg.bufferEvents, "ui", c.screen != nil)
	return nil
}

// Close ends the session. An embedded engine's stdin is closed, which
// makes it exit; the supervisor reaps it.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.nv.Close()
		if c.proc != nil {
			if cerr := c.proc.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

// Done returns a channel closed when the embedded engine exits, or nil
// for a dialed session.
func (c *Client) Done() <-chan struct{} {
	if c.proc == nil {
		return nil
	}
	return c.proc.Done()
}

// call runs fn bounded by the client timeout and ctx.
func call[T any](ctx context.Context, c *Client, op string, fn func() (T, error)) (T, error) {
	v, err := integration.Timeout(ctx, c.timeout, func(context.Context) (T, error) {
		return fn()
	})
	return v, classify(op, err)
}

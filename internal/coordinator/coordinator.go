package coordinator

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/content"
	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/event"
	"github.com/dshills/nvimbed/internal/host"
	"github.com/dshills/nvimbed/internal/integration"
	"github.com/dshills/nvimbed/internal/position"
	"github.com/dshills/nvimbed/internal/tabs"
	"github.com/dshills/nvimbed/internal/viewport"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetry sets the retry policy applied to engine calls.
func WithRetry(cfg integration.RetryConfig) Option {
	return func(c *Coordinator) {
		c.retry = cfg
	}
}

// WithQuiescence sets the quiet period after the last host edit before
// pending edits are sent to the engine.
func WithQuiescence(d time.Duration) Option {
	return func(c *Coordinator) {
		c.quiescence = d
	}
}

// WithRedrawVerification enables checking the engine's visible rows against
// the host on every redraw. Use it when the engine does not report line
// changes.
func WithRedrawVerification(enabled bool) Option {
	return func(c *Coordinator) {
		c.verifyRedraws = enabled
	}
}

// Coordinator keeps the host and the engine in sync.
type Coordinator struct {
	engine engine.Client
	host   host.Host
	logger *slog.Logger

	retry         integration.RetryConfig
	quiescence    time.Duration
	verifyRedraws bool

	content  *content.Sync
	position *position.Sync
	tabs     *tabs.Router
	metrics  *Metrics

	mu       sync.RWMutex
	byPath   map[string]*buffer.Handle
	byNumber map[int]*buffer.Handle
	byEditor map[buffer.EditorID]*buffer.Handle
	views    map[int]*viewport.Model

	// inbox receives work scheduled from timers while Run is active.
	inboxMu sync.Mutex
	inbox   event.Publisher

	// inflight counts events handed to Run's workers and not yet handled.
	inflight atomic.Int64
}

// New creates a coordinator. Engine calls are wrapped with bounded retry of
// transport failures.
func New(eng engine.Client, h host.Host, opts ...Option) *Coordinator {
	c := &Coordinator{
		host:       h,
		logger:     slog.New(slog.DiscardHandler),
		retry:      integration.DefaultRetryConfig(),
		quiescence: content.DefaultQuiescence,
		metrics:    NewMetrics(),
		byPath:     make(map[string]*buffer.Handle),
		byNumber:   make(map[int]*buffer.Handle),
		byEditor:   make(map[buffer.EditorID]*buffer.Handle),
		views:      make(map[int]*viewport.Model),
	}
	for _, opt := range opts {
		opt(c)
	}
	base := c.logger
	c.logger = base.With("component", "coordinator")
	c.engine = engine.WithRetry(eng, c.retry)

	c.content = content.New(c.engine, h,
		content.WithLogger(base),
		content.WithQuiescence(c.quiescence),
		content.WithScheduler(c.scheduleFlush),
	)
	c.position = position.New(c.engine, h, base)
	c.tabs = tabs.New(c.engine, h, c, base)
	return c
}

// Metrics returns the dispatch statistics.
func (c *Coordinator) Metrics() *Metrics {
	return c.metrics
}

// Idle reports whether every event handed to Run has been handled and no
// document has a flush scheduled. Events not yet received by Run are not
// seen.
func (c *Coordinator) Idle() bool {
	if c.inflight.Load() > 0 {
		return false
	}
	for _, h := range c.Handles() {
		if c.content.FlushPending(h) {
			return false
		}
	}
	return true
}

// SetQuiescence changes the flush quiet period of a running session.
func (c *Coordinator) SetQuiescence(d time.Duration) {
	c.content.SetQuiescence(d)
	c.logger.Info("quiescence changed", "quiescence", d)
}

// LookupPath returns the handle for a file path.
func (c *Coordinator) LookupPath(path string) (*buffer.Handle, bool) {
	canonical, err := buffer.CanonicalPath(path)
	if err != nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byPath[canonical]
	return h, ok
}

// LookupNumber returns the handle bound to an engine buffer number.
func (c *Coordinator) LookupNumber(number int) (*buffer.Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byNumber[number]
	return h, ok
}

// LookupEditor returns the handle bound to a host editor.
func (c *Coordinator) LookupEditor(id buffer.EditorID) (*buffer.Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byEditor[id]
	return h, ok
}

// Handles returns all registered handles ordered by path.
func (c *Coordinator) Handles() []*buffer.Handle {
	c.mu.RLock()
	out := make([]*buffer.Handle, 0, len(c.byPath))
	for _, h := range c.byPath {
		out = append(out, h)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}

// View returns the screen model of an engine buffer, if it was ever shown.
func (c *Coordinator) View(number int) (*viewport.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.views[number]
	return m, ok
}

func (c *Coordinator) view(number int) *viewport.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.views[number]
	if !ok {
		m = viewport.NewModel()
		c.views[number] = m
	}
	return m
}

// remove drops h from every index.
func (c *Coordinator) remove(h *buffer.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.byPath[h.Path()] == h {
		delete(c.byPath, h.Path())
	}
	if n := h.Number(); n != 0 && c.byNumber[n] == h {
		delete(c.byNumber, n)
		delete(c.views, n)
	}
	if id := h.HostID(); id != "" && c.byEditor[id] == h {
		delete(c.byEditor, id)
	}
}

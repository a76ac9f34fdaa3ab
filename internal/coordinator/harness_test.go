package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/engine/enginetest"
	"github.com/dshills/nvimbed/internal/event"
	"github.com/dshills/nvimbed/internal/host/memhost"
	"github.com/dshills/nvimbed/internal/integration"
	"github.com/stretchr/testify/require"
)

// inbox is a synchronous FIFO publisher so tests control delivery.
type inbox struct {
	mu    sync.Mutex
	items []event.Event
}

func (b *inbox) Emit(source string, p event.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, event.New(p, source))
	return nil
}

func (b *inbox) next() (event.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return event.Event{}, false
	}
	ev := b.items[0]
	b.items = b.items[1:]
	return ev, true
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	dir   string
	inbox *inbox
	eng   *enginetest.Engine
	host  *memhost.Host
	c     *Coordinator
}

func fastRetry() integration.RetryConfig {
	return integration.RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          2 * time.Millisecond,
		BackoffMultiplier: 2,
		AttemptTimeout:    time.Second,
	}
}

func newHarness(t *testing.T, engOpts []enginetest.Option, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		ctx:   context.Background(),
		dir:   t.TempDir(),
		inbox: &inbox{},
	}
	h.eng = enginetest.New(append([]enginetest.Option{enginetest.WithPublisher(h.inbox)}, engOpts...)...)
	h.host = memhost.New(h.inbox)
	h.c = New(h.eng, h.host, append([]Option{
		WithRetry(fastRetry()),
		WithQuiescence(time.Hour),
	}, opts...)...)
	return h
}

// file writes a file and returns its canonical path.
func (h *harness) file(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	canonical, err := buffer.CanonicalPath(path)
	require.NoError(h.t, err)
	return canonical
}

// pump dispatches queued events, including those produced while
// dispatching, until none are left.
func (h *harness) pump() []error {
	h.t.Helper()
	var errs []error
	for range 1000 {
		ev, ok := h.inbox.next()
		if !ok {
			return errs
		}
		if err := h.c.Dispatch(h.ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	h.t.Fatal("events did not settle")
	return nil
}

// settle pumps and fails on any error other than late events.
func (h *harness) settle() {
	h.t.Helper()
	for _, err := range h.pump() {
		if errors.Is(err, ErrUnknownHandle) || errors.Is(err, ErrUnnamedBuffer) || errors.Is(err, buffer.ErrHandleClosed) {
			continue
		}
		h.t.Fatalf("unexpected dispatch error: %v", err)
	}
}

func (h *harness) openInHost(path string) buffer.EditorID {
	h.t.Helper()
	id, err := h.host.Open(h.ctx, path)
	require.NoError(h.t, err)
	h.settle()
	return id
}

func (h *harness) openInEngine(path string) int {
	h.t.Helper()
	require.NoError(h.t, h.eng.Command(h.ctx, "edit "+path))
	h.settle()
	n := h.eng.BufferNumber(path)
	require.NotZero(h.t, n)
	return n
}

func (h *harness) handle(path string) *buffer.Handle {
	h.t.Helper()
	hd, ok := h.c.LookupPath(path)
	require.True(h.t, ok, "no handle for %s", path)
	return hd
}

func (h *harness) hostLines(id buffer.EditorID) []string {
	h.t.Helper()
	lines, err := h.host.Lines(id)
	require.NoError(h.t, err)
	return lines
}

// edit applies a host edit and signals that the host stopped changing.
func (h *harness) edit(id buffer.EditorID, r buffer.Range, text string) {
	h.t.Helper()
	require.NoError(h.t, h.host.SetTextInRange(id, r, text))
	require.NoError(h.t, h.host.Settle(id))
	h.settle()
}

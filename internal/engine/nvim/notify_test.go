package nvim

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/event"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Payload
}

func (r *recorder) Emit(source string, p event.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
	return nil
}

func (r *recorder) all() []event.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Payload(nil), r.events...)
}

func newTestClient(rec *recorder, ui bool) *Client {
	c := &Client{
		pub:     rec,
		logger:  slog.New(slog.DiscardHandler),
		timeout: 50 * time.Millisecond,
	}
	if ui {
		c.screen = newScreen(4, 10)
	}
	c.current.Store(1)
	return c
}

func TestNotifications(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(rec, false)

	c.onOpen(2, "/tmp/a.txt")
	c.onEnter(2)
	c.onEnter(2)
	c.onLines(2, 0, 1, []string{"changed"})
	c.onCursor(2, 1, 3)
	c.onClose(2)

	assert.Equal(t, []event.Payload{
		event.EngineOpen{Buffer: 2, Path: "/tmp/a.txt"},
		event.BufferSwitched{Buffer: 2},
		event.EngineEdit{Buffer: 2, First: 0, Last: 1, Lines: []string{"changed"}},
		event.CursorMoved{Buffer: 2, Row: 1, Col: 3},
		event.EngineClose{Buffer: 2},
	}, rec.all(), "entering the current buffer again is not a switch")
}

func TestRedrawPublishedOnFlush(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(rec, true)

	c.onRedraw(
		[]any{"grid_line", line(0, "one"), line(1, "two")},
		[]any{"win_viewport", []any{int64(1), int64(1000), int64(0), int64(2), int64(0), int64(0), int64(2)}},
	)
	assert.Empty(t, rec.all(), "nothing is published before flush")

	c.onRedraw([]any{"flush", []any{}})

	events := rec.all()
	require.Len(t, events, 1)
	redraw, ok := events[0].(event.Redraw)
	require.True(t, ok)
	assert.Equal(t, 1, redraw.Buffer)
	assert.Equal(t, 0, redraw.Top)
	assert.Equal(t, 2, redraw.Rows)
	assert.Equal(t, 10, redraw.Cols)
	require.Len(t, redraw.Cells, 2)
	assert.Equal(t, "t", redraw.Cells[1][0].Text)
}

func TestRedrawIgnoredWithoutUI(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(rec, false)
	c.onRedraw([]any{"flush", []any{}})
	assert.Empty(t, rec.all())
}

func TestCallTimeout(t *testing.T) {
	c := newTestClient(&recorder{}, false)

	_, err := call(context.Background(), c, "buffer lines", func() ([][]byte, error) {
		time.Sleep(time.Second)
		return nil, nil
	})
	assert.True(t, engine.IsTransport(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = call(ctx, c, "input", func() (int, error) {
		time.Sleep(time.Second)
		return 0, nil
	})
	assert.True(t, engine.IsTransport(err))

	v, err := call(context.Background(), c, "current buffer", func() (int, error) {
		return 3, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, v)
}

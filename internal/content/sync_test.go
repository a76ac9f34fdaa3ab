package content

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/engine/enginetest"
	"github.com/dshills/nvimbed/internal/event"
	"github.com/dshills/nvimbed/internal/host/memhost"
	"github.com/dshills/nvimbed/internal/viewport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	payloads []event.Payload
}

func (r *recorder) Emit(_ string, p event.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return nil
}

// take returns and clears the recorded payloads of type T.
func take[T event.Payload](r *recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []T
	rest := r.payloads[:0]
	for _, p := range r.payloads {
		if v, ok := p.(T); ok {
			out = append(out, v)
			continue
		}
		rest = append(rest, p)
	}
	r.payloads = rest
	return out
}

type fixture struct {
	eng  *enginetest.Engine
	host *memhost.Host
	sync *Sync
	h    *buffer.Handle

	engineEvents *recorder
	hostEvents   *recorder
}

func newFixture(t *testing.T, content string, engOpts []enginetest.Option, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	canonical, err := buffer.CanonicalPath(path)
	require.NoError(t, err)

	f := &fixture{engineEvents: &recorder{}, hostEvents: &recorder{}}
	f.eng = enginetest.New(append([]enginetest.Option{enginetest.WithPublisher(f.engineEvents)}, engOpts...)...)
	f.host = memhost.New(f.hostEvents)

	n, err := f.eng.OpenBuffer(ctx, canonical)
	require.NoError(t, err)
	id, err := f.host.Open(ctx, canonical)
	require.NoError(t, err)

	f.h = buffer.NewHandle(canonical)
	require.NoError(t, f.h.BindEngine(n))
	f.h.BindHost(id)
	lines, err := f.host.Lines(id)
	require.NoError(t, err)
	require.NoError(t, f.h.With(func(st *buffer.State) error {
		st.Lines = buffer.Clone(lines)
		st.Shadow = buffer.Clone(lines)
		return nil
	}))

	// Long default quiescence so tests drive flushes explicitly.
	f.sync = New(f.eng, f.host, append([]Option{WithQuiescence(time.Hour)}, opts...)...)
	t.Cleanup(func() { f.sync.Forget(f.h) })

	take[event.Payload](f.engineEvents)
	take[event.Payload](f.hostEvents)
	return f
}

// hostEdit edits the host document the way a user would and feeds the
// resulting notification to the sync.
func (f *fixture) hostEdit(t *testing.T, r buffer.Range, text string) {
	t.Helper()
	require.NoError(t, f.host.SetTextInRange(f.h.HostID(), r, text))
	f.deliverHost(t)
}

func (f *fixture) deliverHost(t *testing.T) {
	t.Helper()
	for _, ev := range take[event.HostEdit](f.hostEvents) {
		require.NoError(t, f.sync.ApplyHostEdit(f.h, ev.Range, ev.Text))
	}
}

func (f *fixture) deliverEngine(t *testing.T) {
	t.Helper()
	for _, ev := range take[event.EngineEdit](f.engineEvents) {
		require.NoError(t, f.sync.ApplyEngineEdit(context.Background(), f.h, ev.First, ev.Last, ev.Lines))
	}
}

func (f *fixture) hostLines(t *testing.T) []string {
	t.Helper()
	lines, err := f.host.Lines(f.h.HostID())
	require.NoError(t, err)
	return lines
}

func TestSync_HostEditReachesEngine(t *testing.T) {
	f := newFixture(t, "Hello there\nsecond line\n", nil)
	ctx := context.Background()

	f.hostEdit(t, buffer.NewRange(0, 6, 0, 6), "everyone ")
	assert.Equal(t, []string{"Hello everyone there", "second line"}, f.h.Lines())
	assert.Equal(t, 1, f.h.PendingCount())
	assert.True(t, f.sync.FlushPending(f.h))
	assert.Equal(t, []string{"Hello there", "second line"}, f.eng.Lines(f.h.Number()), "engine waits for quiescence")

	require.NoError(t, f.sync.Settled(ctx, f.h))
	assert.Equal(t, []string{"Hello everyone there", "second line"}, f.eng.Lines(f.h.Number()))
	assert.Equal(t, 0, f.h.PendingCount())
	assert.False(t, f.sync.FlushPending(f.h))
	assert.Equal(t, f.h.Lines(), f.h.Shadow())

	// The engine reports the splice back; nothing reaches the host.
	f.deliverEngine(t)
	assert.Empty(t, take[event.HostEdit](f.hostEvents))
	assert.Equal(t, []string{"Hello everyone there", "second line"}, f.hostLines(t))
}

func TestSync_EditsCoalesce(t *testing.T) {
	f := newFixture(t, "abc\n", nil)

	f.hostEdit(t, buffer.NewRange(0, 3, 0, 3), "d")
	f.hostEdit(t, buffer.NewRange(0, 4, 0, 4), "e")
	f.hostEdit(t, buffer.NewRange(0, 5, 0, 5), "\nxyz")
	assert.Equal(t, 3, f.h.PendingCount())

	require.NoError(t, f.sync.Settled(context.Background(), f.h))
	assert.Equal(t, []string{"abcde", "xyz"}, f.eng.Lines(f.h.Number()))
	assert.Equal(t, 1, f.eng.CountCalls("set buffer lines"))
}

func TestSync_QuiescenceFlushes(t *testing.T) {
	f := newFixture(t, "one\ntwo\n", nil, WithQuiescence(20*time.Millisecond))

	f.hostEdit(t, buffer.NewRange(1, 0, 1, 3), "TWO")

	require.Eventually(t, func() bool {
		return buffer.Equal(f.eng.Lines(f.h.Number()), []string{"one", "TWO"})
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return f.h.PendingCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSync_SchedulerOverride(t *testing.T) {
	scheduled := make(chan *buffer.Handle, 1)
	f := newFixture(t, "one\n", nil,
		WithQuiescence(10*time.Millisecond),
		WithScheduler(func(h *buffer.Handle) { scheduled <- h }),
	)

	f.hostEdit(t, buffer.NewRange(0, 0, 0, 0), "x")

	select {
	case h := <-scheduled:
		assert.Same(t, f.h, h)
	case <-time.After(time.Second):
		t.Fatal("flush was not scheduled")
	}
	assert.Equal(t, 1, f.h.PendingCount(), "scheduler owns running the flush")
}

func TestSync_EngineEditReachesHost(t *testing.T) {
	f := newFixture(t, "one\ntwo\nthree\n", nil)

	require.NoError(t, f.eng.Edit(f.h.Number(), 1, 2, []string{"TWO", "two and a half"}))
	f.deliverEngine(t)
	assert.Equal(t, []string{"one", "TWO", "two and a half", "three"}, f.hostLines(t))
	assert.Equal(t, f.hostLines(t), f.h.Lines())
	assert.Equal(t, f.hostLines(t), f.h.Shadow())

	// The host reports the edit back; it is dropped.
	f.deliverHost(t)
	assert.Equal(t, 0, f.h.PendingCount())
	assert.False(t, f.sync.FlushPending(f.h))
	assert.Equal(t, 0, f.eng.CountCalls("set buffer lines"))
}

func TestSync_EngineUndoAfterDelete(t *testing.T) {
	f := newFixture(t, "keep\ndelete me\nkeep too\n", nil)
	ctx := context.Background()

	f.eng.MoveCursor(2, 1)
	require.NoError(t, f.eng.Input(ctx, "dd"))
	f.deliverEngine(t)
	assert.Equal(t, []string{"keep", "keep too"}, f.hostLines(t))

	require.NoError(t, f.eng.Input(ctx, "u"))
	f.deliverEngine(t)
	assert.Equal(t, []string{"keep", "delete me", "keep too"}, f.hostLines(t))
	f.deliverHost(t)
	assert.Equal(t, 0, f.h.PendingCount())
}

func TestSync_EngineDeletesEverything(t *testing.T) {
	f := newFixture(t, "a\nb\n", nil)

	require.NoError(t, f.eng.Edit(f.h.Number(), 0, -1, nil))
	f.deliverEngine(t)
	assert.Equal(t, []string{""}, f.hostLines(t))
	assert.Equal(t, []string{""}, f.h.Shadow())
}

func TestSync_EngineTrailingWhitespaceReachesHost(t *testing.T) {
	f := newFixture(t, "hello\nother\n", nil)
	ctx := context.Background()

	require.NoError(t, f.eng.Edit(f.h.Number(), 0, 1, []string{"hello "}))
	f.deliverEngine(t)
	assert.Equal(t, []string{"hello ", "other"}, f.hostLines(t))
	f.deliverHost(t)
	assert.Equal(t, 0, f.h.PendingCount())

	// An unrelated host edit must not take the space back out.
	f.hostEdit(t, buffer.NewRange(1, 5, 1, 5), "!")
	require.NoError(t, f.sync.Settled(ctx, f.h))
	assert.Equal(t, []string{"hello ", "other!"}, f.eng.Lines(f.h.Number()))
	assert.Equal(t, []string{"hello ", "other!"}, f.hostLines(t))
}

func TestSync_EngineStripsTrailingWhitespace(t *testing.T) {
	f := newFixture(t, "a  \nb\n", nil)
	ctx := context.Background()

	require.NoError(t, f.eng.Edit(f.h.Number(), 0, 1, []string{"a"}))
	f.deliverEngine(t)
	assert.Equal(t, []string{"a", "b"}, f.hostLines(t))
	assert.Equal(t, []string{"a", "b"}, f.h.Shadow())
	f.deliverHost(t)

	require.NoError(t, f.sync.Settled(ctx, f.h))
	assert.Equal(t, 0, f.eng.CountCalls("set buffer lines"))
}

func TestSync_FlushFailureKeepsPending(t *testing.T) {
	f := newFixture(t, "one\n", nil)
	ctx := context.Background()

	f.hostEdit(t, buffer.NewRange(0, 3, 0, 3), "!")
	f.eng.SetUnreachable(true)

	err := f.sync.Settled(ctx, f.h)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrTransport)
	assert.Equal(t, 1, f.h.PendingCount())
	assert.Equal(t, []string{"one"}, f.h.Shadow())

	var terr *engine.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, f.h.Path(), terr.Path)
	assert.Equal(t, f.h.Number(), terr.Buffer)

	f.eng.SetUnreachable(false)
	require.NoError(t, f.sync.Settled(ctx, f.h))
	assert.Equal(t, []string{"one!"}, f.eng.Lines(f.h.Number()))
	assert.Equal(t, 0, f.h.PendingCount())
}

func TestSync_FlushWithoutEngineBuffer(t *testing.T) {
	f := newFixture(t, "one\n", nil)
	h := buffer.NewHandle(f.h.Path() + ".other")
	t.Cleanup(func() { f.sync.Forget(h) })

	require.NoError(t, f.sync.ApplyHostEdit(h, buffer.NewRange(0, 0, 0, 0), "x"))
	assert.ErrorIs(t, f.sync.Flush(context.Background(), h), buffer.ErrNoEngineBuffer)
	assert.Equal(t, 1, h.PendingCount())
}

func TestSync_FlushNothingPending(t *testing.T) {
	f := newFixture(t, "one\n", nil)
	require.NoError(t, f.sync.Flush(context.Background(), f.h))
	assert.Equal(t, 0, f.eng.CountCalls("set buffer lines"))
}

func TestSync_InvalidHostEdit(t *testing.T) {
	f := newFixture(t, "one\n", nil)

	err := f.sync.ApplyHostEdit(f.h, buffer.NewRange(3, 0, 3, 0), "x")
	assert.ErrorIs(t, err, buffer.ErrInvalidRange)
	assert.Equal(t, 0, f.h.PendingCount())
}

func TestSync_InvalidEngineEdit(t *testing.T) {
	f := newFixture(t, "one\n", nil)

	err := f.sync.ApplyEngineEdit(context.Background(), f.h, 2, 5, []string{"x"})
	assert.ErrorIs(t, err, buffer.ErrInvalidRange)
	assert.Equal(t, []string{"one"}, f.hostLines(t))
}

func TestSync_ClosedHandle(t *testing.T) {
	f := newFixture(t, "one\n", nil)
	f.h.Discard()

	err := f.sync.ApplyHostEdit(f.h, buffer.NewRange(0, 0, 0, 0), "x")
	assert.ErrorIs(t, err, buffer.ErrHandleClosed)
}

func TestSync_SetQuiescence(t *testing.T) {
	f := newFixture(t, "one\n", nil)
	f.hostEdit(t, buffer.NewRange(0, 0, 0, 0), "x")

	f.sync.SetQuiescence(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, f.sync.Quiescence())
	f.sync.SetQuiescence(0)
	assert.Equal(t, 50*time.Millisecond, f.sync.Quiescence(), "non-positive values are ignored")
}

func redrawOnly() []enginetest.Option {
	return []enginetest.Option{
		enginetest.WithBufferEvents(false),
		enginetest.WithRedraws(true),
		enginetest.WithScreen(3, 40),
	}
}

// screen applies the most recent redraw to a fresh model.
func (f *fixture) screen(t *testing.T) *viewport.Model {
	t.Helper()
	redraws := take[event.Redraw](f.engineEvents)
	require.NotEmpty(t, redraws)
	last := redraws[len(redraws)-1]

	m := viewport.NewModel()
	m.OnRedraw(last.Top, last.Rows, last.Cols, last.Cells)
	return m
}

func TestSync_VerifyVisibleReconciles(t *testing.T) {
	f := newFixture(t, "alpha\nbeta\ngamma\ndelta\n", redrawOnly())
	ctx := context.Background()

	require.NoError(t, f.eng.Substitute(f.h.Number(), "beta", "BETA"))
	assert.Empty(t, take[event.EngineEdit](f.engineEvents))

	require.NoError(t, f.sync.VerifyVisible(ctx, f.h, f.screen(t)))
	assert.Equal(t, []string{"alpha", "BETA", "gamma", "delta"}, f.hostLines(t))
	assert.Equal(t, f.hostLines(t), f.h.Shadow())

	f.deliverHost(t)
	assert.Equal(t, 0, f.h.PendingCount())
}

func TestSync_VerifyVisibleOffscreenGap(t *testing.T) {
	f := newFixture(t, "alpha\nbeta\ngamma\ndelta\n", redrawOnly())
	ctx := context.Background()

	// Row 3 is below the three visible rows, so the change goes unseen.
	require.NoError(t, f.eng.Substitute(f.h.Number(), "delta", "DELTA"))

	require.NoError(t, f.sync.VerifyVisible(ctx, f.h, f.screen(t)))
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta"}, f.hostLines(t))
	assert.Equal(t, 0, f.eng.CountCalls("buffer lines"))
	assert.NotEqual(t, f.eng.Lines(f.h.Number()), f.hostLines(t))
}

func TestSync_VerifyVisibleMatches(t *testing.T) {
	f := newFixture(t, "a\tb\nwide 世界\n", redrawOnly())

	f.eng.Redraw()
	require.NoError(t, f.sync.VerifyVisible(context.Background(), f.h, f.screen(t)))
	assert.Equal(t, 0, f.eng.CountCalls("buffer lines"))
}

func TestSync_VerifyVisibleSkipsWhilePending(t *testing.T) {
	f := newFixture(t, "alpha\nbeta\n", redrawOnly())

	f.eng.Redraw()
	m := f.screen(t)
	f.hostEdit(t, buffer.NewRange(0, 0, 0, 5), "ALPHA")

	require.NoError(t, f.sync.VerifyVisible(context.Background(), f.h, m))
	assert.Equal(t, []string{"ALPHA", "beta"}, f.hostLines(t))
	assert.Equal(t, 0, f.eng.CountCalls("buffer lines"))
}

func TestSync_ReconcileFlushesPending(t *testing.T) {
	f := newFixture(t, "alpha\n", nil)

	f.hostEdit(t, buffer.NewRange(0, 5, 0, 5), "!")
	require.NoError(t, f.sync.Reconcile(context.Background(), f.h))
	assert.Equal(t, []string{"alpha!"}, f.eng.Lines(f.h.Number()))
	assert.Equal(t, []string{"alpha!"}, f.hostLines(t))
}

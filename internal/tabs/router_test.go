package tabs

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/engine/enginetest"
	"github.com/dshills/nvimbed/internal/host/memhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registry map[int]*buffer.Handle

func (r registry) LookupNumber(n int) (*buffer.Handle, bool) {
	h, ok := r[n]
	return h, ok
}

type fixture struct {
	eng    *enginetest.Engine
	host   *memhost.Host
	router *Router
	a, b   *buffer.Handle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	eng := enginetest.New()
	hst := memhost.New(nil)
	reg := registry{}

	open := func(name string) *buffer.Handle {
		path, err := buffer.CanonicalPath(filepath.Join(dir, name))
		require.NoError(t, err)
		n, err := eng.OpenBuffer(ctx, path)
		require.NoError(t, err)
		id, err := hst.Open(ctx, path)
		require.NoError(t, err)

		h := buffer.NewHandle(path)
		require.NoError(t, h.BindEngine(n))
		h.BindHost(id)
		reg[n] = h
		return h
	}

	a := open("a.txt")
	b := open("b.txt")
	return &fixture{eng: eng, host: hst, router: New(eng, hst, reg, nil), a: a, b: b}
}

func TestRouter_HostToEngine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.Equal(t, f.b.Number(), f.eng.Current())

	require.NoError(t, f.host.SetActiveEditor(f.a.HostID()))
	require.NoError(t, f.router.OnHostTabActivated(ctx, f.a))
	assert.Equal(t, f.a.Number(), f.eng.Current())
	assert.Equal(t, Mapping{Editor: f.a.HostID(), Buffer: f.a.Number()}, f.router.Last())
	assert.Equal(t, 1, f.eng.CountCalls("command buffer"))
}

func TestRouter_HostToEngineNoop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.router.OnHostTabActivated(context.Background(), f.b))
	assert.Equal(t, 0, f.eng.CountCalls("command"))
}

func TestRouter_EngineToHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Command(ctx, "buffer "+strconv.Itoa(f.a.Number())))
	require.NoError(t, f.router.OnEngineBufferChanged(ctx, f.a.Number()))
	active, ok := f.host.ActiveEditor()
	require.True(t, ok)
	assert.Equal(t, f.a.HostID(), active)
}

func TestRouter_NoToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Host activates a; the engine follows and reports the switch back.
	require.NoError(t, f.host.SetActiveEditor(f.a.HostID()))
	require.NoError(t, f.router.OnHostTabActivated(ctx, f.a))
	require.NoError(t, f.router.OnEngineBufferChanged(ctx, f.a.Number()))

	// The host re-reports its own activation; nothing else moves.
	require.NoError(t, f.router.OnHostTabActivated(ctx, f.a))

	active, _ := f.host.ActiveEditor()
	assert.Equal(t, f.a.HostID(), active)
	assert.Equal(t, f.a.Number(), f.eng.Current())
	assert.Equal(t, 1, f.eng.CountCalls("command buffer"))
}

func TestRouter_StaleHostActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The host went to a and straight back to b before either
	// activation was handled.
	require.NoError(t, f.host.SetActiveEditor(f.a.HostID()))
	require.NoError(t, f.host.SetActiveEditor(f.b.HostID()))

	require.NoError(t, f.router.OnHostTabActivated(ctx, f.a))
	require.NoError(t, f.router.OnHostTabActivated(ctx, f.b))

	assert.Equal(t, f.b.Number(), f.eng.Current())
	assert.Equal(t, 0, f.eng.CountCalls("command buffer"))
}

func TestRouter_StaleEngineSwitch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Command(ctx, "buffer "+strconv.Itoa(f.a.Number())))
	require.NoError(t, f.eng.Command(ctx, "buffer "+strconv.Itoa(f.b.Number())))

	require.NoError(t, f.router.OnEngineBufferChanged(ctx, f.a.Number()))
	active, _ := f.host.ActiveEditor()
	assert.Equal(t, f.b.HostID(), active, "the engine already left a")

	require.NoError(t, f.router.OnEngineBufferChanged(ctx, f.b.Number()))
	active, _ = f.host.ActiveEditor()
	assert.Equal(t, f.b.HostID(), active)
}

func TestRouter_UntrackedBuffer(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.router.OnEngineBufferChanged(context.Background(), 99))
}

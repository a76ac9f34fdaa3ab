package memhost

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/event"
	"github.com/dshills/nvimbed/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	payloads []event.Payload
}

func (r *recorder) Emit(_ string, p event.Payload) error {
	r.payloads = append(r.payloads, p)
	return nil
}

func tempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestHost_OpenDedupsByPath(t *testing.T) {
	rec := &recorder{}
	h := New(rec)
	ctx := context.Background()
	path := tempFile(t, "Hello there\n")

	id, err := h.Open(ctx, path)
	require.NoError(t, err)

	again, err := h.Open(ctx, filepath.Join(filepath.Dir(path), ".", "doc.txt"))
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Len(t, h.Editors(), 1)

	lines, err := h.Lines(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello there"}, lines)

	canonical, err := buffer.CanonicalPath(path)
	require.NoError(t, err)
	assert.Equal(t, []event.Payload{
		event.HostOpen{Path: canonical, Editor: id},
		event.HostTabActivated{Editor: id},
	}, rec.payloads)
}

func TestHost_OpenMissingFile(t *testing.T) {
	h := New(nil)
	id, err := h.Open(context.Background(), filepath.Join(t.TempDir(), "new.txt"))
	require.NoError(t, err)

	lines, err := h.Lines(id)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, lines)
}

func TestHost_SetTextInRange(t *testing.T) {
	rec := &recorder{}
	h := New(rec)
	id, err := h.Open(context.Background(), tempFile(t, "Hello there"))
	require.NoError(t, err)
	rec.payloads = nil

	r := buffer.NewRange(0, 6, 0, 6)
	require.NoError(t, h.SetTextInRange(id, r, "everyone "))

	text, err := h.Text(id)
	require.NoError(t, err)
	assert.Equal(t, "Hello everyone there", text)
	assert.Equal(t, []event.Payload{event.HostEdit{Editor: id, Range: r, Text: "everyone "}}, rec.payloads)

	err = h.SetTextInRange(id, buffer.NewRange(3, 0, 3, 0), "x")
	assert.ErrorIs(t, err, buffer.ErrInvalidRange)
}

func TestHost_CursorClampedAndDeduped(t *testing.T) {
	rec := &recorder{}
	h := New(rec)
	id, err := h.Open(context.Background(), tempFile(t, "ab\ncdef"))
	require.NoError(t, err)
	rec.payloads = nil

	require.NoError(t, h.SetCursor(id, buffer.Position{Row: 5, Col: 9}))
	pos, err := h.Cursor(id)
	require.NoError(t, err)
	assert.Equal(t, buffer.Position{Row: 1, Col: 4}, pos)

	require.NoError(t, h.SetCursor(id, buffer.Position{Row: 1, Col: 4}))
	assert.Len(t, rec.payloads, 1, "unchanged cursor publishes nothing")
}

func TestHost_ActivateAndClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec)
	ctx := context.Background()
	dir := t.TempDir()

	a, err := h.Open(ctx, filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	b, err := h.Open(ctx, filepath.Join(dir, "b.txt"))
	require.NoError(t, err)

	active, ok := h.ActiveEditor()
	require.True(t, ok)
	assert.Equal(t, b, active)

	rec.payloads = nil
	require.NoError(t, h.SetActiveEditor(b))
	assert.Empty(t, rec.payloads, "activating the active editor publishes nothing")

	require.NoError(t, h.Close(ctx, b))
	active, _ = h.ActiveEditor()
	assert.Equal(t, a, active)
	assert.Equal(t, []event.Payload{event.HostClose{Editor: b}, event.HostTabActivated{Editor: a}}, rec.payloads)

	assert.ErrorIs(t, h.Close(ctx, b), host.ErrUnknownEditor)
	assert.ErrorIs(t, h.Settle("nope"), host.ErrUnknownEditor)
}

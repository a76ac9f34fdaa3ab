package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nvimbed/internal/config"
	"github.com/dshills/nvimbed/internal/engine"
	"github.com/dshills/nvimbed/internal/engine/enginetest"
	"github.com/dshills/nvimbed/internal/event"
)

func fakeEngine(_ context.Context, pub event.Publisher, _ config.EngineConfig, _ *slog.Logger) (engine.Client, error) {
	return enginetest.New(enginetest.WithPublisher(pub), enginetest.WithBufferEvents(true)), nil
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nvimbed.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[sync]\nquiescence = \"10ms\"\n"), 0o644))

	cmd := newRunCmd(fakeEngine)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_HostEditConverges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("world\n"), 0o644))

	out, err := execute(t, path, "--edit", `0:0:hello\n`)
	require.NoError(t, err)
	assert.Contains(t, out, "   1 | hello\n   2 | world\n")
	assert.Contains(t, out, "converged")
	assert.NotContains(t, out, "DIVERGED")
}

func TestRun_BadEdit(t *testing.T) {
	_, err := execute(t, "--edit", "x:0:text")
	assert.ErrorContains(t, err, "bad row")
}

func TestParseEdit(t *testing.T) {
	tests := []struct {
		in      string
		want    hostEdit
		wantErr bool
	}{
		{"0:0:x", hostEdit{0, 0, "x"}, false},
		{"2:5:a:b", hostEdit{2, 5, "a:b"}, false},
		{`1:0:line\n`, hostEdit{1, 0, "line\n"}, false},
		{"1:0:", hostEdit{1, 0, ""}, false},
		{"1:0", hostEdit{}, true},
		{"-1:0:x", hostEdit{}, true},
		{"0:c:x", hostEdit{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEdit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintReports(t *testing.T) {
	var buf bytes.Buffer
	ok := printReports(&buf, nil)
	assert.True(t, ok)
	assert.Empty(t, buf.String())
}

func TestVersion(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "nvimbed dev")
}

package nvim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nvimbed/internal/viewport"
)

// line builds a grid_line tuple writing text at row from column 0.
func line(row int, text string) []any {
	cells := make([]any, 0, len(text))
	for i, r := range text {
		if i == 0 {
			cells = append(cells, []any{string(r), int64(0)})
			continue
		}
		cells = append(cells, []any{string(r)})
	}
	return []any{int64(1), int64(row), int64(0), cells, false}
}

func rowText(s *screen, row int) string {
	return strings.TrimRight(viewport.TextFromCells(s.cells[row]), " ")
}

func TestScreen_GridLine(t *testing.T) {
	s := newScreen(4, 10)

	flushed, err := s.apply([]any{"grid_line", line(0, "hello"), line(1, "world")})
	require.NoError(t, err)
	assert.False(t, flushed)
	assert.Equal(t, "hello", rowText(s, 0))
	assert.Equal(t, "world", rowText(s, 1))

	// Repeat count and explicit highlight.
	_, err = s.apply([]any{"grid_line", []any{int64(1), int64(2), int64(2), []any{
		[]any{"-", int64(7), int64(3)},
	}}})
	require.NoError(t, err)
	assert.Equal(t, "  ---", rowText(s, 2))
	assert.Equal(t, 7, s.cells[2][4].HL)
}

func TestScreen_WideCharacters(t *testing.T) {
	s := newScreen(2, 6)

	_, err := s.apply([]any{"grid_line", []any{int64(1), int64(0), int64(0), []any{
		[]any{"日", int64(0)}, []any{""}, []any{"x"},
	}}})
	require.NoError(t, err)

	assert.Equal(t, 2, s.cells[0][0].Width)
	assert.True(t, s.cells[0][1].IsContinuation())
	assert.Equal(t, "日x", rowText(s, 0))
}

func TestScreen_ResizeAndClear(t *testing.T) {
	s := newScreen(2, 4)

	_, err := s.apply([]any{"grid_resize", []any{int64(1), int64(8), int64(3)}})
	require.NoError(t, err)
	assert.Equal(t, 3, s.rows)
	assert.Equal(t, 8, s.cols)

	_, err = s.apply([]any{"grid_line", line(0, "abc")})
	require.NoError(t, err)
	_, err = s.apply([]any{"grid_clear", []any{int64(1)}})
	require.NoError(t, err)
	assert.Equal(t, "", rowText(s, 0))

	// Rows outside the grid are ignored.
	_, err = s.apply([]any{"grid_line", line(9, "abc")})
	require.NoError(t, err)
}

func TestScreen_Scroll(t *testing.T) {
	tests := []struct {
		name string
		rows int64
		want []string
	}{
		{"up", 1, []string{"b", "c", "c", "d"}},
		{"down", -1, []string{"a", "a", "b", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScreen(4, 3)
			for i, text := range []string{"a", "b", "c", "d"} {
				_, err := s.apply([]any{"grid_line", line(i, text)})
				require.NoError(t, err)
			}

			// Region rows [0, 3), all columns.
			_, err := s.apply([]any{"grid_scroll", []any{
				int64(1), int64(0), int64(3), int64(0), int64(3), tt.rows, int64(0),
			}})
			require.NoError(t, err)

			for i, want := range tt.want {
				assert.Equal(t, want, rowText(s, i), "row %d", i)
			}
		})
	}
}

func TestScreen_Visible(t *testing.T) {
	s := newScreen(5, 10)

	_, _, _, ok := s.visible()
	assert.False(t, ok, "unavailable before the first viewport")

	for i, text := range []string{"ten", "eleven", "twelve"} {
		_, err := s.apply([]any{"grid_line", line(i, text)})
		require.NoError(t, err)
	}

	// A three-line buffer scrolled to row 10 of 13: only three rows hold
	// buffer text, the rest are filler.
	flushed, err := s.apply([]any{"win_viewport", []any{
		int64(1), int64(1000), int64(10), int64(14), int64(10), int64(0), int64(13),
	}})
	require.NoError(t, err)
	assert.False(t, flushed)

	flushed, err = s.apply([]any{"flush", []any{}})
	require.NoError(t, err)
	assert.True(t, flushed)

	top, rows, cells, ok := s.visible()
	require.True(t, ok)
	assert.Equal(t, 10, top)
	assert.Equal(t, 3, rows)
	require.Len(t, cells, 3)
	assert.Equal(t, "eleven", strings.TrimRight(viewport.TextFromCells(cells[1]), " "))

	// The command line row is never part of the window.
	_, err = s.apply([]any{"win_viewport", []any{
		int64(1), int64(1000), int64(0), int64(4), int64(0), int64(0), int64(100),
	}})
	require.NoError(t, err)
	_, rows, _, ok = s.visible()
	require.True(t, ok)
	assert.Equal(t, 4, rows)
}

func TestScreen_FoldedViewportUnavailable(t *testing.T) {
	s := newScreen(5, 10)

	// Nine buffer rows in a four-row window: some lines are folded, so
	// screen rows no longer map one to one onto buffer rows.
	_, err := s.apply([]any{"win_viewport", []any{
		int64(1), int64(1000), int64(0), int64(9), int64(0), int64(0), int64(100),
	}})
	require.NoError(t, err)

	_, _, _, ok := s.visible()
	assert.False(t, ok)
}

func TestScreen_BadEventName(t *testing.T) {
	s := newScreen(1, 1)
	_, err := s.apply([]any{int64(3)})
	assert.Error(t, err)

	flushed, err := s.apply(nil)
	assert.NoError(t, err)
	assert.False(t, flushed)
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 3, toInt(int64(3)))
	assert.Equal(t, 4, toInt(uint64(4)))
	assert.Equal(t, 5, toInt(5))
	assert.Equal(t, 6, toInt(float64(6)))
	assert.Equal(t, 0, toInt("7"))
}

package nvim

import (
	"fmt"

	"github.com/dshills/nvimbed/internal/viewport"
)

// screen mirrors the default grid of an attached UI (ext_linegrid) and
// the viewport of the current window.
type screen struct {
	rows, cols int
	cells      [][]viewport.Cell

	// Current window viewport, 0-indexed; botline is exclusive.
	topline, botline, lineCount int
	viewport                    bool
}

func newScreen(rows, cols int) *screen {
	s := &screen{}
	s.resize(cols, rows)
	return s
}

func (s *screen) resize(cols, rows int) {
	s.rows, s.cols = max(rows, 0), max(cols, 0)
	s.cells = make([][]viewport.Cell, s.rows)
	s.clear()
}

func (s *screen) clear() {
	for r := range s.cells {
		row := make([]viewport.Cell, s.cols)
		for c := range row {
			row[c] = viewport.BlankCell()
		}
		s.cells[r] = row
	}
}

// apply processes one redraw event: its name followed by one argument
// tuple per call batched under it. It reports whether the event was a
// flush, after which the screen is consistent.
func (s *screen) apply(update []any) (flushed bool, err error) {
	if len(update) == 0 {
		return false, nil
	}
	name, ok := update[0].(string)
	if !ok {
		return false, fmt.Errorf("redraw: event name %T", update[0])
	}

	for _, raw := range update[1:] {
		args, _ := raw.([]any)
		switch name {
		case "grid_resize":
			if len(args) >= 3 && toInt(args[0]) == 1 {
				s.resize(toInt(args[1]), toInt(args[2]))
			}
		case "grid_clear":
			s.clear()
		case "grid_line":
			if err := s.line(args); err != nil {
				return false, err
			}
		case "grid_scroll":
			s.scroll(args)
		case "win_viewport":
			// [grid, win, topline, botline, curline, curcol, line_count, ...]
			if len(args) >= 7 {
				s.topline = toInt(args[2])
				s.botline = toInt(args[3])
				s.lineCount = toInt(args[6])
				s.viewport = true
			}
		case "flush":
			flushed = true
		}
	}
	return flushed, nil
}

// line applies a grid_line tuple [grid, row, col_start, cells, ...]. Each
// cell is [text, hl_id?, repeat?]; a missing hl_id repeats the previous one.
func (s *screen) line(args []any) error {
	if len(args) < 4 {
		return fmt.Errorf("grid_line: %d arguments", len(args))
	}
	row, col := toInt(args[1]), toInt(args[2])
	if row < 0 || row >= s.rows {
		return nil
	}
	cells, _ := args[3].([]any)

	hl := 0
	for _, raw := range cells {
		cell, _ := raw.([]any)
		if len(cell) == 0 {
			continue
		}
		text, _ := cell[0].(string)
		if len(cell) >= 2 {
			hl = toInt(cell[1])
		}
		repeat := 1
		if len(cell) >= 3 {
			repeat = toInt(cell[2])
		}

		c := viewport.NewCell(text)
		if text == "" {
			c = viewport.ContinuationCell()
		}
		c.HL = hl
		for range repeat {
			if col >= 0 && col < s.cols {
				s.cells[row][col] = c
			}
			col++
		}
	}
	return nil
}

// scroll applies a grid_scroll tuple [grid, top, bot, left, right, rows, cols].
// Positive rows move the region up.
func (s *screen) scroll(args []any) {
	if len(args) < 6 {
		return
	}
	top, bot := toInt(args[1]), min(toInt(args[2]), s.rows)
	left, right := toInt(args[3]), min(toInt(args[4]), s.cols)
	rows := toInt(args[5])
	if top < 0 || left < 0 || left >= right {
		return
	}

	move := func(dst, src int) {
		copy(s.cells[dst][left:right], s.cells[src][left:right])
	}
	if rows > 0 {
		for i := top; i < bot-rows; i++ {
			move(i, i+rows)
		}
	} else {
		for i := bot - 1; i >= top-rows; i-- {
			move(i, i+rows)
		}
	}
}

// visible returns the buffer rows of the current window as drawn, or
// ok false before the first viewport update. The window occupies the
// screen from row 0; the last row is the command line.
//
// Screen row i is taken to show buffer row top+i, which holds under the
// startup options: no wrapping, no folds, no number, sign or fold column.
// A viewport spanning more buffer rows than the window has screen rows
// means lines are folded, and is reported as unavailable.
func (s *screen) visible() (top, rows int, cells [][]viewport.Cell, ok bool) {
	if !s.viewport {
		return 0, 0, nil, false
	}
	if s.botline-s.topline > max(s.rows-1, 0) {
		return 0, 0, nil, false
	}
	rows = min(s.botline, s.lineCount) - s.topline
	rows = max(min(rows, s.rows-1), 0)

	cells = make([][]viewport.Cell, rows)
	for r := range rows {
		cells[r] = append([]viewport.Cell(nil), s.cells[r]...)
	}
	return s.topline, rows, cells, true
}

// toInt converts a msgpack-decoded number.
func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case uint32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

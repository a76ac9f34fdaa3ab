package viewport

import (
	"fmt"
	"io"
	"sync"
)

// Grid is the visible portion of one buffer as drawn by the engine.
type Grid struct {
	// Top is the 0-indexed buffer row shown on the first screen row.
	Top int

	// Rows and Cols are the grid dimensions in cells.
	Rows int
	Cols int

	// Cells holds Rows rows of Cols cells each.
	Cells [][]Cell
}

// Contains reports whether buffer row is on screen.
func (g Grid) Contains(row int) bool {
	return row >= g.Top && row < g.Top+g.Rows
}

// Model holds the latest grid for one buffer.
type Model struct {
	mu    sync.RWMutex
	grid  Grid
	valid bool
}

// NewModel creates an empty model. Until the first redraw every line
// is unavailable.
func NewModel() *Model {
	return &Model{}
}

// OnRedraw replaces the grid. Rows shorter than cols are padded with
// blanks, longer rows are truncated, and missing rows are blank.
// cells is copied.
func (m *Model) OnRedraw(top, rows, cols int, cells [][]Cell) {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}

	grid := Grid{
		Top:   top,
		Rows:  rows,
		Cols:  cols,
		Cells: make([][]Cell, rows),
	}
	for r := range rows {
		row := make([]Cell, cols)
		var src []Cell
		if r < len(cells) {
			src = cells[r]
		}
		n := copy(row, src)
		for c := n; c < cols; c++ {
			row[c] = BlankCell()
		}
		grid.Cells[r] = row
	}

	m.mu.Lock()
	m.grid = grid
	m.valid = true
	m.mu.Unlock()
}

// Valid reports whether a redraw has been received.
func (m *Model) Valid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.valid
}

// Grid returns the current grid. The returned cells must not be modified.
func (m *Model) Grid() Grid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.grid
}

// VisibleLine returns the text of buffer row as drawn on screen.
// ok is false when the row is outside the viewport.
func (m *Model) VisibleLine(row int) (text string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.valid || !m.grid.Contains(row) {
		return "", false
	}
	return TextFromCells(m.grid.Cells[row-m.grid.Top]), true
}

// VisibleRows returns the half-open range of buffer rows on screen.
func (m *Model) VisibleRows() (first, last int, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.valid {
		return 0, 0, false
	}
	return m.grid.Top, m.grid.Top + m.grid.Rows, true
}

// Dump writes the grid to w, one screen row per line, prefixed with the
// buffer row it shows.
func (m *Model) Dump(w io.Writer) error {
	grid := m.Grid()
	if _, err := fmt.Fprintf(w, "grid top=%d rows=%d cols=%d\n", grid.Top, grid.Rows, grid.Cols); err != nil {
		return err
	}
	for r, row := range grid.Cells {
		if _, err := fmt.Fprintf(w, "%4d |%s|\n", grid.Top+r, TextFromCells(row)); err != nil {
			return err
		}
	}
	return nil
}

package viewport

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Cell is a single screen cell.
type Cell struct {
	// Text is the grapheme drawn in this cell.
	// An empty string marks a continuation cell of a wide character.
	Text string

	// Width is the display width of Text.
	// 0 for continuation cells, 1 for normal chars, 2 for wide chars.
	Width int

	// HL is the engine highlight attribute id.
	HL int
}

// NewCell creates a cell for text, computing its display width.
func NewCell(text string) Cell {
	return Cell{Text: text, Width: runewidth.StringWidth(text)}
}

// BlankCell returns a cell holding a single space.
func BlankCell() Cell {
	return Cell{Text: " ", Width: 1}
}

// ContinuationCell returns the trailing half of a wide character.
func ContinuationCell() Cell {
	return Cell{}
}

// IsContinuation reports whether c is the second cell of a wide character.
func (c Cell) IsContinuation() bool {
	return c.Text == ""
}

// TabWidth is the tab stop used when laying out text.
const TabWidth = 8

// CellsFromText lays text out into exactly cols cells, padding with blanks.
// Tabs expand to the next tab stop. Wide characters take two cells; a wide
// character that would straddle the right edge is replaced by a blank.
func CellsFromText(text string, cols int) []Cell {
	cells := make([]Cell, 0, cols)
	for _, r := range text {
		if len(cells) >= cols {
			break
		}
		if r == '\t' {
			for next := (len(cells)/TabWidth + 1) * TabWidth; len(cells) < next && len(cells) < cols; {
				cells = append(cells, BlankCell())
			}
			continue
		}
		w := runewidth.RuneWidth(r)
		switch {
		case w <= 0:
			continue
		case w == 2 && len(cells)+2 > cols:
			cells = append(cells, BlankCell())
			continue
		}
		cells = append(cells, Cell{Text: string(r), Width: w})
		if w == 2 {
			cells = append(cells, ContinuationCell())
		}
	}
	for len(cells) < cols {
		cells = append(cells, BlankCell())
	}
	return cells
}

// TextFromCells converts a row of cells back into a string.
// Continuation cells are skipped and trailing padding is trimmed.
func TextFromCells(cells []Cell) string {
	var sb strings.Builder
	for _, c := range cells {
		if c.IsContinuation() {
			continue
		}
		sb.WriteString(c.Text)
	}
	return strings.TrimRight(sb.String(), " ")
}

package buffer

import "fmt"

// Position is a host-side cursor or range endpoint.
// Both Row and Col are 0-indexed; Col counts runes within the line.
type Position struct {
	Row int
	Col int
}

// String returns a human-readable representation of the position.
func (p Position) String() string {
	return fmt.Sprintf("(%d:%d)", p.Row, p.Col)
}

// Compare returns -1 if p < other, 0 if p == other, 1 if p > other.
func (p Position) Compare(other Position) int {
	if p.Row < other.Row {
		return -1
	}
	if p.Row > other.Row {
		return 1
	}
	if p.Col < other.Col {
		return -1
	}
	if p.Col > other.Col {
		return 1
	}
	return 0
}

// Before returns true if p comes before other.
func (p Position) Before(other Position) bool {
	return p.Compare(other) < 0
}

// After returns true if p comes after other.
func (p Position) After(other Position) bool {
	return p.Compare(other) > 0
}

// EnginePosition is an engine-side cursor position.
// Both Row and Col are 1-indexed.
type EnginePosition struct {
	Row int
	Col int
}

// String returns a human-readable representation of the position.
func (p EnginePosition) String() string {
	return fmt.Sprintf("[%d,%d]", p.Row, p.Col)
}

// IsZero reports whether p is the unset position.
func (p EnginePosition) IsZero() bool {
	return p.Row == 0 && p.Col == 0
}

// Range is a host text range. Start is inclusive, End is exclusive.
type Range struct {
	Start Position
	End   Position
}

// NewRange creates a Range from two row/column pairs.
func NewRange(startRow, startCol, endRow, endCol int) Range {
	return Range{
		Start: Position{Row: startRow, Col: startCol},
		End:   Position{Row: endRow, Col: endCol},
	}
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%s-%s]", r.Start, r.End)
}

// IsEmpty returns true if the range has zero length.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// IsValid returns true if Start does not come after End.
func (r Range) IsValid() bool {
	return !r.Start.After(r.End)
}

package buffer

import (
	"fmt"
	"strings"
)

// Origin identifies which side produced an edit.
type Origin uint8

const (
	// OriginHost marks edits made in the host editor.
	OriginHost Origin = iota + 1

	// OriginEngine marks edits made in the modal-editing engine.
	OriginEngine
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case OriginHost:
		return "host"
	case OriginEngine:
		return "engine"
	default:
		return "unknown"
	}
}

// Opposite returns the side an edit of this origin must be sent to.
func (o Origin) Opposite() Origin {
	if o == OriginHost {
		return OriginEngine
	}
	return OriginHost
}

// EditKind categorizes an edit operation.
type EditKind uint8

const (
	// EditInsert adds text without removing any.
	EditInsert EditKind = iota + 1

	// EditDelete removes text without adding any.
	EditDelete

	// EditReplace removes text and adds new text.
	EditReplace
)

// String returns the kind name.
func (k EditKind) String() string {
	switch k {
	case EditInsert:
		return "insert"
	case EditDelete:
		return "delete"
	case EditReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// EditOperation is one content mutation expressed as a line splice:
// lines [First, Last) are replaced by Lines.
//
// Operations are transient. They are created per change notification,
// applied, and discarded.
type EditOperation struct {
	Kind   EditKind
	Origin Origin
	First  int
	Last   int
	Lines  []string
}

// String returns a human-readable representation of the operation.
func (op EditOperation) String() string {
	return fmt.Sprintf("%s %s [%d,%d) -> %d lines", op.Origin, op.Kind, op.First, op.Last, len(op.Lines))
}

// Same reports whether two operations describe the same splice,
// ignoring origin and kind.
func (op EditOperation) Same(other EditOperation) bool {
	if op.First != other.First || op.Last != other.Last || len(op.Lines) != len(other.Lines) {
		return false
	}
	for i := range op.Lines {
		if op.Lines[i] != other.Lines[i] {
			return false
		}
	}
	return true
}

// TextEdit is a host-side text replacement.
type TextEdit struct {
	Range Range
	Text  string
}

// String returns a human-readable representation of the edit.
func (e TextEdit) String() string {
	return fmt.Sprintf("%s <- %q", e.Range, e.Text)
}

// Normalize returns lines with the buffer invariant applied: never empty.
func Normalize(lines []string) []string {
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// Clone returns a copy of lines.
func Clone(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// SplitText splits text into lines on "\n".
func SplitText(text string) []string {
	return strings.Split(text, "\n")
}

// JoinLines joins lines with "\n".
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// ApplyText applies a host text edit to lines and returns the new lines
// along with the minimal line splice the edit corresponds to.
//
// Rows must lie within the buffer and Start must not come after End.
// Columns past the end of a line are clipped to its length, as the host does.
// lines is never modified.
func ApplyText(lines []string, r Range, text string) ([]string, EditOperation, error) {
	lines = Normalize(lines)
	n := len(lines)

	if !r.IsValid() {
		return nil, EditOperation{}, rangeErr("apply text", n, "start %s after end %s", r.Start, r.End)
	}
	if r.Start.Row < 0 || r.Start.Col < 0 || r.End.Row >= n {
		return nil, EditOperation{}, rangeErr("apply text", n, "range %s outside buffer", r)
	}

	startLine := []rune(lines[r.Start.Row])
	endLine := []rune(lines[r.End.Row])
	startCol := min(r.Start.Col, len(startLine))
	endCol := min(r.End.Col, len(endLine))
	if r.Start.Row == r.End.Row && startCol > endCol {
		return nil, EditOperation{}, rangeErr("apply text", n, "start %s after end %s", r.Start, r.End)
	}

	joined := string(startLine[:startCol]) + text + string(endLine[endCol:])
	repl := SplitText(joined)

	out := make([]string, 0, n-(r.End.Row-r.Start.Row+1)+len(repl))
	out = append(out, lines[:r.Start.Row]...)
	out = append(out, repl...)
	out = append(out, lines[r.End.Row+1:]...)

	op := EditOperation{
		Kind:  classify(r, text),
		First: r.Start.Row,
		Last:  r.End.Row + 1,
		Lines: repl,
	}
	return out, op, nil
}

func classify(r Range, text string) EditKind {
	switch {
	case r.IsEmpty():
		return EditInsert
	case text == "":
		return EditDelete
	default:
		return EditReplace
	}
}

// ApplySplice replaces lines [first, last) with repl and returns the result.
// A last of -1 means the end of the buffer. lines is never modified.
func ApplySplice(lines []string, first, last int, repl []string) ([]string, error) {
	n := len(lines)
	if last < 0 {
		last = n
	}
	if first < 0 || first > last || last > n {
		return nil, rangeErr("apply splice", n, "splice [%d,%d) outside buffer", first, last)
	}

	out := make([]string, 0, n-(last-first)+len(repl))
	out = append(out, lines[:first]...)
	out = append(out, repl...)
	out = append(out, lines[last:]...)
	return Normalize(out), nil
}

// SpliceToText converts the line splice [first, last) -> repl on lines into
// the host text edit producing the same result. ok is false when the splice
// is empty.
func SpliceToText(lines []string, first, last int, repl []string) (edit TextEdit, ok bool, err error) {
	lines = Normalize(lines)
	n := len(lines)
	if last < 0 {
		last = n
	}
	if first < 0 || first > last || last > n {
		return TextEdit{}, false, rangeErr("splice to text", n, "splice [%d,%d) outside buffer", first, last)
	}
	if first == last && len(repl) == 0 {
		return TextEdit{}, false, nil
	}

	lineEnd := func(row int) Position {
		return Position{Row: row, Col: len([]rune(lines[row]))}
	}

	switch {
	case last < n:
		text := ""
		if len(repl) > 0 {
			text = JoinLines(repl) + "\n"
		}
		return TextEdit{
			Range: Range{Start: Position{Row: first}, End: Position{Row: last}},
			Text:  text,
		}, true, nil

	case first == n:
		if len(repl) == 0 {
			return TextEdit{}, false, nil
		}
		end := lineEnd(n - 1)
		return TextEdit{
			Range: Range{Start: end, End: end},
			Text:  "\n" + JoinLines(repl),
		}, true, nil

	case len(repl) > 0:
		return TextEdit{
			Range: Range{Start: Position{Row: first}, End: lineEnd(n - 1)},
			Text:  JoinLines(repl),
		}, true, nil

	case first > 0:
		return TextEdit{
			Range: Range{Start: lineEnd(first - 1), End: lineEnd(n - 1)},
		}, true, nil

	default:
		return TextEdit{
			Range: Range{Start: Position{}, End: lineEnd(n - 1)},
		}, true, nil
	}
}

// Diff computes the smallest single splice turning old into next by trimming
// the common prefix and suffix. changed is false when the slices are equal.
func Diff(old, next []string) (first, last int, repl []string, changed bool) {
	prefix := 0
	for prefix < len(old) && prefix < len(next) && old[prefix] == next[prefix] {
		prefix++
	}
	if prefix == len(old) && prefix == len(next) {
		return 0, 0, nil, false
	}

	suffix := 0
	for suffix < len(old)-prefix && suffix < len(next)-prefix &&
		old[len(old)-1-suffix] == next[len(next)-1-suffix] {
		suffix++
	}

	repl = Clone(next[prefix : len(next)-suffix])
	return prefix, len(old) - suffix, repl, true
}

// NormalizeLine strips trailing whitespace. Both sides may pad lines
// independently, so convergence checks compare normalized lines.
func NormalizeLine(line string) string {
	return strings.TrimRight(line, " \t\r")
}

// LinesEqual compares two line slices modulo trailing whitespace.
func LinesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if NormalizeLine(a[i]) != NormalizeLine(b[i]) {
			return false
		}
	}
	return true
}

// Equal compares two line slices exactly.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SplitFile splits file content into lines. A trailing newline terminates
// the last line rather than starting an empty one, and "\r\n" line endings
// are accepted.
func SplitFile(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return SplitText(text)
}

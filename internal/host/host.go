// Package host defines the contract with the GUI host editor.
//
// The host owns editors (tabs or pane items), each showing one document.
// Host coordinates are 0-indexed rows and rune columns. Notifications flow
// from the host as events (see package event): opens, closes, edits, the
// "stopped changing" signal, tab activation and cursor moves. A host
// reports every change to its content, including changes made through
// SetTextInRange.
package host

import (
	"context"
	"errors"

	"github.com/dshills/nvimbed/internal/buffer"
)

// ErrUnknownEditor is returned for an editor id the host does not know.
var ErrUnknownEditor = errors.New("unknown host editor")

// Host is the GUI host editor's buffer model.
type Host interface {
	// Open opens path in an editor, reusing an existing editor for the
	// same file, and makes it active.
	Open(ctx context.Context, path string) (buffer.EditorID, error)

	// Close closes an editor.
	Close(ctx context.Context, id buffer.EditorID) error

	// Editors returns the open editors in opening order.
	Editors() []buffer.EditorID

	// Lines returns an editor's content.
	Lines(id buffer.EditorID) ([]string, error)

	// SetTextInRange replaces the text in r.
	SetTextInRange(id buffer.EditorID, r buffer.Range, text string) error

	// Cursor returns an editor's cursor.
	Cursor(id buffer.EditorID) (buffer.Position, error)

	// SetCursor moves an editor's cursor.
	SetCursor(id buffer.EditorID, pos buffer.Position) error

	// ActiveEditor returns the active editor, if any.
	ActiveEditor() (buffer.EditorID, bool)

	// SetActiveEditor activates an editor.
	SetActiveEditor(id buffer.EditorID) error
}

package event

import (
	"github.com/dshills/nvimbed/internal/buffer"
	"github.com/dshills/nvimbed/internal/viewport"
)

// Event topics.
const (
	TopicHostOpened       Topic = "host.buffer.opened"
	TopicHostClosed       Topic = "host.buffer.closed"
	TopicHostChanged      Topic = "host.buffer.changed"
	TopicHostSettled      Topic = "host.buffer.settled"
	TopicHostTabActivated Topic = "host.tab.activated"
	TopicHostCursorMoved  Topic = "host.cursor.moved"

	TopicEngineOpened   Topic = "engine.buffer.opened"
	TopicEngineClosed   Topic = "engine.buffer.closed"
	TopicEngineChanged  Topic = "engine.buffer.changed"
	TopicEngineSwitched Topic = "engine.buffer.switched"
	TopicEngineCursor   Topic = "engine.cursor.moved"
	TopicEngineRedrawn  Topic = "engine.screen.redrawn"
)

// Sources used in Metadata.Source.
const (
	SourceHost   = "host"
	SourceEngine = "engine"
)

// HostOpen is published when the host opens a document in an editor.
type HostOpen struct {
	Path   string
	Editor buffer.EditorID
}

func (HostOpen) Topic() Topic { return TopicHostOpened }

// HostClose is published when a host editor is closed.
type HostClose struct {
	Editor buffer.EditorID
}

func (HostClose) Topic() Topic { return TopicHostClosed }

// HostEdit is published when text in a host editor changes.
type HostEdit struct {
	Editor buffer.EditorID
	Range  buffer.Range
	Text   string
}

func (HostEdit) Topic() Topic { return TopicHostChanged }

// HostSettled is published when a host editor stops changing.
type HostSettled struct {
	Editor buffer.EditorID
}

func (HostSettled) Topic() Topic { return TopicHostSettled }

// HostTabActivated is published when the user activates a host tab.
type HostTabActivated struct {
	Editor buffer.EditorID
}

func (HostTabActivated) Topic() Topic { return TopicHostTabActivated }

// HostCursorMoved is published when the host cursor moves.
type HostCursorMoved struct {
	Editor   buffer.EditorID
	Position buffer.Position
}

func (HostCursorMoved) Topic() Topic { return TopicHostCursorMoved }

// EngineOpen is published when the engine loads a file into a buffer.
type EngineOpen struct {
	Buffer int
	Path   string
}

func (EngineOpen) Topic() Topic { return TopicEngineOpened }

// EngineClose is published when an engine buffer is deleted.
type EngineClose struct {
	Buffer int
}

func (EngineClose) Topic() Topic { return TopicEngineClosed }

// EngineEdit is published when the engine replaces lines [First, Last)
// of a buffer with Lines. Last of -1 means the end of the buffer.
type EngineEdit struct {
	Buffer int
	First  int
	Last   int
	Lines  []string
}

func (EngineEdit) Topic() Topic { return TopicEngineChanged }

// BufferSwitched is published when the engine's current buffer changes.
type BufferSwitched struct {
	Buffer int
}

func (BufferSwitched) Topic() Topic { return TopicEngineSwitched }

// CursorMoved is published when the engine cursor moves.
// Row and Col are 1-indexed.
type CursorMoved struct {
	Buffer int
	Row    int
	Col    int
}

func (CursorMoved) Topic() Topic { return TopicEngineCursor }

// Redraw is published when the engine finishes drawing a screen.
// Top is the 0-indexed buffer row on the first screen row.
type Redraw struct {
	Buffer int
	Top    int
	Rows   int
	Cols   int
	Cells  [][]viewport.Cell
}

func (Redraw) Topic() Topic { return TopicEngineRedrawn }

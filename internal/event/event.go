package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Topic is a hierarchical event type using dot notation.
type Topic string

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Domain returns the first segment of the topic ("host" or "engine").
func (t Topic) Domain() string {
	s := string(t)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Payload is implemented by every event variant.
type Payload interface {
	Topic() Topic
}

// Metadata contains standard information attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source identifies the component that published the event.
	Source string
}

// Event is one notification. Events are immutable once created.
type Event struct {
	Payload  Payload
	Metadata Metadata
}

// New creates an event for payload published by source.
func New(payload Payload, source string) Event {
	return Event{
		Payload: payload,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// Topic returns the payload's topic, or "" for an empty event.
func (e Event) Topic() Topic {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Topic()
}

// Publisher accepts events from producers. Queue implements it.
type Publisher interface {
	Emit(source string, payload Payload) error
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Emit(string, Payload) error { return nil }

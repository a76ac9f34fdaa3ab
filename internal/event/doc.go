// Package event defines the notifications exchanged between the host, the
// engine and the synchronization core.
//
// Every notification is an Event: a typed Payload plus Metadata (a unique
// id, a timestamp and the publishing source). Payloads are a closed set of
// variants, one per kind of notification, each with a hierarchical topic:
//
//	host.buffer.opened      - the host opened a document in an editor
//	host.buffer.changed     - the user edited text in the host
//	host.buffer.settled     - the host stopped changing (quiescence)
//	engine.buffer.changed   - the engine reported a line splice
//	engine.cursor.moved     - the engine cursor moved
//	engine.screen.redrawn   - the engine redrew the visible grid
//
// Producers push events into a Queue, which never blocks the producer. The
// coordinator consumes the queue from a single goroutine and fans events out
// to per-buffer workers.
package event

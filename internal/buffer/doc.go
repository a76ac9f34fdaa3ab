// Package buffer holds the shared data model of a synchronized document.
//
// A Handle unifies one document's identities on both sides of the bridge:
// the engine buffer number assigned by Neovim and the editor identifier
// assigned by the host. It also carries the line snapshot used for diffing,
// the engine shadow (the last content known to be in the engine), the queue
// of host edits not yet forwarded, and the expected echoes used to suppress
// feedback loops.
//
// # Coordinates
//
// Host positions are 0-indexed on both axes. Engine positions are 1-indexed
// on both axes. Columns count characters (runes) on the host side.
//
// # Lines
//
// Buffers are modeled as ordered line slices without trailing newlines. A
// buffer always has at least one line; an empty document is [""].
//
// # Thread Safety
//
// Handle is safe for concurrent use. Mutable synchronization state is only
// reachable through Handle.With, which holds the handle's mutex for the
// duration of the callback.
package buffer

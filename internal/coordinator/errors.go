package coordinator

import "errors"

// Errors reported by the coordinator.
var (
	// ErrUnknownHandle indicates an event for a document that is not (or no
	// longer) registered. Late notifications after a close produce it.
	ErrUnknownHandle = errors.New("unknown buffer handle")

	// ErrUnnamedBuffer indicates an engine buffer without a file name.
	// Such buffers are not synchronized.
	ErrUnnamedBuffer = errors.New("engine buffer has no file name")

	// ErrIdentityConflict indicates the engine opened a second buffer for a
	// path that is already mapped. It is logged and recovered.
	ErrIdentityConflict = errors.New("identity conflict")
)

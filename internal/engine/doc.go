// Package engine defines the contract with the modal-editing engine.
//
// The engine is an external process reached over RPC. Client is the only
// surface the synchronization core calls; notifications flow the other way
// as events published by the concrete client (see package engine/nvim).
//
// Engine coordinates follow the engine's conventions: buffer numbers are
// positive integers, cursor rows and columns are 1-indexed, and line ranges
// are 0-indexed half-open splices [start, end) where an end of -1 means the
// end of the buffer.
//
// # Failures
//
// Calls fail in two ways. A TransportError (matching ErrTransport) means
// the engine could not be reached or did not answer in time; such calls
// are retried by WithRetry. Any other error means the engine answered and
// rejected the request; those are never retried.
package engine

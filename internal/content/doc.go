// Package content keeps document text identical in the host and the engine.
//
// Each buffer.Handle carries a snapshot of the host content and a shadow of
// the engine content. Host edits update the snapshot at once and are queued;
// after a quiet period (or the host's "stopped changing" signal) the
// snapshot is diffed against the shadow and sent to the engine as a single
// line splice. Engine edits update the shadow and are applied to the host as
// a text replacement.
//
// Every change this package applies to one side will be reported back by
// that side. Such echoes are recorded before the change is made and dropped
// when they arrive, so changes never bounce between the two sides.
//
// Text is propagated exactly. Screen checks compare modulo trailing
// whitespace (see buffer.LinesEqual), so a difference only in trailing
// whitespace never triggers a reconcile.
package content

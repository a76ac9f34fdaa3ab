// Package nvim implements engine.Client over a Neovim msgpack-RPC session.
//
// A Client is created from an embedded child process (Embed) or from a
// socket address of an already running Neovim (Dial). On start it installs
// a small Lua script that attaches to every file buffer and forwards line
// changes, buffer lifecycle and cursor moves as RPC notifications. Those
// notifications, together with the UI redraw stream when a screen size is
// configured, are published as events:
//
//	nvimbed_open   -> event.EngineOpen
//	nvimbed_enter  -> event.BufferSwitched
//	nvimbed_close  -> event.EngineClose
//	nvimbed_lines  -> event.EngineEdit
//	nvimbed_cursor -> event.CursorMoved
//	redraw         -> event.Redraw
//
// Every call is bounded by the configured timeout. Timeouts and a closed
// session are reported as engine transport failures.
package nvim

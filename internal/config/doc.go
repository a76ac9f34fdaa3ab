// Package config provides nvimbed's settings.
//
// Settings are merged from three layers, later layers winning:
//
//  1. built-in defaults
//  2. a TOML or YAML file (chosen by extension)
//  3. NVIMBED_* environment variables
//
// Section accessors (Sync, Engine, Logging) return typed snapshots. A
// value of the wrong type falls back to its default and is recorded in
// Errors. Durations may be written as strings ("300ms") or as integer
// milliseconds.
//
// Reload re-reads the file and environment; the watcher subpackage calls
// it when the file changes on disk.
package config

// Package process runs and supervises the engine's child process.
//
// The Supervisor starts commands with their standard input and output
// piped, so the caller can speak an RPC protocol over them, and forwards
// each line the child writes to standard error to the logger:
//
//	sup := process.NewSupervisor(process.WithLogger(logger))
//	defer sup.Shutdown(2 * time.Second)
//
//	proc, err := sup.Start("nvim", exec.Command("nvim", "--embed", "--clean"))
//	if err != nil {
//	    return err
//	}
//	// proc.Stdout and proc.Stdin carry the RPC stream.
//
// Shutdown sends SIGTERM to every running child, waits up to the timeout and
// then kills what is left.
package process

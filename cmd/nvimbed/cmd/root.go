// Package cmd implements the nvimbed command line.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nvimbed",
		Short: "Keep a host editor's buffers in sync with an embedded Neovim",
		Long: `nvimbed synchronizes documents between a host editor and a Neovim
instance used as its modal-editing engine. Edits, cursor moves and tab
switches on either side are mirrored to the other.

The run command drives a session against an in-memory host, which is
useful for checking that a Neovim setup converges.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(nil), newVersionCmd())
	return root
}

// Execute runs the command line.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		root.PrintErrln("Error:", err)
	}
	return err
}

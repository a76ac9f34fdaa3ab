// Package main is the entry point for nvimbed.
package main

import (
	"os"

	"github.com/dshills/nvimbed/cmd/nvimbed/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

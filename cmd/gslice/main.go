// Package main implements the go-program-slicer CLI (gslice).
// It builds control-flow, dependence and slice views of Go functions.
package main

import (
	"os"

	"github.com/l3aro/go-program-slicer/cmd/gslice/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	root := commands.NewRootCmd()
	root.Version = version
	if buildTime != "" {
		root.Version = version + " (built " + buildTime + ")"
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

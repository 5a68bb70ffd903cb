// Package main is the entry point of the flowise document store API.
package main

import (
	"os"

	"github.com/viola622/Flowise/cmd/flowise/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

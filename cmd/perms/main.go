// Package main is the entry point for the perms CLI.
package main

import (
	"fmt"
	"os"

	"github.com/kubiakdev/perms/cmd/perms/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

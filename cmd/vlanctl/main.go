package main

import (
	"errors"
	"fmt"
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	rootCmd := newRootCmd(defaultEnvironment())
	if err := rootCmd.Execute(); err != nil {
		// a failed operation has already been reported with its result
		if !errors.Is(err, errOperationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

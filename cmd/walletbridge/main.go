// Package main is the entry point for the walletbridge CLI.
package main

import (
	"fmt"
	"os"

	"github.com/sigweihq/walletbridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

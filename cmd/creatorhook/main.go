// Package main is the entry point for the creatorhook CLI.
package main

import (
	"os"

	"github.com/KafClaw/creatorhook/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

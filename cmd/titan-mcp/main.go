package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "titan-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse subcommand from os.Args
	subcmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "serve":
		return cmdServe(args)
	case "version":
		fmt.Println("titan-mcp 0.1.0")
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nUsage: titan-mcp [serve|version]", subcmd)
	}
}

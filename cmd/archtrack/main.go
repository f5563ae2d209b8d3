// archtrack: Architecture Change Tracking MCP Server
//
// Records architecture changes in an append-only log, analyzes their
// impact, and keeps PRP specification documents in sync with reality.
//
// Usage:
//
//	archtrack serve    # Start MCP server (stdio transport)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	archserver "github.com/mvaldes/archtrack/internal/server"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("archtrack v%s\n", archserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := archserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Graceful shutdown on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	_ = ctx // stdio server manages its own lifecycle

	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `archtrack v%s — Architecture Change Tracking MCP Server

Usage:
  archtrack serve      Start the MCP server (stdio transport)
  archtrack version    Print the version
  archtrack help       Show this help

Environment:
  ARCHTRACK_STORE      'sqlite' to store changes in arch/changes.db
                       instead of one JSON file per change (default: file)
`, archserver.Version)
}

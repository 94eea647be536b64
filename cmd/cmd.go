// Package cmd provides the widgetd CLI commands.
//
// Commands:
//   - serve: run the widget protocol server
//   - version: print version information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"os"
)

// Version is injected at build time via ldflags. It identifies the
// server to clients and pins the asset hash, so builds that ship
// assets must set it to the same value the asset pipeline used.
var Version = "development"

// Execute is the main entry point for the widgetd CLI.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println(`widgetd - declarative widget protocol server

Usage:
  widgetd <command>

Commands:
  serve      Run the widget protocol server
  version    Print version information
  help       Show this help

Configuration is read from ~/.widgetd/config.yaml, ./config.yaml and
WIDGETD_* environment variables.`)
}

// runVersion prints version information.
func runVersion() {
	fmt.Printf("widgetd %s\n", Version)
}

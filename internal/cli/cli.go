// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command routing for vibeforge.

package cli

import (
	"fmt"
	"os"
	"runtime"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota // default: interactive chat
	CmdServe
	CmdSessions
	CmdShow
	CmdConfig
	CmdVersion
	CmdHelp
)

const usageText = `vibeforge - chat-driven React component builder

Describe the app you want; vibeforge streams back an explanation and a
complete component, keeps every turn durable locally, and renders a live
preview workspace.

Usage:
  vibeforge                      Start the chat TUI (default)
  vibeforge serve                Run the HTTP API with SSE streaming
  vibeforge sessions [--watch]   List saved sessions (live with --watch)
  vibeforge show <session-id>    Print a session transcript
  vibeforge config [show|set|path|init-key]
                                 Configuration management
  vibeforge version              Show version information
  vibeforge help                 Show this help

Flags:
  --addr host:port   Listen address for serve (default from config)
  --model name       Override the configured model
  --json             Machine-readable output where supported

Environment:
  OPENROUTER_API_KEY    API key (overrides config; may be stored
                        encrypted with "vibeforge config set api_key")
  VIBEFORGE_MODEL       Model override
  VIBEFORGE_ADDR        Serve address override
`

// Parse maps os.Args onto a command and its remaining arguments.
func Parse() (Command, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return CmdTUI, nil
	}

	switch args[0] {
	case "serve":
		return CmdServe, args[1:]
	case "sessions", "session", "ls":
		return CmdSessions, args[1:]
	case "show":
		return CmdShow, args[1:]
	case "config":
		return CmdConfig, args[1:]
	case "version", "--version", "-v":
		return CmdVersion, args[1:]
	case "help", "--help", "-h":
		return CmdHelp, args[1:]
	default:
		// Unknown commands fall through to help rather than silently
		// starting the TUI.
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		return CmdHelp, args
	}
}

// HandleVersion prints build information.
func HandleVersion(args []string) {
	parsed := NewArgParser(args)
	if parsed.BoolFlag("json") {
		fmt.Printf(`{"version":%q,"commit":%q,"built":%q,"go":%q}`+"\n",
			Version, GitCommit, BuildDate, runtime.Version())
		return
	}
	fmt.Printf("vibeforge %s\n", Version)
	fmt.Printf("  commit: %s\n", GitCommit)
	fmt.Printf("  built:  %s\n", BuildDate)
	fmt.Printf("  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// HandleHelp prints usage.
func HandleHelp() {
	fmt.Print(usageText)
}

// Fatalf prints an error to stderr and exits nonzero.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

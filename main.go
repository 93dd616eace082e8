// vibeforge - chat-driven React component builder.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/vibeforge/internal/cli"
	"github.com/jeranaias/vibeforge/internal/tui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdServe:
		if err := cli.HandleServe(args); err != nil {
			cli.Fatalf("%v", err)
		}
	case cli.CmdSessions:
		if err := cli.HandleSessions(args); err != nil {
			cli.Fatalf("%v", err)
		}
	case cli.CmdShow:
		if err := cli.HandleShow(args); err != nil {
			cli.Fatalf("%v", err)
		}
	case cli.CmdConfig:
		if err := cli.HandleConfig(args); err != nil {
			cli.Fatalf("%v", err)
		}
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	}
}

func runTUI(args []string) {
	if !cli.IsTTY() {
		fmt.Fprintln(os.Stderr, "vibeforge needs a terminal; try 'vibeforge serve' or 'vibeforge help'")
		os.Exit(1)
	}

	parsed := cli.NewArgParser(args)
	rt, err := cli.NewRuntime(parsed.Flag("model"))
	if err != nil {
		cli.Fatalf("%v", err)
	}
	defer rt.Close()

	// --session resumes an existing conversation.
	view := tui.New(rt.Service, nil, rt.Config.UI.WordWrap)
	if id := parsed.Flag("session"); id != "" {
		session, err := rt.Service.Session(id)
		if err != nil {
			cli.Fatalf("session %s: %v", id, err)
		}
		view = tui.New(rt.Service, session, rt.Config.UI.WordWrap)
	}

	program := tea.NewProgram(view, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		cli.Fatalf("TUI error: %v", err)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses command-line arguments and runs the non-TUI commands:
// serve, sessions, show, config, and version. The default invocation with
// no command starts the interactive chat TUI (handled by main).
package cli

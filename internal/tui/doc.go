// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui provides the interactive terminal front-end.
//
// A Bubble Tea model drives one chat session: a viewport transcript, a
// textarea input, and a spinner while a generation is in flight. Stream
// deltas are batched through a flush buffer and drained on a fixed tick so
// redraw cost stays bounded no matter how fast the model streams.
package tui

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/vibeforge/internal/model"
	"github.com/jeranaias/vibeforge/internal/segment"
)

// EventKind discriminates the events emitted during one generation.
type EventKind int

const (
	// EventDelta carries one incremental content delta, in arrival order.
	EventDelta EventKind = iota

	// EventTitle reports the generated (or fallback) session title.
	// Emitted at most once per session lifetime.
	EventTitle

	// EventDone carries the finalized AI message with its authoritative
	// segments and dependency map. Always the last event on success.
	EventDone

	// EventError carries the synthetic apology message that replaced a
	// failed generation, plus the underlying error. Always the last
	// event on failure.
	EventError
)

// Event is one item on the generation event stream. The channel returned
// by SendMessage is a bounded, ordered sequence of these; it is closed
// after the terminal EventDone or EventError.
type Event struct {
	Kind EventKind

	// EventDelta
	Delta string

	// EventDone / EventError
	Message      *model.Message
	Segments     []segment.Segment
	Dependencies map[string]string

	// EventTitle
	Title string

	// EventError
	Err error
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat orchestrates the full send-message lifecycle.
//
// One SendMessage call walks the whole pipeline: persist the user turn,
// create the AI placeholder, stream the model response through the
// throttled sync controller, re-parse the complete buffer exactly once on
// finalize, persist the authoritative message, hand generated code to the
// preview collaborator, and generate a session title on the first
// exchange. Progress is reported on a bounded event channel the consumer
// pulls from. The TUI and the HTTP server both drive it the same way.
//
// Failure policy: a request or stream-read failure is absorbed into a
// single synthetic apology message replacing the partial AI turn; nothing
// escapes SendMessage's goroutine as a panic or unhandled error. At most
// one generation is in flight per session.
package chat

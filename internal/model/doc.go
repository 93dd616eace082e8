// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// Everything the application persists is a document in the local document
// store, discriminated by a `type` field: "user" and "ai" for the two
// message kinds, "session" for the session record that groups them, and
// "screenshot" for captured previews. The model package owns the shapes
// and the conversion to and from store documents; it has no I/O of its own.
package model

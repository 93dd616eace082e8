// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package docstore provides the local document store backing chat history.
//
// The store is a thin key/document API over a single SQLite database:
// Get by id, Put with last-write-wins per id, and ordered queries over the
// `type` discriminator and session ownership. Documents carry their full
// JSON body; the store indexes only the columns needed for ordering and
// filtering and is otherwise agnostic to document shape.
//
// Live queries re-run a query and push fresh results to a subscriber
// whenever a document is written, either by this process (notified
// directly after commit) or by another process sharing the database file
// (detected with fsnotify on the database and its WAL, debounced).
package docstore

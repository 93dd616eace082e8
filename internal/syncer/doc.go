// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package syncer decouples fast delta arrival from slow propagation.
//
// During generation the model can emit many content deltas per second,
// while each propagation (a document-store write, a UI push) is
// comparatively expensive. The Controller owns the growing stream buffer
// and coalesces propagation behind a single reschedulable timer: at most
// one propagation is scheduled or in flight at any instant, consecutive
// propagations are never closer together than a configured minimum, and
// the value sent is always the buffer's content at fire time, never a
// stale snapshot captured when the timer was armed.
//
// The final Flush at stream end supersedes any pending timer, so the last
// write for a generation is always the complete concatenation of every
// delta in arrival order.
package syncer

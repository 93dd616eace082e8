// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// FLUSH BUFFER
// =============================================================================

// flushBuffer batches stream deltas between redraws. Deltas arrive from the
// generation goroutine; the Bubble Tea loop drains the buffer on its tick.
// Without batching a fast stream forces a full redraw per token.
//
// PERFORMANCE: Caps redraw work at the tick rate regardless of stream speed.
type flushBuffer struct {
	mu         sync.Mutex
	buf        strings.Builder
	tokenCount int
	lastFlush  time.Time

	batchSize   int
	minInterval time.Duration
}

const (
	defaultBatchSize   = 15
	defaultTickRate    = 33 * time.Millisecond // ~30fps
)

func newFlushBuffer() *flushBuffer {
	return &flushBuffer{
		batchSize:   defaultBatchSize,
		minInterval: defaultTickRate,
		lastFlush:   time.Now(),
	}
}

// Write appends one delta. Called from the streaming goroutine.
func (b *flushBuffer) Write(delta string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.WriteString(delta)
	b.tokenCount++
}

// Flush returns accumulated content when either the batch size or the time
// threshold is reached. Called from the Bubble Tea loop.
func (b *flushBuffer) Flush() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buf.Len() == 0 {
		return "", false
	}
	if b.tokenCount < b.batchSize && time.Since(b.lastFlush) < b.minInterval {
		return "", false
	}
	return b.drainLocked()
}

// ForceFlush drains everything regardless of thresholds; used when the
// stream finishes or errors so no tail content is lost.
func (b *flushBuffer) ForceFlush() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buf.Len() == 0 {
		return "", false
	}
	return b.drainLocked()
}

// Reset discards buffered content; used when a stream is abandoned.
func (b *flushBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
	b.tokenCount = 0
	b.lastFlush = time.Now()
}

func (b *flushBuffer) drainLocked() (string, bool) {
	content := b.buf.String()
	b.buf.Reset()
	b.tokenCount = 0
	b.lastFlush = time.Now()
	return content, true
}

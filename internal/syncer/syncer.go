// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncer

import (
	"log"
	"strings"
	"sync"
	"time"
)

// Default throttle intervals. The base delay batches the burst of deltas
// that typically arrive together; the minimum interval bounds propagation
// frequency no matter how fast deltas arrive.
const (
	DefaultBaseDelay   = 50 * time.Millisecond
	DefaultMinInterval = 250 * time.Millisecond
)

// FlushFunc propagates a partial or final buffer snapshot downstream,
// typically a document-store write. Errors are logged, not escalated:
// a failed partial write is superseded by the next one.
type FlushFunc func(content string) error

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the stream buffer for one in-flight generation.
//
// OnDelta may be called from the stream-reading goroutine while Value and
// Flush are called from elsewhere; all state is guarded by one mutex.
// Deltas only ever append, so readers always observe a consistent prefix.
type Controller struct {
	mu   sync.Mutex
	idle *sync.Cond // signaled when an in-flight propagation completes

	buf   strings.Builder
	flush FlushFunc

	timer    *time.Timer // single pending-propagation slot
	inFlight bool
	dirty    bool // deltas arrived while a propagation was in flight
	canceled bool

	lastPropagation time.Time
	propagations    int

	baseDelay   time.Duration
	minInterval time.Duration
}

// New creates a controller with default intervals.
func New(flush FlushFunc) *Controller {
	return NewWithIntervals(flush, DefaultBaseDelay, DefaultMinInterval)
}

// NewWithIntervals creates a controller with custom throttle intervals.
// Tests use tight intervals; production uses the defaults.
func NewWithIntervals(flush FlushFunc, baseDelay, minInterval time.Duration) *Controller {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if minInterval < baseDelay {
		minInterval = baseDelay
	}

	c := &Controller{
		flush:       flush,
		baseDelay:   baseDelay,
		minInterval: minInterval,
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// OnDelta appends one content delta to the buffer and schedules a
// propagation. A new delta reschedules any pending timer rather than
// stacking a second one.
func (c *Controller) OnDelta(delta string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.canceled {
		return
	}

	c.buf.WriteString(delta)

	// While a propagation is actively in progress the delta is recorded
	// but no new timer is armed; the completion path reschedules.
	if c.inFlight {
		c.dirty = true
		return
	}

	c.scheduleLocked()
}

// scheduleLocked arms (or re-arms) the single propagation timer.
// Caller must hold c.mu.
func (c *Controller) scheduleLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}

	delay := c.baseDelay
	if !c.lastPropagation.IsZero() {
		// Push the schedule out so propagations are never closer
		// together than the minimum interval.
		if since := time.Since(c.lastPropagation); since < c.minInterval {
			if wait := c.minInterval - since; wait > delay {
				delay = wait
			}
		}
	}

	c.timer = time.AfterFunc(delay, c.fire)
}

// fire propagates the buffer's value at fire time.
func (c *Controller) fire() {
	c.mu.Lock()
	if c.canceled || c.inFlight {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.inFlight = true
	c.dirty = false
	c.lastPropagation = time.Now()
	c.propagations++
	content := c.buf.String()
	c.mu.Unlock()

	if err := c.flush(content); err != nil {
		log.Printf("SYNC: partial propagation failed: %v", err)
	}

	c.mu.Lock()
	c.inFlight = false
	if c.dirty && !c.canceled {
		c.scheduleLocked()
	}
	c.idle.Broadcast()
	c.mu.Unlock()
}

// Flush cancels any pending timer, waits out an in-flight propagation and
// synchronously propagates the complete buffer. Used at stream end: the
// value it sends is the exact concatenation of every delta received.
func (c *Controller) Flush() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	for c.inFlight {
		c.idle.Wait()
	}
	// The propagation we just waited out may have re-armed the timer.
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.canceled {
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	c.lastPropagation = time.Now()
	c.propagations++
	content := c.buf.String()
	c.mu.Unlock()

	err := c.flush(content)

	c.mu.Lock()
	c.inFlight = false
	c.dirty = false
	c.idle.Broadcast()
	c.mu.Unlock()

	return err
}

// Cancel stops any pending propagation without flushing and waits out a
// propagation that is already mid-write. When Cancel returns, no further
// writes will be issued by this controller, so the caller may safely
// replace the record the controller was writing to.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.canceled = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	for c.inFlight {
		c.idle.Wait()
	}
	c.idle.Broadcast()
}

// Value returns the buffer's current content.
func (c *Controller) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Propagations returns how many times the controller has propagated,
// including the final Flush.
func (c *Controller) Propagations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.propagations
}

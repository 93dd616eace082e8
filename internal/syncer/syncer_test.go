// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncer

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder collects every propagated value.
type recorder struct {
	mu     sync.Mutex
	values []string
	delay  time.Duration
}

func (r *recorder) flush(content string) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, content)
	return nil
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return ""
	}
	return r.values[len(r.values)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

func TestCoalescesRapidDeltas(t *testing.T) {
	rec := &recorder{}
	c := NewWithIntervals(rec.flush, 5*time.Millisecond, 20*time.Millisecond)

	var want strings.Builder
	for i := 0; i < 1000; i++ {
		delta := fmt.Sprintf("tok%d ", i)
		want.WriteString(delta)
		c.OnDelta(delta)
	}

	require.NoError(t, c.Flush())

	// Strictly fewer propagations than deltas, and the final value is the
	// exact concatenation in arrival order.
	require.Less(t, rec.count(), 1000)
	require.Equal(t, want.String(), rec.last())
	require.Equal(t, want.String(), c.Value())
}

func TestPropagatesValueAtFireTime(t *testing.T) {
	rec := &recorder{}
	c := NewWithIntervals(rec.flush, 30*time.Millisecond, 30*time.Millisecond)

	c.OnDelta("a")
	// The second delta lands before the timer fires; the propagation must
	// carry both, not the value captured at schedule time.
	time.Sleep(5 * time.Millisecond)
	c.OnDelta("b")

	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "ab", rec.last())
}

func TestNoConcurrentPropagations(t *testing.T) {
	rec := &recorder{delay: 40 * time.Millisecond}
	c := NewWithIntervals(rec.flush, time.Millisecond, time.Millisecond)

	c.OnDelta("a")
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	// Deltas arriving during the (slow) propagation are buffered and
	// trigger exactly one follow-up propagation.
	c.OnDelta("b")
	c.OnDelta("c")

	require.NoError(t, c.Flush())
	require.Equal(t, "abc", rec.last())
	require.Equal(t, "abc", c.Value())
}

func TestMinIntervalBoundsFrequency(t *testing.T) {
	rec := &recorder{}
	c := NewWithIntervals(rec.flush, 2*time.Millisecond, 50*time.Millisecond)

	// Feed deltas for ~120ms; with a 50ms floor no more than 3-4
	// propagations can fire in that window.
	deadline := time.Now().Add(120 * time.Millisecond)
	for time.Now().Before(deadline) {
		c.OnDelta("x")
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, c.Flush())

	require.LessOrEqual(t, rec.count(), 5)
}

func TestFlushWithNoDeltas(t *testing.T) {
	rec := &recorder{}
	c := New(rec.flush)

	require.NoError(t, c.Flush())
	require.Equal(t, "", rec.last())
}

func TestCancelStopsPendingPropagation(t *testing.T) {
	rec := &recorder{}
	c := NewWithIntervals(rec.flush, 20*time.Millisecond, 20*time.Millisecond)

	c.OnDelta("never written")
	c.Cancel()

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 0, rec.count())

	// Deltas after cancel are ignored entirely.
	c.OnDelta("late")
	require.Equal(t, "never written", c.Value())
}

func TestCancelWaitsForInFlightWrite(t *testing.T) {
	// A writer that blocks mid-write until released, recording each value
	// only when the write completes. The order of records is the order the
	// store would apply the writes in.
	var mu sync.Mutex
	var order []string
	var entered sync.Once
	inWriter := make(chan struct{})
	gate := make(chan struct{})

	blockingFlush := func(content string) error {
		entered.Do(func() { close(inWriter) })
		<-gate
		mu.Lock()
		order = append(order, "partial:"+content)
		mu.Unlock()
		return nil
	}

	c := NewWithIntervals(blockingFlush, time.Millisecond, time.Millisecond)
	c.OnDelta("garbled partial")

	// The timer has fired; the propagation is now blocked inside the writer.
	<-inWriter

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()

	// Cancel must not return while that write is still in flight;
	// otherwise the replacement written next would be overwritten by it.
	c.Cancel()
	mu.Lock()
	order = append(order, "apology")
	mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"partial:garbled partial", "apology"}, order)
}

func TestFlushIsLastWrite(t *testing.T) {
	rec := &recorder{}
	c := NewWithIntervals(rec.flush, 10*time.Millisecond, 10*time.Millisecond)

	c.OnDelta("partial ")
	c.OnDelta("content")
	require.NoError(t, c.Flush())

	// Any timer armed before Flush must not fire afterwards.
	before := rec.count()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, before, rec.count())
	require.Equal(t, "partial content", rec.last())
}

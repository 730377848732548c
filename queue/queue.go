// Package queue implements the FIFO shared between a tick callback and a
// background worker.
//
// All the mutations happen under a short-held mutex; waiting is done
// outside of the mutex on a change-notification channel which is replaced
// (and the old one closed) on every mutation.
package queue

import (
	"context"
	"time"

	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/xsync"
)

type Queue[T any] struct {
	locker   xsync.Mutex
	items    []T
	changeCh *chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		changeCh: ptr(make(chan struct{})),
	}
}

func ptr[T any](in T) *T {
	return &in
}

func (q *Queue[T]) notify() {
	close(*xatomic.SwapPointer(&q.changeCh, ptr(make(chan struct{}))))
}

// ChangeChan returns a channel that is closed on the next mutation.
func (q *Queue[T]) ChangeChan() <-chan struct{} {
	return *xatomic.LoadPointer(&q.changeCh)
}

func (q *Queue[T]) Len(ctx context.Context) int {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() int {
		return len(q.items)
	})
}

// Push appends the item and returns the resulting length.
func (q *Queue[T]) Push(ctx context.Context, item T) int {
	l := xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() int {
		q.items = append(q.items, item)
		return len(q.items)
	})
	q.notify()
	return l
}

// PushBounded appends the item and, if the length exceeds limit, removes
// the oldest items; the removed items are returned to the caller.
// A non-positive limit means unbounded.
func (q *Queue[T]) PushBounded(ctx context.Context, item T, limit int) []T {
	dropped := xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() []T {
		q.items = append(q.items, item)
		if limit <= 0 || len(q.items) <= limit {
			return nil
		}
		excess := len(q.items) - limit
		dropped := make([]T, excess)
		copy(dropped, q.items[:excess])
		q.popFront(excess)
		return dropped
	})
	q.notify()
	return dropped
}

func (q *Queue[T]) popFront(n int) {
	var zero T
	for idx := 0; idx < n; idx++ {
		q.items[idx] = zero
	}
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
}

// TryPop removes the head item if there is one. It never blocks on
// anything but the queue mutex.
func (q *Queue[T]) TryPop(ctx context.Context) (T, bool) {
	var (
		item T
		ok   bool
	)
	q.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		if len(q.items) == 0 {
			return
		}
		item, ok = q.items[0], true
		q.popFront(1)
	})
	if ok {
		q.notify()
	}
	return item, ok
}

// Flush removes and returns all the items.
func (q *Queue[T]) Flush(ctx context.Context) []T {
	items := xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() []T {
		items := q.items
		q.items = nil
		return items
	})
	if len(items) > 0 {
		q.notify()
	}
	return items
}

// WaitLenBelow waits until the queue is shorter than limit. It gives up
// after maxWait (if positive) or when ctx is done, so the caller can
// re-check its own run flag. Returns true if the condition is satisfied.
func (q *Queue[T]) WaitLenBelow(ctx context.Context, limit int, maxWait time.Duration) bool {
	return q.wait(ctx, maxWait, func() bool {
		return len(q.items) < limit
	})
}

// WaitNotEmpty waits until there is at least one item, see WaitLenBelow.
func (q *Queue[T]) WaitNotEmpty(ctx context.Context, maxWait time.Duration) bool {
	return q.wait(ctx, maxWait, func() bool {
		return len(q.items) > 0
	})
}

// PopWait is TryPop that waits for an item up to maxWait.
func (q *Queue[T]) PopWait(ctx context.Context, maxWait time.Duration) (T, bool) {
	if item, ok := q.TryPop(ctx); ok {
		return item, true
	}
	if !q.WaitNotEmpty(ctx, maxWait) {
		var zero T
		return zero, false
	}
	return q.TryPop(ctx)
}

func (q *Queue[T]) wait(
	ctx context.Context,
	maxWait time.Duration,
	cond func() bool,
) bool {
	var timeoutCh <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	for {
		changeCh := q.ChangeChan()
		if xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, cond) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-timeoutCh:
			return false
		case <-changeCh:
		}
	}
}

// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import (
	"context"
	"sync/atomic"
)

// PinnedFunc is the body of a PinnedTask.
type PinnedFunc func(ctx context.Context)

// PinnedTask is a single-shot callable bound to a specific worker. Unlike a
// TaskSet, a pinned task either runs exactly once on TargetWorker or never
// runs at all (e.g. if the scheduler is stopped first); there is no retry.
type PinnedTask struct {
	Priority     Priority
	TargetWorker int
	Exec         PinnedFunc

	runningCount atomic.Int32
	next         atomic.Pointer[PinnedTask]
}

// NewPinnedTask constructs a PinnedTask bound to targetWorker.
func NewPinnedTask(targetWorker int, priority Priority, exec PinnedFunc) *PinnedTask {
	return &PinnedTask{TargetWorker: targetWorker, Priority: priority, Exec: exec}
}

// IsComplete reports whether the task has finished executing.
func (t *PinnedTask) IsComplete() bool {
	return t.runningCount.Load() == 0
}

// pinnedList is a multi-writer, single-reader intrusive LIFO of pinned
// tasks, consumed only by the worker it belongs to. Writers CAS the head to
// insert; the owner drains by atomically swapping the head to nil and then
// running the resulting chain in LIFO order.
type pinnedList struct {
	head atomic.Pointer[PinnedTask]
}

func (l *pinnedList) push(t *PinnedTask) {
	for {
		old := l.head.Load()
		t.next.Store(old)
		if l.head.CompareAndSwap(old, t) {
			return
		}
	}
}

func (l *pinnedList) isEmpty() bool {
	return l.head.Load() == nil
}

// drain detaches the whole chain atomically and returns its head; the
// caller walks t.next itself rather than being handed a slice, to avoid an
// allocation on every drain.
func (l *pinnedList) drain() *PinnedTask {
	return l.head.Swap(nil)
}

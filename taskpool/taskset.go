// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import (
	"context"
	"sync/atomic"
)

// RangeFunc is the work function of a TaskSet: it executes the sub-range r
// of the set, on behalf of workerID. Execution order across sub-ranges of
// one TaskSet is unordered; a RangeFunc must not depend on it. It must
// return normally — a non-returning or panicking RangeFunc is undefined
// behavior at the scheduler layer (spec §7).
type RangeFunc func(ctx context.Context, r Range, workerID int)

// TaskSet describes a logical range [0, SetSize) to be executed piecewise by
// Exec. The scheduler treats it as opaque except for the fields below; the
// caller owns its memory and must not let it go out of scope (or reuse it
// for another submission) until RunningCount reaches zero.
type TaskSet struct {
	// SetSize is the total range length.
	SetSize uint32
	// MinRange is the minimum sub-range length; partitioning never produces
	// a piece shorter than this except when the residual is smaller.
	MinRange uint32
	// Priority in [0, P).
	Priority Priority
	// Exec is the work function.
	Exec RangeFunc

	// rangeToRun is set by the scheduler at submission and read by the
	// worker's split-on-pop logic (spec §4.3.1/§4.3.3).
	rangeToRun uint32
	// runningCount is the number of outstanding sub-ranges; 0 iff the set is
	// complete. Incremented (with acquire-equivalent ordering) before a
	// sub-range becomes visible in a pipe slot, decremented (release) after
	// Exec returns for that sub-range.
	runningCount atomic.Int32
}

// NewTaskSet constructs a TaskSet. minRange must be >= 1.
func NewTaskSet(setSize, minRange uint32, priority Priority, exec RangeFunc) *TaskSet {
	return &TaskSet{SetSize: setSize, MinRange: minRange, Priority: priority, Exec: exec}
}

// RunningCount returns the number of sub-ranges not yet finished executing.
func (t *TaskSet) RunningCount() int32 {
	return t.runningCount.Load()
}

// IsComplete reports whether every emitted sub-range has finished executing.
func (t *TaskSet) IsComplete() bool {
	return t.runningCount.Load() == 0
}

// subTask is a [start,end) slice of a TaskSet queued in a pipe slot. It is
// fixed-size and trivially copyable, matching enkiTS's SubTaskSet.
type subTask struct {
	task  *TaskSet
	rng   Range
}

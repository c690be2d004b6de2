// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import (
	"context"
	"runtime"
)

// WaitFor cooperatively runs tasks until t.IsComplete(), or, if t is nil,
// until one attempt has been made at each priority in [0, ceiling]. It never
// sleeps -- every iteration executes at most one sub-task, priority-ordered,
// keeping the caller productive instead of blocking (spec §4.3.5).
func (s *Scheduler) WaitFor(ctx context.Context, t *TaskSet, ceiling Priority) {
	w := s.workerID(ctx)
	if t == nil {
		s.runPinnedTasks(ctx, w)
		s.tryRunTaskUpTo(ctx, w, ceiling)
		return
	}
	for !t.IsComplete() {
		s.runPinnedTasks(ctx, w)
		if !s.tryRunTaskUpTo(ctx, w, ceiling) {
			// Nothing local or stealable right now; yield so whichever peer
			// is running t's remaining sub-ranges gets the core.
			runtime.Gosched()
		}
	}
}

// WaitForAll runs tasks in a loop until no pipe anywhere has work and every
// peer worker is parked (numThreadsWaiting == numWorkers-1). The dual
// condition avoids returning while a peer still holds a popped sub-task
// mid-execution (spec §4.3.5).
func (s *Scheduler) WaitForAll(ctx context.Context) {
	w := s.workerID(ctx)
	for {
		s.runPinnedTasks(ctx, w)
		if s.tryRunTask(ctx, w) {
			continue
		}
		if s.quiescent() {
			return
		}
		runtime.Gosched()
	}
}

// WaitForAllAndShutdown waits for global quiescence, then stops the
// scheduler and joins every worker.
func (s *Scheduler) WaitForAllAndShutdown(ctx context.Context) {
	s.WaitForAll(ctx)
	s.Stop(true)
}

func (s *Scheduler) quiescent() bool {
	if s.anyPipeNonEmpty() {
		return false
	}
	return int(s.numThreadsWaiting.Load()) == s.numWorkers-1
}

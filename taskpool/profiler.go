// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

// ProfilerFunc is a profiler callback invoked with the id of the worker the
// event occurred on.
type ProfilerFunc func(workerID int)

// ProfilerCallbacks is a set of optional function pointers invoked at
// thread-start/stop and wait-begin/end. This plumbing is an external
// collaborator (spec §1 Non-goals/Out of scope): the scheduler only invokes
// whichever callbacks are non-nil and defines none of their behavior.
type ProfilerCallbacks struct {
	ThreadStart ProfilerFunc
	ThreadStop  ProfilerFunc
	WaitStart   ProfilerFunc
	WaitStop    ProfilerFunc
}

func callProfiler(f ProfilerFunc, workerID int) {
	if f != nil {
		f(workerID)
	}
}

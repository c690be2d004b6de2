// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cockroachdb/taskpool/internal/coverage"
	"github.com/cockroachdb/taskpool/internal/log"
)

// S1: single-thread identity.
func TestSchedulerSingleThreadIdentity(t *testing.T) {
	s := NewScheduler(WithNumWorkers(1))
	ctx := s.Start(context.Background())
	defer s.Stop(true)

	out := make([]int64, 1000)
	ts := NewTaskSet(1000, 1, PriorityHigh, func(_ context.Context, r Range, _ int) {
		for i := r.Start; i < r.End; i++ {
			out[i] = int64(i)
		}
	})
	s.AddTaskSet(ctx, ts)
	s.WaitFor(ctx, ts, PriorityIdle)

	require.True(t, ts.IsComplete())
	for i := range out {
		require.EqualValues(t, i, out[i])
	}
}

// S2: parallel sum.
func TestSchedulerParallelSum(t *testing.T) {
	const numWorkers = 4
	const setSize = 1_000_000

	s := NewScheduler(WithNumWorkers(numWorkers))
	ctx := s.Start(context.Background())
	defer s.Stop(true)

	partials := make([]int64, numWorkers)
	ts := NewTaskSet(setSize, 1, PriorityHigh, func(_ context.Context, r Range, w int) {
		var sum int64
		for i := r.Start; i < r.End; i++ {
			sum += int64(i)
		}
		atomic.AddInt64(&partials[w], sum)
	})
	s.AddTaskSet(ctx, ts)
	s.WaitForAll(ctx)

	var total int64
	for _, p := range partials {
		total += p
	}
	require.EqualValues(t, 499999500000, total)
}

// S3: overflow -- a submission whose initial chunks outnumber the owner
// pipe's capacity must inline-execute the overflow chunks (not block or
// drop them) and still execute every element exactly once. numWorkers=9
// with a 4-slot pipe gives numInitialPartitions = min(9-1, 8) = 8 initial
// chunks contending for 4 slots, guaranteeing overflow on submission.
//
// Start is deliberately not called: a real worker pool would race to steal
// the very chunks this test means to force into the pipe, making overflow
// (and the TasksInlined count below) nondeterministic. Instead this drives
// worker 0 by hand, calling tryRunTask directly the way the real loop would.
func TestSchedulerOverflow(t *testing.T) {
	const setSize = 100_000

	s := NewScheduler(WithNumWorkers(9), WithPipeSizeLog2(2)) // 4 slots/pipe
	require.EqualValues(t, 8, s.numInitialPartitions)
	s.running.Store(true)
	defer s.running.Store(false)
	ctx := log.WithWorkerID(context.Background(), 0)

	var tracker coverage.Tracker
	ts := NewTaskSet(setSize, 1, PriorityHigh, func(_ context.Context, r Range, _ int) {
		tracker.Record(r.Start, r.End)
	})
	s.AddTaskSet(ctx, ts)
	require.Greater(t, s.Metrics().TasksInlined.Count(), int64(0))

	for !ts.IsComplete() {
		require.True(t, s.tryRunTask(ctx, 0))
	}

	ok, detail := tracker.VerifyExactCoverage(setSize)
	require.True(t, ok, detail)
}

// S4: pinned routing -- each pinned task runs on its target worker.
func TestSchedulerPinnedRouting(t *testing.T) {
	const numWorkers = 4
	s := NewScheduler(WithNumWorkers(numWorkers))
	ctx := s.Start(context.Background())
	defer s.Stop(true)

	ranOn := make([]int32, numWorkers)
	for w := 0; w < numWorkers; w++ {
		target := w
		pt := NewPinnedTask(target, PriorityHigh, func(taskCtx context.Context) {
			actual, ok := s.WorkerID(taskCtx)
			require.True(t, ok)
			atomic.StoreInt32(&ranOn[target], int32(actual))
		})
		s.AddPinnedTask(pt)
	}
	s.WaitForAll(ctx)

	for w := 0; w < numWorkers; w++ {
		require.EqualValues(t, w, atomic.LoadInt32(&ranOn[w]))
	}
}

// S5: steal balance -- load should spread across workers within a factor of
// two, with no worker left completely idle.
func TestSchedulerStealBalance(t *testing.T) {
	const numWorkers = 4
	const setSize = 400

	s := NewScheduler(WithNumWorkers(numWorkers))
	ctx := s.Start(context.Background())
	defer s.Stop(true)

	counts := make([]int64, numWorkers)
	ts := NewTaskSet(setSize, 1, PriorityHigh, func(_ context.Context, r Range, w int) {
		for i := r.Start; i < r.End; i++ {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&counts[w], 1)
		}
	})
	s.AddTaskSet(ctx, ts)
	s.WaitForAll(ctx)

	var total int64
	for _, c := range counts {
		total += c
		require.Greater(t, c, int64(0))
		require.LessOrEqual(t, c, int64(setSize/2))
	}
	require.EqualValues(t, setSize, total)
}

// S6: wait_for_all quiescence across many submissions.
func TestSchedulerWaitForAllQuiescence(t *testing.T) {
	s := NewScheduler(WithNumWorkers(4))
	ctx := s.Start(context.Background())
	defer s.Stop(true)

	var sets []*TaskSet
	for i := 0; i < 10; i++ {
		ts := NewTaskSet(1000, 10, PriorityMedium, func(_ context.Context, r Range, _ int) {})
		s.AddTaskSet(ctx, ts)
		sets = append(sets, ts)
	}
	s.WaitForAll(ctx)

	for _, ts := range sets {
		require.True(t, ts.IsComplete())
	}
}

func TestSchedulerWaitForAllAndShutdownJoinsWorkers(t *testing.T) {
	s := NewScheduler(WithNumWorkers(4))
	ctx := s.Start(context.Background())

	ts := NewTaskSet(10, 1, PriorityHigh, func(_ context.Context, r Range, _ int) {})
	s.AddTaskSet(ctx, ts)
	s.WaitForAllAndShutdown(ctx)

	require.False(t, s.Running())
	require.Panics(t, func() { s.AddTaskSet(ctx, ts) })
}

func TestNewSchedulerRejectsZeroWorkers(t *testing.T) {
	require.Panics(t, func() { NewScheduler(WithNumWorkers(0)) })
}

// TestAddTaskSetBoundsReentrantInlineDepth proves the depth cap (spec §9
// Open Questions) actually bounds a task body that calls AddTaskSet again
// from inside its own Exec -- not just the split-on-pop recursion within a
// single enqueueSpan call chain. Each inline execution here immediately
// resubmits into a pipe that's still full, so without the ctx-tagged depth
// threading this would recurse without bound instead of panicking.
func TestAddTaskSetBoundsReentrantInlineDepth(t *testing.T) {
	const maxDepth = 3
	s := NewScheduler(WithNumWorkers(1), WithPipeSizeLog2(2), WithMaxInlineDepth(maxDepth))
	ctx := s.Start(context.Background())
	defer s.Stop(true)

	// Fill worker 0's high-priority pipe to capacity so every AddTaskSet
	// below overflows on its very first (and only) chunk and runs inline.
	pipe := s.pipes[PriorityHigh][0]
	for pipe.TryWriteFront(subTask{}) {
	}

	var exec RangeFunc
	exec = func(ctx context.Context, _ Range, _ int) {
		s.AddTaskSet(ctx, NewTaskSet(1, 1, PriorityHigh, exec))
	}
	require.Panics(t, func() {
		s.AddTaskSet(ctx, NewTaskSet(1, 1, PriorityHigh, exec))
	})
}

func TestSchedulerMetricsCountSubmissionsAndExecutions(t *testing.T) {
	s := NewScheduler(WithNumWorkers(2))
	ctx := s.Start(context.Background())
	defer s.Stop(true)

	ts := NewTaskSet(64, 1, PriorityHigh, func(_ context.Context, r Range, _ int) {})
	s.AddTaskSet(ctx, ts)
	s.WaitForAll(ctx)

	require.Positive(t, s.Metrics().TasksSubmitted.Count())
	// Every enqueued entry (initial chunk or split-on-pop remainder) is
	// popped and executeSubTask'd exactly once; every inline-overflow entry
	// likewise runs exactly once. So once everything has drained, submitted
	// plus inlined must equal executed.
	require.EqualValues(t,
		s.Metrics().TasksSubmitted.Count()+s.Metrics().TasksInlined.Count(),
		s.Metrics().TasksExecuted.Count())
}

// TestWaitForAllConcurrentSubmitters exercises SubmitExternal: a pool of
// goroutines that never received Start's returned context directly, all
// sharing the same errgroup-derived (and therefore identically worker-0-
// tagged) context, must still be able to submit and wait concurrently
// without racing each other over worker 0's owner-only pipe/steal-hint
// state (spec §9's "documented mechanism the client supplies" for
// submission from outside the initializing thread).
func TestWaitForAllConcurrentSubmitters(t *testing.T) {
	const numWorkers = 4
	const numSubmitters = 8
	const setSize = 10_000

	s := NewScheduler(WithNumWorkers(numWorkers))
	ctx := s.Start(context.Background())
	defer s.WaitForAllAndShutdown(ctx)

	var total int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < numSubmitters; i++ {
		g.Go(func() error {
			var sum int64
			ts := NewTaskSet(setSize, 8, PriorityMedium, func(_ context.Context, r Range, _ int) {
				// Multiple workers may run different sub-ranges of this one
				// TaskSet concurrently, so sum needs atomic adds even though
				// it's private to this goroutine's submission.
				var partial int64
				for n := r.Start; n < r.End; n++ {
					partial += int64(n)
				}
				atomic.AddInt64(&sum, partial)
			})
			s.SubmitExternal(gctx, func(ctx context.Context) {
				s.AddTaskSet(ctx, ts)
				s.WaitFor(ctx, ts, PriorityIdle)
			})
			atomic.AddInt64(&total, sum)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var want int64
	for n := uint32(0); n < setSize; n++ {
		want += int64(n)
	}
	require.EqualValues(t, want*numSubmitters, total)
}

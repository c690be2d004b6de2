// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Command taskpool-bench is a small runnable demonstration of the scheduler:
// it drives a parallel-sum workload (S2) from the spec's testable scenarios,
// submitting one task set per goroutine concurrently via errgroup the way
// pkg/cmd/roachtest's workload drivers fan out concurrent submitters. It
// prints the stolen-task count but runs no separate steal-balance workload.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cockroachdb/taskpool/internal/log"
	"github.com/cockroachdb/taskpool/taskpool"
)

func main() {
	numWorkers := flag.Int("workers", 4, "number of scheduler workers, including the caller")
	setSize := flag.Uint64("set-size", 10_000_000, "range length for the parallel-sum workload")
	submitters := flag.Int("submitters", 3, "number of concurrent goroutines submitting task sets")
	flag.Parse()

	if err := run(context.Background(), *numWorkers, uint32(*setSize), *submitters); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, numWorkers int, setSize uint32, submitters int) error {
	s := taskpool.NewScheduler(taskpool.WithNumWorkers(numWorkers))
	root := s.Start(ctx)
	defer s.WaitForAllAndShutdown(root)

	partials := make([]int64, numWorkers)
	g, gctx := errgroup.WithContext(root)
	for i := 0; i < submitters; i++ {
		i := i
		g.Go(func() error {
			ts := taskpool.NewTaskSet(setSize/uint32(submitters), 64, taskpool.PriorityMedium,
				func(_ context.Context, r taskpool.Range, w int) {
					var sum int64
					for n := r.Start; n < r.End; n++ {
						sum += int64(n)
					}
					atomic.AddInt64(&partials[w], sum)
				})
			start := time.Now()
			// Several goroutines share the caller's worker-0 context; none
			// of them received it from Start directly, so they must not
			// all call AddTaskSet/WaitFor on it concurrently (that would
			// race over worker 0's owner-only pipe/steal-hint state).
			// SubmitExternal serializes them through that slot instead.
			s.SubmitExternal(gctx, func(ctx context.Context) {
				s.AddTaskSet(ctx, ts)
				s.WaitFor(ctx, ts, taskpool.PriorityIdle)
			})
			log.Infof(gctx, "submitter %d: %d elements in %s", i, ts.SetSize, time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var total int64
	for _, p := range partials {
		total += p
	}
	fmt.Printf("workers=%d set_size=%d submitters=%d sum=%d submitted=%d executed=%d stolen=%d inlined=%d\n",
		numWorkers, setSize, submitters, total,
		s.Metrics().TasksSubmitted.Count(), s.Metrics().TasksExecuted.Count(),
		s.Metrics().TasksStolen.Count(), s.Metrics().TasksInlined.Count())
	return nil
}

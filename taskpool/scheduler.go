// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/cockroachdb/taskpool/internal/log"
	"github.com/cockroachdb/taskpool/pkg/util/syncutil"
)

// Scheduler owns N workers (worker 0 is whichever goroutine called Start) and
// a P x N matrix of pipes and pinned lists. It partitions and dispatches
// TaskSets, lets idle workers steal from peers, drains PinnedTasks, and runs
// the sleep/wake protocol that parks workers with no work.
type Scheduler struct {
	cfg Config

	numWorkers           int
	numPriorities        int
	numPartitions        uint32
	numInitialPartitions uint32

	pipes       [][]*pipe       // [priority][worker]
	pinnedLists [][]*pinnedList // [priority][worker]

	// hints holds each worker's sticky steal donor, indexed by worker id.
	// Only the owning worker's goroutine ever reads or writes its entry, so
	// plain uint32s (not atomics) suffice.
	hints []uint32

	running           atomic.Bool
	numThreadsRunning atomic.Int32
	numThreadsWaiting atomic.Uint32

	eventMu      syncutil.Mutex
	newTaskEvent *sync.Cond

	// externalMu serializes external (non-worker) goroutines sharing worker
	// 0's pipe-owner slot through SubmitExternal, so at most one of them
	// touches hints[0] or pipes[*][0] as owner at a time.
	externalMu syncutil.Mutex

	metrics *Metrics
	wg      sync.WaitGroup

	// stealMissLog and sleepWakeLog rate-limit the steal-miss and sleep/wake
	// diagnostic logging below to at most once per second each, so a busy
	// scheduler (every worker missing on every spin) doesn't flood stderr.
	stealMissLog log.EveryN
	sleepWakeLog log.EveryN
}

// NewScheduler constructs a Scheduler with the given options but does not
// start any workers; call Start to do that. Panics if the resolved worker
// count is less than 1, matching the original's contract-violation treatment
// of initialize(0).
func NewScheduler(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.NumWorkers < 1 {
		panic(errors.AssertionFailedf("taskpool: NumWorkers must be >= 1, got %d", cfg.NumWorkers))
	}
	if cfg.NumPriorities < 1 {
		cfg.NumPriorities = numDefaultPriorities
	}
	if cfg.PipeSizeLog2 == 0 {
		cfg.PipeSizeLog2 = defaultPipeSizeLog2
	}

	s := &Scheduler{
		cfg:           cfg,
		numWorkers:    cfg.NumWorkers,
		numPriorities: cfg.NumPriorities,
		hints:         make([]uint32, cfg.NumWorkers),
		metrics:       newMetrics(),
		stealMissLog:  log.Every(time.Second),
		sleepWakeLog:  log.Every(time.Second),
	}
	s.numPartitions, s.numInitialPartitions = partitionCounts(cfg.NumWorkers, cfg.MaxInitialPartitions)
	s.newTaskEvent = sync.NewCond(&s.eventMu)

	s.pipes = make([][]*pipe, s.numPriorities)
	s.pinnedLists = make([][]*pinnedList, s.numPriorities)
	for p := 0; p < s.numPriorities; p++ {
		s.pipes[p] = make([]*pipe, s.numWorkers)
		s.pinnedLists[p] = make([]*pinnedList, s.numWorkers)
		for w := 0; w < s.numWorkers; w++ {
			s.pipes[p][w] = newPipe(cfg.PipeSizeLog2)
			s.pinnedLists[p][w] = &pinnedList{}
		}
	}
	return s
}

// Start marks the scheduler running and spawns NumWorkers-1 worker
// goroutines (worker 0 is the caller). It returns ctx tagged with worker id
// 0, the context the caller should thread through any WaitFor/WaitForAll/
// RunPinnedTasks/AddTaskSet call it makes as worker 0 -- Go has no
// thread-local storage, so this tagged context is how the caller's worker
// identity propagates (see internal/log's package doc).
func (s *Scheduler) Start(ctx context.Context) context.Context {
	s.running.Store(true)
	s.numThreadsRunning.Store(int32(s.numWorkers))
	for w := 1; w < s.numWorkers; w++ {
		s.wg.Add(1)
		go s.workerLoop(log.WithWorkerID(ctx, w), w)
	}
	return log.WithWorkerID(ctx, 0)
}

// Stop clears the running flag, discarding any pending sub-tasks still
// sitting in pipes, and wakes any parked workers so they can observe it and
// exit. If wait is true it joins every worker goroutine before returning,
// per the Open Question resolution to join rather than detach.
func (s *Scheduler) Stop(wait bool) {
	s.running.Store(false)
	s.eventMu.Lock()
	s.newTaskEvent.Broadcast()
	s.eventMu.Unlock()
	if wait {
		s.wg.Wait()
	}
}

// NumWorkers returns N, the total worker count including the caller.
func (s *Scheduler) NumWorkers() int { return s.numWorkers }

// Running reports whether the scheduler is accepting submissions.
func (s *Scheduler) Running() bool { return s.running.Load() }

// WorkerID returns the stable worker id tagged on ctx, and false if ctx was
// never tagged by Start or a worker's own loop.
func (s *Scheduler) WorkerID(ctx context.Context) (int, bool) { return log.WorkerID(ctx) }

// SubmitExternal runs fn with ctx tagged as worker 0, serialized against any
// other concurrent SubmitExternal caller on this Scheduler. Spec §9 notes
// that submission from anything other than the initializing thread "requires
// a documented mechanism the client supplies (not part of this core)" -- this
// is that mechanism. Use it when a pool of goroutines that did not receive
// Start's returned context directly all want to call AddTaskSet/WaitFor;
// handing each of them their own copy of that context instead would have
// them race each other over worker 0's owner-only state (hints[0], its
// pipes). It must not be called concurrently with the real worker 0 (the
// goroutine that called Start) itself acting as owner.
func (s *Scheduler) SubmitExternal(ctx context.Context, fn func(ctx context.Context)) {
	s.externalMu.Lock()
	defer s.externalMu.Unlock()
	fn(log.WithWorkerID(ctx, 0))
}

func (s *Scheduler) workerID(ctx context.Context) int {
	if w, ok := log.WorkerID(ctx); ok {
		return w
	}
	return 0
}

func (s *Scheduler) workerLoop(ctx context.Context, w int) {
	defer s.wg.Done()
	callProfiler(s.cfg.Profiler.ThreadStart, w)
	defer callProfiler(s.cfg.Profiler.ThreadStop, w)

	var spinCount uint32
	for s.running.Load() {
		s.runPinnedTasks(ctx, w)
		if s.tryRunTask(ctx, w) {
			spinCount = 0
			continue
		}
		if s.stealMissLog.ShouldLog() {
			log.VEventf(ctx, 2, "worker %d: steal miss, nothing to run at any priority", w)
		}
		spinCount++
		if spinCount > s.cfg.SpinCount {
			s.waitForTasks(ctx, w)
			spinCount = 0
		} else {
			pause(spinCount * s.cfg.SpinBackoffMultiplier)
		}
	}
	s.numThreadsRunning.Add(-1)
}

// pause busy-waits for approximately n scheduling quanta. Go exposes no
// portable pause/yield CPU intrinsic, so this stands in for the platform
// pause instruction the original spins on.
func pause(n uint32) {
	for i := uint32(0); i < n; i++ {
		runtime.Gosched()
	}
}

// AddTaskSet partitions t and enqueues its pieces into the calling worker's
// pipe at t.Priority, executing pieces inline on overflow so progress is
// guaranteed regardless of pipe capacity (spec §4.3.1). Non-blocking.
func (s *Scheduler) AddTaskSet(ctx context.Context, t *TaskSet) {
	if !s.running.Load() {
		panic(errors.AssertionFailedf("taskpool: AddTaskSet called after Stop"))
	}
	if t.SetSize == 0 {
		return
	}
	minRange := t.MinRange
	if minRange < 1 {
		minRange = 1
	}
	t.rangeToRun = splitUnit(t.SetSize, minRange, s.numPartitions)
	initialSplit := splitUnit(t.SetSize, minRange, s.numInitialPartitions)

	w := s.workerID(ctx)
	// A task body that overflows its pipe on inline execution and calls
	// AddTaskSet again from inside its own Exec must be counted against the
	// same reentrancy budget as the call that invoked it, not start over at
	// zero -- see enqueueSpan's tagging of ctx on the inline-overflow path.
	depth, _ := log.InlineDepth(ctx)
	s.enqueueSpan(ctx, w, t, span{start: 0, end: t.SetSize}, initialSplit, depth)
}

// enqueueSpan chunks sp into pieces of length chunkSize (the last piece may
// be shorter) and enqueues each at t.Priority into worker w's pipe. A piece
// that doesn't fit is run through the same split-on-pop path a popped
// sub-task would take, capped by depth so a task body that resubmits into an
// already-full pipe cannot recurse without bound (spec §9 Open Questions).
func (s *Scheduler) enqueueSpan(ctx context.Context, w int, t *TaskSet, sp span, chunkSize uint32, depth int) {
	burst := 0
	for sp.size() > 0 {
		n := chunkSize
		if n > sp.size() {
			n = sp.size()
		}
		piece := sp.splitFront(n)
		t.runningCount.Add(1) // acquire-equivalent: precedes the item becoming visible
		st := subTask{task: t, rng: Range{Start: piece.start, End: piece.end}}
		if s.pipes[t.Priority][w].TryWriteFront(st) {
			s.metrics.TasksSubmitted.Inc(1)
			burst++
			continue
		}
		if burst > 1 {
			s.wake(ctx)
		}
		burst = 0
		if depth+1 > s.cfg.MaxInlineDepth {
			panic(errors.AssertionFailedf(
				"taskpool: inline execution depth exceeded %d; a task body is likely resubmitting into a full pipe",
				s.cfg.MaxInlineDepth))
		}
		s.metrics.TasksInlined.Inc(1)
		// Tag ctx with the new depth before the task body regains control
		// (via executeSubTask -> runRange -> t.Exec): if Exec turns around
		// and calls AddTaskSet again, that call reads this tag instead of
		// starting its own depth count over from zero.
		s.executeSubTask(log.WithInlineDepth(ctx, depth+1), w, st, depth+1)
	}
	if burst > 0 {
		s.wake(ctx)
	}
}

// executeSubTask implements the split-on-pop rule (spec §4.3.3): if the
// popped range is longer than the task's range_to_run split unit, carve off
// one range_to_run-sized piece to run now and re-enqueue the remainder,
// chunked at the same granularity, so peers can steal it independently.
func (s *Scheduler) executeSubTask(ctx context.Context, w int, st subTask, depth int) {
	t := st.task
	r := st.rng
	runLen := t.rangeToRun
	if runLen > 0 && runLen < r.Len() {
		piece := Range{Start: r.Start, End: r.Start + runLen}
		remainder := span{start: piece.End, end: r.End}
		s.enqueueSpan(ctx, w, t, remainder, runLen, depth)
		s.runRange(ctx, w, t, piece)
		return
	}
	s.runRange(ctx, w, t, r)
}

func (s *Scheduler) runRange(ctx context.Context, w int, t *TaskSet, r Range) {
	t.Exec(ctx, r, w)
	t.runningCount.Add(-1) // release: publishes this range's effects to waiters
	s.metrics.TasksExecuted.Inc(1)
}

// AddPinnedTask enqueues t on t.TargetWorker's pinned list at t.Priority and
// wakes any sleeper. Panics if TargetWorker is out of range.
func (s *Scheduler) AddPinnedTask(t *PinnedTask) {
	if !s.running.Load() {
		panic(errors.AssertionFailedf("taskpool: AddPinnedTask called after Stop"))
	}
	if t.TargetWorker < 0 || t.TargetWorker >= s.numWorkers {
		panic(errors.AssertionFailedf(
			"taskpool: pinned task target worker %d out of range [0,%d)", t.TargetWorker, s.numWorkers))
	}
	t.runningCount.Store(1)
	s.pinnedLists[t.Priority][t.TargetWorker].push(t)
	s.wake(context.Background())
}

// RunPinnedTasks drains the calling worker's pinned lists across all
// priorities, running each task exactly once.
func (s *Scheduler) RunPinnedTasks(ctx context.Context) {
	s.runPinnedTasks(ctx, s.workerID(ctx))
}

func (s *Scheduler) runPinnedTasks(ctx context.Context, w int) {
	for p := 0; p < s.numPriorities; p++ {
		pt := s.pinnedLists[p][w].drain()
		for pt != nil {
			next := pt.next.Load()
			pt.Exec(ctx)
			pt.runningCount.Store(0)
			pt = next
		}
	}
}

// tryRunTask attempts one sub-task across all priorities: a local
// owner_try_read_front first, falling back to thief_try_read_back on peers
// starting at the worker's sticky steal hint (spec §4.3.2 step 2).
func (s *Scheduler) tryRunTask(ctx context.Context, w int) bool {
	return s.tryRunTaskUpTo(ctx, w, Priority(s.numPriorities-1))
}

func (s *Scheduler) tryRunTaskUpTo(ctx context.Context, w int, ceiling Priority) bool {
	max := int(ceiling)
	if max >= s.numPriorities {
		max = s.numPriorities - 1
	}
	for p := 0; p <= max; p++ {
		if s.tryRunTaskAtPriority(ctx, w, p) {
			return true
		}
	}
	return false
}

func (s *Scheduler) tryRunTaskAtPriority(ctx context.Context, w, p int) bool {
	var st subTask
	if s.pipes[p][w].TryReadFront(&st) {
		s.executeSubTask(ctx, w, st, 0)
		return true
	}
	hint := int(s.hints[w])
	for k := 0; k < s.numWorkers; k++ {
		donor := (hint + k) % s.numWorkers
		if donor == w {
			continue
		}
		if s.pipes[p][donor].TryReadBack(&st) {
			s.hints[w] = uint32(donor)
			s.metrics.TasksStolen.Inc(1)
			s.executeSubTask(ctx, w, st, 0)
			return true
		}
	}
	return false
}

// haveTasks reports whether any pipe at any priority (for any worker) holds
// work, or the calling worker's own pinned lists do (spec §4.3.4 step 2).
func (s *Scheduler) haveTasks(w int) bool {
	if s.anyPipeNonEmpty() {
		return true
	}
	for p := 0; p < s.numPriorities; p++ {
		if !s.pinnedLists[p][w].isEmpty() {
			return true
		}
	}
	return false
}

// anyPipeNonEmpty scans every priority and worker's pipe.
func (s *Scheduler) anyPipeNonEmpty() bool {
	for p := 0; p < s.numPriorities; p++ {
		for donor := 0; donor < s.numWorkers; donor++ {
			if !s.pipes[p][donor].IsEmpty() {
				return true
			}
		}
	}
	return false
}

// waitForTasks parks w on the sleep/wake condition variable until either
// there is work to (re)check for or the scheduler has stopped. Incrementing
// numThreadsWaiting and rechecking haveTasks both happen under eventMu, the
// same mutex wake's Broadcast takes, which is what closes the
// increment-before-recheck race described in spec §4.3.4.
func (s *Scheduler) waitForTasks(ctx context.Context, w int) {
	callProfiler(s.cfg.Profiler.WaitStart, w)
	defer callProfiler(s.cfg.Profiler.WaitStop, w)

	s.eventMu.Lock()
	s.numThreadsWaiting.Add(1)
	if !s.haveTasks(w) && s.running.Load() {
		if s.sleepWakeLog.ShouldLog() {
			log.VEventf(ctx, 2, "worker %d: parking, no work and no pinned tasks", w)
		}
		s.metrics.WorkersAsleep.Inc(1)
		s.newTaskEvent.Wait()
		s.metrics.WorkersAsleep.Inc(-1)
	}
	s.numThreadsWaiting.Add(^uint32(0))
	s.eventMu.Unlock()
}

// wake notifies any parked workers that new work may be available.
func (s *Scheduler) wake(ctx context.Context) {
	if s.numThreadsWaiting.Load() == 0 {
		return
	}
	if s.sleepWakeLog.ShouldLog() {
		log.VEventf(ctx, 2, "waking parked workers")
	}
	s.eventMu.Lock()
	s.newTaskEvent.Broadcast()
	s.eventMu.Unlock()
}

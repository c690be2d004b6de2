// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import "runtime"

// Config holds Scheduler construction parameters. Use the With* options with
// NewScheduler rather than constructing Config directly, matching the
// option-function convention of pkg/util/queue.NewQueue /
// pkg/util/quotapool.New.
type Config struct {
	// NumWorkers is N, the total number of workers including the caller
	// (worker 0). Defaults to runtime.NumCPU(), matching initialize()'s
	// hardware_concurrency default; NewScheduler panics if it is below 1.
	NumWorkers int
	// NumPriorities is P. Zero means numDefaultPriorities.
	NumPriorities int
	// PipeSizeLog2 sets each pipe's capacity to 2^PipeSizeLog2 slots. Zero
	// means defaultPipeSizeLog2 (256 slots).
	PipeSizeLog2 uint
	// SpinCount is the number of consecutive empty TryRunTask passes before
	// a worker parks in the sleep/wake condition variable.
	SpinCount uint32
	// SpinBackoffMultiplier scales the busy-wait between spin attempts.
	SpinBackoffMultiplier uint32
	// MaxInitialPartitions caps num_initial_partitions.
	MaxInitialPartitions int
	// MaxInlineDepth bounds the reentrant-submission depth a single
	// goroutine can reach via repeated pipe-overflow inline execution
	// (spec §9 Open Questions); exceeding it is a contract violation.
	MaxInlineDepth int
	// Profiler is an optional set of instrumentation hooks.
	Profiler ProfilerCallbacks
}

const (
	defaultSpinCount             = 100
	defaultSpinBackoffMultiplier = 10
	defaultMaxInitialPartitions  = 8
	defaultMaxInlineDepth        = 64
)

func defaultConfig() Config {
	return Config{
		NumWorkers:            runtime.NumCPU(),
		NumPriorities:         numDefaultPriorities,
		PipeSizeLog2:          defaultPipeSizeLog2,
		SpinCount:             defaultSpinCount,
		SpinBackoffMultiplier: defaultSpinBackoffMultiplier,
		MaxInitialPartitions:  defaultMaxInitialPartitions,
		MaxInlineDepth:        defaultMaxInlineDepth,
	}
}

// Option configures a Scheduler at construction time.
type Option func(*Config)

// WithNumWorkers sets the total worker count, including the caller.
func WithNumWorkers(n int) Option {
	return func(c *Config) { c.NumWorkers = n }
}

// WithPriorities sets P, the number of priority bands.
func WithPriorities(p int) Option {
	return func(c *Config) { c.NumPriorities = p }
}

// WithPipeSizeLog2 sets each pipe's capacity to 2^k slots.
func WithPipeSizeLog2(k uint) Option {
	return func(c *Config) { c.PipeSizeLog2 = k }
}

// WithMaxInitialPartitions caps num_initial_partitions.
func WithMaxInitialPartitions(n int) Option {
	return func(c *Config) { c.MaxInitialPartitions = n }
}

// WithMaxInlineDepth bounds reentrant inline-execution depth.
func WithMaxInlineDepth(n int) Option {
	return func(c *Config) { c.MaxInlineDepth = n }
}

// WithProfiler installs profiler callbacks.
func WithProfiler(cb ProfilerCallbacks) Option {
	return func(c *Config) { c.Profiler = cb }
}

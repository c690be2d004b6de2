// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package taskpool is a parallel task scheduler for data-parallel and pinned
// workloads on a fixed pool of worker goroutines. Client code submits task
// sets (a logical range [0, N) executed piecewise by a user-supplied range
// function) or pinned tasks (single callables bound to a specific worker).
//
// The scheduler partitions task-set ranges, dispatches them to per-worker
// queues, permits idle workers to steal from peers, supports a small fixed
// priority ladder, and provides blocking waits on individual task completion
// or on full quiescence. The design follows enkiTS (see
// https://github.com/dougbinks/enkiTS): a lock-free single-producer/
// multi-consumer ring pipe backs every worker's local queue, split-on-pop
// keeps steal granularity high without serializing the submitter, and a
// waiting-count-then-recheck protocol closes the classic sleep/wake race.
package taskpool

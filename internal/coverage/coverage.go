// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package coverage is a test helper that records the ranges a TaskSet's
// range function is invoked with and checks the exact-coverage property
// (spec §8 property 1): the union of executed ranges equals [0, set_size)
// with no overlap and no gap.
package coverage

import (
	"sort"

	"github.com/cockroachdb/taskpool/pkg/util/ring"
	"github.com/cockroachdb/taskpool/pkg/util/syncutil"
)

// span is the (start, end) pair recorded for one invocation.
type span struct {
	start, end uint32
}

// Tracker collects executed ranges from any number of concurrent goroutines
// and verifies they tile [0, setSize) exactly. The ring.Buffer backing the
// log is a deque, not a set -- append order is preserved, which is incidental
// here but is the reason it's the right fit over a plain slice guarded by the
// same mutex.
type Tracker struct {
	mu  syncutil.Mutex
	log ring.Buffer
}

// Record appends one executed range. Safe for concurrent use by workers and
// thieves alike.
func (t *Tracker) Record(start, end uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log.AddLast(span{start: start, end: end})
}

// Count returns the number of ranges recorded so far.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.log.Len()
}

// VerifyExactCoverage reports whether the recorded ranges tile [0, setSize)
// exactly: sorted by start, every range abuts the next with no gap and no
// overlap, the first starts at 0, and the last ends at setSize.
func (t *Tracker) VerifyExactCoverage(setSize uint32) (ok bool, detail string) {
	t.mu.Lock()
	spans := make([]span, t.log.Len())
	for i := range spans {
		spans[i] = t.log.Get(i).(span)
	}
	t.mu.Unlock()

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var cursor uint32
	for _, s := range spans {
		if s.start >= s.end {
			return false, "empty or inverted range recorded"
		}
		if s.start != cursor {
			return false, "gap or overlap before range"
		}
		cursor = s.end
	}
	if cursor != setSize {
		return false, "coverage does not reach set_size"
	}
	return true, ""
}

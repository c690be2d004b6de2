// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log is a small leveled, context-carrying logger in the calling
// convention of github.com/cockroachdb/cockroach/pkg/util/log (Infof/
// Warningf/Errorf take a context first, VEventf gates on a verbosity level).
// It also doubles as the carrier for the scheduler's per-goroutine worker-id
// tag, since Go has no safe thread-local storage: taskpool tags each worker's
// context with its worker id via logtags the way pkg/util/log/eventlog tags
// request contexts, and reads it back instead of relying on a C++-style
// thread_local.
package log

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/logtags"
)

// Severity mirrors the glog-style severity ladder pkg/util/log uses.
type Severity int32

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) letter() byte {
	switch s {
	case SeverityWarning:
		return 'W'
	case SeverityError:
		return 'E'
	case SeverityFatal:
		return 'F'
	default:
		return 'I'
	}
}

// verbosity gates VEventf the way pkg/util/log's --vmodule flag gates V(n).
// It is process-wide, matching the teacher's global verbosity level.
var verbosity atomic.Int32

// SetVerbosity sets the level VEventf compares against.
func SetVerbosity(level int) { verbosity.Store(int32(level)) }

const workerTagKey = "w"

// WithWorkerID tags ctx with the calling worker's stable id, readable by
// WorkerID from anywhere downstream in that goroutine's call chain. This is
// the idiomatic-Go substitute for the original's thread_local gtl_threadNum:
// explicit propagation through context.Context rather than hidden
// goroutine-local state.
func WithWorkerID(ctx context.Context, workerID int) context.Context {
	return logtags.AddTag(ctx, workerTagKey, workerID)
}

// WorkerID returns the worker id tagged on ctx by WithWorkerID, and false if
// ctx was never tagged (e.g. an external caller that isn't a scheduler
// worker and wasn't handed the root context returned by Scheduler.Start).
func WorkerID(ctx context.Context) (int, bool) {
	buf := logtags.FromContext(ctx)
	if buf == nil {
		return 0, false
	}
	for _, t := range buf.Get() {
		if t.Key() != workerTagKey {
			continue
		}
		if v, ok := t.Value().(int); ok {
			return v, true
		}
	}
	return 0, false
}

const inlineDepthTagKey = "depth"

// WithInlineDepth tags ctx with the current reentrant inline-execution
// depth. A task body that calls AddTaskSet again from inside its own Exec
// (because an earlier AddTaskSet call overflowed its pipe and ran a piece
// inline) must have that call counted against the same depth budget
// instead of resetting to zero, or the cap spec §9's Open Questions calls
// for never actually bounds anything. AddTaskSet reads this tag back via
// InlineDepth instead of always starting from zero.
func WithInlineDepth(ctx context.Context, depth int) context.Context {
	return logtags.AddTag(ctx, inlineDepthTagKey, depth)
}

// InlineDepth returns the depth tagged on ctx by WithInlineDepth, and false
// if ctx was never tagged -- the common case, since only the inline-overflow
// path tags its ctx before invoking the task body.
func InlineDepth(ctx context.Context) (int, bool) {
	buf := logtags.FromContext(ctx)
	if buf == nil {
		return 0, false
	}
	for _, t := range buf.Get() {
		if t.Key() != inlineDepthTagKey {
			continue
		}
		if v, ok := t.Value().(int); ok {
			return v, true
		}
	}
	return 0, false
}

func output(ctx context.Context, sev Severity, format string, args []interface{}) {
	var tagStr string
	if buf := logtags.FromContext(ctx); buf != nil {
		for _, t := range buf.Get() {
			tagStr += "[" + t.Key() + "=" + t.ValueStr() + "]"
		}
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%c%s %s%s\n", sev.letter(), time.Now().Format("0102 15:04:05.000000"), tagStr, msg)
}

// Infof logs at SeverityInfo.
func Infof(ctx context.Context, format string, args ...interface{}) {
	output(ctx, SeverityInfo, format, args)
}

// Warningf logs at SeverityWarning.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	output(ctx, SeverityWarning, format, args)
}

// Errorf logs at SeverityError.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	output(ctx, SeverityError, format, args)
}

// Fatalf logs at SeverityFatal and terminates the process, matching
// pkg/util/log.Fatalf's contract that it never returns.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	output(ctx, SeverityFatal, format, args)
	os.Exit(1)
}

// VEventf logs at SeverityInfo only if level is at or below the configured
// verbosity, matching pkg/util/log.VEventf's gating.
func VEventf(ctx context.Context, level int, format string, args ...interface{}) {
	if int32(level) > verbosity.Load() {
		return
	}
	output(ctx, SeverityInfo, format, args)
}

// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPinnedListDrainIsLIFO(t *testing.T) {
	var l pinnedList
	require.True(t, l.isEmpty())

	a := NewPinnedTask(0, PriorityHigh, func(context.Context) {})
	b := NewPinnedTask(0, PriorityHigh, func(context.Context) {})
	c := NewPinnedTask(0, PriorityHigh, func(context.Context) {})
	l.push(a)
	l.push(b)
	l.push(c)
	require.False(t, l.isEmpty())

	head := l.drain()
	require.True(t, l.isEmpty())

	var order []*PinnedTask
	for pt := head; pt != nil; pt = pt.next.Load() {
		order = append(order, pt)
	}
	require.Equal(t, []*PinnedTask{c, b, a}, order)
}

func TestPinnedListConcurrentPush(t *testing.T) {
	var l pinnedList
	const n = 1000
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			l.push(NewPinnedTask(0, PriorityHigh, func(context.Context) {}))
		}()
	}
	wg.Wait()

	count := 0
	for pt := l.drain(); pt != nil; pt = pt.next.Load() {
		count++
	}
	require.Equal(t, n, count)
}

func TestPinnedTaskRunsExactlyOnce(t *testing.T) {
	var runs int
	pt := NewPinnedTask(0, PriorityHigh, func(context.Context) { runs++ })
	pt.runningCount.Store(1)
	require.False(t, pt.IsComplete())

	pt.Exec(context.Background())
	pt.runningCount.Store(0)
	require.True(t, pt.IsComplete())
	require.Equal(t, 1, runs)
}

// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeFrontLIFO(t *testing.T) {
	p := newPipe(4) // 16 slots
	for i := uint32(0); i < 5; i++ {
		require.True(t, p.TryWriteFront(subTask{rng: Range{Start: i, End: i + 1}}))
	}
	require.False(t, p.IsEmpty())

	var got subTask
	for i := uint32(5); i > 0; i-- {
		require.True(t, p.TryReadFront(&got))
		require.Equal(t, i-1, got.rng.Start)
	}
	require.True(t, p.IsEmpty())
	require.False(t, p.TryReadFront(&got))
}

func TestPipeBackFIFO(t *testing.T) {
	p := newPipe(4)
	for i := uint32(0); i < 5; i++ {
		require.True(t, p.TryWriteFront(subTask{rng: Range{Start: i, End: i + 1}}))
	}

	var got subTask
	for i := uint32(0); i < 5; i++ {
		require.True(t, p.TryReadBack(&got))
		require.Equal(t, i, got.rng.Start)
	}
	require.False(t, p.TryReadBack(&got))
}

func TestPipeFullReturnsFalse(t *testing.T) {
	p := newPipe(2) // 4 slots
	for i := 0; i < 4; i++ {
		require.True(t, p.TryWriteFront(subTask{rng: Range{Start: uint32(i), End: uint32(i + 1)}}))
	}
	require.False(t, p.TryWriteFront(subTask{rng: Range{Start: 99, End: 100}}))
}

// TestPipeConcurrentOwnerAndThieves exercises the asymmetric access pattern
// directly: one owner pushing and popping the front while many thieves pop
// the back, checking every item is read exactly once overall.
func TestPipeConcurrentOwnerAndThieves(t *testing.T) {
	const n = 20_000
	p := newPipe(8) // 256 slots

	var read atomic.Int64
	var wg sync.WaitGroup
	stop := make(chan struct{})

	const thieves = 4
	wg.Add(thieves)
	for i := 0; i < thieves; i++ {
		go func() {
			defer wg.Done()
			var st subTask
			for {
				select {
				case <-stop:
					for p.TryReadBack(&st) {
						read.Add(1)
					}
					return
				default:
				}
				if p.TryReadBack(&st) {
					read.Add(1)
				}
			}
		}()
	}

	written := 0
	var out subTask
	for written < n {
		if p.TryWriteFront(subTask{rng: Range{Start: uint32(written), End: uint32(written + 1)}}) {
			written++
			continue
		}
		if p.TryReadFront(&out) {
			read.Add(1)
		}
	}
	for {
		if p.IsEmpty() {
			break
		}
		if p.TryReadFront(&out) {
			read.Add(1)
		}
	}
	close(stop)
	wg.Wait()

	require.EqualValues(t, n, read.Load())
}

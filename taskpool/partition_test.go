// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package taskpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionCountsSingleWorker(t *testing.T) {
	numPartitions, numInitial := partitionCounts(1, 8)
	require.EqualValues(t, 1, numPartitions)
	require.EqualValues(t, 1, numInitial)
}

func TestPartitionCountsMultiWorker(t *testing.T) {
	numPartitions, numInitial := partitionCounts(4, 8)
	require.EqualValues(t, 12, numPartitions) // N*(N-1)
	require.EqualValues(t, 3, numInitial)     // N-1, under the cap
}

func TestPartitionCountsCapsInitialPartitions(t *testing.T) {
	_, numInitial := partitionCounts(16, 8)
	require.EqualValues(t, 8, numInitial)
}

func TestSplitUnitRespectsMinRange(t *testing.T) {
	require.EqualValues(t, 10, splitUnit(100, 10, 100)) // would be 1, floored to min_range
	require.EqualValues(t, 25, splitUnit(100, 1, 4))
}

func TestSpanSplitFront(t *testing.T) {
	s := span{start: 0, end: 10}
	piece := s.splitFront(4)
	require.Equal(t, span{start: 0, end: 4}, piece)
	require.Equal(t, span{start: 4, end: 10}, s)

	// Cannot split more than what remains.
	piece = s.splitFront(100)
	require.Equal(t, span{start: 4, end: 10}, piece)
	require.EqualValues(t, 0, s.size())
}

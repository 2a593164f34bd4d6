package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributionRecordTracksHitsMissesAndThreads(t *testing.T) {
	a := NewAttribution()
	a.Record(1, 10, 0, true)
	a.Record(1, 10, 0, false)
	a.Record(1, 10, 1, false)

	lines := a.HotLines(0)
	assert.Len(t, lines, 1)
	assert.Equal(t, uint64(1), lines[0].Hits)
	assert.Equal(t, uint64(2), lines[0].Misses)
	assert.Equal(t, 2, lines[0].Threads)
}

func TestAttributionHotLinesRanksByMissesThenMissRateThenAccessesThenFirstSight(t *testing.T) {
	a := NewAttribution()
	// line A: 10 misses, 0 hits -> highest miss count
	for i := 0; i < 10; i++ {
		a.Record(1, 1, 0, false)
	}
	// line B: 5 misses, 0 hits -> second highest
	for i := 0; i < 5; i++ {
		a.Record(1, 2, 0, false)
	}
	// line C: 1 hit, 1 miss, seen before D
	a.Record(1, 3, 0, true)
	a.Record(1, 3, 0, false)
	// line D: identical hit/miss shape to C but recorded later
	a.Record(1, 4, 0, true)
	a.Record(1, 4, 0, false)

	lines := a.HotLines(0)
	assert.Len(t, lines, 4)
	assert.Equal(t, uint32(1), lines[0].LineNo)
	assert.Equal(t, uint32(2), lines[1].LineNo)
	assert.Equal(t, uint32(3), lines[2].LineNo) // first-sight tie-break before line 4
	assert.Equal(t, uint32(4), lines[3].LineNo)
}

func TestAttributionHotLinesRespectsLimit(t *testing.T) {
	a := NewAttribution()
	a.Record(1, 1, 0, false)
	a.Record(1, 2, 0, false)
	a.Record(1, 3, 0, false)

	assert.Len(t, a.HotLines(2), 2)
	assert.Len(t, a.HotLines(0), 3)
}

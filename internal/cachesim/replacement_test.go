package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoWayLevel(t *testing.T, policy ReplacementPolicy, seed int64) *CacheLevel {
	t.Helper()
	c, err := NewCacheLevel(LevelConfig{
		Name:              "L1D",
		Geometry:          Geometry{SizeBytes: 128, LineSize: 64, Associativity: 2},
		ReplacementPolicy: policy,
		RandomSeed:        seed,
	})
	require.NoError(t, err)
	return c
}

func TestLRUEvictsLeastRecentlyUsedWay(t *testing.T) {
	c := twoWayLevel(t, LRU, 0)
	// single set, 2 ways.
	c.Access(0, false)    // way 0
	c.Access(0x1000, false) // way 1
	c.Access(0, false)    // touch way 0 again, way 1 now oldest
	c.Access(0x2000, false) // must evict way 1 (0x1000)

	assert.True(t, c.IsPresent(0))
	assert.False(t, c.IsPresent(0x1000))
	assert.True(t, c.IsPresent(0x2000))
}

func TestPLRURejectsAssociativityBelowTwo(t *testing.T) {
	_, err := NewCacheLevel(LevelConfig{
		Geometry:          Geometry{SizeBytes: 64, LineSize: 64, Associativity: 1},
		ReplacementPolicy: PLRU,
	})
	assert.Error(t, err)
}

func TestPLRUStaysWithinCapacityAcrossRepeatedInstalls(t *testing.T) {
	c := twoWayLevel(t, PLRU, 0)
	for i := uint64(0); i < 8; i++ {
		c.Access(i*0x1000, false)
	}
	present := 0
	for i := uint64(0); i < 8; i++ {
		if c.IsPresent(i * 0x1000) {
			present++
		}
	}
	assert.Equal(t, 2, present) // only the most recent 2-way working set fits
}

func TestReplacementPolicyStringNames(t *testing.T) {
	assert.Equal(t, "lru", LRU.String())
	assert.Equal(t, "plru", PLRU.String())
	assert.Equal(t, "random", RandomReplacement.String())
	assert.Equal(t, "srrip", SRRIP.String())
	assert.Equal(t, "brrip", BRRIP.String())
}

func TestSRRIPEvictsAWayEventually(t *testing.T) {
	c := twoWayLevel(t, SRRIP, 0)
	c.Access(0, false)
	c.Access(0x1000, false)
	// both ways occupied; a third distinct line forces an eviction.
	c.Access(0x2000, false)
	present := 0
	for _, a := range []uint64{0, 0x1000, 0x2000} {
		if c.IsPresent(a) {
			present++
		}
	}
	assert.Equal(t, 2, present)
}

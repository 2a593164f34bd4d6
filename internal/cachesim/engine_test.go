package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleCoreConfig(t *testing.T) EngineConfig {
	t.Helper()
	return EngineConfig{
		NumCores:       1,
		LineSize:       64,
		L1:             LevelConfigParams{SizeBytes: 1024, Associativity: 2, Replacement: LRU},
		L2:             LevelConfigParams{SizeBytes: 4096, Associativity: 4, Replacement: LRU},
		InclusionL1L2:  NonInclusiveNonExclusive,
		PrefetchPolicy: PrefetchNone,
		Track3C:        true,
	}
}

func TestEngineFirstAccessIsCompulsoryMiss(t *testing.T) {
	m, err := NewMultiCoreCacheSystem(singleCoreConfig(t))
	require.NoError(t, err)

	levels := m.ProcessLoad(0, 0x1000, 4, 1, 10)
	require.Len(t, levels, 1)
	assert.Equal(t, HitMemory, levels[0])

	stats := m.AggregateL1DStats()
	assert.Equal(t, uint64(0), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Compulsory)
}

func TestEngineSecondAccessToSameLineIsHit(t *testing.T) {
	m, err := NewMultiCoreCacheSystem(singleCoreConfig(t))
	require.NoError(t, err)

	m.ProcessLoad(0, 0x1000, 4, 1, 10)
	levels := m.ProcessLoad(0, 0x1000, 4, 1, 10)

	require.Len(t, levels, 1)
	assert.Equal(t, HitL1, levels[0])
	stats := m.AggregateL1DStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestEngineEventsProcessedCountsEveryRecord(t *testing.T) {
	m, err := NewMultiCoreCacheSystem(singleCoreConfig(t))
	require.NoError(t, err)

	m.ProcessLoad(0, 0x1000, 4, 1, 10)
	m.ProcessStore(0, 0x2000, 4, 1, 11)
	m.ProcessIFetch(0, 0x3000, 4, 1, 12)

	assert.Equal(t, uint64(3), m.EventsProcessed())
}

func TestEngineBoundaryCrossingAccessSplitsIntoTwoSubAccesses(t *testing.T) {
	m, err := NewMultiCoreCacheSystem(singleCoreConfig(t))
	require.NoError(t, err)

	// line size 64: an 8-byte access starting 4 bytes before the boundary
	// spans two lines.
	levels := m.ProcessLoad(0, 60, 8, 1, 1)
	assert.Len(t, levels, 2)
}

func TestEngineRejectsZeroCores(t *testing.T) {
	cfg := singleCoreConfig(t)
	cfg.NumCores = 0
	_, err := NewMultiCoreCacheSystem(cfg)
	assert.Error(t, err)
	var invalid *InvalidConfigError
	assert.ErrorAs(t, err, &invalid)
}

func TestEngineNoL3MeansL2MissGoesToMemory(t *testing.T) {
	cfg := singleCoreConfig(t)
	m, err := NewMultiCoreCacheSystem(cfg)
	require.NoError(t, err)
	_, ok := m.L3Stats()
	assert.False(t, ok)

	m.ProcessLoad(0, 0x1000, 4, 1, 1)
	l2Stats := m.L2Stats()
	assert.Equal(t, uint64(1), l2Stats.Misses)
}

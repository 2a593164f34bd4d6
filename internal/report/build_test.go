package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cachesim/internal/cachesim"
	"cachesim/internal/trace"
)

func newTestEngine(t *testing.T) (*cachesim.MultiCoreCacheSystem, *trace.Interner) {
	t.Helper()
	m, err := cachesim.NewMultiCoreCacheSystem(cachesim.EngineConfig{
		NumCores:      1,
		LineSize:      64,
		L1:            cachesim.LevelConfigParams{SizeBytes: 1024, Associativity: 2, Replacement: cachesim.LRU},
		L2:            cachesim.LevelConfigParams{SizeBytes: 4096, Associativity: 4, Replacement: cachesim.LRU},
		InclusionL1L2: cachesim.NonInclusiveNonExclusive,
		Track3C:       true,
	})
	require.NoError(t, err)
	return m, trace.NewInterner()
}

func TestBuildReportsBasicLevelStats(t *testing.T) {
	engine, interner := newTestEngine(t)
	fileID := interner.Intern("a.c")
	engine.ProcessLoad(0, 0x1000, 4, fileID, 10)
	engine.ProcessLoad(0, 0x1000, 4, fileID, 10)

	rep, err := Build(engine, interner, BuildConfig{ConfigName: "test", Cores: 1, Latency: LatencyConfig{L1Hit: 4, L2Hit: 12, Memory: 200}})
	require.NoError(t, err)

	assert.Equal(t, "test", rep.Config)
	assert.Equal(t, uint64(2), rep.Events)
	assert.Equal(t, uint64(1), rep.Levels.L1D.Hits)
	assert.Equal(t, uint64(1), rep.Levels.L1D.Misses)
	assert.Nil(t, rep.Levels.L3)
	assert.False(t, rep.Multicore)
}

func TestBuildOmitsCacheStateUnlessRequested(t *testing.T) {
	engine, interner := newTestEngine(t)
	engine.ProcessLoad(0, 0x1000, 4, 0, 1)

	rep, err := Build(engine, interner, BuildConfig{Cores: 1})
	require.NoError(t, err)
	assert.Nil(t, rep.CacheState)

	rep2, err := Build(engine, interner, BuildConfig{Cores: 1, IncludeState: true})
	require.NoError(t, err)
	require.NotNil(t, rep2.CacheState)
	assert.Len(t, rep2.CacheState.L1D, 1)
}

func TestBuildResolvesHotLineFileNamesThroughInterner(t *testing.T) {
	engine, interner := newTestEngine(t)
	fileID := interner.Intern("hot.c")
	engine.ProcessLoad(0, 0x1000, 4, fileID, 99)
	engine.ProcessLoad(0, 0x2000, 4, fileID, 99)

	rep, err := Build(engine, interner, BuildConfig{Cores: 1})
	require.NoError(t, err)
	require.NotEmpty(t, rep.HotLines)
	assert.Equal(t, "hot.c", rep.HotLines[0].File)
	assert.Equal(t, uint32(99), rep.HotLines[0].Line)
}

func TestBuildFlagsFalseSharingSuggestion(t *testing.T) {
	engine, interner := newTestEngine(t)
	fileA := interner.Intern("a.c")
	fileB := interner.Intern("b.c")

	engine.ProcessLoad(0, 0x1000, 1, fileA, 1)
	engine.ProcessStore(1, 0x1004, 1, fileB, 2)

	rep, err := Build(engine, interner, BuildConfig{Cores: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rep.Coherence.FalseSharingEvents)

	var found bool
	for _, s := range rep.Suggestions {
		if s.Type == "false_sharing" {
			found = true
			assert.Equal(t, "b.c:2", s.Location)
		}
	}
	assert.True(t, found)
}

func TestBuildFlagsConsiderTilingSuggestionOnStridedHotLine(t *testing.T) {
	engine, err := cachesim.NewMultiCoreCacheSystem(cachesim.EngineConfig{
		NumCores:       1,
		LineSize:       64,
		L1:             cachesim.LevelConfigParams{SizeBytes: 1024, Associativity: 2, Replacement: cachesim.LRU},
		L2:             cachesim.LevelConfigParams{SizeBytes: 4096, Associativity: 4, Replacement: cachesim.LRU},
		InclusionL1L2:  cachesim.NonInclusiveNonExclusive,
		PrefetchPolicy: cachesim.PrefetchStride,
		PrefetchDegree: 1,
		Track3C:        true,
	})
	require.NoError(t, err)
	interner := trace.NewInterner()
	fileID := interner.Intern("tile.c")

	// Three demand misses on line 5 with a constant 0x1000 stride locks the
	// stride prefetcher onto the site (two matching strides to confirm).
	engine.ProcessLoad(0, 0x10000, 4, fileID, 5)
	engine.ProcessLoad(0, 0x11000, 4, fileID, 5)
	engine.ProcessLoad(0, 0x12000, 4, fileID, 5)

	rep, err := Build(engine, interner, BuildConfig{Cores: 1})
	require.NoError(t, err)

	var found bool
	for _, s := range rep.Suggestions {
		if s.Type == "consider_tiling" {
			found = true
			assert.Equal(t, "tile.c:5", s.Location)
		}
	}
	assert.True(t, found)
}

func TestNewProgressEventOmitsL3WhenEngineHasNone(t *testing.T) {
	pe := NewProgressEvent(cachesim.ProgressEvent{Events: 5}, false)
	assert.Equal(t, "progress", pe.Type)
	assert.Nil(t, pe.L3)
}

func TestLevelStatsMissRateZeroWhenNoAccesses(t *testing.T) {
	var s LevelStats
	assert.Equal(t, 0.0, s.MissRate())
}

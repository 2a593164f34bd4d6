package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrefetchPolicyRoundTripsKnownNames(t *testing.T) {
	for name, want := range map[string]PrefetchPolicy{
		"":       PrefetchNone,
		"none":   PrefetchNone,
		"next":   PrefetchNextLine,
		"stream": PrefetchStream,
		"stride": PrefetchStride,
		"intel":  PrefetchIntel,
	} {
		got, err := ParsePrefetchPolicy(name)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParsePrefetchPolicyRejectsUnknown(t *testing.T) {
	_, err := ParsePrefetchPolicy("bogus")
	assert.Error(t, err)
	var invalid *InvalidConfigError
	assert.ErrorAs(t, err, &invalid)
}

func TestPrefetcherNoneNeverIssues(t *testing.T) {
	p := NewPrefetcher(PrefetchNone, 64, 2)
	assert.Nil(t, p.OnMiss(0x1000, 0, 1))
	assert.Equal(t, uint64(0), p.Issued())
}

func TestPrefetcherNextLineEmitsDegreeLinesAhead(t *testing.T) {
	p := NewPrefetcher(PrefetchNextLine, 64, 2)
	candidates := p.OnMiss(0x1000, 0, 1)
	assert.Equal(t, []uint64{0x1040, 0x1080}, candidates)
	assert.Equal(t, uint64(2), p.Issued())
}

func TestPrefetcherStreamLocksOnAfterSecondConsecutiveMiss(t *testing.T) {
	p := NewPrefetcher(PrefetchStream, 64, 2)
	first := p.OnMiss(0x1000, 0, 1)
	assert.Nil(t, first)

	second := p.OnMiss(0x1040, 0, 1)
	assert.Equal(t, []uint64{0x1080, 0x10c0}, second)
}

func TestPrefetcherStrideLocksOnAfterTwoMatchingStrides(t *testing.T) {
	p := NewPrefetcher(PrefetchStride, 64, 1)
	assert.Nil(t, p.OnMiss(0x1000, 1, 42))
	assert.Nil(t, p.OnMiss(0x1020, 1, 42)) // establishes stride 0x20, not yet confident
	third := p.OnMiss(0x1040, 1, 42)       // confirms stride 0x20
	assert.Equal(t, []uint64{0x1060}, third)
	assert.Equal(t, []StridedSite{{FileID: 1, LineNo: 42}}, p.StridedSites())
}

func TestPrefetcherNoteDemandHitCreditsUsefulAndAccuracy(t *testing.T) {
	p := NewPrefetcher(PrefetchNextLine, 64, 2)
	candidates := p.OnMiss(0x1000, 0, 1)
	p.NoteDemandHit(candidates[0])

	assert.Equal(t, uint64(1), p.Useful())
	assert.InDelta(t, 0.5, p.Accuracy(), 1e-9)
}

func TestPrefetcherAccuracyZeroBeforeAnyIssue(t *testing.T) {
	p := NewPrefetcher(PrefetchNextLine, 64, 1)
	assert.Equal(t, 0.0, p.Accuracy())
}

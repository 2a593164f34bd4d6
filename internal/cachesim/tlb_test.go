package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTLBRejectsNonPowerOfTwoSetCount(t *testing.T) {
	_, err := NewTLB(TLBConfig{Entries: 12, Associativity: 1})
	assert.Error(t, err)
	var invalid *InvalidConfigError
	assert.ErrorAs(t, err, &invalid)
}

func TestNewTLBRejectsZeroAssociativity(t *testing.T) {
	_, err := NewTLB(TLBConfig{Entries: 16, Associativity: 0})
	assert.Error(t, err)
}

func TestTLBAccessMissThenHitOnSamePage(t *testing.T) {
	tlb, err := NewTLB(TLBConfig{Entries: 4, Associativity: 1})
	require.NoError(t, err)

	assert.Equal(t, Miss, tlb.Access(0x1000))
	assert.Equal(t, Hit, tlb.Access(0x1000))
	assert.Equal(t, Hit, tlb.Access(0x1fff)) // same 4KB page

	hits, misses := tlb.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestTLBHitRateZeroWithNoAccesses(t *testing.T) {
	tlb, err := NewTLB(TLBConfig{Entries: 4, Associativity: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, tlb.HitRate())
}

func TestTLBEvictsLeastRecentlyUsedEntry(t *testing.T) {
	tlb, err := NewTLB(TLBConfig{Entries: 2, Associativity: 2})
	require.NoError(t, err)

	pageBits := uint64(defaultPageBits)
	page0 := uint64(0) << pageBits
	page1 := uint64(1) << pageBits
	page2 := uint64(2) << pageBits

	tlb.Access(page0)
	tlb.Access(page1)
	tlb.Access(page0) // refresh page0's LRU age, page1 becomes the victim
	tlb.Access(page2) // evicts page1
	assert.Equal(t, Hit, tlb.Access(page0))

	_, missesBefore := tlb.Stats()
	assert.Equal(t, Miss, tlb.Access(page1))
	_, missesAfter := tlb.Stats()
	assert.Equal(t, missesBefore+1, missesAfter)
}

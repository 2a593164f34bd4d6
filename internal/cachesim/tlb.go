package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// tlb.go implements the set-associative translation cache of spec §4.4.
// Entries are independent of cache lines: a TLB tracks page numbers only
// and never interacts with coherence state.

import "cachesim/internal/util"

// defaultPageBits is 4 KB pages, the common case across the hardware
// presets of spec §6.4.
const defaultPageBits = 12

type tlbEntry struct {
	valid  bool
	page   uint64
	lruAge uint64
}

// TLB is a small set-associative translation cache keyed on page number
// (spec §4.4).
type TLB struct {
	sets      [][]tlbEntry
	pageBits  uint
	setBits   uint
	lruClock  uint64
	hits      uint64
	misses    uint64
}

// TLBConfig configures one TLB instance.
type TLBConfig struct {
	Entries       int
	Associativity int
	PageBits      uint // 0 defaults to defaultPageBits
}

// NewTLB constructs a TLB, rejecting a non-power-of-two set count the same
// way a CacheLevel rejects a bad geometry (spec §4.2's construction-time
// failure semantics apply equally here).
func NewTLB(cfg TLBConfig) (*TLB, error) {
	if cfg.Associativity < 1 {
		return nil, &InvalidConfigError{Reason: "tlb associativity must be >= 1"}
	}
	if cfg.Entries < cfg.Associativity || cfg.Entries%cfg.Associativity != 0 {
		return nil, &InvalidConfigError{Reason: "tlb entries must be an even multiple of associativity"}
	}
	numSets := uint64(cfg.Entries / cfg.Associativity)
	if numSets == 0 || !util.IsPowerOfTwo(numSets) {
		return nil, &InvalidConfigError{Reason: "tlb entries/associativity must be a power of two"}
	}
	pageBits := cfg.PageBits
	if pageBits == 0 {
		pageBits = defaultPageBits
	}
	t := &TLB{
		sets:     make([][]tlbEntry, numSets),
		pageBits: pageBits,
		setBits:  util.Log2(numSets),
	}
	for i := range t.sets {
		t.sets[i] = make([]tlbEntry, cfg.Associativity)
	}
	return t, nil
}

func (t *TLB) pageOf(addr uint64) uint64 { return addr >> t.pageBits }

func (t *TLB) setIndexOf(page uint64) uint64 {
	return page & (uint64(len(t.sets)) - 1)
}

// Access performs a TLB lookup for addr, installing the page on a miss
// (spec §4.4).
func (t *TLB) Access(addr uint64) AccessResult {
	page := t.pageOf(addr)
	set := t.sets[t.setIndexOf(page)]
	t.lruClock++
	for i := range set {
		if set[i].valid && set[i].page == page {
			set[i].lruAge = t.lruClock
			t.hits++
			return Hit
		}
	}
	t.misses++
	victim := 0
	for i := range set {
		if !set[i].valid {
			victim = i
			break
		}
		if set[i].lruAge < set[victim].lruAge {
			victim = i
		}
	}
	set[victim] = tlbEntry{valid: true, page: page, lruAge: t.lruClock}
	return Miss
}

// Stats returns (hits, misses) for the TLB.
func (t *TLB) Stats() (hits, misses uint64) { return t.hits, t.misses }

// HitRate returns hits / (hits + misses), 0 if no accesses were made.
func (t *TLB) HitRate() float64 {
	total := t.hits + t.misses
	if total == 0 {
		return 0
	}
	return float64(t.hits) / float64(total)
}

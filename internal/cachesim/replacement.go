package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// replacement.go implements the replacement-policy capability of spec §4.2
// / §9 ("Replacement policies as a capability"): on_hit(way), on_install(way),
// pick_victim() -> way, selected once at cache construction and shared by
// every set in the level.

import "math/rand"

// ReplacementPolicy names a way-selection strategy for evictions.
type ReplacementPolicy uint8

const (
	LRU ReplacementPolicy = iota
	PLRU
	RandomReplacement
	SRRIP
	BRRIP
)

func (p ReplacementPolicy) String() string {
	switch p {
	case PLRU:
		return "plru"
	case RandomReplacement:
		return "random"
	case SRRIP:
		return "srrip"
	case BRRIP:
		return "brrip"
	default:
		return "lru"
	}
}

// rripMax is 2^M - 1 for the M=2 counter width spec §4.2 specifies.
const rripMax uint8 = 3

// rripLong is the value installed by SRRIP: 2^M - 2.
const rripLong uint8 = 2

// findFreeWay returns the index of the first invalid way, or -1 if the set
// is full. A free way is always preferred over evicting a valid line,
// regardless of policy.
func findFreeWay(lines []line) int {
	for i := range lines {
		if !lines[i].valid {
			return i
		}
	}
	return -1
}

// pickVictim selects a way to evict according to s's configured policy.
// Assumes the set has no free way (callers check findFreeWay first).
func (s *cacheSet) pickVictim() int {
	switch s.policy {
	case PLRU:
		return s.plruPickVictim()
	case RandomReplacement:
		return s.rng.Intn(len(s.lines))
	case SRRIP, BRRIP:
		return s.rripPickVictim()
	default: // LRU
		return s.lruPickVictim()
	}
}

// onHit updates replacement bookkeeping for a hit at way.
func (s *cacheSet) onHit(way int) {
	switch s.policy {
	case PLRU:
		s.plruOnAccess(way)
	case SRRIP, BRRIP:
		s.lines[way].rrip = 0
	default: // LRU and Random both track an LRU clock for diagnostics/LRU itself
		s.lruClock++
		s.lines[way].lruAge = s.lruClock
	}
}

// onInstall updates replacement bookkeeping for a newly-installed line at
// way (a miss, whether into a free way or a just-evicted one).
func (s *cacheSet) onInstall(way int) {
	switch s.policy {
	case PLRU:
		s.plruOnAccess(way)
	case SRRIP:
		s.lines[way].rrip = rripLong
	case BRRIP:
		if s.rng.Intn(32) == 0 {
			s.lines[way].rrip = rripLong
		} else {
			s.lines[way].rrip = rripMax
		}
	default: // LRU, Random
		s.lruClock++
		s.lines[way].lruAge = s.lruClock
	}
}

func (s *cacheSet) lruPickVictim() int {
	victim := 0
	oldest := s.lines[0].lruAge
	for i := 1; i < len(s.lines); i++ {
		if s.lines[i].lruAge < oldest {
			oldest = s.lines[i].lruAge
			victim = i
		}
	}
	return victim
}

// rripPickVictim scans for a far (max) counter, incrementing all counters
// and rescanning if none is found yet, per spec §4.2.
func (s *cacheSet) rripPickVictim() int {
	for {
		for i := range s.lines {
			if s.lines[i].rrip == rripMax {
				return i
			}
		}
		for i := range s.lines {
			if s.lines[i].rrip < rripMax {
				s.lines[i].rrip++
			}
		}
	}
}

// plruPickVictim walks the assoc-1 bit tree towards the stale half at each
// level, landing on a leaf (way) that has not been the target of the most
// recent access on either side of the tree.
func (s *cacheSet) plruPickVictim() int {
	node := 0
	lo, hi := 0, len(s.lines)
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if !s.plruBits[node] {
			hi = mid
			node = 2*node + 1
		} else {
			lo = mid
			node = 2*node + 2
		}
	}
	return lo
}

// plruOnAccess updates the bit tree so that future pickVictim calls steer
// away from the half of the tree containing way.
func (s *cacheSet) plruOnAccess(way int) {
	node := 0
	lo, hi := 0, len(s.lines)
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if way < mid {
			s.plruBits[node] = true
			hi = mid
			node = 2*node + 1
		} else {
			s.plruBits[node] = false
			lo = mid
			node = 2*node + 2
		}
	}
}

// newRand returns a deterministic PRNG seeded from seed, used by the
// Random and BRRIP policies to preserve run-to-run determinism (spec §7,
// §9 "Random policy takes a seeded PRNG").
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

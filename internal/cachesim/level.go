package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"container/list"

	mapset "github.com/deckarep/golang-set/v2"

	"cachesim/internal/util"
)

// Writeback describes a dirty line evicted from a level, to be propagated
// to the next level outward (spec §3, "Cache line" lifecycle; §4.2).
type Writeback struct {
	Address uint64
}

// LevelConfig is the construction-time configuration of one CacheLevel.
type LevelConfig struct {
	Name              string // "L1D", "L1I", "L2", "L3", for logging and the report
	Geometry          Geometry
	ReplacementPolicy ReplacementPolicy
	WritePolicy       WritePolicy
	Inclusion         InclusionPolicy
	Track3C           bool // false enables "fast mode" (spec §9)
	RandomSeed        int64
}

// CacheLevel is one set-associative cache with configurable geometry,
// replacement policy, coherence state per line, write-back bookkeeping,
// and miss-classification metadata (spec §4.2).
type CacheLevel struct {
	cfg   LevelConfig
	sets  []*cacheSet
	stats Stats

	everSeen mapset.Set[uint64] // compulsory-miss tracking, nil if !Track3C

	// victimHistory models "what a fully-associative cache of the same
	// capacity would hold" (spec §3, "Victim history"): the most recently
	// evicted line addresses, bounded to the level's total line capacity.
	victimHistory      *list.List
	victimHistoryIndex map[uint64]*list.Element
	victimCapacity     int
}

// NewCacheLevel validates cfg and constructs a CacheLevel, rejecting an
// invalid geometry or policy combination per spec §4.2 ("Failure
// semantics"): bad configuration is detected at construction, never at
// runtime.
func NewCacheLevel(cfg LevelConfig) (*CacheLevel, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReplacementPolicy == PLRU {
		assoc := uint64(cfg.Geometry.Associativity)
		if assoc < 2 || (assoc&(assoc-1)) != 0 {
			return nil, &InvalidConfigError{Reason: "PLRU requires a power-of-two associativity >= 2"}
		}
	}
	numSets := int(cfg.Geometry.NumSets())
	rng := newRand(cfg.RandomSeed)
	c := &CacheLevel{
		cfg:  cfg,
		sets: make([]*cacheSet, numSets),
	}
	for i := range c.sets {
		c.sets[i] = newCacheSet(cfg.Geometry.Associativity, cfg.ReplacementPolicy, rng)
	}
	if cfg.Track3C {
		c.everSeen = mapset.NewThreadUnsafeSet[uint64]()
		c.victimHistory = list.New()
		c.victimHistoryIndex = make(map[uint64]*list.Element)
		c.victimCapacity = int(cfg.Geometry.SizeBytes / cfg.Geometry.LineSize)
	}
	return c, nil
}

// Name returns the level's configured name ("L1D", "L2", ...).
func (c *CacheLevel) Name() string { return c.cfg.Name }

// Geometry returns the level's geometry.
func (c *CacheLevel) Geometry() Geometry { return c.cfg.Geometry }

// GetStats returns a snapshot of the level's monotonic counters.
func (c *CacheLevel) GetStats() Stats { return c.stats }

func (c *CacheLevel) partsOf(lineAddr uint64) addressParts {
	return decompose(lineAddr, c.cfg.Geometry)
}

// IsPresent is a non-mutating lookup: it does not update replacement
// metadata (spec §4.2).
func (c *CacheLevel) IsPresent(lineAddr uint64) bool {
	parts := c.partsOf(lineAddr)
	return c.sets[parts.SetIndex].findWayByTag(parts.Tag) >= 0
}

// Access performs a single-core demand access: replacement update and
// dirty-marking on hit; full miss handling (classification, eviction,
// install with Exclusive/Modified state) on miss. Multi-core callers
// generally use IsPresent/TouchHit/MissInstall/InstallWithState directly
// so that MESI state can be directed by the coherence directory instead
// of this method's single-core default (spec §4.2, §4.7).
func (c *CacheLevel) Access(lineAddr uint64, isWrite bool) (AccessResult, MissKind, *Writeback) {
	if c.IsPresent(lineAddr) {
		c.TouchHit(lineAddr, isWrite)
		return Hit, MissNone, nil
	}
	state := Exclusive
	if isWrite {
		state = Modified
	}
	mk, wb := c.MissInstall(lineAddr, isWrite, state)
	return Miss, mk, wb
}

// TouchHit updates replacement bookkeeping and stats for a demand hit
// already confirmed present via IsPresent.
func (c *CacheLevel) TouchHit(lineAddr uint64, isWrite bool) {
	parts := c.partsOf(lineAddr)
	set := c.sets[parts.SetIndex]
	way := set.findWayByTag(parts.Tag)
	if way < 0 {
		return // caller error: not present; Access operations never fail per spec §4.2
	}
	set.onHit(way)
	if isWrite {
		set.lines[way].dirty = true
		set.lines[way].state = Modified
	}
	c.stats.Hits++
}

// classify3C derives the miss kind for a demand miss on lineAddr and
// records it into the ever-seen set (spec §3, §4.2). Returns MissNone
// when 3C tracking is disabled (fast mode).
func (c *CacheLevel) classify3C(lineAddr uint64) MissKind {
	if !c.cfg.Track3C {
		return MissNone
	}
	if !c.everSeen.Contains(lineAddr) {
		c.everSeen.Add(lineAddr)
		return Compulsory
	}
	if c.victimHistoryContains(lineAddr) {
		return Conflict
	}
	return Capacity
}

// MissInstall handles a demand miss: classifies it, charges the Misses
// counter and the matching 3C counter, then installs the line with the
// given initial coherence state (Exclusive/Modified for single-core
// callers, directory-directed for multi-core).
func (c *CacheLevel) MissInstall(lineAddr uint64, isWrite bool, state CoherenceState) (MissKind, *Writeback) {
	c.stats.Misses++
	mk := c.classify3C(lineAddr)
	switch mk {
	case Compulsory:
		c.stats.Compulsory++
	case Capacity:
		c.stats.Capacity++
	case Conflict:
		c.stats.Conflict++
	}
	wb := c.installCommon(lineAddr, isWrite, state)
	return mk, wb
}

// InstallWithState installs lineAddr without charging demand stats (spec
// §4.7 step 6: prefetch fills "traverse L2/L3 as with a demand access but
// without charging to demand stats"). If the line is already present the
// call is a no-op beyond a replacement touch, matching the idempotent-
// installation invariant (spec §8 property 10).
func (c *CacheLevel) InstallWithState(lineAddr uint64, state CoherenceState) *Writeback {
	parts := c.partsOf(lineAddr)
	set := c.sets[parts.SetIndex]
	if way := set.findWayByTag(parts.Tag); way >= 0 {
		set.onHit(way)
		return nil
	}
	return c.installCommon(lineAddr, false, state)
}

// installCommon performs victim selection, writeback emission on a dirty
// eviction, and installation of the new line. Victim history is updated
// unconditionally: it models real cache eviction behavior regardless of
// whether the triggering access was a demand miss or a prefetch fill.
// everSeen is likewise marked unconditionally (spec §3: the ever-seen set
// is lines that have ever been installed, not just demand-installed), so a
// line first brought in by a prefetch, later evicted, then demanded, still
// classifies as Conflict/Capacity rather than Compulsory.
func (c *CacheLevel) installCommon(lineAddr uint64, dirty bool, state CoherenceState) *Writeback {
	if c.cfg.Track3C {
		c.everSeen.Add(lineAddr)
	}

	parts := c.partsOf(lineAddr)
	set := c.sets[parts.SetIndex]

	way := findFreeWay(set.lines)
	var wb *Writeback
	if way < 0 {
		way = set.pickVictim()
		victim := &set.lines[way]
		if victim.valid {
			victimAddr := reconstructAddress(victim.tag, parts.SetIndex, c.cfg.Geometry)
			if c.cfg.Track3C {
				c.pushVictimHistory(victimAddr)
			}
			if victim.dirty {
				wb = &Writeback{Address: victimAddr}
				c.stats.Writebacks++
			}
		}
	}

	set.lines[way].reset()
	set.lines[way].valid = true
	set.lines[way].tag = parts.Tag
	set.lines[way].dirty = dirty
	set.lines[way].state = state
	set.onInstall(way)
	return wb
}

// SetCoherenceState forces an externally-driven MESI transition, e.g. from
// the coherence directory in response to a peer's request (spec §4.2,
// §4.5). A no-op if the line is not present.
func (c *CacheLevel) SetCoherenceState(lineAddr uint64, state CoherenceState) {
	parts := c.partsOf(lineAddr)
	set := c.sets[parts.SetIndex]
	if way := set.findWayByTag(parts.Tag); way >= 0 {
		set.lines[way].state = state
	}
}

// MarkDirty sets the dirty bit on an already-present line, used by the
// engine to propagate a writeback from an inner level up to this one
// (spec §4.2, "on eviction of a dirty line, a writeback event is emitted
// to the next level"). A no-op if the line is not present.
func (c *CacheLevel) MarkDirty(lineAddr uint64) {
	parts := c.partsOf(lineAddr)
	set := c.sets[parts.SetIndex]
	if way := set.findWayByTag(parts.Tag); way >= 0 {
		set.lines[way].dirty = true
	}
}

// DowngradeToShared is a convenience for the M->S (or E->S) snoop-read
// transition (spec §4.2).
func (c *CacheLevel) DowngradeToShared(lineAddr uint64) {
	c.SetCoherenceState(lineAddr, Shared)
}

// FlushToShared implements the M->S snoop-read transition of spec §4.5:
// "that core transitions M->S and flushes (writeback to L2/L3
// conceptually)". The line stays resident (unlike Invalidate), its dirty
// bit clears, and a Writeback is returned if it was dirty.
func (c *CacheLevel) FlushToShared(lineAddr uint64) *Writeback {
	parts := c.partsOf(lineAddr)
	set := c.sets[parts.SetIndex]
	way := set.findWayByTag(parts.Tag)
	if way < 0 {
		return nil
	}
	var wb *Writeback
	if set.lines[way].dirty {
		wb = &Writeback{Address: lineAddr}
		c.stats.Writebacks++
		set.lines[way].dirty = false
	}
	set.lines[way].state = Shared
	return wb
}

// Invalidate forces lineAddr to Invalid. If the line was dirty, its data
// is returned as a Writeback so the caller can propagate it outward
// (spec §4.2).
func (c *CacheLevel) Invalidate(lineAddr uint64) *Writeback {
	parts := c.partsOf(lineAddr)
	set := c.sets[parts.SetIndex]
	way := set.findWayByTag(parts.Tag)
	if way < 0 {
		return nil
	}
	var wb *Writeback
	if set.lines[way].dirty {
		wb = &Writeback{Address: lineAddr}
		c.stats.Writebacks++
	}
	set.lines[way].reset()
	return wb
}

// CoherenceStateOf returns the line's current state and whether it is
// present at all.
func (c *CacheLevel) CoherenceStateOf(lineAddr uint64) (CoherenceState, bool) {
	parts := c.partsOf(lineAddr)
	set := c.sets[parts.SetIndex]
	way := set.findWayByTag(parts.Tag)
	if way < 0 {
		return Invalid, false
	}
	return set.lines[way].state, true
}

func (c *CacheLevel) victimHistoryContains(addr uint64) bool {
	_, ok := c.victimHistoryIndex[addr]
	return ok
}

func (c *CacheLevel) pushVictimHistory(addr uint64) {
	if elem, ok := c.victimHistoryIndex[addr]; ok {
		c.victimHistory.MoveToFront(elem)
		return
	}
	elem := c.victimHistory.PushFront(addr)
	c.victimHistoryIndex[addr] = elem
	if c.victimHistory.Len() > c.victimCapacity {
		back := c.victimHistory.Back()
		c.victimHistory.Remove(back)
		delete(c.victimHistoryIndex, back.Value.(uint64))
	}
}

// reconstructAddress rebuilds a line-aligned address from a tag and set
// index under geometry g, the inverse of decompose.
func reconstructAddress(tag, setIndex uint64, g Geometry) uint64 {
	offsetBits := util.Log2(g.LineSize)
	setBits := util.Log2(g.NumSets())
	return (tag << (offsetBits + setBits)) | (setIndex << offsetBits)
}

// LineSnapshot is one way's state, for the report's cacheState dump
// (spec §6.2, §4.2 get_state_snapshot).
type LineSnapshot struct {
	Set   int
	Way   int
	Valid bool
	Tag   uint64
	State CoherenceState
}

// GetStateSnapshot returns every way's state for the UI cache-state view.
func (c *CacheLevel) GetStateSnapshot() []LineSnapshot {
	snap := make([]LineSnapshot, 0, len(c.sets)*len(c.sets[0].lines))
	for setIdx, set := range c.sets {
		for wayIdx, l := range set.lines {
			snap = append(snap, LineSnapshot{Set: setIdx, Way: wayIdx, Valid: l.valid, Tag: l.tag, State: l.state})
		}
	}
	return snap
}

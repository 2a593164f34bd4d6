package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// engine.go implements the multi-core cache system of spec §4.7, the
// top-level engine binding per-core L1s, a shared L2, a shared L3, the
// coherence directory, per-core prefetchers, per-core TLBs, and the
// false-sharing detector. The simulation itself is single-threaded and
// deterministic (spec §5): there is no parallel processing of events.

// HitLevel is the first cache in the hierarchy at which a demand access
// found the line; Memory if none (spec GLOSSARY, "Hit level").
type HitLevel uint8

const (
	HitL1 HitLevel = iota
	HitL2
	HitL3
	HitMemory
)

func (h HitLevel) String() string {
	switch h {
	case HitL1:
		return "L1"
	case HitL2:
		return "L2"
	case HitL3:
		return "L3"
	default:
		return "memory"
	}
}

// EventKind mirrors trace.Kind without importing the trace package, so
// cachesim has no dependency on the decoder.
type EventKind uint8

const (
	EventLoad EventKind = iota
	EventStore
	EventIFetch
)

// TimelineEvent is one reconstructible event for the optional UI scrubber
// (spec §3). The engine appends to its timeline but never reads it back.
type TimelineEvent struct {
	Index    int
	Kind     EventKind
	HitLevel HitLevel
	Address  uint64
	FileID   int32
	LineNo   uint32
}

// EngineConfig is the full construction-time configuration of a
// MultiCoreCacheSystem (spec §4.7).
type EngineConfig struct {
	NumCores        int
	LineSize        uint64
	SeparateL1I     bool // unified L1 (false) vs split L1D/L1I (true)
	L1              LevelConfigParams
	L2              LevelConfigParams
	L3              *LevelConfigParams // nil: no L3, L2 misses go to memory
	InclusionL1L2   InclusionPolicy
	InclusionL2L3   InclusionPolicy
	PrefetchPolicy  PrefetchPolicy
	PrefetchDegree  int
	Track3C         bool
	DTLB            *TLBConfig // nil disables D-TLB modeling
	ITLB            *TLBConfig
	RandomSeed      int64
	IFetchFine      bool // spec §9 open question: coarse (false, default) vs fine
	RecordTimeline  bool
}

// LevelConfigParams is the geometry/policy subset needed to build a
// CacheLevel, independent of the level's role in the hierarchy.
type LevelConfigParams struct {
	SizeBytes     uint64
	Associativity int
	Replacement   ReplacementPolicy
}

// MultiCoreCacheSystem is the top-level engine (spec §4.7, §3 "Ownership":
// "The multi-core system exclusively owns all caches, prefetchers, TLBs,
// the coherence directory, the attribution aggregator, and the
// false-sharing ledger").
type MultiCoreCacheSystem struct {
	cfg EngineConfig

	l1d []*CacheLevel
	l1i []*CacheLevel // nil if !SeparateL1I; l1d doubles as the unified L1
	l2  *CacheLevel
	l3  *CacheLevel

	directory    *Directory
	prefetchers  []*Prefetcher
	dtlbs        []*TLB
	itlbs        []*TLB
	falseSharing *FalseSharingDetector
	attribution  *Attribution

	threadToCore map[uint32]int
	nextCore     int

	eventsProcessed uint64
	timeline        []TimelineEvent
	cancelled       bool
}

// NewMultiCoreCacheSystem validates cfg and constructs every owned
// component (spec §4.7 "Construction parameters").
func NewMultiCoreCacheSystem(cfg EngineConfig) (*MultiCoreCacheSystem, error) {
	if cfg.NumCores < 1 {
		return nil, &InvalidConfigError{Reason: "num_cores must be >= 1"}
	}
	m := &MultiCoreCacheSystem{
		cfg:          cfg,
		directory:    NewDirectory(),
		falseSharing: NewFalseSharingDetector(),
		attribution:  NewAttribution(),
		threadToCore: make(map[uint32]int),
	}

	for core := 0; core < cfg.NumCores; core++ {
		l1d, err := cfg.L1.build(cfg.LineSize, cfg.Track3C, cfg.RandomSeed+int64(core), "L1D")
		if err != nil {
			return nil, err
		}
		m.l1d = append(m.l1d, l1d)
		if cfg.SeparateL1I {
			l1i, err := cfg.L1.build(cfg.LineSize, cfg.Track3C, cfg.RandomSeed+int64(core)+1000, "L1I")
			if err != nil {
				return nil, err
			}
			m.l1i = append(m.l1i, l1i)
		}
		m.prefetchers = append(m.prefetchers, NewPrefetcher(cfg.PrefetchPolicy, cfg.LineSize, cfg.PrefetchDegree))
		if cfg.DTLB != nil {
			t, err := NewTLB(*cfg.DTLB)
			if err != nil {
				return nil, err
			}
			m.dtlbs = append(m.dtlbs, t)
		}
		if cfg.ITLB != nil {
			t, err := NewTLB(*cfg.ITLB)
			if err != nil {
				return nil, err
			}
			m.itlbs = append(m.itlbs, t)
		}
	}

	l2, err := cfg.L2.build(cfg.LineSize, cfg.Track3C, cfg.RandomSeed+9999, "L2")
	if err != nil {
		return nil, err
	}
	m.l2 = l2

	if cfg.L3 != nil {
		l3, err := cfg.L3.build(cfg.LineSize, cfg.Track3C, cfg.RandomSeed+19999, "L3")
		if err != nil {
			return nil, err
		}
		m.l3 = l3
	}

	return m, nil
}

func (p LevelConfigParams) build(lineSize uint64, track3C bool, seed int64, name string) (*CacheLevel, error) {
	return NewCacheLevel(LevelConfig{
		Name:              name,
		Geometry:          Geometry{SizeBytes: p.SizeBytes, LineSize: lineSize, Associativity: p.Associativity},
		ReplacementPolicy: p.Replacement,
		WritePolicy:       DefaultWritePolicy,
		Track3C:           track3C,
		RandomSeed:        seed,
	})
}

// coreOf maps a trace thread id to a core index, assigned round-robin on
// first sight and never changed (spec §3 "Thread/core map").
func (m *MultiCoreCacheSystem) coreOf(threadID uint32) int {
	if c, ok := m.threadToCore[threadID]; ok {
		return c
	}
	c := m.nextCore % m.cfg.NumCores
	m.nextCore++
	m.threadToCore[threadID] = c
	return c
}

func (m *MultiCoreCacheSystem) l1dFor(core int) *CacheLevel { return m.l1d[core] }

func (m *MultiCoreCacheSystem) l1iFor(core int) *CacheLevel {
	if m.cfg.SeparateL1I {
		return m.l1i[core]
	}
	return m.l1d[core]
}

// ProcessLoad handles a read from threadID at addr of size bytes, per
// spec §4.7. A boundary-crossing access is split into two sub-accesses
// (spec §8 property 8); each is returned in order.
func (m *MultiCoreCacheSystem) ProcessLoad(threadID uint32, addr uint64, size uint32, fileID int32, lineNo uint32) []HitLevel {
	m.eventsProcessed++
	core := m.coreOf(threadID)
	return m.forEachSubAccess(addr, size, func(sub, off uint64) HitLevel {
		return m.demandAccess(core, threadID, sub, off, fileID, lineNo, false)
	})
}

// ProcessStore handles a write, analogous to ProcessLoad (spec §4.7).
func (m *MultiCoreCacheSystem) ProcessStore(threadID uint32, addr uint64, size uint32, fileID int32, lineNo uint32) []HitLevel {
	m.eventsProcessed++
	core := m.coreOf(threadID)
	return m.forEachSubAccess(addr, size, func(sub, off uint64) HitLevel {
		return m.demandAccess(core, threadID, sub, off, fileID, lineNo, true)
	})
}

// ProcessIFetch handles an instruction-fetch record, routed through the
// I-TLB and an L1-I cache; writes and coherence never apply (spec §4.7).
// Granularity is governed by cfg.IFetchFine (spec §9 open question).
func (m *MultiCoreCacheSystem) ProcessIFetch(threadID uint32, addr uint64, blockSize uint32, fileID int32, lineNo uint32) []HitLevel {
	m.eventsProcessed++
	core := m.coreOf(threadID)
	if !m.cfg.IFetchFine {
		la := lineAddress(addr, m.cfg.LineSize)
		return []HitLevel{m.demandIFetch(core, threadID, la, fileID, lineNo)}
	}
	var out []HitLevel
	start := lineAddress(addr, m.cfg.LineSize)
	end := lineAddress(addr+uint64(blockSize)-1, m.cfg.LineSize)
	for la := start; ; la += m.cfg.LineSize {
		out = append(out, m.demandIFetch(core, threadID, la, fileID, lineNo))
		if la >= end {
			break
		}
	}
	return out
}

// forEachSubAccess splits an access of size bytes at addr into one or two
// line-aligned sub-accesses, per spec §4.7 step 4 / §8 property 8.
func (m *MultiCoreCacheSystem) forEachSubAccess(addr uint64, size uint32, fn func(lineAddr, byteOffset uint64) HitLevel) []HitLevel {
	lineSize := m.cfg.LineSize
	offset := addr % lineSize
	la := addr - offset
	if offset+uint64(size) <= lineSize {
		return []HitLevel{fn(la, offset)}
	}
	return []HitLevel{fn(la, offset), fn(la+lineSize, 0)}
}

// demandAccess implements spec §4.7 steps 1-10 for one line-aligned
// sub-access. isWrite selects the read vs write variant.
func (m *MultiCoreCacheSystem) demandAccess(core int, threadID uint32, la, byteOffset uint64, fileID int32, lineNo uint32, isWrite bool) HitLevel {
	m.falseSharing.Observe(la, threadID, byteOffset, isWrite, fileID, lineNo)

	if m.dtlbs != nil {
		m.dtlbs[core].Access(la)
	}

	l1 := m.l1dFor(core)
	var snoop SnoopResult
	if isWrite {
		snoop = m.directory.RequestExclusive(core, la)
		for _, otherCore := range snoop.Invalidated {
			if wb := m.l1d[otherCore].Invalidate(la); wb != nil {
				m.propagateWritebackToL2(wb)
			}
		}
	}

	if l1.IsPresent(la) {
		l1.TouchHit(la, isWrite)
		m.prefetchers[core].NoteDemandHit(la)
		m.attribution.Record(fileID, lineNo, threadID, true)
		m.recordTimeline(isWrite, HitL1, la, fileID, lineNo)
		return HitL1
	}

	m.runPrefetch(core, la, fileID, lineNo)

	var newState CoherenceState
	if isWrite {
		newState = Modified
	} else {
		snoop = m.directory.RequestRead(core, la)
		if snoop.WasModified {
			if wb := m.l1d[snoop.ModifiedOwner].FlushToShared(la); wb != nil {
				m.propagateWritebackToL2(wb)
			}
		}
		for _, other := range snoop.DowngradedToShared {
			m.l1d[other].DowngradeToShared(la)
		}
		if snoop.OtherHolderState {
			newState = Shared
		} else {
			newState = Exclusive
		}
	}

	hitLevel := m.fillFromL2Outward(la)
	_, wb := l1.MissInstall(la, isWrite, newState)
	if wb != nil {
		m.directory.DropHolder(core, wb.Address)
		m.propagateWritebackToL2(wb)
	}

	m.attribution.Record(fileID, lineNo, threadID, false)
	m.recordTimeline(isWrite, hitLevel, la, fileID, lineNo)
	return hitLevel
}

func (m *MultiCoreCacheSystem) demandIFetch(core int, threadID uint32, la uint64, fileID int32, lineNo uint32) HitLevel {
	if m.itlbs != nil {
		m.itlbs[core].Access(la)
	}
	l1i := m.l1iFor(core)
	if l1i.IsPresent(la) {
		l1i.TouchHit(la, false)
		m.prefetchers[core].NoteDemandHit(la)
		m.attribution.Record(fileID, lineNo, threadID, true)
		m.recordTimeline(false, HitL1, la, fileID, lineNo)
		return HitL1
	}
	hitLevel := m.fillFromL2Outward(la)
	l1i.MissInstall(la, false, Exclusive)
	m.attribution.Record(fileID, lineNo, threadID, false)
	m.recordTimeline(false, hitLevel, la, fileID, lineNo)
	return hitLevel
}

// fillFromL2Outward probes L2, then L3 if configured, then memory,
// installing la at every traversed level (spec §4.7 steps 9-10). Inclusive
// L1/L2 back-invalidation is applied when L2 evicts a victim.
func (m *MultiCoreCacheSystem) fillFromL2Outward(la uint64) HitLevel {
	if m.l2.IsPresent(la) {
		m.l2.TouchHit(la, false)
		return HitL2
	}
	if m.l3 != nil && m.l3.IsPresent(la) {
		m.l3.TouchHit(la, false)
		m.installL2(la)
		return HitL3
	}
	if m.l3 != nil {
		m.l3.MissInstall(la, false, Exclusive)
	}
	m.installL2(la)
	return HitMemory
}

func (m *MultiCoreCacheSystem) installL2(la uint64) {
	// Under inclusive L1/L2 a full set is copied before the install so the
	// victim, clean or dirty, can be found and back-invalidated afterwards.
	var before []line
	parts := m.l2.partsOf(la)
	if m.cfg.InclusionL1L2 == Inclusive && findFreeWay(m.l2.sets[parts.SetIndex].lines) < 0 {
		before = append(before, m.l2.sets[parts.SetIndex].lines...)
	}
	_, wb := m.l2.MissInstall(la, false, Exclusive)
	if wb != nil && m.l3 != nil {
		m.l3.MarkDirty(wb.Address)
	}
	if before != nil {
		way := m.l2.sets[parts.SetIndex].findWayByTag(parts.Tag)
		m.backInvalidateL1(reconstructAddress(before[way].tag, parts.SetIndex, m.l2.Geometry()))
	}
}

// backInvalidateL1 forces every per-core L1 (and I-cache if split) to
// invalidate lineAddr, propagating any dirty data outward past the
// evicting L2 (spec §4.2 inclusion, §9 "back-invalidation and cycles").
func (m *MultiCoreCacheSystem) backInvalidateL1(lineAddr uint64) {
	for core, l1 := range m.l1d {
		if wb := l1.Invalidate(lineAddr); wb != nil {
			if m.l3 != nil {
				m.l3.MarkDirty(wb.Address)
			}
		}
		m.directory.DropHolder(core, lineAddr)
	}
	if m.cfg.SeparateL1I {
		for _, l1i := range m.l1i {
			l1i.Invalidate(lineAddr)
		}
	}
	m.directory.Invalidate(lineAddr)
}

// propagateWritebackToL2 marks the L2 copy of wb's address dirty, or, for
// an exclusive L1/L2 boundary, migrates the victim into L2 outright (spec
// §4.2 "Exclusive levels migrate evicted victims from inner to outer").
// Clean (non-dirty) victim migration under an exclusive boundary is not
// modeled; see DESIGN.md.
func (m *MultiCoreCacheSystem) propagateWritebackToL2(wb *Writeback) {
	if wb == nil {
		return
	}
	if m.l2.IsPresent(wb.Address) {
		m.l2.MarkDirty(wb.Address)
		return
	}
	if m.cfg.InclusionL1L2 == Exclusive {
		m.l2.InstallWithState(wb.Address, Modified)
		m.l2.MarkDirty(wb.Address)
	}
}

// runPrefetch invokes core's prefetcher on a demand miss at la and
// installs every filtered candidate (spec §4.7 step 6). fileID/lineNo
// identify the source line that triggered the miss, the prefetcher's only
// available proxy for an instruction address in a trace format with no PC
// field; stride/adaptive/intel policies key their per-site state on it.
func (m *MultiCoreCacheSystem) runPrefetch(core int, la uint64, fileID int32, lineNo uint32) {
	candidates := m.prefetchers[core].OnMiss(la, fileID, lineNo)
	l1 := m.l1dFor(core)
	for _, cand := range candidates {
		if l1.IsPresent(cand) {
			continue
		}
		other := m.directory.AnyOtherHolder(core, cand)
		state := Exclusive
		if other {
			state = Shared
		}
		if !m.l2.IsPresent(cand) {
			if m.l3 != nil && !m.l3.IsPresent(cand) {
				m.l3.InstallWithState(cand, Exclusive)
			}
			m.l2.InstallWithState(cand, Exclusive)
		}
		l1.InstallWithState(cand, state)
		m.directory.SetHolder(core, cand, state)
	}
}

func (m *MultiCoreCacheSystem) recordTimeline(isWrite bool, level HitLevel, addr uint64, fileID int32, lineNo uint32) {
	if !m.cfg.RecordTimeline {
		return
	}
	kind := EventLoad
	if isWrite {
		kind = EventStore
	}
	m.timeline = append(m.timeline, TimelineEvent{
		Index: len(m.timeline), Kind: kind, HitLevel: level,
		Address: addr, FileID: fileID, LineNo: lineNo,
	})
}

// EventsProcessed returns the number of trace events handled so far.
func (m *MultiCoreCacheSystem) EventsProcessed() uint64 { return m.eventsProcessed }

// Timeline returns the recorded timeline, empty unless RecordTimeline was
// configured.
func (m *MultiCoreCacheSystem) Timeline() []TimelineEvent { return m.timeline }

// Directory exposes the coherence directory for report assembly.
func (m *MultiCoreCacheSystem) Directory() *Directory { return m.directory }

// FalseSharing exposes the false-sharing detector for report assembly.
func (m *MultiCoreCacheSystem) FalseSharing() *FalseSharingDetector { return m.falseSharing }

// Attribution exposes the source attribution aggregator for report
// assembly.
func (m *MultiCoreCacheSystem) Attribution() *Attribution { return m.attribution }

// Prefetchers returns the per-core prefetchers for report assembly.
func (m *MultiCoreCacheSystem) Prefetchers() []*Prefetcher { return m.prefetchers }

// AggregateL1DStats folds every core's L1D statistics into one Stats
// (spec §6.2's "levels.l1d" is a single aggregate object).
func (m *MultiCoreCacheSystem) AggregateL1DStats() Stats {
	var total Stats
	for _, l1 := range m.l1d {
		total = total.Add(l1.GetStats())
	}
	return total
}

// AggregateL1IStats folds every core's L1I statistics, or the zero value
// if the engine is configured with a unified L1.
func (m *MultiCoreCacheSystem) AggregateL1IStats() (Stats, bool) {
	if !m.cfg.SeparateL1I {
		return Stats{}, false
	}
	var total Stats
	for _, l1i := range m.l1i {
		total = total.Add(l1i.GetStats())
	}
	return total, true
}

// L2Stats returns the shared L2's statistics.
func (m *MultiCoreCacheSystem) L2Stats() Stats { return m.l2.GetStats() }

// L3Stats returns the shared L3's statistics, or the zero value and false
// if no L3 is configured.
func (m *MultiCoreCacheSystem) L3Stats() (Stats, bool) {
	if m.l3 == nil {
		return Stats{}, false
	}
	return m.l3.GetStats(), true
}

// DTLBStats aggregates every core's D-TLB hits/misses.
func (m *MultiCoreCacheSystem) DTLBStats() (hits, misses uint64, ok bool) {
	if m.dtlbs == nil {
		return 0, 0, false
	}
	for _, t := range m.dtlbs {
		h, miss := t.Stats()
		hits += h
		misses += miss
	}
	return hits, misses, true
}

// ITLBStats aggregates every core's I-TLB hits/misses.
func (m *MultiCoreCacheSystem) ITLBStats() (hits, misses uint64, ok bool) {
	if m.itlbs == nil {
		return 0, 0, false
	}
	for _, t := range m.itlbs {
		h, miss := t.Stats()
		hits += h
		misses += miss
	}
	return hits, misses, true
}

// PerCoreL1DSnapshots returns one cache-state snapshot per core, for the
// report's cacheState.l1d array (spec §6.2).
func (m *MultiCoreCacheSystem) PerCoreL1DSnapshots() [][]LineSnapshot {
	out := make([][]LineSnapshot, len(m.l1d))
	for i, l1 := range m.l1d {
		out[i] = l1.GetStateSnapshot()
	}
	return out
}

// NumSetsFor reports the set/way shape of a level, used to populate the
// cacheState "sets"/"ways" fields without exposing the CacheLevel itself.
func NumSetsFor(g Geometry) (sets, ways int) {
	return int(g.NumSets()), g.Associativity
}

// L1Geometry returns the L1 geometry, identical across cores.
func (m *MultiCoreCacheSystem) L1Geometry() Geometry { return m.l1d[0].Geometry() }

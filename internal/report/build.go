package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"

	"cachesim/internal/cachesim"
	"cachesim/internal/trace"
)

// BuildConfig carries the run-level facts the engine itself doesn't know
// (the preset name, whether sampling was applied, latency table, and
// whether a cache-state dump was requested) into Build.
type BuildConfig struct {
	ConfigName   string
	Cores        int
	Sampled      bool
	Latency      LatencyConfig
	IncludeState bool
	HotLineLimit int // 0 means "all"
}

// Build assembles a Report from a completed simulation run (spec.md
// §6.2). interner resolves the FileID values recorded on hot lines and
// false-sharing ledger entries back to source file names.
func Build(engine *cachesim.MultiCoreCacheSystem, interner *trace.Interner, cfg BuildConfig) (Report, error) {
	l3Stats, hasL3 := engine.L3Stats()
	l1iStats, hasL1I := engine.AggregateL1IStats()

	rep := Report{
		Config:    cfg.ConfigName,
		Events:    engine.EventsProcessed(),
		Sampled:   cfg.Sampled,
		Multicore: cfg.Cores > 1,
		Cores:     cfg.Cores,
		Levels: Levels{
			L1D: levelStatsOf(engine.AggregateL1DStats()),
			L2:  levelStatsOf(engine.L2Stats()),
		},
		Coherence: Coherence{
			Invalidations:      engine.Directory().Invalidations(),
			FalseSharingEvents: engine.FalseSharing().Count(),
		},
	}
	if hasL1I {
		l1i := levelStatsOf(l1iStats)
		rep.Levels.L1I = &l1i
	}
	if hasL3 {
		l3 := levelStatsOf(l3Stats)
		rep.Levels.L3 = &l3
	}

	if dtlbHits, dtlbMisses, ok := engine.DTLBStats(); ok {
		t := &TLB{DTLB: tlbRatesOf(dtlbHits, dtlbMisses)}
		if itlbHits, itlbMisses, ok := engine.ITLBStats(); ok {
			r := tlbRatesOf(itlbHits, itlbMisses)
			t.ITLB = &r
		}
		rep.TLB = t
	}

	rep.Timing = buildTiming(engine, cfg.Latency, hasL3)
	rep.HotLines = buildHotLines(engine.Attribution(), interner, cfg.HotLineLimit)
	rep.FalseSharing = buildFalseSharing(engine.FalseSharing(), interner)
	rep.Prefetch = buildPrefetch(engine.Prefetchers())

	suggestions, err := buildSuggestions(rep, engine.FalseSharing(), engine.Prefetchers(), interner)
	if err != nil {
		return Report{}, fmt.Errorf("evaluating suggestions: %w", err)
	}
	rep.Suggestions = suggestions

	if cfg.IncludeState {
		rep.CacheState = buildCacheState(engine)
	}

	return rep, nil
}

func tlbRatesOf(hits, misses uint64) TLBRates {
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return TLBRates{Hits: hits, Misses: misses, HitRate: rate}
}

func buildTiming(engine *cachesim.MultiCoreCacheSystem, lat LatencyConfig, hasL3 bool) *Timing {
	l1 := engine.AggregateL1DStats()
	l2 := engine.L2Stats()
	l3, _ := engine.L3Stats()
	_, dtlbMisses, _ := engine.DTLBStats()
	_, itlbMisses, itlbOK := engine.ITLBStats()

	var breakdown TimingBreakdown
	breakdown.L1HitCycles = l1.Hits * uint64(lat.L1Hit)
	breakdown.L2HitCycles = l2.Hits * uint64(lat.L2Hit)
	var memoryMisses uint64
	if hasL3 {
		breakdown.L3HitCycles = l3.Hits * uint64(lat.L3Hit)
		memoryMisses = l3.Misses
	} else {
		memoryMisses = l2.Misses
	}
	breakdown.MemoryCycles = memoryMisses * uint64(lat.Memory)

	tlbMisses := dtlbMisses
	if itlbOK {
		tlbMisses += itlbMisses
	}
	breakdown.TLBMissCycles = tlbMisses * uint64(lat.TLBMissPenalty)

	total := breakdown.L1HitCycles + breakdown.L2HitCycles + breakdown.L3HitCycles +
		breakdown.MemoryCycles + breakdown.TLBMissCycles

	events := engine.EventsProcessed()
	var avg float64
	if events > 0 {
		avg = float64(total) / float64(events)
	}

	return &Timing{
		TotalCycles:   total,
		AvgLatency:    avg,
		Breakdown:     breakdown,
		LatencyConfig: lat,
	}
}

func buildHotLines(a *cachesim.Attribution, interner *trace.Interner, limit int) []HotLine {
	lines := a.HotLines(limit)
	out := make([]HotLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, HotLine{
			File:     interner.Name(l.FileID),
			Line:     l.LineNo,
			Hits:     l.Hits,
			Misses:   l.Misses,
			MissRate: l.MissRate,
			Threads:  l.Threads,
		})
	}
	return out
}

func buildFalseSharing(d *cachesim.FalseSharingDetector, interner *trace.Interner) []FalseSharingLine {
	flagged := d.FlaggedLines()
	out := make([]FalseSharingLine, 0, len(flagged))
	for _, f := range flagged {
		var total uint64
		accesses := make([]FalseSharingAccess, 0, len(f.Ledger))
		for _, e := range f.Ledger {
			total += e.Count
			accesses = append(accesses, FalseSharingAccess{
				ThreadID: e.ThreadID,
				Offset:   uint32(e.Offset),
				IsWrite:  e.IsWrite,
				File:     interner.Name(e.FileID),
				Line:     e.LineNo,
				Count:    e.Count,
			})
		}
		out = append(out, FalseSharingLine{
			CacheLineAddr: fmt.Sprintf("0x%x", f.Address),
			AccessCount:   total,
			Accesses:      accesses,
		})
	}
	return out
}

// buildPrefetch aggregates every per-core prefetcher into one summary;
// all cores share the same policy/degree by construction (EngineConfig),
// so only the issued/useful/accuracy counters differ per core.
func buildPrefetch(prefetchers []*cachesim.Prefetcher) *Prefetch {
	if len(prefetchers) == 0 {
		return nil
	}
	var issued, useful uint64
	for _, p := range prefetchers {
		issued += p.Issued()
		useful += p.Useful()
	}
	var accuracy float64
	if issued > 0 {
		accuracy = float64(useful) / float64(issued)
	}
	first := prefetchers[0]
	return &Prefetch{
		Policy:   first.Policy().String(),
		Degree:   first.Degree(),
		Issued:   issued,
		Useful:   useful,
		Accuracy: accuracy,
	}
}

func buildSuggestions(rep Report, fsd *cachesim.FalseSharingDetector, prefetchers []*cachesim.Prefetcher, interner *trace.Interner) ([]Suggestion, error) {
	in := cachesim.SuggestionInput{
		L1MissRate: rep.Levels.L1D.MissRate(),
		L2MissRate: rep.Levels.L2.MissRate(),
	}
	if rep.Levels.L3 != nil {
		in.L3MissRate = rep.Levels.L3.MissRate()
	}
	if flagged := fsd.FlaggedLines(); len(flagged) > 0 {
		if fileID, lineNo, ok := fsd.FirstWriter(flagged[0].Address); ok {
			in.HasFalseSharing = true
			in.FirstFalseSharingLocation = fmt.Sprintf("%s:%d", interner.Name(fileID), lineNo)
		}
	}
	for _, hl := range rep.HotLines {
		if hl.MissRate > 0.30 {
			in.HotLineL3Exceeds = rep.Levels.L3 != nil && in.L3MissRate > 0.30
			in.HotLineL3Location = fmt.Sprintf("%s:%d", hl.File, hl.Line)
			break
		}
	}
	if loc, ok := stridedHotLine(rep.HotLines, prefetchers, interner); ok {
		in.HasStridedHotLine = true
		in.StridedLocation = loc
	}

	raw, err := cachesim.Evaluate(in)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(raw))
	for _, s := range raw {
		out = append(out, Suggestion{
			Type:     s.Type,
			Severity: string(s.Severity),
			Location: s.Location,
			Message:  s.Message,
			Fix:      s.Fix,
		})
	}
	return out, nil
}

// stridedHotLine reports the first hot line where some core's prefetcher
// locked onto a repeating stride (spec §4.9 rule 3), cross-referencing
// every prefetcher's StridedSites against the hot-line ranking so the
// suggestion only fires for a line that is both hot and strided.
func stridedHotLine(hotLines []HotLine, prefetchers []*cachesim.Prefetcher, interner *trace.Interner) (string, bool) {
	strided := make(map[string]struct{})
	for _, p := range prefetchers {
		for _, s := range p.StridedSites() {
			strided[fmt.Sprintf("%s:%d", interner.Name(s.FileID), s.LineNo)] = struct{}{}
		}
	}
	for _, hl := range hotLines {
		loc := fmt.Sprintf("%s:%d", hl.File, hl.Line)
		if _, ok := strided[loc]; ok {
			return loc, true
		}
	}
	return "", false
}

func buildCacheState(engine *cachesim.MultiCoreCacheSystem) *CacheState {
	sets, ways := cachesim.NumSetsFor(engine.L1Geometry())
	perCore := engine.PerCoreL1DSnapshots()
	out := make([]CoreCacheState, 0, len(perCore))
	for core, snap := range perCore {
		lines := make([]CacheLine, 0, len(snap))
		for _, l := range snap {
			lines = append(lines, CacheLine{
				Set:   l.Set,
				Way:   l.Way,
				Valid: l.Valid,
				Tag:   fmt.Sprintf("0x%x", l.Tag),
				State: l.State.String(),
			})
		}
		out = append(out, CoreCacheState{Core: core, Sets: sets, Ways: ways, Lines: lines})
	}
	return &CacheState{L1D: out}
}

func (s LevelStats) MissRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

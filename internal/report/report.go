// Package report assembles and renders the simulation result described in
// spec.md §6.2: a single JSON-shaped object with per-level statistics,
// coherence/false-sharing diagnostics, TLB rates, derived timing, hot-line
// attribution, and optimization suggestions. render_json.go, render_text.go,
// and render_xlsx.go each take a built Report and produce one encoding.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "cachesim/internal/cachesim"

// LevelStats mirrors one entry of the report's "levels" object.
type LevelStats struct {
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hitRate"`
	Writebacks uint64  `json:"writebacks"`
	Compulsory uint64  `json:"compulsory"`
	Capacity   uint64  `json:"capacity"`
	Conflict   uint64  `json:"conflict"`
}

func levelStatsOf(s cachesim.Stats) LevelStats {
	return LevelStats{
		Hits:       s.Hits,
		Misses:     s.Misses,
		HitRate:    s.HitRate(),
		Writebacks: s.Writebacks,
		Compulsory: s.Compulsory,
		Capacity:   s.Capacity,
		Conflict:   s.Conflict,
	}
}

// Levels is the report's per-cache-level breakdown. L1I is nil unless the
// engine was configured with a split instruction cache.
type Levels struct {
	L1D LevelStats  `json:"l1d"`
	L1I *LevelStats `json:"l1i,omitempty"`
	L2  LevelStats  `json:"l2"`
	L3  *LevelStats `json:"l3,omitempty"`
}

// Coherence summarizes directory and false-sharing activity.
type Coherence struct {
	Invalidations      uint64 `json:"invalidations"`
	FalseSharingEvents uint64 `json:"falseSharingEvents"`
}

// TLBRates is one TLB's hit/miss summary.
type TLBRates struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// TLB holds the D-TLB and, if configured, I-TLB rates.
type TLB struct {
	DTLB TLBRates  `json:"dtlb"`
	ITLB *TLBRates `json:"itlb,omitempty"`
}

// TimingBreakdown is the per-source-of-latency cycle tally.
type TimingBreakdown struct {
	L1HitCycles   uint64 `json:"l1HitCycles"`
	L2HitCycles   uint64 `json:"l2HitCycles"`
	L3HitCycles   uint64 `json:"l3HitCycles"`
	MemoryCycles  uint64 `json:"memoryCycles"`
	TLBMissCycles uint64 `json:"tlbMissCycles"`
}

// LatencyConfig is the per-level cycle cost the timing figures were derived
// from (spec.md §6.2, "latencyConfig").
type LatencyConfig struct {
	L1Hit          int `json:"l1Hit"`
	L2Hit          int `json:"l2Hit"`
	L3Hit          int `json:"l3Hit"`
	Memory         int `json:"memory"`
	TLBMissPenalty int `json:"tlbMissPenalty"`
}

// Timing is the derived-cycle section of the report.
type Timing struct {
	TotalCycles   uint64          `json:"totalCycles"`
	AvgLatency    float64         `json:"avgLatency"`
	Breakdown     TimingBreakdown `json:"breakdown"`
	LatencyConfig LatencyConfig   `json:"latencyConfig"`
}

// HotLine is one ranked entry of the report's "hotLines" array.
type HotLine struct {
	File     string  `json:"file"`
	Line     uint32  `json:"line"`
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	MissRate float64 `json:"missRate"`
	Threads  int     `json:"threads"`
}

// FalseSharingAccess is one ledger entry within a flagged line.
type FalseSharingAccess struct {
	ThreadID uint32 `json:"threadId"`
	Offset   uint32 `json:"offset"`
	IsWrite  bool   `json:"isWrite"`
	File     string `json:"file"`
	Line     uint32 `json:"line"`
	Count    uint64 `json:"count"`
}

// FalseSharingLine is one flagged cache line and its access ledger.
type FalseSharingLine struct {
	CacheLineAddr string               `json:"cacheLineAddr"`
	AccessCount   uint64               `json:"accessCount"`
	Accesses      []FalseSharingAccess `json:"accesses"`
}

// Prefetch is the per-engine (single, aggregated) prefetcher summary.
type Prefetch struct {
	Policy   string  `json:"policy"`
	Degree   int     `json:"degree"`
	Issued   uint64  `json:"issued"`
	Useful   uint64  `json:"useful"`
	Accuracy float64 `json:"accuracy"`
}

// Suggestion mirrors cachesim.Suggestion for the report's JSON shape.
type Suggestion struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Location string `json:"location"`
	Message  string `json:"message"`
	Fix      string `json:"fix"`
}

// CacheLine is one resident line in a cacheState snapshot.
type CacheLine struct {
	Set   int    `json:"s"`
	Way   int    `json:"w"`
	Valid bool   `json:"v"`
	Tag   string `json:"t"`
	State string `json:"st"`
}

// CoreCacheState is one core's L1D set/way/line dump.
type CoreCacheState struct {
	Core  int         `json:"core"`
	Sets  int         `json:"sets"`
	Ways  int         `json:"ways"`
	Lines []CacheLine `json:"lines"`
}

// CacheState holds the optional per-core L1D state dump (spec.md §6.2,
// "cacheState"). Omitted from the report unless explicitly requested, since
// it is proportional to cache capacity rather than trace length.
type CacheState struct {
	L1D []CoreCacheState `json:"l1d"`
}

// Report is the complete JSON object of spec.md §6.2.
type Report struct {
	Config       string             `json:"config"`
	Events       uint64             `json:"events"`
	Sampled      bool               `json:"sampled"`
	Multicore    bool               `json:"multicore"`
	Cores        int                `json:"cores"`
	Levels       Levels             `json:"levels"`
	Coherence    Coherence          `json:"coherence"`
	TLB          *TLB               `json:"tlb,omitempty"`
	Timing       *Timing            `json:"timing,omitempty"`
	HotLines     []HotLine          `json:"hotLines,omitempty"`
	FalseSharing []FalseSharingLine `json:"falseSharing,omitempty"`
	Prefetch     *Prefetch          `json:"prefetch,omitempty"`
	Suggestions  []Suggestion       `json:"suggestions,omitempty"`
	CacheState   *CacheState        `json:"cacheState,omitempty"`
}

// ProgressEvent is the streaming progress record of spec.md §6.2, emitted
// (as its own JSON object, type "progress") before the final report.
type ProgressEvent struct {
	Type      string    `json:"type"`
	Events    uint64    `json:"events"`
	L1D       LevelStats `json:"l1d"`
	L2        LevelStats `json:"l2"`
	L3        *LevelStats `json:"l3,omitempty"`
	Coherence Coherence  `json:"coherence"`
}

// NewProgressEvent converts an engine progress snapshot to its wire shape.
func NewProgressEvent(e cachesim.ProgressEvent, hasL3 bool) ProgressEvent {
	pe := ProgressEvent{
		Type:      "progress",
		Events:    e.Events,
		L1D:       levelStatsOf(e.L1D),
		L2:        levelStatsOf(e.L2),
		Coherence: Coherence{Invalidations: e.Invalidations},
	}
	if hasL3 {
		l3 := levelStatsOf(e.L3)
		pe.L3 = &l3
	}
	return pe
}

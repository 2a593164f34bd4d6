package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// attribution.go implements the source attribution aggregator of spec
// §4.8, keyed by (file_id, line_no) and maintained parallel to the engine.

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

type attributionKey struct {
	FileID int32
	LineNo uint32
}

type attributionEntry struct {
	hits    uint64
	misses  uint64
	threads mapset.Set[uint32]
}

// Attribution tracks per-(file, line) hit/miss counters and the set of
// threads that touched each location (spec §3, §4.8).
type Attribution struct {
	entries map[attributionKey]*attributionEntry
	// order preserves first-sight insertion order for deterministic
	// tie-breaking alongside the explicit sort in HotLines.
	order []attributionKey
}

// NewAttribution constructs an empty aggregator.
func NewAttribution() *Attribution {
	return &Attribution{entries: make(map[attributionKey]*attributionEntry)}
}

// Record updates the counters for (fileID, lineNo) on one demand access.
func (a *Attribution) Record(fileID int32, lineNo uint32, threadID uint32, hit bool) {
	key := attributionKey{FileID: fileID, LineNo: lineNo}
	e, ok := a.entries[key]
	if !ok {
		e = &attributionEntry{threads: mapset.NewThreadUnsafeSet[uint32]()}
		a.entries[key] = e
		a.order = append(a.order, key)
	}
	if hit {
		e.hits++
	} else {
		e.misses++
	}
	e.threads.Add(threadID)
}

// HotLine is one ranked entry in the report's hotLines array.
type HotLine struct {
	FileID   int32
	LineNo   uint32
	Hits     uint64
	Misses   uint64
	MissRate float64
	Threads  int
}

// HotLines returns the top-n source locations by total misses, then miss
// rate, then total accesses (spec §4.8). Ties beyond that are broken by
// first-sight order to keep output deterministic (spec §8 property 7).
func (a *Attribution) HotLines(n int) []HotLine {
	out := make([]HotLine, 0, len(a.order))
	rank := make(map[attributionKey]int, len(a.order))
	for i, k := range a.order {
		rank[k] = i
	}
	for _, k := range a.order {
		e := a.entries[k]
		total := e.hits + e.misses
		var missRate float64
		if total > 0 {
			missRate = float64(e.misses) / float64(total)
		}
		out = append(out, HotLine{
			FileID: k.FileID, LineNo: k.LineNo,
			Hits: e.hits, Misses: e.misses,
			MissRate: missRate, Threads: e.threads.Cardinality(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Misses != out[j].Misses {
			return out[i].Misses > out[j].Misses
		}
		if out[i].MissRate != out[j].MissRate {
			return out[i].MissRate > out[j].MissRate
		}
		ti := out[i].Hits + out[i].Misses
		tj := out[j].Hits + out[j].Misses
		if ti != tj {
			return ti > tj
		}
		ki := attributionKey{FileID: out[i].FileID, LineNo: out[i].LineNo}
		kj := attributionKey{FileID: out[j].FileID, LineNo: out[j].LineNo}
		return rank[ki] < rank[kj]
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Stats holds the monotonic counters of spec §3, "Statistics". When 3C
// tracking is disabled (fast mode, spec §9), Compulsory/Capacity/Conflict
// stay zero and only the aggregate Misses is updated.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Writebacks  uint64
	Compulsory  uint64
	Capacity    uint64
	Conflict    uint64
}

// HitRate returns hits / (hits + misses), exactly, per spec §8 property 3.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MissRate is the complement of HitRate.
func (s Stats) MissRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

// Add combines two Stats, used to fold per-core L1 statistics into a
// single aggregate for the report's "levels" section.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Hits:       s.Hits + o.Hits,
		Misses:     s.Misses + o.Misses,
		Writebacks: s.Writebacks + o.Writebacks,
		Compulsory: s.Compulsory + o.Compulsory,
		Capacity:   s.Capacity + o.Capacity,
		Conflict:   s.Conflict + o.Conflict,
	}
}

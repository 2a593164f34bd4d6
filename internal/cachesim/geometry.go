package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "cachesim/internal/util"

// WritePolicy selects write-allocation and write-propagation behavior
// (spec §3, §4.2). Only write-back + write-allocate is exercised by the
// engine today; the type exists so a level's configuration records intent
// and future write-through support has a home.
type WritePolicy struct {
	Allocate  bool // write-allocate vs no-write-allocate
	WriteBack bool // write-back vs write-through
}

// DefaultWritePolicy is write-back, write-allocate, the default named in
// spec §4.2.
var DefaultWritePolicy = WritePolicy{Allocate: true, WriteBack: true}

// InclusionPolicy describes the invariant between a level and the level
// directly inside it (spec §3, §4.2).
type InclusionPolicy uint8

const (
	NonInclusiveNonExclusive InclusionPolicy = iota
	Inclusive
	Exclusive
)

func (p InclusionPolicy) String() string {
	switch p {
	case Inclusive:
		return "inclusive"
	case Exclusive:
		return "exclusive"
	default:
		return "non_inclusive_non_exclusive"
	}
}

// Geometry is the size/shape configuration of one cache level.
type Geometry struct {
	SizeBytes     uint64
	LineSize      uint64
	Associativity int
}

// NumSets derives the number of sets from the geometry, per spec §3:
// num_sets = size_bytes / (line_size * associativity).
func (g Geometry) NumSets() uint64 {
	return g.SizeBytes / (g.LineSize * uint64(g.Associativity))
}

// Validate checks the invariants of spec §4.2: num_sets >= 1 and a power
// of two, associativity >= 1, line size a power of two.
func (g Geometry) Validate() error {
	if g.Associativity < 1 {
		return &InvalidConfigError{Reason: "associativity must be >= 1"}
	}
	if g.LineSize == 0 || !util.IsPowerOfTwo(g.LineSize) {
		return &InvalidConfigError{Reason: "line size must be a power of two"}
	}
	if g.SizeBytes == 0 || g.SizeBytes%(g.LineSize*uint64(g.Associativity)) != 0 {
		return &InvalidConfigError{Reason: "size must be evenly divisible by line_size * associativity"}
	}
	numSets := g.NumSets()
	if numSets == 0 || !util.IsPowerOfTwo(numSets) {
		return &InvalidConfigError{Reason: "num_sets (size / (line_size * associativity)) must be a power of two >= 1"}
	}
	return nil
}

// addressParts is the (tag, set_index, offset) decomposition of spec §3.
type addressParts struct {
	Tag      uint64
	SetIndex uint64
	Offset   uint64
}

// decompose splits addr according to geometry: the low log2(line_size)
// bits are the offset, the next log2(num_sets) bits are the set index, and
// the rest is the tag.
func decompose(addr uint64, g Geometry) addressParts {
	offsetBits := util.Log2(g.LineSize)
	setBits := util.Log2(g.NumSets())
	offsetMask := g.LineSize - 1
	setMask := g.NumSets() - 1
	return addressParts{
		Offset:   addr & offsetMask,
		SetIndex: (addr >> offsetBits) & setMask,
		Tag:      addr >> (offsetBits + setBits),
	}
}

// lineAddress masks addr down to its containing cache-line-aligned
// address, used throughout the engine (spec §4.7 step 4).
func lineAddress(addr uint64, lineSize uint64) uint64 {
	return addr &^ (lineSize - 1)
}

package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// directory.go implements the MESI coherence directory of spec §4.5. The
// directory holds core indices only, never references to the per-core L1
// objects themselves (spec §9, "per-core L1 ownership"): it reports what
// the engine must do, and the engine performs the mutation by indexing
// into its own per-core array.

// holderState is one core's recorded state for a line, as tracked by the
// directory (independent of what the core's actual L1 line says, though
// the engine keeps them in lockstep).
type holderState struct {
	core  int
	state CoherenceState
}

// SnoopResult is the outcome of a directory request (spec §4.5).
type SnoopResult struct {
	Found            bool
	WasModified      bool
	ModifiedOwner    int  // valid only if WasModified
	OtherHolderState bool // true if some other core holds a valid copy after this request resolves for the requestor's new-line-state decision (spec §4.7 step 8)
	Invalidated      []int
	DowngradedToShared []int // cores (other than ModifiedOwner) whose E/S copy the caller must mirror to Shared
}

// Directory is the MESI coherence directory, broker for per-core L1s
// (spec §4.5, §3 "Coherence directory entry").
type Directory struct {
	holders       map[uint64][]holderState
	invalidations uint64
}

// NewDirectory constructs an empty coherence directory.
func NewDirectory() *Directory {
	return &Directory{holders: make(map[uint64][]holderState)}
}

// Invalidations returns the cumulative snoop-invalidation count.
func (d *Directory) Invalidations() uint64 { return d.invalidations }

// HoldersOf reports the current (core, state) pairs for lineAddr, for
// diagnostics and false-sharing/inclusion bookkeeping.
func (d *Directory) HoldersOf(lineAddr uint64) []holderState {
	return d.holders[lineAddr]
}

// AnyOtherHolder reports whether any core other than requestor currently
// holds a valid copy of lineAddr.
func (d *Directory) AnyOtherHolder(requestor int, lineAddr uint64) bool {
	for _, h := range d.holders[lineAddr] {
		if h.core != requestor && h.state != Invalid {
			return true
		}
	}
	return false
}

// RequestRead handles a read miss from requestor for lineAddr (spec
// §4.5). If another core holds Modified, that core is recorded as
// transitioning to Shared (the caller must mirror this onto the real L1
// and capture the flushed writeback). Any E/S holders drop to Shared.
func (d *Directory) RequestRead(requestor int, lineAddr uint64) SnoopResult {
	holders := d.holders[lineAddr]
	result := SnoopResult{Found: len(holders) > 0}
	anyOther := false
	for i := range holders {
		h := &holders[i]
		if h.core == requestor {
			continue
		}
		switch h.state {
		case Modified:
			result.WasModified = true
			result.ModifiedOwner = h.core
			h.state = Shared
			anyOther = true
		case Exclusive, Shared:
			h.state = Shared
			anyOther = true
			result.DowngradedToShared = append(result.DowngradedToShared, h.core)
		}
	}
	result.OtherHolderState = anyOther
	holders = appendOrUpdateHolder(holders, requestor, pick(anyOther, Shared, Exclusive))
	d.holders[lineAddr] = holders
	return result
}

// RequestExclusive handles a write miss (or upgrade) from requestor for
// lineAddr: every other holder is invalidated and requestor installs in
// Modified (spec §4.5).
func (d *Directory) RequestExclusive(requestor int, lineAddr uint64) SnoopResult {
	holders := d.holders[lineAddr]
	result := SnoopResult{Found: len(holders) > 0}
	kept := holders[:0]
	for _, h := range holders {
		if h.core == requestor {
			kept = append(kept, h)
			continue
		}
		if h.state == Modified {
			result.WasModified = true
			result.ModifiedOwner = h.core
		}
		if h.state != Invalid {
			result.Invalidated = append(result.Invalidated, h.core)
			d.invalidations++
		}
	}
	kept = appendOrUpdateHolder(kept, requestor, Modified)
	d.holders[lineAddr] = kept
	return result
}

// SetHolder directly records core as a holder of lineAddr in state,
// without generating snoop traffic. Used when a prefetch fill installs a
// line into a core's L1 outside the demand request_read/request_exclusive
// path (spec §4.7 step 6).
func (d *Directory) SetHolder(core int, lineAddr uint64, state CoherenceState) {
	d.holders[lineAddr] = appendOrUpdateHolder(d.holders[lineAddr], core, state)
}

// Invalidate drops requestorless line state entirely, e.g. on a
// back-invalidation from an inclusive outer level (spec §4.2 inclusion).
func (d *Directory) Invalidate(lineAddr uint64) {
	delete(d.holders, lineAddr)
}

// DropHolder removes one core's recorded holder state for lineAddr, used
// when that core's L1 evicts the line on its own (no coherence traffic
// needed — the line simply stops being tracked for that core).
func (d *Directory) DropHolder(core int, lineAddr uint64) {
	holders := d.holders[lineAddr]
	for i, h := range holders {
		if h.core == core {
			d.holders[lineAddr] = append(holders[:i], holders[i+1:]...)
			return
		}
	}
}

func appendOrUpdateHolder(holders []holderState, core int, state CoherenceState) []holderState {
	for i := range holders {
		if holders[i].core == core {
			holders[i].state = state
			return holders
		}
	}
	return append(holders, holderState{core: core, state: state})
}

func pick(cond bool, ifTrue, ifFalse CoherenceState) CoherenceState {
	if cond {
		return ifTrue
	}
	return ifFalse
}

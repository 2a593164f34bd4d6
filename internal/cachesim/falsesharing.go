package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// falsesharing.go implements the detector of spec §4.6: a per-line ledger
// of accesses, flagged the first time it satisfies the predicate of
// spec §3 — at least two distinct threads, at least two distinct byte
// offsets, and at least one writer.

// ledgerCap bounds how many access records are retained per line; beyond
// the cap the oldest record is dropped (spec §4.6).
const ledgerCap = 64

// LedgerEntry is one recorded access in a line's false-sharing ledger.
type LedgerEntry struct {
	ThreadID uint32
	Offset   uint64
	IsWrite  bool
	FileID   int32
	LineNo   uint32
	Count    uint64
}

type lineLedger struct {
	entries []LedgerEntry
	flagged bool
}

// FalseSharingDetector tracks per-line access ledgers across all cores
// and the set of lines flagged as false-sharing (spec §4.6).
type FalseSharingDetector struct {
	ledgers map[uint64]*lineLedger
	flagged []uint64 // insertion order, for deterministic report output
	count   uint64
}

// NewFalseSharingDetector constructs an empty detector.
func NewFalseSharingDetector() *FalseSharingDetector {
	return &FalseSharingDetector{ledgers: make(map[uint64]*lineLedger)}
}

// Observe records one access against lineAddr's ledger and returns true
// the first time this line satisfies the false-sharing predicate.
func (d *FalseSharingDetector) Observe(lineAddr uint64, threadID uint32, offset uint64, isWrite bool, fileID int32, lineNo uint32) bool {
	l, ok := d.ledgers[lineAddr]
	if !ok {
		l = &lineLedger{}
		d.ledgers[lineAddr] = l
	}
	d.appendEntry(l, threadID, offset, isWrite, fileID, lineNo)
	if l.flagged {
		return false
	}
	if predicateSatisfied(l.entries) {
		l.flagged = true
		d.flagged = append(d.flagged, lineAddr)
		d.count++
		return true
	}
	return false
}

func (d *FalseSharingDetector) appendEntry(l *lineLedger, threadID uint32, offset uint64, isWrite bool, fileID int32, lineNo uint32) {
	for i := range l.entries {
		e := &l.entries[i]
		if e.ThreadID == threadID && e.Offset == offset && e.IsWrite == isWrite {
			e.Count++
			return
		}
	}
	l.entries = append(l.entries, LedgerEntry{
		ThreadID: threadID, Offset: offset, IsWrite: isWrite,
		FileID: fileID, LineNo: lineNo, Count: 1,
	})
	if len(l.entries) > ledgerCap {
		l.entries = l.entries[1:]
	}
}

// predicateSatisfied implements spec §3's false-sharing predicate.
func predicateSatisfied(entries []LedgerEntry) bool {
	threads := make(map[uint32]struct{})
	offsets := make(map[uint64]struct{})
	anyWriter := false
	for _, e := range entries {
		threads[e.ThreadID] = struct{}{}
		offsets[e.Offset] = struct{}{}
		if e.IsWrite {
			anyWriter = true
		}
	}
	return len(threads) >= 2 && len(offsets) >= 2 && anyWriter
}

// Count returns the number of lines ever flagged as false-sharing.
func (d *FalseSharingDetector) Count() uint64 { return d.count }

// FlaggedLine is one flagged line with its (capped) ledger, for the report.
type FlaggedLine struct {
	Address uint64
	Ledger  []LedgerEntry
}

// FlaggedLines returns all flagged lines in the order they were first
// flagged (spec §8 property 7, "stable ... tie-break" determinism).
func (d *FalseSharingDetector) FlaggedLines() []FlaggedLine {
	out := make([]FlaggedLine, 0, len(d.flagged))
	for _, addr := range d.flagged {
		l := d.ledgers[addr]
		cp := make([]LedgerEntry, len(l.entries))
		copy(cp, l.entries)
		out = append(out, FlaggedLine{Address: addr, Ledger: cp})
	}
	return out
}

// FirstWriter returns the (fileID, lineNo) of the first writer recorded
// against lineAddr's ledger, used by the suggester (spec §4.9) to locate
// a false-sharing fix.
func (d *FalseSharingDetector) FirstWriter(lineAddr uint64) (int32, uint32, bool) {
	l, ok := d.ledgers[lineAddr]
	if !ok {
		return 0, 0, false
	}
	for _, e := range l.entries {
		if e.IsWrite {
			return e.FileID, e.LineNo, true
		}
	}
	return 0, 0, false
}

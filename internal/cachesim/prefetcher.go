package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// prefetcher.go implements the per-core hardware prefetcher capability of
// spec §4.3: stateful miss predictors that emit speculative line addresses
// for the engine to install ahead of demand.

import mapset "github.com/deckarep/golang-set/v2"

// PrefetchPolicy names a prefetcher strategy.
type PrefetchPolicy uint8

const (
	PrefetchNone PrefetchPolicy = iota
	PrefetchNextLine
	PrefetchStream
	PrefetchStride
	PrefetchAdaptive
	PrefetchIntel
)

func (p PrefetchPolicy) String() string {
	switch p {
	case PrefetchNextLine:
		return "next"
	case PrefetchStream:
		return "stream"
	case PrefetchStride:
		return "stride"
	case PrefetchAdaptive:
		return "adaptive"
	case PrefetchIntel:
		return "intel"
	default:
		return "none"
	}
}

// ParsePrefetchPolicy maps a CLI flag value to a PrefetchPolicy.
func ParsePrefetchPolicy(s string) (PrefetchPolicy, error) {
	switch s {
	case "", "none":
		return PrefetchNone, nil
	case "next":
		return PrefetchNextLine, nil
	case "stream":
		return PrefetchStream, nil
	case "stride":
		return PrefetchStride, nil
	case "adaptive":
		return PrefetchAdaptive, nil
	case "intel":
		return PrefetchIntel, nil
	default:
		return PrefetchNone, &InvalidConfigError{Reason: "unknown prefetch policy: " + s}
	}
}

// streamMaxTables bounds the number of concurrently-tracked stream/stride
// entries per core, keeping lookups a short linear scan (spec §4.3, "a
// small table of recently-observed miss streams").
const streamMaxTables = 16

// recentPrefetchCap bounds the "recently prefetched" set used to credit
// usefulness, avoiding unbounded growth over a long trace.
const recentPrefetchCap = 4096

type streamEntry struct {
	base       uint64
	stride     int64
	confidence int
	lastUsed   uint64
}

type strideEntry struct {
	site       uint64 // siteKey(fileID, lineNo) of the source line this entry tracks
	lastAddr   uint64
	stride     int64
	confidence int
	lastUsed   uint64
}

// StridedSite is one source line where the stride/adaptive/intel prefetcher
// locked onto a repeating non-zero stride (spec §4.9 rule 3, "a strided
// access pattern was detected on a hot source line").
type StridedSite struct {
	FileID int32
	LineNo uint32
}

// Prefetcher is a per-core stateful predictor (spec §4.3). Zero value is
// not usable; construct via NewPrefetcher.
type Prefetcher struct {
	policy    PrefetchPolicy
	lineSize  uint64
	degree    int
	clock     uint64
	streams   []streamEntry
	strides   []strideEntry
	recent    mapset.Set[uint64] // lines delivered by this prefetcher, not yet claimed useful
	recentFIFO []uint64

	issued uint64
	useful uint64

	stridedSeen  map[uint64]struct{} // dedupes stridedSites by fileID<<32|lineNo
	stridedSites []StridedSite
}

// NewPrefetcher constructs a Prefetcher for one core.
func NewPrefetcher(policy PrefetchPolicy, lineSize uint64, degree int) *Prefetcher {
	if degree < 1 {
		degree = 1
	}
	return &Prefetcher{
		policy:      policy,
		lineSize:    lineSize,
		degree:      degree,
		recent:      mapset.NewThreadUnsafeSet[uint64](),
		stridedSeen: make(map[uint64]struct{}),
	}
}

// Policy returns the configured policy.
func (p *Prefetcher) Policy() PrefetchPolicy { return p.policy }

// Degree returns the configured degree.
func (p *Prefetcher) Degree() int { return p.degree }

// Issued returns the number of candidate lines emitted so far.
func (p *Prefetcher) Issued() uint64 { return p.issued }

// Useful returns the number of prefetched lines later hit by a demand access.
func (p *Prefetcher) Useful() uint64 { return p.useful }

// Accuracy is useful / issued, 0 if nothing has issued yet.
func (p *Prefetcher) Accuracy() float64 {
	if p.issued == 0 {
		return 0
	}
	return float64(p.useful) / float64(p.issued)
}

// StridedSites returns the source lines where this prefetcher locked onto a
// repeating stride, in first-detected order (spec §4.9 rule 3).
func (p *Prefetcher) StridedSites() []StridedSite { return p.stridedSites }

// OnMiss observes a demand miss at lineAddr, attributed to the source line
// fileID:lineNo, and returns up to Degree() candidate line addresses to
// prefetch (spec §4.3). Candidates are recorded as "recently prefetched"
// for usefulness tracking by NoteDemandHit.
func (p *Prefetcher) OnMiss(lineAddr uint64, fileID int32, lineNo uint32) []uint64 {
	p.clock++
	var candidates []uint64
	switch p.policy {
	case PrefetchNone:
		return nil
	case PrefetchNextLine:
		candidates = p.nextLineCandidates(lineAddr)
	case PrefetchStream:
		candidates = p.streamCandidates(lineAddr)
	case PrefetchStride:
		candidates = p.strideCandidates(lineAddr, fileID, lineNo)
	case PrefetchAdaptive:
		candidates = dedupeLines(append(p.streamCandidates(lineAddr), p.strideCandidates(lineAddr, fileID, lineNo)...))
	case PrefetchIntel:
		candidates = dedupeLines(append(p.nextLineCandidates(lineAddr), p.strideCandidates(lineAddr, fileID, lineNo)...))
	}
	for _, c := range candidates {
		p.issued++
		p.markRecent(c)
	}
	return candidates
}

// NoteDemandHit credits the prefetcher with a useful delivery if lineAddr
// was recently emitted as a candidate.
func (p *Prefetcher) NoteDemandHit(lineAddr uint64) {
	if p.recent.Contains(lineAddr) {
		p.useful++
		p.recent.Remove(lineAddr)
	}
}

func (p *Prefetcher) markRecent(lineAddr uint64) {
	if p.recent.Contains(lineAddr) {
		return
	}
	p.recent.Add(lineAddr)
	p.recentFIFO = append(p.recentFIFO, lineAddr)
	if len(p.recentFIFO) > recentPrefetchCap {
		oldest := p.recentFIFO[0]
		p.recentFIFO = p.recentFIFO[1:]
		p.recent.Remove(oldest)
	}
}

func (p *Prefetcher) nextLineCandidates(lineAddr uint64) []uint64 {
	out := make([]uint64, 0, p.degree)
	for i := 1; i <= p.degree; i++ {
		out = append(out, lineAddr+uint64(i)*p.lineSize)
	}
	return out
}

// streamCandidates finds or creates a stream-table entry tracking a
// constant one-line stride (spec §4.3: "same direction, same stride of
// one line") and emits degree lines ahead.
func (p *Prefetcher) streamCandidates(lineAddr uint64) []uint64 {
	for i := range p.streams {
		e := &p.streams[i]
		stride := int64(lineAddr) - int64(e.base)
		if stride == e.stride || stride == int64(p.lineSize) || stride == -int64(p.lineSize) {
			if e.stride == 0 {
				e.stride = stride
			}
			if stride == e.stride {
				e.confidence++
			}
			e.base = lineAddr
			e.lastUsed = p.clock
			return p.emitStride(lineAddr, e.stride)
		}
	}
	p.installStreamEntry(streamEntry{base: lineAddr, stride: int64(p.lineSize), confidence: 1, lastUsed: p.clock})
	return nil
}

func (p *Prefetcher) installStreamEntry(e streamEntry) {
	if len(p.streams) < streamMaxTables {
		p.streams = append(p.streams, e)
		return
	}
	victim := 0
	for i := 1; i < len(p.streams); i++ {
		if p.streams[i].lastUsed < p.streams[victim].lastUsed {
			victim = i
		}
	}
	p.streams[victim] = e
}

// strideCandidates tracks an arbitrary constant stride per source line
// (spec §4.3). The trace format carries no instruction address, so the
// source line a miss is attributed to stands in for a PC: distinct loops
// naturally land on distinct lines.
func (p *Prefetcher) strideCandidates(lineAddr uint64, fileID int32, lineNo uint32) []uint64 {
	site := siteKey(fileID, lineNo)
	for i := range p.strides {
		e := &p.strides[i]
		if e.site != site {
			continue
		}
		stride := int64(lineAddr) - int64(e.lastAddr)
		if stride == e.stride && stride != 0 {
			e.confidence++
		} else {
			e.stride = stride
			e.confidence = 1
		}
		e.lastAddr = lineAddr
		e.lastUsed = p.clock
		if e.confidence >= 2 && e.stride != 0 {
			p.noteStridedSite(fileID, lineNo)
			return p.emitStride(lineAddr, e.stride)
		}
		return nil
	}
	p.installStrideEntry(strideEntry{site: site, lastAddr: lineAddr, lastUsed: p.clock})
	return nil
}

func siteKey(fileID int32, lineNo uint32) uint64 {
	return uint64(uint32(fileID))<<32 | uint64(lineNo)
}

func (p *Prefetcher) noteStridedSite(fileID int32, lineNo uint32) {
	key := siteKey(fileID, lineNo)
	if _, ok := p.stridedSeen[key]; ok {
		return
	}
	p.stridedSeen[key] = struct{}{}
	p.stridedSites = append(p.stridedSites, StridedSite{FileID: fileID, LineNo: lineNo})
}

func (p *Prefetcher) installStrideEntry(e strideEntry) {
	if len(p.strides) < streamMaxTables {
		p.strides = append(p.strides, e)
		return
	}
	victim := 0
	for i := 1; i < len(p.strides); i++ {
		if p.strides[i].lastUsed < p.strides[victim].lastUsed {
			victim = i
		}
	}
	p.strides[victim] = e
}

func (p *Prefetcher) emitStride(base uint64, stride int64) []uint64 {
	out := make([]uint64, 0, p.degree)
	cur := int64(base)
	for i := 0; i < p.degree; i++ {
		cur += stride
		if cur < 0 {
			break
		}
		out = append(out, uint64(cur))
	}
	return out
}

func dedupeLines(in []uint64) []uint64 {
	if len(in) < 2 {
		return in
	}
	seen := make(map[uint64]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// runner.go drives the decode-simulate loop described in spec §2's last
// paragraph ("The simulator drives the engine...") and implements the
// resource-limit and cancellation model of spec §5.

import (
	"io"

	"cachesim/internal/trace"
)

// DefaultEventLimit is the driver's default maximum event count (spec §5).
const DefaultEventLimit = 5_000_000

// DefaultProgressEvery is the default streaming-progress cadence (spec §5).
const DefaultProgressEvery = 50

// ProgressEvent is a streaming snapshot emitted every ProgressEvery events
// (spec §6.2, "Streaming progress events").
type ProgressEvent struct {
	Events        uint64
	L1D           Stats
	L2            Stats
	L3            Stats
	Invalidations uint64
}

// ProgressSink receives streaming progress snapshots. Emission is
// synchronous and never reorders relative to event processing (spec §5).
type ProgressSink func(ProgressEvent)

// RunOptions configures one Run invocation.
type RunOptions struct {
	EventLimit    uint64 // 0 defaults to DefaultEventLimit
	SampleRate    int    // 1-in-K; 0 or 1 disables sampling
	ProgressEvery uint64 // 0 defaults to DefaultProgressEvery; a nil Progress disables streaming
	Progress      ProgressSink
	Cancel        func() bool // polled at event boundaries; nil disables cancellation
}

// RunResult summarizes how a Run terminated (spec §7).
type RunResult struct {
	EventsProcessed uint64
	Sampled         bool
	Cancelled       bool
	Overflowed      bool
}

// Run decodes records from r via interner and feeds them to engine until
// EOF, the event limit, or cancellation, whichever comes first. A
// MalformedTraceError aborts the run and is returned as an error; the
// other three outcomes are reported through RunResult (spec §7).
func Run(r io.Reader, interner *trace.Interner, engine *MultiCoreCacheSystem, opts RunOptions) (RunResult, error) {
	limit := opts.EventLimit
	if limit == 0 {
		limit = DefaultEventLimit
	}
	progressEvery := opts.ProgressEvery
	if progressEvery == 0 {
		progressEvery = DefaultProgressEvery
	}

	dec := trace.NewDecoder(r, interner)
	result := RunResult{Sampled: opts.SampleRate > 1}

	var sampleCounter int
	for {
		if opts.Cancel != nil && opts.Cancel() {
			result.Cancelled = true
			break
		}
		if engine.EventsProcessed() >= limit {
			result.Overflowed = true
			break
		}

		ev, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, err
		}

		if opts.SampleRate > 1 {
			sampleCounter++
			if sampleCounter%opts.SampleRate != 0 {
				continue
			}
		}

		dispatch(engine, ev)
		result.EventsProcessed = engine.EventsProcessed()

		if opts.Progress != nil && result.EventsProcessed%progressEvery == 0 {
			opts.Progress(snapshotProgress(engine))
		}
	}

	result.EventsProcessed = engine.EventsProcessed()
	return result, nil
}

func dispatch(engine *MultiCoreCacheSystem, ev trace.Event) {
	switch ev.Kind {
	case trace.Load:
		engine.ProcessLoad(ev.ThreadID, ev.Addr, ev.Size, ev.FileID, ev.Line)
	case trace.Store:
		engine.ProcessStore(ev.ThreadID, ev.Addr, ev.Size, ev.FileID, ev.Line)
	case trace.IFetch:
		engine.ProcessIFetch(ev.ThreadID, ev.Addr, ev.Size, ev.FileID, ev.Line)
	}
}

func snapshotProgress(engine *MultiCoreCacheSystem) ProgressEvent {
	l3, _ := engine.L3Stats()
	return ProgressEvent{
		Events:        engine.EventsProcessed(),
		L1D:           engine.AggregateL1DStats(),
		L2:            engine.L2Stats(),
		L3:            l3,
		Invalidations: engine.Directory().Invalidations(),
	}
}

package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "fmt"

// InvalidConfigError reports a cache geometry or preset that violates an
// invariant of spec §4.2 ("assoc = 0", non-power-of-two num_sets, unknown
// preset name, ...). It is fatal at construction time; the engine never
// silently corrects bad configuration (spec §7).
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid cache configuration: %s", e.Reason)
}

// CancelledError formats the non-error "cancelled" outcome of spec §7 for
// the driver's log/status output. RunResult.Cancelled, not a returned Go
// error, is what the caller actually branches on: the partial report
// accumulated so far is still internally consistent (spec §5, §7).
type CancelledError struct {
	EventsProcessed uint64
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("simulation cancelled after %d events", e.EventsProcessed)
}

// OverflowError formats the non-error "overflow" outcome of spec §7 for
// the driver's log/status output. RunResult.Overflowed, not a returned Go
// error, is what the caller branches on: the report of the events processed
// up to the limit is still produced. The report has no truncation field;
// truncation shows only in its event count.
type OverflowError struct {
	Limit uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("event limit (%d) exceeded, trace truncated", e.Limit)
}

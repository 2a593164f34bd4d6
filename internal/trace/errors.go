package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
)

// MalformedTraceError reports a trace record that does not match the
// grammar of spec §6.1. It carries the 1-based line number so the driver
// can surface it to the user, per spec §7.
type MalformedTraceError struct {
	LineNumber int
	Record     string
	Reason     string
}

func (e *MalformedTraceError) Error() string {
	return fmt.Sprintf("malformed trace record at line %d: %s (%s)", e.LineNumber, e.Record, e.Reason)
}

// IsMalformedTrace reports whether err is (or wraps) a *MalformedTraceError.
func IsMalformedTrace(err error) bool {
	var malformed *MalformedTraceError
	return errors.As(err, &malformed)
}

package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecoderDecodesValidRecords(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected Event
	}{
		{
			name: "load with 0x-prefixed hex and thread",
			line: "L 0x1000 4 matmul.c:42 T3",
			expected: Event{Kind: Load, Addr: 0x1000, Size: 4, Line: 42, ThreadID: 3},
		},
		{
			name: "load without 0x prefix",
			line: "L 1000 4 matmul.c:42 T3",
			expected: Event{Kind: Load, Addr: 0x1000, Size: 4, Line: 42, ThreadID: 3},
		},
		{
			name: "store without thread tag defaults to thread 0",
			line: "S 0x2000 8 vec.c:7",
			expected: Event{Kind: Store, Addr: 0x2000, Size: 8, Line: 7, ThreadID: 0},
		},
		{
			name: "instruction fetch",
			line: "I 0x4000 16 loop.c:100 T1",
			expected: Event{Kind: IFetch, Addr: 0x4000, Size: 16, Line: 100, ThreadID: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.line+"\n"), NewInterner())
			ev, err := dec.Next()
			assert.NoError(t, err)
			tt.expected.FileID = ev.FileID // interned id assigned dynamically
			assert.Equal(t, tt.expected, ev)
			_, err = dec.Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestDecoderTreatsUnrecognizedTrailingFieldAsThreadZero(t *testing.T) {
	dec := NewDecoder(strings.NewReader("L 0x1000 4 a.c:1 X0\n"), NewInterner())
	ev, err := dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, uint32(0), ev.ThreadID)
}

func TestDecoderSkipsEmptyLines(t *testing.T) {
	input := "\n\nL 0x1000 4 a.c:1 T0\n\n"
	dec := NewDecoder(strings.NewReader(input), NewInterner())
	ev, err := dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, Load, ev.Kind)
	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderInternsFileNamesConsistently(t *testing.T) {
	input := "L 0x1000 4 a.c:1 T0\nS 0x2000 4 a.c:2 T0\nL 0x3000 4 b.c:3 T0\n"
	dec := NewDecoder(strings.NewReader(input), NewInterner())
	first, err := dec.Next()
	assert.NoError(t, err)
	second, err := dec.Next()
	assert.NoError(t, err)
	third, err := dec.Next()
	assert.NoError(t, err)

	assert.Equal(t, first.FileID, second.FileID)
	assert.NotEqual(t, first.FileID, third.FileID)
	assert.Equal(t, "a.c", dec.Interner().Name(first.FileID))
	assert.Equal(t, "b.c", dec.Interner().Name(third.FileID))
}

func TestDecoderRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"unknown kind", "X 0x1000 4 a.c:1 T0"},
		{"missing fields", "L 0x1000 4"},
		{"bad hex address", "L zzzz 4 a.c:1 T0"},
		{"bad file:line shape", "L 0x1000 4 a.c T0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.line+"\n"), NewInterner())
			_, err := dec.Next()
			assert.Error(t, err)
			assert.True(t, IsMalformedTrace(err))
		})
	}
}

func TestDecoderLineNumberTracksProgress(t *testing.T) {
	input := "L 0x1000 4 a.c:1 T0\nL 0x1000 4 a.c:1 T0\nBOGUS\n"
	dec := NewDecoder(strings.NewReader(input), NewInterner())
	_, err := dec.Next()
	assert.NoError(t, err)
	_, err = dec.Next()
	assert.NoError(t, err)
	_, err = dec.Next()
	assert.Error(t, err)
	assert.Equal(t, 3, dec.LineNumber())
}

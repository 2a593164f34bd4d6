package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// decoder.go implements the streaming trace decoder of spec §4.1/§6.1.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// maxLineBytes bounds a single trace record; traces are machine-generated
// and records are short, so this is generous headroom, not a real limit.
const maxLineBytes = 1 << 16

// Decoder reads one trace record at a time from a byte stream and yields a
// typed Event. It never buffers the whole trace in memory: the scanner's
// internal buffer is reused across calls and file names are interned. It
// is not allocation-free: every record's field list is built in a newly
// allocated slice, and a long file name is copied to the heap for the
// interner lookup.
type Decoder struct {
	scanner  *bufio.Scanner
	interner *Interner
	lineNum  int
}

// NewDecoder returns a Decoder reading records from r. interner is shared
// with the engine/attribution aggregator so that file ids are consistent
// across the whole run; pass a fresh trace.NewInterner() if the caller has
// no other use for it.
func NewDecoder(r io.Reader, interner *Interner) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxLineBytes)
	return &Decoder{scanner: scanner, interner: interner}
}

// Interner returns the file-name interner this decoder writes into.
func (d *Decoder) Interner() *Interner {
	return d.interner
}

// LineNumber returns the 1-based line number of the most recently decoded
// (or failed) record, for error reporting.
func (d *Decoder) LineNumber() int {
	return d.lineNum
}

// Next decodes the next non-empty record. It returns io.EOF when the
// stream is exhausted. A malformed record returns a *MalformedTraceError
// and the decoder should not be used again (spec §7: "a malformed record
// aborts the run").
func (d *Decoder) Next() (Event, error) {
	for {
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return Event{}, err
			}
			return Event{}, io.EOF
		}
		d.lineNum++
		line := bytes.TrimRight(d.scanner.Bytes(), " \t\r")
		if len(line) == 0 {
			continue // decoder skips empty lines
		}
		return d.decodeLine(line)
	}
}

func (d *Decoder) decodeLine(line []byte) (Event, error) {
	fields := splitFields(line)
	if len(fields) < 4 {
		return Event{}, d.malformed(line, "expected at least 4 whitespace-separated fields")
	}

	var kind Kind
	switch {
	case len(fields[0]) == 1 && fields[0][0] == 'L':
		kind = Load
	case len(fields[0]) == 1 && fields[0][0] == 'S':
		kind = Store
	case len(fields[0]) == 1 && fields[0][0] == 'I':
		kind = IFetch
	default:
		return Event{}, d.malformed(line, "unrecognized record kind, expected L, S, or I")
	}

	addr, err := parseHexBytes(fields[1])
	if err != nil {
		return Event{}, d.malformed(line, "invalid hex address: "+err.Error())
	}

	size, err := strconv.ParseUint(string(fields[2]), 10, 32)
	if err != nil {
		return Event{}, d.malformed(line, "invalid decimal size: "+err.Error())
	}

	fileID, lineNo, err := d.parseFileLine(fields[3])
	if err != nil {
		return Event{}, d.malformed(line, err.Error())
	}

	var threadID uint64
	if len(fields) >= 5 {
		// A 5th field that isn't a well-formed T<digits> tag is an unknown
		// trailing field, not a malformed record (spec §6.1): it's ignored
		// and the record decodes as thread 0 (spec §4.1's default).
		if tid, ok := parseThreadTag(fields[4]); ok {
			threadID = tid
		}
	}

	return Event{
		Kind:     kind,
		Addr:     addr,
		Size:     uint32(size),
		FileID:   fileID,
		Line:     lineNo,
		ThreadID: uint32(threadID),
	}, nil
}

// parseFileLine splits a "<file>:<dec_line>" token on its last colon, since
// the file component is defined only to contain no whitespace, not to
// exclude colons.
func (d *Decoder) parseFileLine(tok []byte) (fileID int32, lineNo uint32, err error) {
	idx := bytes.LastIndexByte(tok, ':')
	if idx < 0 || idx == len(tok)-1 {
		err = fmt.Errorf("expected <file>:<line>, got %q", tok)
		return
	}
	filePart := tok[:idx]
	lineVal, perr := strconv.ParseUint(string(tok[idx+1:]), 10, 32)
	if perr != nil {
		err = fmt.Errorf("invalid decimal line number in %q: %v", tok, perr)
		return
	}
	// Intern stores its own copy of the name only on first sight of it.
	fileID = d.interner.Intern(string(filePart))
	lineNo = uint32(lineVal)
	return
}

// parseThreadTag parses a T<digits> thread tag. ok is false for anything
// else, including a "T" prefix with non-digit suffix; the caller treats
// that as an ignored unknown trailing field rather than an error.
func parseThreadTag(tok []byte) (id uint64, ok bool) {
	if len(tok) < 2 || tok[0] != 'T' {
		return 0, false
	}
	v, err := strconv.ParseUint(string(tok[1:]), 10, 32)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseHexBytes(tok []byte) (uint64, error) {
	trimmed := tok
	if len(trimmed) > 1 && trimmed[0] == '0' && (trimmed[1] == 'x' || trimmed[1] == 'X') {
		trimmed = trimmed[2:]
	}
	return strconv.ParseUint(string(trimmed), 16, 64)
}

// splitFields splits line on runs of spaces/tabs without allocating
// per-field strings; each returned slice aliases line's backing array.
func splitFields(line []byte) [][]byte {
	var fields [][]byte
	start := -1
	for i, b := range line {
		if b == ' ' || b == '\t' {
			if start >= 0 {
				fields = append(fields, line[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
	}
	return fields
}

func (d *Decoder) malformed(line []byte, reason string) error {
	return &MalformedTraceError{LineNumber: d.lineNum, Record: string(line), Reason: reason}
}

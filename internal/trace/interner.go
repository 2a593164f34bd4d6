package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Interner assigns small integer ids to source file names so that hot-path
// event records carry an int32 instead of a string (spec.md §9, "File
// interning"). Resolve ids back to names only at report time.
type Interner struct {
	ids   map[string]int32
	names []string
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{ids: make(map[string]int32)}
}

// Intern returns the id for name, assigning a new one on first sight. A
// known name costs one map lookup; a new name is copied into the
// interner's own storage.
func (in *Interner) Intern(name string) int32 {
	if id, ok := in.ids[name]; ok {
		return id
	}
	id := int32(len(in.names))
	// names must hold its own copy; the caller's backing array may be reused.
	owned := string([]byte(name))
	in.names = append(in.names, owned)
	in.ids[owned] = id
	return id
}

// Name resolves an id previously returned by Intern back to its string.
func (in *Interner) Name(id int32) string {
	if id < 0 || int(id) >= len(in.names) {
		return ""
	}
	return in.names[id]
}

// Len returns the number of distinct interned names.
func (in *Interner) Len() int {
	return len(in.names)
}

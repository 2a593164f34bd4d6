package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeometryNumSets(t *testing.T) {
	g := Geometry{SizeBytes: 32768, LineSize: 64, Associativity: 8}
	assert.Equal(t, uint64(64), g.NumSets())
}

func TestGeometryValidateRejectsNonPowerOfTwoSets(t *testing.T) {
	g := Geometry{SizeBytes: 24576, LineSize: 64, Associativity: 8}
	err := g.Validate()
	assert.Error(t, err)
	var invalid *InvalidConfigError
	assert.ErrorAs(t, err, &invalid)
}

func TestGeometryValidateRejectsNonPowerOfTwoLineSize(t *testing.T) {
	g := Geometry{SizeBytes: 32768, LineSize: 60, Associativity: 8}
	assert.Error(t, g.Validate())
}

func TestGeometryValidateRejectsZeroAssociativity(t *testing.T) {
	g := Geometry{SizeBytes: 32768, LineSize: 64, Associativity: 0}
	assert.Error(t, g.Validate())
}

func TestGeometryValidateAcceptsStandardShape(t *testing.T) {
	g := Geometry{SizeBytes: 32768, LineSize: 64, Associativity: 8}
	assert.NoError(t, g.Validate())
}

func TestDecomposeRoundTripsLineAddress(t *testing.T) {
	g := Geometry{SizeBytes: 32768, LineSize: 64, Associativity: 8}
	addr := uint64(0x1000_4040)
	parts := decompose(addr, g)
	// offset is the low 6 bits (log2(64)); this address is line-aligned
	// plus 0x40, which itself is a multiple of the line size, so offset
	// should be 0.
	assert.Equal(t, uint64(0), parts.Offset)

	unaligned := addr + 5
	parts2 := decompose(unaligned, g)
	assert.Equal(t, uint64(5), parts2.Offset)
	assert.Equal(t, lineAddress(unaligned, g.LineSize), addr)
}

func TestInclusionPolicyString(t *testing.T) {
	assert.Equal(t, "inclusive", Inclusive.String())
	assert.Equal(t, "exclusive", Exclusive.String())
	assert.Equal(t, "non_inclusive_non_exclusive", NonInclusiveNonExclusive.String())
}

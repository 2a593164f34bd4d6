package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateFiresNothingOnHealthyInput(t *testing.T) {
	out, err := Evaluate(SuggestionInput{L1MissRate: 0.01, L2MissRate: 0.02, L3MissRate: 0.01})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEvaluateFlagsFalseSharingWithLocation(t *testing.T) {
	out, err := Evaluate(SuggestionInput{HasFalseSharing: true, FirstFalseSharingLocation: "a.c:42"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "false_sharing", out[0].Type)
	assert.Equal(t, SeverityHigh, out[0].Severity)
	assert.Equal(t, "a.c:42", out[0].Location)
}

func TestEvaluateFlagsPoorLocalityOnHighMissRates(t *testing.T) {
	out, err := Evaluate(SuggestionInput{L1MissRate: 0.3, L2MissRate: 0.6})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "poor_locality", out[0].Type)
}

func TestEvaluateDoesNotFlagPoorLocalityWhenOnlyOneRateIsHigh(t *testing.T) {
	out, err := Evaluate(SuggestionInput{L1MissRate: 0.3, L2MissRate: 0.1})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEvaluateCanFireMultipleRulesAtOnce(t *testing.T) {
	out, err := Evaluate(SuggestionInput{
		HasFalseSharing:           true,
		FirstFalseSharingLocation: "a.c:1",
		HasStridedHotLine:         true,
		StridedLocation:           "b.c:2",
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestEvaluateWorkingSetExceedsCacheRequiresBothRateAndHotLine(t *testing.T) {
	out, err := Evaluate(SuggestionInput{L3MissRate: 0.5, HotLineL3Exceeds: false})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = Evaluate(SuggestionInput{L3MissRate: 0.5, HotLineL3Exceeds: true, HotLineL3Location: "c.c:3"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c.c:3", out[0].Location)
}

package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderXLSXCreatesSummaryAndLevelsSheets(t *testing.T) {
	rep := Report{Config: "test", Events: 100, Cores: 1, Levels: Levels{L1D: LevelStats{Hits: 90, Misses: 10}}}
	f, err := RenderXLSX(rep)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Summary")
	assert.Contains(t, sheets, "Levels")

	v, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "test", v)
}

func TestRenderXLSXOnlyAddsOptionalSheetsWhenPopulated(t *testing.T) {
	rep := Report{Config: "empty", Cores: 1}
	f, err := RenderXLSX(rep)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.NotContains(t, sheets, "HotLines")
	assert.NotContains(t, sheets, "FalseSharing")
	assert.NotContains(t, sheets, "Suggestions")
}

func TestRenderXLSXIncludesHotLinesWhenPresent(t *testing.T) {
	rep := Report{
		Config: "x", Cores: 1,
		HotLines: []HotLine{{File: "a.c", Line: 1, Hits: 5, Misses: 2, MissRate: 0.28, Threads: 1}},
	}
	f, err := RenderXLSX(rep)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("HotLines", "A2")
	require.NoError(t, err)
	assert.Equal(t, "a.c", v)
}

package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// RenderXLSX renders rep as a workbook with one sheet per major section,
// in the teacher's bold-header convention (render_excel.go).
func RenderXLSX(rep Report) (*excelize.File, error) {
	f := excelize.NewFile()
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "creating bold style")
	}

	const summarySheet = "Summary"
	f.SetSheetName("Sheet1", summarySheet)
	writeSummarySheet(f, summarySheet, rep, boldStyle)

	writeLevelsSheet(f, "Levels", rep, boldStyle)
	if len(rep.HotLines) > 0 {
		writeHotLinesSheet(f, "HotLines", rep.HotLines, boldStyle)
	}
	if len(rep.FalseSharing) > 0 {
		writeFalseSharingSheet(f, "FalseSharing", rep.FalseSharing, boldStyle)
	}
	if len(rep.Suggestions) > 0 {
		writeSuggestionsSheet(f, "Suggestions", rep.Suggestions, boldStyle)
	}

	if err := f.SetActiveSheet(0); err != nil {
		return nil, errors.Wrap(err, "setting active sheet")
	}
	return f, nil
}

func cell(col, row int) string {
	columnName, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return ""
	}
	name, err := excelize.JoinCellName(columnName, row)
	if err != nil {
		return ""
	}
	return name
}

func setBold(f *excelize.File, sheet, c string, style int) {
	_ = f.SetCellStyle(sheet, c, c, style)
}

func writeSummarySheet(f *excelize.File, sheet string, rep Report, bold int) {
	rows := [][2]string{
		{"config", rep.Config},
		{"events", fmt.Sprintf("%d", rep.Events)},
		{"sampled", fmt.Sprintf("%v", rep.Sampled)},
		{"multicore", fmt.Sprintf("%v", rep.Multicore)},
		{"cores", fmt.Sprintf("%d", rep.Cores)},
		{"invalidations", fmt.Sprintf("%d", rep.Coherence.Invalidations)},
		{"falseSharingEvents", fmt.Sprintf("%d", rep.Coherence.FalseSharingEvents)},
	}
	if rep.Timing != nil {
		rows = append(rows,
			[2]string{"totalCycles", fmt.Sprintf("%d", rep.Timing.TotalCycles)},
			[2]string{"avgLatency", fmt.Sprintf("%.4f", rep.Timing.AvgLatency)})
	}
	for i, kv := range rows {
		row := i + 1
		_ = f.SetCellValue(sheet, cell(1, row), kv[0])
		setBold(f, sheet, cell(1, row), bold)
		_ = f.SetCellValue(sheet, cell(2, row), kv[1])
	}
}

func writeLevelsSheet(f *excelize.File, sheet string, rep Report, bold int) {
	_, _ = f.NewSheet(sheet)
	headers := []string{"level", "hits", "misses", "hitRate", "writebacks", "compulsory", "capacity", "conflict"}
	for col, h := range headers {
		c := cell(col+1, 1)
		_ = f.SetCellValue(sheet, c, h)
		setBold(f, sheet, c, bold)
	}
	type row struct {
		name string
		s    LevelStats
	}
	levelRows := []row{{"L1D", rep.Levels.L1D}}
	if rep.Levels.L1I != nil {
		levelRows = append(levelRows, row{"L1I", *rep.Levels.L1I})
	}
	levelRows = append(levelRows, row{"L2", rep.Levels.L2})
	if rep.Levels.L3 != nil {
		levelRows = append(levelRows, row{"L3", *rep.Levels.L3})
	}
	for i, r := range levelRows {
		rn := i + 2
		vals := []any{r.name, r.s.Hits, r.s.Misses, r.s.HitRate, r.s.Writebacks, r.s.Compulsory, r.s.Capacity, r.s.Conflict}
		for col, v := range vals {
			_ = f.SetCellValue(sheet, cell(col+1, rn), v)
		}
	}
}

func writeHotLinesSheet(f *excelize.File, sheet string, lines []HotLine, bold int) {
	_, _ = f.NewSheet(sheet)
	headers := []string{"file", "line", "hits", "misses", "missRate", "threads"}
	for col, h := range headers {
		c := cell(col+1, 1)
		_ = f.SetCellValue(sheet, c, h)
		setBold(f, sheet, c, bold)
	}
	for i, l := range lines {
		rn := i + 2
		vals := []any{l.File, l.Line, l.Hits, l.Misses, l.MissRate, l.Threads}
		for col, v := range vals {
			_ = f.SetCellValue(sheet, cell(col+1, rn), v)
		}
	}
}

func writeFalseSharingSheet(f *excelize.File, sheet string, lines []FalseSharingLine, bold int) {
	_, _ = f.NewSheet(sheet)
	headers := []string{"cacheLineAddr", "threadId", "offset", "isWrite", "file", "line", "count"}
	for col, h := range headers {
		c := cell(col+1, 1)
		_ = f.SetCellValue(sheet, c, h)
		setBold(f, sheet, c, bold)
	}
	rn := 2
	for _, fs := range lines {
		for _, a := range fs.Accesses {
			vals := []any{fs.CacheLineAddr, a.ThreadID, a.Offset, a.IsWrite, a.File, a.Line, a.Count}
			for col, v := range vals {
				_ = f.SetCellValue(sheet, cell(col+1, rn), v)
			}
			rn++
		}
	}
}

func writeSuggestionsSheet(f *excelize.File, sheet string, suggestions []Suggestion, bold int) {
	_, _ = f.NewSheet(sheet)
	headers := []string{"type", "severity", "location", "message", "fix"}
	for col, h := range headers {
		c := cell(col+1, 1)
		_ = f.SetCellValue(sheet, c, h)
		setBold(f, sheet, c, bold)
	}
	for i, s := range suggestions {
		rn := i + 2
		vals := []any{s.Type, s.Severity, s.Location, s.Message, s.Fix}
		for col, v := range vals {
			_ = f.SetCellValue(sheet, cell(col+1, rn), v)
		}
	}
}

package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numberPrinter = message.NewPrinter(language.English)

const defaultTableWidth = 120

// terminalWidth returns the width stdout should wrap to: the real terminal
// width when stdout is a terminal, defaultTableWidth otherwise (piped
// output, redirected to a file, CI logs).
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultTableWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultTableWidth
	}
	return w
}

// RenderText renders rep as a human-readable table report, in the
// teacher's section-heading-plus-underline style.
func RenderText(rep Report) string {
	var sb strings.Builder
	heading(&sb, "Summary")
	sb.WriteString(fmt.Sprintf("config: %s   events: %s   sampled: %v   cores: %d\n\n",
		rep.Config, numberPrinter.Sprintf("%d", rep.Events), rep.Sampled, rep.Cores))

	heading(&sb, "Cache Levels")
	writeLevelRow(&sb, "L1D", rep.Levels.L1D)
	if rep.Levels.L1I != nil {
		writeLevelRow(&sb, "L1I", *rep.Levels.L1I)
	}
	writeLevelRow(&sb, "L2", rep.Levels.L2)
	if rep.Levels.L3 != nil {
		writeLevelRow(&sb, "L3", *rep.Levels.L3)
	}
	sb.WriteString("\n")

	heading(&sb, "Coherence")
	sb.WriteString(fmt.Sprintf("invalidations: %s   falseSharingEvents: %s\n\n",
		numberPrinter.Sprintf("%d", rep.Coherence.Invalidations),
		numberPrinter.Sprintf("%d", rep.Coherence.FalseSharingEvents)))

	if rep.TLB != nil {
		heading(&sb, "TLB")
		sb.WriteString(fmt.Sprintf("dtlb  hit-rate: %.2f%%  (hits %s, misses %s)\n",
			rep.TLB.DTLB.HitRate*100,
			numberPrinter.Sprintf("%d", rep.TLB.DTLB.Hits),
			numberPrinter.Sprintf("%d", rep.TLB.DTLB.Misses)))
		if rep.TLB.ITLB != nil {
			sb.WriteString(fmt.Sprintf("itlb  hit-rate: %.2f%%  (hits %s, misses %s)\n",
				rep.TLB.ITLB.HitRate*100,
				numberPrinter.Sprintf("%d", rep.TLB.ITLB.Hits),
				numberPrinter.Sprintf("%d", rep.TLB.ITLB.Misses)))
		}
		sb.WriteString("\n")
	}

	if rep.Timing != nil {
		heading(&sb, "Timing")
		sb.WriteString(fmt.Sprintf("totalCycles: %s   avgLatency: %.2f cycles/event\n",
			numberPrinter.Sprintf("%d", rep.Timing.TotalCycles), rep.Timing.AvgLatency))
		b := rep.Timing.Breakdown
		sb.WriteString(fmt.Sprintf("  l1 %s   l2 %s   l3 %s   memory %s   tlb-miss %s\n\n",
			numberPrinter.Sprintf("%d", b.L1HitCycles),
			numberPrinter.Sprintf("%d", b.L2HitCycles),
			numberPrinter.Sprintf("%d", b.L3HitCycles),
			numberPrinter.Sprintf("%d", b.MemoryCycles),
			numberPrinter.Sprintf("%d", b.TLBMissCycles)))
	}

	if rep.Prefetch != nil {
		heading(&sb, "Prefetcher")
		p := rep.Prefetch
		sb.WriteString(fmt.Sprintf("policy: %s   degree: %d   issued: %s   useful: %s   accuracy: %.2f%%\n\n",
			p.Policy, p.Degree,
			numberPrinter.Sprintf("%d", p.Issued),
			numberPrinter.Sprintf("%d", p.Useful),
			p.Accuracy*100))
	}

	if len(rep.HotLines) > 0 {
		heading(&sb, "Hot Lines")
		writeHotLinesTable(&sb, rep.HotLines)
	}

	if len(rep.FalseSharing) > 0 {
		heading(&sb, "False Sharing")
		for _, fs := range rep.FalseSharing {
			sb.WriteString(fmt.Sprintf("%s  (%d accesses across %d ledger entries)\n",
				fs.CacheLineAddr, fs.AccessCount, len(fs.Accesses)))
			for _, a := range fs.Accesses {
				sb.WriteString(fmt.Sprintf("    thread %d  offset %d  %s  %s:%d  x%d\n",
					a.ThreadID, a.Offset, writeKind(a.IsWrite), a.File, a.Line, a.Count))
			}
		}
		sb.WriteString("\n")
	}

	if len(rep.Suggestions) > 0 {
		heading(&sb, "Suggestions")
		for _, s := range rep.Suggestions {
			sb.WriteString(fmt.Sprintf("[%s] %s at %s: %s\n", s.Severity, s.Type, s.Location, s.Message))
			sb.WriteString(fmt.Sprintf("    fix: %s\n", s.Fix))
		}
	}

	return sb.String()
}

func writeKind(isWrite bool) string {
	if isWrite {
		return "write"
	}
	return "read"
}

func heading(sb *strings.Builder, title string) {
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n")
}

func writeLevelRow(sb *strings.Builder, name string, s LevelStats) {
	sb.WriteString(fmt.Sprintf("%-4s hit-rate %6.2f%%   hits %12s   misses %12s   writebacks %10s   compulsory %8s   capacity %8s   conflict %8s\n",
		name, s.HitRate*100,
		numberPrinter.Sprintf("%d", s.Hits),
		numberPrinter.Sprintf("%d", s.Misses),
		numberPrinter.Sprintf("%d", s.Writebacks),
		numberPrinter.Sprintf("%d", s.Compulsory),
		numberPrinter.Sprintf("%d", s.Capacity),
		numberPrinter.Sprintf("%d", s.Conflict)))
}

func writeHotLinesTable(sb *strings.Builder, lines []HotLine) {
	maxFile := len("file:line")
	for _, l := range lines {
		loc := fmt.Sprintf("%s:%d", l.File, l.Line)
		if len(loc) > maxFile {
			maxFile = len(loc)
		}
	}
	if fixedCols := 10 + 10 + 8 + 7 + 4*3; maxFile > terminalWidth()-fixedCols && terminalWidth()-fixedCols > len("file:line") {
		maxFile = terminalWidth() - fixedCols
	}
	sb.WriteString(fmt.Sprintf("%-*s   %10s   %10s   %8s   %7s\n", maxFile, "file:line", "hits", "misses", "missRate", "threads"))
	sb.WriteString(strings.Repeat("-", maxFile) + "   " + strings.Repeat("-", 10) + "   " + strings.Repeat("-", 10) + "   " + strings.Repeat("-", 8) + "   " + strings.Repeat("-", 7) + "\n")
	for _, l := range lines {
		loc := fmt.Sprintf("%s:%d", l.File, l.Line)
		if len(loc) > maxFile {
			loc = "..." + loc[len(loc)-maxFile+3:]
		}
		sb.WriteString(fmt.Sprintf("%-*s   %10s   %10s   %7.2f%%   %7d\n",
			maxFile, loc,
			numberPrinter.Sprintf("%d", l.Hits),
			numberPrinter.Sprintf("%d", l.Misses),
			l.MissRate*100, l.Threads))
	}
	sb.WriteString("\n")
}

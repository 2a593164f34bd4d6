// Package compare runs one trace through several named presets
// concurrently, each with its own independent engine (spec.md §5, "each
// gets a fresh independent engine"), and renders a side-by-side table.
package compare

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"

	"cachesim/internal/app"
	"cachesim/internal/cachesim"
	"cachesim/internal/report"
	"cachesim/internal/trace"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const cmdName = "compare"

var examples = []string{
	fmt.Sprintf("  Compare a trace across three presets: $ %s %s --trace app.trace --preset intel-14th-gen --preset amd-zen4 --preset apple-m3", app.Name, cmdName),
}

// Cmd is the compare subcommand.
var Cmd = &cobra.Command{
	Use:           cmdName,
	GroupID:       "primary",
	Short:         "Run a trace through several presets and compare results",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagTrace   string
	flagPresets []string
	flagCores   int
	flagJSON    bool
)

func init() {
	Cmd.Flags().StringVar(&flagTrace, "trace", "", "path to the trace file (default: stdin)")
	Cmd.Flags().StringArrayVar(&flagPresets, "preset", nil, "a preset to include in the comparison; repeat for each one")
	Cmd.Flags().IntVar(&flagCores, "cores", 1, "number of cores, applied identically to every preset run")
	Cmd.Flags().BoolVar(&flagJSON, "json", false, "emit the comparison as a JSON array instead of a table")
}

type comparisonRow struct {
	Preset        string  `json:"preset"`
	L1HitRate     float64 `json:"l1HitRate"`
	L2HitRate     float64 `json:"l2HitRate"`
	L3HitRate     float64 `json:"l3HitRate"`
	TotalCycles   uint64  `json:"totalCycles"`
	AvgLatency    float64 `json:"avgLatency"`
	Invalidations uint64  `json:"invalidations"`
	Error         string  `json:"error,omitempty"`
}

func runCmd(cmd *cobra.Command, args []string) error {
	if len(flagPresets) == 0 {
		return errors.New("at least one --preset is required")
	}

	var traceData []byte
	var err error
	if flagTrace == "" {
		traceData, err = readAll(os.Stdin)
	} else {
		traceData, err = os.ReadFile(filepath.Clean(flagTrace))
	}
	if err != nil {
		return errors.Wrap(err, "reading trace")
	}

	rows := make([]comparisonRow, len(flagPresets))
	var wg sync.WaitGroup
	for i, name := range flagPresets {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			rows[i] = runOnePreset(name, traceData)
		}(i, name)
	}
	wg.Wait()

	if flagJSON {
		return emitJSON(rows)
	}
	emitTable(rows)
	return nil
}

func runOnePreset(name string, traceData []byte) comparisonRow {
	row := comparisonRow{Preset: name}

	preset, err := cachesim.LookupPreset(name)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	engineCfg, err := preset.ToEngineConfig(cachesim.EngineOptions{Cores: flagCores, Track3C: true})
	if err != nil {
		row.Error = err.Error()
		return row
	}
	engine, err := cachesim.NewMultiCoreCacheSystem(engineCfg)
	if err != nil {
		row.Error = err.Error()
		return row
	}

	interner := trace.NewInterner()
	if _, err := cachesim.Run(bytes.NewReader(traceData), interner, engine, cachesim.RunOptions{}); err != nil {
		row.Error = err.Error()
		return row
	}

	rep, err := report.Build(engine, interner, report.BuildConfig{
		ConfigName: name,
		Cores:      flagCores,
		Latency: report.LatencyConfig{
			L1Hit: preset.Latency.L1Hit, L2Hit: preset.Latency.L2Hit, L3Hit: preset.Latency.L3Hit,
			Memory: preset.Latency.Memory, TLBMissPenalty: preset.Latency.TLBMissPenalty,
		},
	})
	if err != nil {
		row.Error = err.Error()
		return row
	}

	row.L1HitRate = rep.Levels.L1D.HitRate
	row.L2HitRate = rep.Levels.L2.HitRate
	if rep.Levels.L3 != nil {
		row.L3HitRate = rep.Levels.L3.HitRate
	}
	if rep.Timing != nil {
		row.TotalCycles = rep.Timing.TotalCycles
		row.AvgLatency = rep.Timing.AvgLatency
	}
	row.Invalidations = rep.Coherence.Invalidations
	return row
}

func readAll(f *os.File) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(f)
	return buf.Bytes(), err
}

func emitTable(rows []comparisonRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "preset\tl1 hit%\tl2 hit%\tl3 hit%\ttotal cycles\tavg latency\tinvalidations\terror")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t%d\t%s\n",
			r.Preset, r.L1HitRate*100, r.L2HitRate*100, r.L3HitRate*100,
			r.TotalCycles, r.AvgLatency, r.Invalidations, r.Error)
	}
}

func emitJSON(rows []comparisonRow) error {
	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

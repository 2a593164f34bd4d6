// Package simulate is the primary subcommand: decode a trace, run the
// cache simulation engine, and emit the report of spec.md §6.2.
package simulate

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"cachesim/internal/app"
	"cachesim/internal/cachesim"
	"cachesim/internal/metricsserver"
	"cachesim/internal/report"
	"cachesim/internal/trace"

	"github.com/spf13/cobra"
)

const cmdName = "simulate"

var examples = []string{
	fmt.Sprintf("  Simulate against a named preset:        $ %s %s --trace app.trace --preset intel-14th-gen", app.Name, cmdName),
	fmt.Sprintf("  Simulate a custom geometry:              $ %s %s --trace app.trace --l1-size 32768 --l1-assoc 8 --l2-size 262144 --l2-assoc 8", app.Name, cmdName),
	fmt.Sprintf("  Emit JSON and cap at one million events: $ %s %s --trace app.trace --preset educational --json --limit 1000000", app.Name, cmdName),
}

// Cmd is the simulate subcommand.
var Cmd = &cobra.Command{
	Use:           cmdName,
	GroupID:       "primary",
	Short:         "Run the cache simulation engine over a trace",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagTrace          string
	flagPreset         string
	flagLineSize       uint64
	flagCores          int
	flagSeparateL1I    bool
	flagL1Size         uint64
	flagL1Assoc        int
	flagL1Replacement  string
	flagL2Size         uint64
	flagL2Assoc        int
	flagL2Replacement  string
	flagL3Size         uint64
	flagL3Assoc        int
	flagL3Replacement  string
	flagInclusionL1L2  string
	flagInclusionL2L3  string
	flagPrefetch       string
	flagPrefetchDegree int
	flagDTLBEntries    int
	flagDTLBAssoc      int
	flagSample         int
	flagLimit          uint64
	flagFast           bool
	flagJSON           bool
	flagVerbose        bool
	flagXLSXOut        string
	flagCacheState     bool
	flagMetricsAddr    string
)

func init() {
	Cmd.Flags().StringVar(&flagTrace, "trace", "", "path to the trace file (default: stdin)")
	Cmd.Flags().StringVar(&flagPreset, "preset", "", "named hardware preset (see 'presets list'); omit to specify a custom geometry")
	Cmd.Flags().Uint64Var(&flagLineSize, "line-size", 64, "cache line size in bytes (custom geometry only)")
	Cmd.Flags().IntVar(&flagCores, "cores", 1, "number of cores")
	Cmd.Flags().BoolVar(&flagSeparateL1I, "split-l1", false, "model a separate L1 instruction cache instead of a unified L1")
	Cmd.Flags().Uint64Var(&flagL1Size, "l1-size", 32768, "L1 size in bytes (custom geometry only)")
	Cmd.Flags().IntVar(&flagL1Assoc, "l1-assoc", 8, "L1 associativity (custom geometry only)")
	Cmd.Flags().StringVar(&flagL1Replacement, "l1-replacement", "lru", "L1 replacement policy: lru|plru|random|srrip|brrip")
	Cmd.Flags().Uint64Var(&flagL2Size, "l2-size", 262144, "L2 size in bytes (custom geometry only)")
	Cmd.Flags().IntVar(&flagL2Assoc, "l2-assoc", 8, "L2 associativity (custom geometry only)")
	Cmd.Flags().StringVar(&flagL2Replacement, "l2-replacement", "lru", "L2 replacement policy (custom geometry only)")
	Cmd.Flags().Uint64Var(&flagL3Size, "l3-size", 0, "L3 size in bytes, 0 disables L3 (custom geometry only)")
	Cmd.Flags().IntVar(&flagL3Assoc, "l3-assoc", 16, "L3 associativity (custom geometry only)")
	Cmd.Flags().StringVar(&flagL3Replacement, "l3-replacement", "lru", "L3 replacement policy (custom geometry only)")
	Cmd.Flags().StringVar(&flagInclusionL1L2, "inclusion-l1l2", "non_inclusive_non_exclusive", "inclusive|exclusive|non_inclusive_non_exclusive (custom geometry only)")
	Cmd.Flags().StringVar(&flagInclusionL2L3, "inclusion-l2l3", "non_inclusive_non_exclusive", "inclusive|exclusive|non_inclusive_non_exclusive (custom geometry only)")
	Cmd.Flags().StringVar(&flagPrefetch, "prefetch", "none", "prefetch policy: none|next|stream|stride|adaptive|intel")
	Cmd.Flags().IntVar(&flagPrefetchDegree, "prefetch-degree", 1, "number of lines issued per prefetch trigger")
	Cmd.Flags().IntVar(&flagDTLBEntries, "dtlb-entries", 64, "D-TLB entry count, 0 disables TLB modeling")
	Cmd.Flags().IntVar(&flagDTLBAssoc, "dtlb-assoc", 4, "D-TLB associativity")
	Cmd.Flags().IntVar(&flagSample, "sample", 1, "process 1-in-K events, K=1 disables sampling")
	Cmd.Flags().Uint64Var(&flagLimit, "limit", cachesim.DefaultEventLimit, "maximum events to process")
	Cmd.Flags().BoolVar(&flagFast, "fast", false, "disable 3C miss classification")
	Cmd.Flags().BoolVar(&flagJSON, "json", false, "emit the machine-readable JSON report instead of the text table")
	Cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "print a progress line with the running event count to stderr after every event; the records themselves are not printed")
	Cmd.Flags().StringVar(&flagXLSXOut, "xlsx", "", "also write the report as an XLSX workbook to this path")
	Cmd.Flags().BoolVar(&flagCacheState, "cache-state", false, "include the per-core L1D cache-state dump in the report")
	Cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve live per-level counters as Prometheus gauges at this address (e.g. :9090) while the run is in progress")
}

func runCmd(cmd *cobra.Command, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("internal assertion failed", slog.Any("panic", r))
			fmt.Fprintf(os.Stderr, "{\"type\":\"InternalAssertion\",\"message\":%q}\n", fmt.Sprint(r))
			os.Exit(4)
		}
	}()

	engineCfg, configName, err := resolveEngineConfig()
	if err != nil {
		return reportFatal("InvalidConfig", err)
	}

	engine, err := cachesim.NewMultiCoreCacheSystem(engineCfg)
	if err != nil {
		return reportFatal("InvalidConfig", err)
	}

	src, closeSrc, err := openTraceSource()
	if err != nil {
		return reportFatal("InvalidConfig", err)
	}
	defer closeSrc()

	interner := trace.NewInterner()

	var cancelled atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		if _, ok := <-sigCh; ok {
			slog.Info("cancellation requested")
			cancelled.Store(true)
		}
	}()
	defer signal.Stop(sigCh)

	runOpts := cachesim.RunOptions{
		EventLimit: flagLimit,
		SampleRate: flagSample,
		Cancel:     cancelled.Load,
	}

	var metrics *metricsserver.Server
	if flagMetricsAddr != "" {
		metrics = metricsserver.Start(flagMetricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := metrics.Shutdown(ctx); err != nil {
				slog.Warn("metrics server shutdown", slog.String("error", err.Error()))
			}
		}()
	}
	if flagVerbose || metrics != nil {
		runOpts.Progress = func(p cachesim.ProgressEvent) {
			if flagVerbose {
				fmt.Fprintf(os.Stderr, "progress: %d events processed\n", p.Events)
			}
			if metrics != nil {
				metricsserver.Update(p)
			}
		}
		if flagVerbose {
			runOpts.ProgressEvery = 1
		}
	}

	result, err := cachesim.Run(src, interner, engine, runOpts)
	if err != nil {
		var malformed *trace.MalformedTraceError
		if errors.As(err, &malformed) {
			return reportFatal("MalformedTrace", err)
		}
		return reportFatal("MalformedTrace", err)
	}

	rep, err := report.Build(engine, interner, report.BuildConfig{
		ConfigName:   configName,
		Cores:        flagCores,
		Sampled:      result.Sampled,
		Latency:      latencyConfigFor(engineCfg, configName),
		IncludeState: flagCacheState,
		HotLineLimit: 20,
	})
	if err != nil {
		return reportFatal("InvalidConfig", err)
	}

	if err := emitReport(rep); err != nil {
		return reportFatal("InvalidConfig", err)
	}

	if result.Cancelled {
		slog.Info("simulation cancelled", slog.Uint64("events", result.EventsProcessed))
		os.Exit(3)
	}
	if result.Overflowed {
		slog.Warn("event limit reached, trace truncated", slog.Uint64("limit", flagLimit))
	}
	return nil
}

// reportFatal prints the structured error object of spec.md §7
// ({type, message}) to stderr and returns an error, so the root command's
// default exit path (code 1 for MalformedTrace/other, code 2 for
// InvalidConfig, classified via errors.As in cmd.exitCodeFor) applies.
func reportFatal(kind string, cause error) error {
	fmt.Fprintf(os.Stderr, "{\"type\":%q,\"message\":%q}\n", kind, cause.Error())
	return cause
}

func openTraceSource() (*os.File, func(), error) {
	if flagTrace == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(filepath.Clean(flagTrace))
	if err != nil {
		return nil, nil, fmt.Errorf("opening trace file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func emitReport(rep report.Report) error {
	if flagJSON {
		out, err := report.RenderJSON(rep)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		fmt.Print(report.RenderText(rep))
	}
	if flagXLSXOut != "" {
		f, err := report.RenderXLSX(rep)
		if err != nil {
			return fmt.Errorf("rendering xlsx report: %w", err)
		}
		if err := f.SaveAs(flagXLSXOut); err != nil {
			return fmt.Errorf("writing xlsx report to %s: %w", flagXLSXOut, err)
		}
	}
	return nil
}

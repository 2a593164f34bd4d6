// Package presets lists and describes the embedded hardware presets of
// spec.md §6.4.
package presets

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"cachesim/internal/cachesim"

	"github.com/spf13/cobra"
)

const cmdName = "presets"

// Cmd is the presets subcommand.
var Cmd = &cobra.Command{
	Use:     cmdName,
	GroupID: "primary",
	Short:   "List and describe the embedded hardware presets",
}

var flagJSON bool

func init() {
	listCmd.Flags().BoolVar(&flagJSON, "json", false, "emit JSON instead of a table")
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(describeCmd)
}

var listCmd = &cobra.Command{
	Use:           "list",
	Short:         "List every embedded preset name",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := cachesim.PresetNames()
		if flagJSON {
			out, err := json.MarshalIndent(names, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:           "describe <name>",
	Short:         "Print one preset's geometry, policies, and latency table",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		preset, err := cachesim.LookupPreset(args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			out, err := json.MarshalIndent(preset, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintf(w, "name\t%s\n", preset.Name)
		fmt.Fprintf(w, "lineSize\t%d\n", preset.LineSize)
		fmt.Fprintf(w, "l1\t%d bytes, %d-way, %s\n", preset.L1.SizeBytes, preset.L1.Associativity, preset.L1.Replacement)
		fmt.Fprintf(w, "l2\t%d bytes, %d-way, %s\n", preset.L2.SizeBytes, preset.L2.Associativity, preset.L2.Replacement)
		if preset.L3 != nil {
			fmt.Fprintf(w, "l3\t%d bytes, %d-way, %s\n", preset.L3.SizeBytes, preset.L3.Associativity, preset.L3.Replacement)
		} else {
			fmt.Fprintf(w, "l3\t(none)\n")
		}
		fmt.Fprintf(w, "inclusionL1L2\t%s\n", preset.InclusionL1L2)
		fmt.Fprintf(w, "inclusionL2L3\t%s\n", preset.InclusionL2L3)
		fmt.Fprintf(w, "prefetch\t%s, degree %d\n", preset.PrefetchPolicy, preset.PrefetchDegree)
		fmt.Fprintf(w, "latency\tl1=%d l2=%d l3=%d memory=%d tlbMiss=%d\n",
			preset.Latency.L1Hit, preset.Latency.L2Hit, preset.Latency.L3Hit, preset.Latency.Memory, preset.Latency.TLBMissPenalty)
		return nil
	},
}

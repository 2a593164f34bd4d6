// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package cmd provides the command line interface for the application.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cachesim/cmd/compare"
	"cachesim/cmd/presets"
	"cachesim/cmd/simulate"
	"cachesim/internal/app"
	"cachesim/internal/cachesim"
	"cachesim/internal/trace"
	"cachesim/internal/util"

	"github.com/spf13/cobra"
)

var gLogFile *os.File
var gVersion = "9.9.9" // overwritten by ldflags in Makefile

// LongAppName is the name of the application.
const LongAppName = "CacheSim"

var examples = []string{
	fmt.Sprintf("  Simulate a trace against a named hardware preset:  $ %s simulate --trace app.trace --preset intel-14th-gen", app.Name),
	fmt.Sprintf("  Simulate with a custom L1/L2/L3 geometry:          $ %s simulate --trace app.trace --l1-size 32768 --l1-assoc 8 --l2-size 262144 --l2-assoc 8", app.Name),
	fmt.Sprintf("  List the embedded hardware presets:                $ %s presets list", app.Name),
	fmt.Sprintf("  Compare a trace across several presets:            $ %s compare --trace app.trace --preset intel-14th-gen --preset amd-zen4 --preset apple-m3", app.Name),
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:                app.Name,
	Short:              app.Name,
	Long:               fmt.Sprintf(`%s (%s) is a deterministic, trace-driven multi-level CPU cache simulator.`, LongAppName, app.Name),
	Example:            strings.Join(examples, "\n"),
	PersistentPreRunE:  initializeApplication, // will only be run if command has a 'Run' function
	PersistentPostRunE: terminateApplication,  // ...
	Version:            gVersion,
}

var (
	// logging
	flagDebug     bool
	flagLogStdOut bool
	// output
	flagOutputDir string
)

func init() {
	rootCmd.SetUsageTemplate(`Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command] [flags]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}
`)
	rootCmd.SetHelpCommand(&cobra.Command{}) // block the help command
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.AddGroup([]*cobra.Group{{ID: "primary", Title: "Commands:"}}...)
	rootCmd.AddCommand(simulate.Cmd)
	rootCmd.AddCommand(presets.Cmd)
	rootCmd.AddCommand(compare.Cmd)
	// Global (persistent) flags
	rootCmd.PersistentFlags().BoolVar(&flagDebug, app.FlagDebugName, false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagLogStdOut, app.FlagLogStdOutName, false, "write logs to stdout")
	rootCmd.PersistentFlags().StringVar(&flagOutputDir, app.FlagOutputDirName, "", "override the output directory")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	cobra.EnableCommandSorting = false
	cobra.EnableCaseInsensitive = true
	err := rootCmd.Execute()
	if err != nil {
		terminateErr := terminateApplication(rootCmd, os.Args)
		if terminateErr != nil {
			slog.Error("error terminating application", slog.String("error", terminateErr.Error()))
		}
		os.Exit(exitCodeFor(err))
	}
}

func initializeApplication(cmd *cobra.Command, args []string) error {
	timestamp := time.Now().Local().Format("2006-01-02_15-04-05") // app startup time
	var outputDir string
	if flagOutputDir != "" {
		var err error
		outputDir, err = util.AbsPath(flagOutputDir)
		if err != nil {
			return fmt.Errorf("failed to expand output dir: %w", err)
		}
	} else {
		var err error
		outputDir, err = util.AbsPath(".")
		if err != nil {
			return fmt.Errorf("failed to expand output dir: %w", err)
		}
	}

	var logOpts slog.HandlerOptions
	if flagDebug {
		logOpts.Level = slog.LevelDebug
		logOpts.AddSource = true
	} else {
		logOpts.Level = slog.LevelInfo
	}
	var logFilePath string
	if flagLogStdOut {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &logOpts)))
	} else {
		var err error
		gLogFile, err = os.OpenFile(app.Name+".log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) // #nosec G302
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(gLogFile, &logOpts)))
		logFilePath = gLogFile.Name()
	}
	slog.Info("starting up", slog.String("app", app.Name), slog.String("version", gVersion), slog.Int("pid", os.Getpid()), slog.String("arguments", strings.Join(os.Args, " ")))

	cmd.Parent().SetContext(
		context.WithValue(
			context.Background(),
			app.Context{},
			app.Context{
				Timestamp: timestamp,
				OutputDir: outputDir,
				LogFile:   logFilePath,
				Version:   gVersion,
				Debug:     flagDebug,
			},
		),
	)
	return nil
}

// terminateApplication flushes logging state on the way out.
func terminateApplication(cmd *cobra.Command, args []string) error {
	slog.Info("shutting down", slog.String("app", app.Name), slog.String("version", gVersion), slog.Int("pid", os.Getpid()))
	if gLogFile != nil {
		if err := gLogFile.Close(); err != nil {
			return fmt.Errorf("error closing log file: %w", err)
		}
	}
	return nil
}

// exitCodeFor maps a top-level command error to the process exit code of
// spec.md §6.3. Cancelled (3) and internal-assertion (4) outcomes are not
// represented as errors reaching this point: simulate exits the process
// directly for those, since spec.md §7 treats them as non-error
// conditions rather than command failures.
func exitCodeFor(err error) int {
	var malformed *trace.MalformedTraceError
	var invalidConfig *cachesim.InvalidConfigError
	switch {
	case errors.As(err, &malformed):
		return 1
	case errors.As(err, &invalidConfig):
		return 2
	default:
		return 1
	}
}

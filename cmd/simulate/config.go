package simulate

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"cachesim/internal/cachesim"
	"cachesim/internal/report"
)

// resolveEngineConfig builds an EngineConfig from either a named preset
// or the custom-geometry flags, plus the run-level options every trace
// run shares (cores, TLB modeling, 3C tracking). It returns the resolved
// config name for the report's "config" field (spec.md §6.2).
func resolveEngineConfig() (cachesim.EngineConfig, string, error) {
	opts := cachesim.EngineOptions{
		Cores:       flagCores,
		SeparateL1I: flagSeparateL1I,
		DTLB:        dtlbConfig(),
		Track3C:     !flagFast,
	}

	if flagPreset != "" {
		preset, err := cachesim.LookupPreset(flagPreset)
		if err != nil {
			return cachesim.EngineConfig{}, "", err
		}
		cfg, err := preset.ToEngineConfig(opts)
		return cfg, flagPreset, err
	}

	l1Replacement, err := cachesim.ParseReplacementPolicy(flagL1Replacement)
	if err != nil {
		return cachesim.EngineConfig{}, "", err
	}
	l2Replacement, err := cachesim.ParseReplacementPolicy(flagL2Replacement)
	if err != nil {
		return cachesim.EngineConfig{}, "", err
	}
	inclusionL1L2, err := cachesim.ParseInclusionPolicy(flagInclusionL1L2)
	if err != nil {
		return cachesim.EngineConfig{}, "", err
	}
	prefetchPolicy, err := cachesim.ParsePrefetchPolicy(flagPrefetch)
	if err != nil {
		return cachesim.EngineConfig{}, "", err
	}

	cfg := cachesim.EngineConfig{
		NumCores:       flagCores,
		LineSize:       flagLineSize,
		SeparateL1I:    flagSeparateL1I,
		L1:             cachesim.LevelConfigParams{SizeBytes: flagL1Size, Associativity: flagL1Assoc, Replacement: l1Replacement},
		L2:             cachesim.LevelConfigParams{SizeBytes: flagL2Size, Associativity: flagL2Assoc, Replacement: l2Replacement},
		InclusionL1L2:  inclusionL1L2,
		PrefetchPolicy: prefetchPolicy,
		PrefetchDegree: flagPrefetchDegree,
		Track3C:        !flagFast,
		DTLB:           opts.DTLB,
	}
	if flagL3Size > 0 {
		l3Replacement, err := cachesim.ParseReplacementPolicy(flagL3Replacement)
		if err != nil {
			return cachesim.EngineConfig{}, "", err
		}
		inclusionL2L3, err := cachesim.ParseInclusionPolicy(flagInclusionL2L3)
		if err != nil {
			return cachesim.EngineConfig{}, "", err
		}
		cfg.L3 = &cachesim.LevelConfigParams{SizeBytes: flagL3Size, Associativity: flagL3Assoc, Replacement: l3Replacement}
		cfg.InclusionL2L3 = inclusionL2L3
	}
	return cfg, "custom", nil
}

func dtlbConfig() *cachesim.TLBConfig {
	if flagDTLBEntries <= 0 {
		return nil
	}
	return &cachesim.TLBConfig{Entries: flagDTLBEntries, Associativity: flagDTLBAssoc}
}

// latencyConfigFor resolves the report's latencyConfig section: the named
// preset's fixed table, or a conservative default for a custom geometry
// (spec.md §6.2 "latencyConfig" has no custom-geometry equivalent in the
// CLI surface, so a typical desktop-class table is assumed).
func latencyConfigFor(cfg cachesim.EngineConfig, configName string) report.LatencyConfig {
	if configName != "custom" {
		if preset, err := cachesim.LookupPreset(configName); err == nil {
			return report.LatencyConfig{
				L1Hit:          preset.Latency.L1Hit,
				L2Hit:          preset.Latency.L2Hit,
				L3Hit:          preset.Latency.L3Hit,
				Memory:         preset.Latency.Memory,
				TLBMissPenalty: preset.Latency.TLBMissPenalty,
			}
		}
	}
	return report.LatencyConfig{L1Hit: 4, L2Hit: 12, L3Hit: 36, Memory: 200, TLBMissPenalty: 20}
}

package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// presets.go holds the named hardware presets of spec §6.4. Values are
// fixed constants embedded in the binary, parsed once at package init
// the same way the teacher's config layer loads its embedded YAML
// defaults.

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v2"
)

//go:embed presets.yaml
var presetsYAML []byte

// LevelPreset is one level's geometry and replacement policy within a
// named hardware preset.
type LevelPreset struct {
	SizeBytes     uint64 `yaml:"sizeBytes"`
	Associativity int    `yaml:"associativity"`
	Replacement   string `yaml:"replacement"`
}

// LatencyTable is the per-level/TLB cycle costs of spec §6.2 "timing".
type LatencyTable struct {
	L1Hit          int `yaml:"l1Hit"`
	L2Hit          int `yaml:"l2Hit"`
	L3Hit          int `yaml:"l3Hit"`
	Memory         int `yaml:"memory"`
	TLBMissPenalty int `yaml:"tlbMissPenalty"`
}

// Preset is one named hardware configuration (spec §6.4).
type Preset struct {
	Name           string       `yaml:"name"`
	LineSize       uint64       `yaml:"lineSize"`
	L1             LevelPreset  `yaml:"l1"`
	L2             *LevelPreset `yaml:"l2"`
	L3             *LevelPreset `yaml:"l3"`
	InclusionL1L2  string       `yaml:"inclusionL1L2"`
	InclusionL2L3  string       `yaml:"inclusionL2L3"`
	PrefetchPolicy string       `yaml:"prefetchPolicy"`
	PrefetchDegree int          `yaml:"prefetchDegree"`
	Latency        LatencyTable `yaml:"latency"`
}

type presetsFile struct {
	Presets []Preset `yaml:"presets"`
}

var presetsByName map[string]Preset
var presetNames []string

func init() {
	var f presetsFile
	if err := yaml.Unmarshal(presetsYAML, &f); err != nil {
		panic(fmt.Sprintf("cachesim: embedded presets.yaml is malformed: %v", err))
	}
	presetsByName = make(map[string]Preset, len(f.Presets))
	for _, p := range f.Presets {
		presetsByName[p.Name] = p
		presetNames = append(presetNames, p.Name)
	}
	sort.Strings(presetNames)
}

// PresetNames returns every embedded preset name, sorted.
func PresetNames() []string {
	out := make([]string, len(presetNames))
	copy(out, presetNames)
	return out
}

// LookupPreset returns the named preset, or InvalidConfigError if unknown
// (spec §7, "InvalidConfig ... or an unknown preset is named").
func LookupPreset(name string) (Preset, error) {
	p, ok := presetsByName[name]
	if !ok {
		return Preset{}, &InvalidConfigError{Reason: fmt.Sprintf("unknown preset %q", name)}
	}
	return p, nil
}

// ParseReplacementPolicy parses a config-file/CLI replacement-policy name
// into its enum value, defaulting to LRU for an empty string.
func ParseReplacementPolicy(s string) (ReplacementPolicy, error) {
	switch s {
	case "", "lru":
		return LRU, nil
	case "plru":
		return PLRU, nil
	case "random":
		return RandomReplacement, nil
	case "srrip":
		return SRRIP, nil
	case "brrip":
		return BRRIP, nil
	default:
		return LRU, &InvalidConfigError{Reason: "unknown replacement policy: " + s}
	}
}

// ParseInclusionPolicy parses a config-file/CLI inclusion-policy name into
// its enum value, defaulting to non-inclusive-non-exclusive for an empty
// string.
func ParseInclusionPolicy(s string) (InclusionPolicy, error) {
	switch s {
	case "", "non_inclusive_non_exclusive":
		return NonInclusiveNonExclusive, nil
	case "inclusive":
		return Inclusive, nil
	case "exclusive":
		return Exclusive, nil
	default:
		return NonInclusiveNonExclusive, &InvalidConfigError{Reason: "unknown inclusion policy: " + s}
	}
}

// EngineOptions holds the run-level knobs a preset has no opinion about:
// core count, split/unified L1, TLB modeling, 3C tracking, determinism
// seed, and reporting extras. ToEngineConfig combines these with a
// Preset's fixed geometry/policy constants to build an EngineConfig.
type EngineOptions struct {
	Cores          int
	SeparateL1I    bool
	DTLB           *TLBConfig
	ITLB           *TLBConfig
	Track3C        bool
	RandomSeed     int64
	IFetchFine     bool
	RecordTimeline bool
}

// ToEngineConfig translates a named preset's fixed constants, plus the
// caller's run-level options, into an EngineConfig ready for
// NewMultiCoreCacheSystem (spec §6.4).
func (p Preset) ToEngineConfig(opts EngineOptions) (EngineConfig, error) {
	l1Replacement, err := ParseReplacementPolicy(p.L1.Replacement)
	if err != nil {
		return EngineConfig{}, err
	}
	l2Replacement, err := ParseReplacementPolicy(p.L2.Replacement)
	if err != nil {
		return EngineConfig{}, err
	}
	inclusionL1L2, err := ParseInclusionPolicy(p.InclusionL1L2)
	if err != nil {
		return EngineConfig{}, err
	}
	prefetchPolicy, err := ParsePrefetchPolicy(p.PrefetchPolicy)
	if err != nil {
		return EngineConfig{}, err
	}

	cfg := EngineConfig{
		NumCores:       opts.Cores,
		LineSize:       p.LineSize,
		SeparateL1I:    opts.SeparateL1I,
		L1:             LevelConfigParams{SizeBytes: p.L1.SizeBytes, Associativity: p.L1.Associativity, Replacement: l1Replacement},
		L2:             LevelConfigParams{SizeBytes: p.L2.SizeBytes, Associativity: p.L2.Associativity, Replacement: l2Replacement},
		InclusionL1L2:  inclusionL1L2,
		PrefetchPolicy: prefetchPolicy,
		PrefetchDegree: p.PrefetchDegree,
		Track3C:        opts.Track3C,
		DTLB:           opts.DTLB,
		ITLB:           opts.ITLB,
		RandomSeed:     opts.RandomSeed,
		IFetchFine:     opts.IFetchFine,
		RecordTimeline: opts.RecordTimeline,
	}

	if p.L3 != nil {
		l3Replacement, err := ParseReplacementPolicy(p.L3.Replacement)
		if err != nil {
			return EngineConfig{}, err
		}
		inclusionL2L3, err := ParseInclusionPolicy(p.InclusionL2L3)
		if err != nil {
			return EngineConfig{}, err
		}
		cfg.L3 = &LevelConfigParams{SizeBytes: p.L3.SizeBytes, Associativity: p.L3.Associativity, Replacement: l3Replacement}
		cfg.InclusionL2L3 = inclusionL2L3
	}

	return cfg, nil
}

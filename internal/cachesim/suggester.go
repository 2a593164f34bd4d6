package cachesim

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// suggester.go implements the optimization suggester of spec §4.9: a
// post-pass that scans aggregate state and emits advisory entries. Each
// rule's numeric trigger condition is compiled and evaluated as a
// govaluate expression against the run's aggregate rates, the same way
// the teacher's metrics loader compiles a metric formula against a map
// of event variables.

import (
	"fmt"

	"github.com/casbin/govaluate"
)

// SuggestionSeverity is the severity of one suggestion.
type SuggestionSeverity string

const (
	SeverityHigh   SuggestionSeverity = "high"
	SeverityMedium SuggestionSeverity = "medium"
	SeverityLow    SuggestionSeverity = "low"
)

// Suggestion is one advisory entry (spec §4.9).
type Suggestion struct {
	Type     string
	Severity SuggestionSeverity
	Location string
	Message  string
	Fix      string
}

// SuggestionInput is the aggregate state the suggester rules read.
type SuggestionInput struct {
	L1MissRate     float64
	L2MissRate     float64
	L3MissRate     float64
	HasFalseSharing bool
	FirstFalseSharingLocation string // "file:line" of the first writer
	HasStridedHotLine bool
	StridedLocation   string
	HotLineL3Exceeds  bool
	HotLineL3Location string
}

type suggestionRule struct {
	kind       string
	severity   SuggestionSeverity
	expression string
	fire       func(SuggestionInput) bool
	locate     func(SuggestionInput) string
	message    string
	fix        string
}

var suggestionRules = []suggestionRule{
	{
		kind:     "false_sharing",
		severity: SeverityHigh,
		fire:     func(in SuggestionInput) bool { return in.HasFalseSharing },
		locate:   func(in SuggestionInput) string { return in.FirstFalseSharingLocation },
		message:  "unrelated data from different threads share a cache line, causing coherence traffic",
		fix:      "pad to >= line_size bytes",
	},
	{
		kind:       "poor_locality",
		severity:   SeverityHigh,
		expression: "l1MissRate > 0.20 && l2MissRate > 0.50",
		message:    "access pattern exhibits poor spatial/temporal locality at L1 and L2",
		fix:        "restructure loops to improve reuse distance",
	},
	{
		kind:     "consider_tiling",
		severity: SeverityMedium,
		fire:     func(in SuggestionInput) bool { return in.HasStridedHotLine },
		locate:   func(in SuggestionInput) string { return in.StridedLocation },
		message:  "a strided access pattern was detected on a hot source line",
		fix:      "tile the loop to keep the working set resident",
	},
	{
		kind:       "working_set_exceeds_cache",
		severity:   SeverityMedium,
		expression: "l3MissRate > 0.30",
		fire:       func(in SuggestionInput) bool { return in.HotLineL3Exceeds },
		locate:     func(in SuggestionInput) string { return in.HotLineL3Location },
		message:    "the working set exceeds L3 capacity on a hot source line",
		fix:        "reduce the working set or block the computation",
	},
}

// Evaluate runs every rule once against in and returns the suggestions
// that fired, each rule firing at most once per trace (spec §4.9).
func Evaluate(in SuggestionInput) ([]Suggestion, error) {
	vars := map[string]any{
		"l1MissRate": in.L1MissRate,
		"l2MissRate": in.L2MissRate,
		"l3MissRate": in.L3MissRate,
	}
	var out []Suggestion
	for _, rule := range suggestionRules {
		fired, err := rule.evaluate(vars, in)
		if err != nil {
			return nil, fmt.Errorf("evaluating suggestion rule %q: %w", rule.kind, err)
		}
		if !fired {
			continue
		}
		loc := ""
		if rule.locate != nil {
			loc = rule.locate(in)
		}
		out = append(out, Suggestion{
			Type: rule.kind, Severity: rule.severity,
			Location: loc, Message: rule.message, Fix: rule.fix,
		})
	}
	return out, nil
}

func (r suggestionRule) evaluate(vars map[string]any, in SuggestionInput) (bool, error) {
	exprFired := true
	if r.expression != "" {
		expr, err := govaluate.NewEvaluableExpression(r.expression)
		if err != nil {
			return false, err
		}
		result, err := expr.Evaluate(vars)
		if err != nil {
			return false, err
		}
		b, ok := result.(bool)
		if !ok {
			return false, fmt.Errorf("rule %q did not evaluate to a boolean", r.kind)
		}
		exprFired = b
	}
	if !exprFired {
		return false, nil
	}
	if r.fire != nil {
		return r.fire(in), nil
	}
	return true, nil
}

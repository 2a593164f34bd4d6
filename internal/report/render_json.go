package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "encoding/json"

// RenderJSON encodes rep as the indented JSON object of spec.md §6.2.
func RenderJSON(rep Report) ([]byte, error) {
	return json.MarshalIndent(rep, "", "  ")
}

// RenderProgressJSON encodes one streaming progress event as a single
// compact JSON line, suitable for newline-delimited stdout streaming.
func RenderProgressJSON(ev ProgressEvent) ([]byte, error) {
	return json.Marshal(ev)
}

package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderJSONProducesIndentedReport(t *testing.T) {
	rep := Report{Config: "test", Events: 10}
	out, err := RenderJSON(rep)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n  \"config\": \"test\"")

	var decoded Report
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, rep.Config, decoded.Config)
	assert.Equal(t, rep.Events, decoded.Events)
}

func TestRenderProgressJSONIsCompactSingleLine(t *testing.T) {
	out, err := RenderProgressJSON(ProgressEvent{Type: "progress", Events: 5})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "\n")
	assert.Contains(t, string(out), `"type":"progress"`)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pbinitiative/zendmn/pkg/dmn/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadVariables(t *testing.T) {
	file := filepath.Join(t.TempDir(), "variables.yaml")
	require.NoError(t, os.WriteFile(file, []byte("season: Winter\nguestCount: 4\n"), 0o600))

	variables, err := readVariables(file, []string{"season=Summer", "vip=true", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"season": "Summer", "guestCount": 4, "vip": true, "note": "a=b"}, variables)

	_, err = readVariables("", []string{"missing"})
	assert.Error(t, err)
	_, err = readVariables(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestSelectDecision(t *testing.T) {
	single, err := runtime.NewDecisionRequirementsGraph("g", "g", []*runtime.Decision{{Key: "dish"}})
	require.NoError(t, err)
	key, err := selectDecision(single, "")
	require.NoError(t, err)
	assert.Equal(t, "dish", key)

	multiple, err := runtime.NewDecisionRequirementsGraph("g", "g", []*runtime.Decision{{Key: "dish"}, {Key: "drink"}})
	require.NoError(t, err)
	_, err = selectDecision(multiple, "")
	assert.ErrorContains(t, err, "dish, drink")
	key, err = selectDecision(multiple, "drink")
	require.NoError(t, err)
	assert.Equal(t, "drink", key)
}

func TestWriteMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "decisions_evaluated_total", Help: "evaluated decisions"})
	registry.MustRegister(counter)
	counter.Add(2)

	var out bytes.Buffer
	require.NoError(t, writeMetrics(&out, registry))
	assert.Contains(t, out.String(), "decisions_evaluated_total 2")
}

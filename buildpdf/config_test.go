package main

import (
	"os"
	"path/filepath"
	"testing"

	simflow "github.com/legend-exp/simflow-go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigurationDefaults(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))

	config, err := LoadConfiguration(file)
	require.NoError(t, err)

	// anti-coincidence events drop unless a config opts out
	assert.True(t, config.RemoveACHits)
	assert.Equal(t, 0.1, config.EnergyThreshold)
	assert.Equal(t, 10001, config.Hist.NBins)
	assert.Equal(t, -0.5, config.Hist.EMin)
	assert.Equal(t, 10000.5, config.Hist.EMax)
	assert.Equal(t, 11, config.NStrings)
	assert.Equal(t, int64(100*1024*1024), config.BatchBytes)
}

func TestLoadConfigurationYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("timestamp: 20240101T000000Z\nremove_ac_hits: false\nenergy_threshold: 0.2\n")
	require.NoError(t, os.WriteFile(file, content, 0o644))

	config, err := LoadConfiguration(file)
	require.NoError(t, err)

	assert.False(t, config.RemoveACHits)
	assert.Equal(t, 0.2, config.EnergyThreshold)
	assert.Equal(t, "20240101T000000Z", config.Timestamp)
}

func TestValidateConfiguration(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))
	config, err := LoadConfiguration(file)
	require.NoError(t, err)

	// defaults alone are not a runnable config
	assert.Error(t, validateConfiguration(config))

	config.Timestamp = "20240101T000000Z"
	assert.Error(t, validateConfiguration(config), "cuts are required")

	config.Cuts = append(config.Cuts, simflow.CutConfig{Name: "raw"})
	assert.NoError(t, validateConfiguration(config))
}

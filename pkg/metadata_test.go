package simflow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeChannelMapSnapshot(t *testing.T, metadata string, timestamp string, chmap ChannelMap) {
	t.Helper()
	dir := filepath.Join(metadata, "channelmaps")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(chmap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, timestamp+".json"), data, 0o644))
}

func TestLoadChannelMapPicksValidSnapshot(t *testing.T) {
	metadata := t.TempDir()

	old := ChannelMap{"V01234A": {System: "geds", DAQ: ChannelDAQ{RawID: 1}}}
	current := ChannelMap{"V01234A": {System: "geds", DAQ: ChannelDAQ{RawID: 2}}}
	future := ChannelMap{"V01234A": {System: "geds", DAQ: ChannelDAQ{RawID: 3}}}
	writeChannelMapSnapshot(t, metadata, "20230101T000000Z", old)
	writeChannelMapSnapshot(t, metadata, "20240101T000000Z", current)
	writeChannelMapSnapshot(t, metadata, "20250101T000000Z", future)

	// the latest snapshot not after the requested timestamp wins
	chmap, err := LoadChannelMap(metadata, "20240615T120000Z")
	require.NoError(t, err)
	assert.Equal(t, int32(2), chmap["V01234A"].DAQ.RawID)
	assert.Equal(t, "V01234A", chmap["V01234A"].Name)
}

func TestLoadChannelMapNoValidSnapshot(t *testing.T) {
	metadata := t.TempDir()
	writeChannelMapSnapshot(t, metadata, "20240101T000000Z", ChannelMap{})

	_, err := LoadChannelMap(metadata, "20230101T000000Z")
	assert.Error(t, err)
}

func TestLoadChannelMapBadTimestamp(t *testing.T) {
	_, err := LoadChannelMap(t.TempDir(), "2024-01-01")
	assert.Error(t, err)
}

func TestGeds(t *testing.T) {
	geds := testChannelMap().Geds()

	require.Len(t, geds, 3)
	assert.Contains(t, geds, "ch1104000")
	assert.Equal(t, "V01234A", geds["ch1104000"].Name)
	assert.Equal(t, "icpc", geds["ch1104000"].Type)

	// non-germanium systems are excluded
	assert.NotContains(t, geds, "ch1057600")
}

func TestLoadAnalysisRuns(t *testing.T) {
	metadata := t.TempDir()
	dir := filepath.Join(metadata, "dataprod")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := []byte(`{"p03": ["r000", "r001"], "p04": ["r002"]}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runs.json"), content, 0o644))

	runs, err := LoadAnalysisRuns(metadata)
	require.NoError(t, err)
	assert.Equal(t, []string{"r000", "r001"}, runs["p03"])
	assert.Equal(t, []string{"r002"}, runs["p04"])
}

func TestChannelLabel(t *testing.T) {
	assert.Equal(t, "ch1104000", ChannelLabel(1104000))
}

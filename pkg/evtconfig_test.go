package simflow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskForDataset(t *testing.T) {
	tests := []struct {
		name      string
		usability string
		dataset   string
		want      string
	}{
		{"golden masks no_psd to ac", "no_psd", "golden", "ac"},
		{"silver keeps no_psd on", "no_psd", "silver", "on"},
		{"golden keeps on", "on", "golden", "on"},
		{"silver keeps ac", "ac", "silver", "ac"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := MaskForDataset(tt.usability, tt.dataset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mask)
		})
	}

	_, err := MaskForDataset("on", "bronze")
	var datasetErr *ErrInvalidDataset
	require.ErrorAs(t, err, &datasetErr)
}

func TestTimestampFromParFile(t *testing.T) {
	timestamp, err := TimestampFromParFile(
		"/cal/p04/r002/l200-p04-r002-cal-20240312T091429Z-par_hit_results.json")
	require.NoError(t, err)
	assert.Equal(t, "20240312T091429Z", timestamp)

	_, err = TimestampFromParFile("/cal/p04/r002/results.json")
	assert.Error(t, err)
}

func TestFindParHitResults(t *testing.T) {
	calDir := t.TempDir()
	dir := filepath.Join(calDir, "p04", "r002")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	parFile := filepath.Join(dir, "l200-p04-r002-cal-20240312T091429Z-par_hit_results.json")
	require.NoError(t, os.WriteFile(parFile, []byte("{}"), 0o644))

	found, err := FindParHitResults(calDir, "l200-p04-r002")
	require.NoError(t, err)
	assert.Equal(t, parFile, found)

	_, err = FindParHitResults(calDir, "l200-p09-r000")
	assert.Error(t, err)
}

func TestLoadFCCDTable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fccd.csv")
	content := []byte("det name,fccd-mm,comment\nV01234A,1.42,reviewed\nB00001C,0.85,\n")
	require.NoError(t, os.WriteFile(file, content, 0o644))

	table, err := LoadFCCDTable(file)
	require.NoError(t, err)
	assert.Equal(t, 1.42, table["V01234A"])
	assert.Equal(t, 0.85, table["B00001C"])
}

func TestBuildEvtConfig(t *testing.T) {
	chmap := ChannelMap{
		"V01234A": {
			System:   "geds",
			Type:     "icpc",
			Location: ChannelLocation{String: 1, Position: 1},
			DAQ:      ChannelDAQ{RawID: 1104000},
			Analysis: ChannelAnalysis{Usability: "no_psd"},
		},
		"B00001C": {
			System:   "geds",
			Type:     "bege",
			Location: ChannelLocation{String: 2, Position: 1},
			DAQ:      ChannelDAQ{RawID: 1105600},
			Analysis: ChannelAnalysis{Usability: "on"},
		},
		"S012": {
			System: "spms",
			DAQ:    ChannelDAQ{RawID: 1057600},
		},
	}
	hitResults := map[string]HitCalibration{
		"ch1104000": {
			Ecal: map[string]EnergyCalibration{
				// eres_pars [a, b]: fwhm(E) = sqrt(a + b*E)
				"cuspEmax_ctc_cal": {EresPars: []float64{2.7684225, 0.00237}},
			},
		},
	}
	fccd := map[string]float64{"V01234A": 1.42, "B00001C": 0.85}

	config, err := BuildEvtConfig(chmap, hitResults, fccd, "golden")
	require.NoError(t, err)
	require.Len(t, config, 2)

	// mage ids assume cryostat 1
	entry, ok := config["1010101"]
	require.True(t, ok)
	assert.Equal(t, "V01234A", entry.Name)
	assert.Equal(t, 1.42, entry.FCCDmm)
	assert.Equal(t, "ac", entry.Usability)
	require.NotNil(t, entry.Energy.Sig0)
	assert.InDelta(t, 0.70652, *entry.Energy.Sig0, 1e-4)
	assert.InDelta(t, 0.02067, *entry.Energy.Sig1, 1e-4)
	assert.Equal(t, 0.0, *entry.Energy.Sig2)

	// channels without a fit carry null sigmas
	entry, ok = config["1010201"]
	require.True(t, ok)
	assert.Equal(t, "on", entry.Usability)
	assert.Nil(t, entry.Energy.Sig0)

	_, err = BuildEvtConfig(chmap, hitResults, fccd, "bronze")
	var datasetErr *ErrInvalidDataset
	require.ErrorAs(t, err, &datasetErr)
}

func TestWriteEvtConfig(t *testing.T) {
	outDir := t.TempDir()
	sig0 := 0.5
	config := map[string]EvtConfigEntry{
		"1010101": {
			Name:      "V01234A",
			FCCDmm:    1.42,
			Usability: "on",
			Energy:    EvtConfigEnergy{Sig0: &sig0},
		},
	}

	filename, err := WriteEvtConfig(config, outDir, "l200-p04-r002")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "l200-p04-r002-phy-build_evt.json"), filename)

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	var decoded map[string]EvtConfigEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "V01234A", decoded["1010101"].Name)
	// sig2 was never fitted and must round-trip as null
	assert.Nil(t, decoded["1010101"].Energy.Sig2)
}

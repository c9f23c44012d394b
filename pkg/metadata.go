package simflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampFormat is the compact UTC format used by metadata snapshots and
// calibration file names.
const TimestampFormat = "20060102T150405Z"

type ChannelLocation struct {
	String   int32 `json:"string" yaml:"string"`
	Position int32 `json:"position" yaml:"position"`
}

type ChannelDAQ struct {
	RawID int32 `json:"rawid" yaml:"rawid"`
}

type ChannelAnalysis struct {
	Usability string `json:"usability" yaml:"usability"`
}

// ChannelEntry is one detector in the channel map.
type ChannelEntry struct {
	Name     string          `json:"name" yaml:"name"`
	System   string          `json:"system" yaml:"system"`
	Type     string          `json:"type" yaml:"type"`
	Location ChannelLocation `json:"location" yaml:"location"`
	DAQ      ChannelDAQ      `json:"daq" yaml:"daq"`
	Analysis ChannelAnalysis `json:"analysis" yaml:"analysis"`
}

// ChannelMap maps detector names to their metadata entries.
type ChannelMap map[string]ChannelEntry

// ChannelLabel is the rawid-based label keying histograms and calibration
// results.
func ChannelLabel(rawID int32) string {
	return fmt.Sprintf("ch%d", rawID)
}

// Geds returns the germanium entries keyed by channel label, with Name
// filled in from the map key.
func (m ChannelMap) Geds() map[string]ChannelEntry {
	geds := make(map[string]ChannelEntry)
	for name, entry := range m {
		if entry.System != "geds" {
			continue
		}
		entry.Name = name
		geds[ChannelLabel(entry.DAQ.RawID)] = entry
	}
	return geds
}

// LoadChannelMap reads the snapshot under <metadata>/channelmaps valid at
// the given timestamp. The snapshot with the latest timestamp not after the
// requested one wins.
func LoadChannelMap(metadata string, timestamp string) (ChannelMap, error) {
	requested, err := time.Parse(TimestampFormat, timestamp)
	if err != nil {
		return nil, fmt.Errorf("error parsing timestamp %q: %w", timestamp, err)
	}

	pattern := filepath.Join(metadata, "channelmaps", "*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("error listing channel maps: %w", err)
	}

	var selected string
	var selectedTime time.Time
	for _, file := range files {
		base := strings.TrimSuffix(filepath.Base(file), ".json")
		valid, err := time.Parse(TimestampFormat, base)
		if err != nil {
			continue
		}
		if valid.After(requested) {
			continue
		}
		if selected == "" || valid.After(selectedTime) {
			selected = file
			selectedTime = valid
		}
	}
	if selected == "" {
		return nil, fmt.Errorf("no channel map valid at %s under %s", timestamp, metadata)
	}

	data, err := os.ReadFile(selected)
	if err != nil {
		return nil, fmt.Errorf("error reading channel map: %w", err)
	}
	chmap := make(ChannelMap)
	err = json.Unmarshal(data, &chmap)
	if err != nil {
		return nil, fmt.Errorf("error parsing channel map %s: %w", selected, err)
	}
	for name, entry := range chmap {
		entry.Name = name
		chmap[name] = entry
	}

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Channel map read from %s", selected)
		logger.Info(message, "metadata")
	}
	return chmap, nil
}

// LoadAnalysisRuns reads the run registry from <metadata>/dataprod/runs.json,
// period to list of runs.
func LoadAnalysisRuns(metadata string) (map[string][]string, error) {
	filename := filepath.Join(metadata, "dataprod", "runs.json")
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading analysis runs: %w", err)
	}
	runs := make(map[string][]string)
	err = json.Unmarshal(data, &runs)
	if err != nil {
		return nil, fmt.Errorf("error parsing analysis runs %s: %w", filename, err)
	}
	return runs, nil
}

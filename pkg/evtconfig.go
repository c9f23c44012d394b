package simflow

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// EvtConfigEntry is the per-detector block of the evt-tier calibration
// config consumed by the post-processor, keyed by mage id.
type EvtConfigEntry struct {
	Name      string          `json:"name"`
	FCCDmm    float64         `json:"nplus-fccd-mm"`
	Energy    EvtConfigEnergy `json:"energy"`
	Usability string          `json:"usability"`
}

// Nil sigmas mark detectors without a calibration fit and render as null.
type EvtConfigEnergy struct {
	Sig0 *float64 `json:"sig0"`
	Sig1 *float64 `json:"sig1"`
	Sig2 *float64 `json:"sig2"`
}

type EnergyCalibration struct {
	EresPars []float64 `json:"eres_pars"`
}

type HitCalibration struct {
	Ecal map[string]EnergyCalibration `json:"ecal"`
}

// MaskForDataset applies the dataset policy to a usability mask: golden
// productions simulate no_psd detectors as ac, silver ones as on.
func MaskForDataset(usability string, dataset string) (string, error) {
	switch dataset {
	case "golden":
		if usability == "no_psd" {
			return "ac", nil
		}
	case "silver":
		if usability == "no_psd" {
			return "on", nil
		}
	default:
		return "", &ErrInvalidDataset{Dataset: dataset}
	}
	return usability, nil
}

// LoadFCCDTable reads the reviewed dead-layer table, a csv with
// "det name" and "fccd-mm" columns.
func LoadFCCDTable(filename string) (map[string]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening fccd table %s: %w", filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading fccd table %s: %w", filename, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fccd table %s is empty", filename)
	}

	nameColumn, fccdColumn := -1, -1
	for i, name := range rows[0] {
		switch name {
		case "det name":
			nameColumn = i
		case "fccd-mm":
			fccdColumn = i
		}
	}
	if nameColumn < 0 || fccdColumn < 0 {
		return nil, fmt.Errorf("fccd table %s has no 'det name' and 'fccd-mm' columns", filename)
	}

	table := make(map[string]float64)
	for _, row := range rows[1:] {
		value, err := strconv.ParseFloat(row[fccdColumn], 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing fccd value for %s: %w", row[nameColumn], err)
		}
		table[row[nameColumn]] = value
	}
	return table, nil
}

// FindParHitResults locates the calibration fit results for a run. The
// calibration tree nests files two levels deep (period, run).
func FindParHitResults(calDir string, runID string) (string, error) {
	pattern := filepath.Join(calDir, "*", "*", runID+"*par_hit_results.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("error scanning calibration directory: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no par_hit_results.json matching %s under %s", runID, calDir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// TimestampFromParFile extracts the calibration timestamp, recorded in
// the file name between -cal- and -par_.
func TimestampFromParFile(parfile string) (string, error) {
	start := strings.Index(parfile, "-cal-")
	stop := strings.Index(parfile, "-par_")
	if start < 0 || stop < start {
		return "", fmt.Errorf("no calibration timestamp in %s", parfile)
	}
	return parfile[start+len("-cal-") : stop], nil
}

func LoadHitResults(filename string) (map[string]HitCalibration, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading calibration results: %w", err)
	}
	var results map[string]HitCalibration
	err = json.Unmarshal(file, &results)
	if err != nil {
		return nil, fmt.Errorf("error parsing calibration results: %w", err)
	}
	return results, nil
}

// BuildEvtConfig assembles the calibration config for every germanium
// channel: resolution sigmas from the fitted energy resolution where a
// fit exists, null sigmas elsewhere.
func BuildEvtConfig(chmap ChannelMap, hitResults map[string]HitCalibration,
	fccd map[string]float64, dataset string) (map[string]EvtConfigEntry, error) {
	if dataset != "golden" && dataset != "silver" {
		return nil, &ErrInvalidDataset{Dataset: dataset}
	}

	config := make(map[string]EvtConfigEntry)
	for _, name := range sortedKeys(chmap) {
		detector := chmap[name]
		if detector.System != "geds" {
			continue
		}

		mask, err := MaskForDataset(detector.Analysis.Usability, dataset)
		if err != nil {
			return nil, err
		}

		fccdValue, ok := fccd[name]
		if !ok {
			return nil, fmt.Errorf("no fccd value for detector %s", name)
		}

		entry := EvtConfigEntry{
			Name:      name,
			FCCDmm:    fccdValue,
			Usability: mask,
		}

		label := ChannelLabel(detector.DAQ.RawID)
		if results, ok := hitResults[label]; ok {
			calibration, ok := results.Ecal["cuspEmax_ctc_cal"]
			if !ok {
				return nil, fmt.Errorf("no cuspEmax_ctc_cal calibration for %s", label)
			}
			eres := calibration.EresPars
			if len(eres) < 2 {
				return nil, fmt.Errorf("malformed eres_pars for %s", label)
			}
			sig0 := math.Sqrt(eres[0]) / 2.355
			sig1 := math.Sqrt(eres[1]) / 2.355
			sig2 := 0.0
			entry.Energy = EvtConfigEnergy{Sig0: &sig0, Sig1: &sig1, Sig2: &sig2}
		}

		mageID := EncodeMageID(1, detector.Location.String, detector.Location.Position)
		config[strconv.Itoa(int(mageID))] = entry
	}
	return config, nil
}

// EvtConfigFilename names the output after the run it calibrates.
func EvtConfigFilename(runID string) string {
	return runID + "-phy-build_evt.json"
}

// WriteEvtConfig writes the config as indented json into outDir and
// returns the path written.
func WriteEvtConfig(config map[string]EvtConfigEntry, outDir string, runID string) (string, error) {
	data, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return "", fmt.Errorf("error encoding evt config: %w", err)
	}

	filename := filepath.Join(outDir, EvtConfigFilename(runID))
	err = os.WriteFile(filename, data, 0o644)
	if err != nil {
		return "", fmt.Errorf("error writing evt config: %w", err)
	}
	return filename, nil
}

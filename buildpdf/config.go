package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	simflow "github.com/legend-exp/simflow-go/pkg"
	"gopkg.in/yaml.v3"
)

func LoadConfiguration(filename string) (simflow.Configuration, error) {
	var config simflow.Configuration

	// Set default values
	config.Verbosity = 0
	config.EnergyThreshold = 0.1
	config.Hist.NBins = 10001
	config.Hist.EMin = -0.5
	config.Hist.EMax = 10000.5
	config.NStrings = 11
	config.RemoveACHits = true
	config.BatchBytes = 100 * 1024 * 1024
	config.CompressionLevel = 4
	config.NoDB = false
	config.Host = "legend-db.lngs.infn.it"
	config.User = "simreader"
	config.Passwd = "readonly"
	config.DBName = "LEGEND200"

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		err = yaml.Unmarshal(data, &config)
	} else {
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, err
	}
	return config, nil
}

// validateConfiguration rejects configs that would only fail mid-run.
func validateConfiguration(config simflow.Configuration) error {
	if config.Timestamp == "" {
		return &simflow.ErrMissingConfig{Key: "timestamp"}
	}
	if config.Hist.NBins <= 0 {
		return &simflow.ErrMissingConfig{Key: "hist.nbins"}
	}
	if config.Hist.EMax <= config.Hist.EMin {
		return &simflow.ErrMissingConfig{Key: "hist.emax"}
	}
	if len(config.Cuts) == 0 {
		return &simflow.ErrMissingConfig{Key: "cuts"}
	}
	if config.NoDB && config.Metadata == "" {
		return &simflow.ErrMissingConfig{Key: "metadata"}
	}
	return nil
}

func printConfiguration(config simflow.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Timestamp: %s", config.Timestamp), "config")
	logger.Info(fmt.Sprintf("Energy threshold: %f", config.EnergyThreshold), "config")
	logger.Info(fmt.Sprintf("Bins: %d [%f, %f]", config.Hist.NBins, config.Hist.EMin, config.Hist.EMax), "config")
	logger.Info(fmt.Sprintf("Number of cuts: %d", len(config.Cuts)), "config")
	logger.Info(fmt.Sprintf("Number of strings: %d", config.NStrings), "config")
	logger.Info(fmt.Sprintf("Remove AC hits: %t", config.RemoveACHits), "config")
	logger.Info(fmt.Sprintf("Batch bytes: %d", config.BatchBytes), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Metadata: %s", config.Metadata), "config")
	logger.Info(fmt.Sprintf("Plots dir: %s", config.PlotsDir), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}

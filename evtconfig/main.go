package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	simflow "github.com/legend-exp/simflow-go/pkg"
)

var logger Logger

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func fail(err error) {
	logger.Error(err.Error())
	os.Exit(1)
}

func main() {
	runID := flag.String("run", "", "Run identifier, e.g. l200-p04-r002")
	dataset := flag.String("dataset", "golden", "Dataset flavor: golden or silver")
	calDir := flag.String("cal", "", "Calibration results directory")
	metadataPath := flag.String("metadata", "", "Metadata directory")
	fccdFile := flag.String("fccd", "", "FCCD table csv path")
	outDir := flag.String("out", ".", "Output directory")
	verbosity := flag.Int("verbosity", 0, "Verbosity level")
	flag.Parse()

	if *runID == "" {
		fail(fmt.Errorf("no run identifier given"))
	}
	if *calDir == "" {
		fail(fmt.Errorf("no calibration directory given"))
	}
	if *metadataPath == "" {
		fail(fmt.Errorf("no metadata directory given"))
	}
	if *fccdFile == "" {
		fail(fmt.Errorf("no fccd table given"))
	}

	simflow.SetConfiguration(simflow.Configuration{Verbosity: *verbosity})
	simflow.SetLogger(logger)

	parFile, err := simflow.FindParHitResults(*calDir, *runID)
	if err != nil {
		fail(err)
	}
	if *verbosity > 0 {
		message := fmt.Sprintf("Calibration results: %s", parFile)
		logger.Info(message, "main")
	}

	timestamp, err := simflow.TimestampFromParFile(parFile)
	if err != nil {
		fail(err)
	}
	chmap, err := simflow.LoadChannelMap(*metadataPath, timestamp)
	if err != nil {
		fail(err)
	}
	hitResults, err := simflow.LoadHitResults(parFile)
	if err != nil {
		fail(err)
	}
	fccd, err := simflow.LoadFCCDTable(*fccdFile)
	if err != nil {
		fail(err)
	}

	config, err := simflow.BuildEvtConfig(chmap, hitResults, fccd, *dataset)
	if err != nil {
		fail(err)
	}

	filename, err := simflow.WriteEvtConfig(config, *outDir, *runID)
	if err != nil {
		fail(err)
	}
	message := fmt.Sprintf("Wrote %s with %d channels", filename, len(config))
	logger.Info(message, "main")
}

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	simflow "github.com/legend-exp/simflow-go/pkg"
	"golang.org/x/exp/rand"
)

var configuration simflow.Configuration

var (
	logger         Logger
	VerbosityLevel int
)

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
	configFilename := flag.String("config", "", "Configuration file path")
	outputFilename := flag.String("output", "", "Output pdf file path")
	metadataPath := flag.String("metadata", "", "Metadata directory (overrides the configuration)")
	rawFiles := flag.String("raw-files", "", "Comma-separated raw files, only read for their primaries count")
	flag.Parse()
	evtFiles := flag.Args()

	if *outputFilename == "" {
		fail(fmt.Errorf("no output file given"))
	}
	if len(evtFiles) == 0 {
		fail(fmt.Errorf("no input evt files given"))
	}

	// DB credentials may live in the environment instead of the config
	godotenv.Load()

	var err error
	configuration, err = LoadConfiguration(*configFilename)
	if err != nil {
		fail(fmt.Errorf("error reading configuration file: %w", err))
	}
	if *metadataPath != "" {
		configuration.Metadata = *metadataPath
	}
	if user := os.Getenv("SIMFLOW_DB_USER"); user != "" {
		configuration.User = user
	}
	if pass := os.Getenv("SIMFLOW_DB_PASS"); pass != "" {
		configuration.Passwd = pass
	}
	err = validateConfiguration(configuration)
	if err != nil {
		fail(err)
	}
	simflow.SetConfiguration(configuration)
	simflow.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	chmap, runs, err := loadMetadata()
	if err != nil {
		fail(err)
	}
	geds := chmap.Geds()

	cuts, err := simflow.CompileCuts(configuration.Cuts)
	if err != nil {
		fail(err)
	}

	agg := simflow.NewAggregator(configuration.Cuts, configuration.Hist, geds, runs)

	var nPrimaries int64
	if *rawFiles != "" {
		for _, rawFile := range strings.Split(*rawFiles, ",") {
			n, err := simflow.ReadRawPrimaries(rawFile)
			if err != nil {
				fail(err)
			}
			nPrimaries += n
		}
	}

	seed := configuration.PoissonSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	poissonSrc := rand.NewSource(seed)

	start := time.Now()
	for _, evtFile := range evtFiles {
		n, err := processEvtFile(evtFile, chmap, cuts, agg, poissonSrc)
		if err != nil {
			fail(err)
		}
		nPrimaries += n
	}

	err = agg.Group(geds)
	if err != nil {
		fail(err)
	}

	writer := simflow.NewPDFWriter(*outputFilename)
	writer.WriteHistograms(agg)
	writer.WritePrimaries(nPrimaries)
	err = writer.Close()
	if err != nil {
		fail(fmt.Errorf("error closing output file: %w", err))
	}

	if configuration.PlotsDir != "" {
		err = simflow.SavePlots(agg, configuration.PlotsDir)
		if err != nil {
			fail(err)
		}
	}

	if VerbosityLevel > 0 {
		duration := time.Since(start)
		message := fmt.Sprintf("Total time: %d ms", duration.Milliseconds())
		logger.Info(message, "main")
	}
}

// loadMetadata reads the channel map and the analysis-run registry, from
// the database or from the on-disk snapshots when no_db is set.
func loadMetadata() (simflow.ChannelMap, map[string][]string, error) {
	if configuration.NoDB {
		chmap, err := simflow.LoadChannelMap(configuration.Metadata, configuration.Timestamp)
		if err != nil {
			return nil, nil, err
		}
		runs, err := simflow.LoadAnalysisRuns(configuration.Metadata)
		if err != nil {
			return nil, nil, err
		}
		return chmap, runs, nil
	}

	dbConn, err := simflow.ConnectToDatabase(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to database: %w", err)
	}
	defer dbConn.Close()

	chmap, err := simflow.GetChannelMapFromDB(dbConn, configuration.Timestamp)
	if err != nil {
		return nil, nil, err
	}
	runs, err := simflow.GetAnalysisRunsFromDB(dbConn)
	if err != nil {
		return nil, nil, err
	}
	return chmap, runs, nil
}

// processEvtFile accumulates one evt file into the aggregator and returns
// its primaries count.
func processEvtFile(filename string, chmap simflow.ChannelMap, cuts []simflow.CutSpec,
	agg *simflow.Aggregator, poissonSrc rand.Source) (int64, error) {
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Processing %s", filename)
		logger.Info(message, "main")
	}

	reader, err := simflow.NewEvtReader(filename)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	nPrimaries, err := reader.Primaries()
	if err != nil {
		return 0, err
	}

	period, run := simflow.RunPeriodFromFilename(filename)
	nStrings := int32(configuration.NStrings)

	for {
		batch, err := reader.Next()
		if err != nil {
			return 0, err
		}
		if batch == nil {
			break
		}

		batch.AddPoissonColumn(poissonSrc)
		batch.Clean(configuration.EnergyThreshold, configuration.RemoveACHits)
		if batch.Len() == 0 {
			continue
		}

		table := simflow.NewMageIDTable(batch.FlattenMageIDs(), chmap)
		err = simflow.ApplyCuts(cuts, batch, table, agg, period, run, nStrings)
		if err != nil {
			return 0, err
		}
	}
	return nPrimaries, nil
}

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/guptarohit/asciigraph"
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
	configFilename := flag.String("config", "", "Workflow configuration file path")
	plot := flag.Bool("plot", false, "Render the CPU cost series as a terminal graph")
	watch := flag.Bool("watch", false, "Re-render when benchmark files change")
	flag.Parse()

	config, err := simflow.LoadWorkflowConfig(*configFilename)
	if err != nil {
		fail(err)
	}
	simflow.SetLogger(logger)

	err = render(config, *plot)
	if err != nil {
		fail(err)
	}

	if *watch {
		err = watchBenchmarks(config, *plot)
		if err != nil {
			fail(err)
		}
	}
}

func render(config simflow.WorkflowConfig, plot bool) error {
	stats, err := simflow.CollectBenchmarkStats(config)
	if err != nil {
		return err
	}

	fmt.Print(simflow.RenderBenchmarkTable(stats))

	if plot && len(stats) > 0 {
		series := make([]float64, len(stats))
		for i, stat := range stats {
			series[i] = 1000 * stat.Speed
		}
		graph := asciigraph.Plot(series,
			asciigraph.Height(10),
			asciigraph.Caption("CPU time [ms/ev] per simid"),
		)
		fmt.Println(graph)
	}
	return nil
}

// watchBenchmarks blocks, re-rendering the table whenever a benchmark tsv
// is written. Events come in bursts while jobs finish, so renders are
// debounced.
func watchBenchmarks(config simflow.WorkflowConfig, plot bool) error {
	const debounceInterval = 500 * time.Millisecond

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close()

	// fsnotify watches are not recursive, every simid directory needs
	// its own watch.
	dirs, err := filepath.Glob(filepath.Join(config.Paths.Benchmarks, "*", "*"))
	if err != nil {
		return fmt.Errorf("error scanning benchmark directory: %w", err)
	}
	dirs = append(dirs, config.Paths.Benchmarks)
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("error watching %s: %w", dir, err)
		}
	}

	logger.Info(fmt.Sprintf("Watching %s", config.Paths.Benchmarks), "watch")

	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".tsv" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceInterval, func() {
				if err := render(config, plot); err != nil {
					logger.Error(err.Error())
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error(err.Error())
		}
	}
}

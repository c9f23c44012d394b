package simflow

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// BenchmarkStat is the accumulated simulation cost of one simid:
// total CPU seconds over all jobs and seconds per simulated event.
type BenchmarkStat struct {
	Tier    string
	SimID   string
	CPUTime float64
	Speed   float64
}

// Only the event-generating tiers are worth reporting, the later tiers
// run over already-reduced files.
var benchmarkTiers = map[string]bool{"ver": true, "raw": true}

// CollectBenchmarkStats scans the benchmark tree and sums the CPU time
// of every job of every simid, normalized to the configured per-tier
// primaries count.
func CollectBenchmarkStats(config WorkflowConfig) ([]BenchmarkStat, error) {
	simDirs, err := filepath.Glob(filepath.Join(config.Paths.Benchmarks, "*", "*"))
	if err != nil {
		return nil, fmt.Errorf("error scanning benchmark directory: %w", err)
	}
	sort.Strings(simDirs)

	var stats []BenchmarkStat
	for _, simDir := range simDirs {
		tier := filepath.Base(filepath.Dir(simDir))
		if !benchmarkTiers[tier] {
			continue
		}

		nPrimaries, ok := config.Benchmark.NPrimaries[tier]
		if !ok {
			return nil, &ErrMissingConfig{Key: "benchmark.n_primaries." + tier}
		}

		jobFiles, err := filepath.Glob(filepath.Join(simDir, "*.tsv"))
		if err != nil {
			return nil, fmt.Errorf("error scanning benchmark directory: %w", err)
		}

		cpuTime := 0.0
		for _, jobFile := range jobFiles {
			jobTime, err := readBenchmarkCPUTime(jobFile)
			if err != nil {
				return nil, err
			}
			cpuTime += jobTime
		}

		stats = append(stats, BenchmarkStat{
			Tier:    tier,
			SimID:   filepath.Base(simDir),
			CPUTime: cpuTime,
			Speed:   cpuTime / float64(nPrimaries),
		})
	}
	return stats, nil
}

// readBenchmarkCPUTime reads the cpu_time column of the first record of
// a snakemake benchmark tsv.
func readBenchmarkCPUTime(filename string) (float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("error opening benchmark file %s: %w", filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = '\t'

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("error reading benchmark file %s: %w", filename, err)
	}
	column := -1
	for i, name := range header {
		if name == "cpu_time" {
			column = i
			break
		}
	}
	if column < 0 {
		return 0, fmt.Errorf("benchmark file %s has no cpu_time column", filename)
	}

	row, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("error reading benchmark file %s: %w", filename, err)
	}

	value, err := strconv.ParseFloat(row[column], 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing cpu_time in %s: %w", filename, err)
	}
	return value, nil
}

// EventsPerHour returns how many events one job simulates in an hour,
// or 0 for simids with no accumulated CPU time.
func (s BenchmarkStat) EventsPerHour() int {
	if s.Speed <= 0 {
		return 0
	}
	return int(60 * 60 / s.Speed)
}

// RenderBenchmarkTable formats the per-simid cost table.
func RenderBenchmarkTable(stats []BenchmarkStat) string {
	var table strings.Builder
	printLine(&table, "simid", "CPU time [ms/ev]", "evts / 1h", "jobs (1h) / 10^8 evts")
	printLine(&table, "-----", "----------------", "---------", "---------------------")

	for _, stat := range stats {
		evts := "..."
		njobs := "0"
		if evts1h := stat.EventsPerHour(); evts1h > 0 {
			evts = strconv.Itoa(evts1h)
			njobs = strconv.Itoa(int(1e8 / float64(evts1h)))
		}
		cpu := fmt.Sprintf("(%ds) %.2f", int(stat.CPUTime), 1000*stat.Speed)
		printLine(&table, stat.Tier+"."+stat.SimID, cpu, evts, njobs)
	}
	return table.String()
}

func printLine(table *strings.Builder, simid string, cpu string, evts string, njobs string) {
	fmt.Fprintf(table, "%-52s%16s%11s%23s\n", simid, cpu, evts, njobs)
}

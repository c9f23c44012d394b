package simflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBenchmarkTree(t *testing.T, root string, tier string, simid string, cpuTimes []string) {
	t.Helper()
	dir := filepath.Join(root, tier, simid)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i, cpuTime := range cpuTimes {
		content := []byte(benchmarkTSVWith(cpuTime))
		file := filepath.Join(dir, simid+"_"+JobID(i)+"-tier_"+tier+".tsv")
		require.NoError(t, os.WriteFile(file, content, 0o644))
	}
}

func benchmarkTSVWith(cpuTime string) string {
	return "s\th:m:s\tmax_rss\tcpu_time\n10.5\t0:00:10\t100\t" + cpuTime + "\n"
}

func TestCollectBenchmarkStats(t *testing.T) {
	root := t.TempDir()
	writeBenchmarkTree(t, root, "ver", "sim-a", []string{"100.0", "200.0"})
	writeBenchmarkTree(t, root, "raw", "sim-b", []string{"50.0"})
	// later tiers are skipped
	writeBenchmarkTree(t, root, "evt", "sim-c", []string{"999.0"})

	config := WorkflowConfig{
		Paths: WorkflowPaths{Benchmarks: root},
		Benchmark: BenchmarkConfig{
			NPrimaries: map[string]int64{"ver": 100000, "raw": 10000},
		},
	}

	stats, err := CollectBenchmarkStats(config)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// glob order sorts raw before ver
	assert.Equal(t, "raw", stats[0].Tier)
	assert.Equal(t, "sim-b", stats[0].SimID)
	assert.InDelta(t, 50.0, stats[0].CPUTime, 1e-9)
	assert.InDelta(t, 0.005, stats[0].Speed, 1e-9)

	assert.Equal(t, "ver", stats[1].Tier)
	assert.InDelta(t, 300.0, stats[1].CPUTime, 1e-9)
	assert.InDelta(t, 0.003, stats[1].Speed, 1e-9)
	assert.Equal(t, 1200000, stats[1].EventsPerHour())
}

func TestCollectBenchmarkStatsMissingPrimaries(t *testing.T) {
	root := t.TempDir()
	writeBenchmarkTree(t, root, "ver", "sim-a", []string{"100.0"})

	config := WorkflowConfig{Paths: WorkflowPaths{Benchmarks: root}}
	_, err := CollectBenchmarkStats(config)
	var missing *ErrMissingConfig
	require.ErrorAs(t, err, &missing)
}

func TestReadBenchmarkCPUTimeMissingColumn(t *testing.T) {
	file := filepath.Join(t.TempDir(), "job.tsv")
	require.NoError(t, os.WriteFile(file, []byte("s\th:m:s\n10\t0:00:10\n"), 0o644))

	_, err := readBenchmarkCPUTime(file)
	assert.ErrorContains(t, err, "cpu_time")
}

func TestRenderBenchmarkTable(t *testing.T) {
	stats := []BenchmarkStat{
		{Tier: "ver", SimID: "sim-a", CPUTime: 300, Speed: 0.003},
		{Tier: "raw", SimID: "sim-idle", CPUTime: 0, Speed: 0},
	}

	table := RenderBenchmarkTable(stats)
	assert.Contains(t, table, "simid")
	assert.Contains(t, table, "ver.sim-a")
	assert.Contains(t, table, "(300s) 3.00")
	assert.Contains(t, table, "1200000")
	// simids with no cpu time render a placeholder
	assert.Contains(t, table, "...")
}

package simflow

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		Experiment: "l200",
		Paths: WorkflowPaths{
			Config:     "/prod/config",
			Macros:     "/prod/macros",
			Log:        "/prod/log",
			Benchmarks: "/prod/benchmarks",
			Plots:      "/prod/plots",
			TierVer:    "/prod/tier/ver",
			TierStp:    "/prod/tier/stp",
			TierHit:    "/prod/tier/hit",
			TierEvt:    "/prod/tier/evt",
			TierPdf:    "/prod/tier/pdf",
		},
	}
}

func TestJobID(t *testing.T) {
	assert.Equal(t, "0000", JobID(0))
	assert.Equal(t, "0042", JobID(42))
	assert.Equal(t, "12345", JobID(12345))
}

func TestSimJobFiles(t *testing.T) {
	config := testWorkflowConfig()

	input, err := config.InputSimJobFile("ver", "l200a-birds-nest-Ra224-to-Pb208", 7)
	require.NoError(t, err)
	assert.Equal(t,
		"/prod/macros/ver/l200a-birds-nest-Ra224-to-Pb208/l200a-birds-nest-Ra224-to-Pb208_0007-tier_ver.mac",
		input)

	output, err := config.OutputSimJobFile("stp", "l200a-birds-nest-Ra224-to-Pb208", 7)
	require.NoError(t, err)
	assert.Equal(t,
		"/prod/tier/stp/l200a-birds-nest-Ra224-to-Pb208/l200a-birds-nest-Ra224-to-Pb208_0007-tier_stp.lh5",
		output)

	// hit-tier inputs are lh5, not macros
	input, err = config.InputSimJobFile("hit", "sim", 0)
	require.NoError(t, err)
	assert.Equal(t, ".lh5", filepath.Ext(input))

	_, err = config.InputSimJobFile("xyz", "sim", 0)
	var tierErr *ErrUnknownTier
	require.ErrorAs(t, err, &tierErr)
}

func TestSimIDFileLists(t *testing.T) {
	config := testWorkflowConfig()

	files, err := config.OutputSimIDFiles("ver", "sim", 3)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Contains(t, files[2], "sim_0002-tier_ver.lh5")
}

func TestLogAndBenchmarkFiles(t *testing.T) {
	config := testWorkflowConfig()

	assert.Equal(t,
		"/prod/log/20240101T000000Z/evt/sim/sim_0001-tier_evt.log",
		config.LogFile("20240101T000000Z", "evt", "sim", 1))
	assert.Equal(t,
		"/prod/benchmarks/stp/sim/sim_0001-tier_stp.tsv",
		config.BenchmarkFile("stp", "sim", 1))
	assert.Equal(t, "/prod/plots/pdf/sim", config.PlotsDir("pdf", "sim"))
}

func TestPdfFiles(t *testing.T) {
	config := testWorkflowConfig()

	assert.Equal(t, "/prod/tier/pdf/sim/sim-tier_pdf.lh5", config.OutputPdfFile("sim"))
	assert.Equal(t, "/prod/benchmarks/pdf/sim/sim-tier_pdf.tsv", config.PdfBenchmarkFile("sim"))
	assert.Equal(t,
		filepath.Join("/prod/config", "tier", "pdf", "l200", "build-pdf-config.yaml"),
		config.PdfConfigPath())
}

func TestRunPeriodFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		period   string
		run      string
	}{
		{"l200-p04-r002-phy-sim_0001-tier_evt.lh5", "p04", "r002"},
		{"/data/p12/sim-p12-r111.lh5", "p12", "r111"},
		{"sim_0001-tier_evt.lh5", "p03", "r000"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			period, run := RunPeriodFromFilename(tt.filename)
			assert.Equal(t, tt.period, period)
			assert.Equal(t, tt.run, run)
		})
	}
}

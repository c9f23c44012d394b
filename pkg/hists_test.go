package simflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHistConfig = HistConfig{NBins: 100, EMin: 0, EMax: 1000}

func testCutConfigs() []CutConfig {
	return []CutConfig{
		{Name: "raw"},
		{Name: "m2", CutString: "mul == 2", Is2D: true},
		{Name: "lar", CutString: "mul >= 1", IsSum: true},
	}
}

func testRuns() map[string][]string {
	return map[string][]string{"p03": {"r000", "r001"}}
}

func TestNewAggregator(t *testing.T) {
	geds := testChannelMap().Geds()
	agg := NewAggregator(testCutConfigs(), testHistConfig, geds, testRuns())

	require.Contains(t, agg.Channel, "raw")
	assert.Len(t, agg.Channel["raw"], 3)
	assert.Contains(t, agg.Channel["raw"], "ch1104000")

	// every non-sum cut carries the run histograms
	assert.Len(t, agg.Run["raw"], 2)
	assert.Contains(t, agg.Run["raw"], "p03_r000")
	assert.Contains(t, agg.Run["m2"], "p03_r001")

	assert.Contains(t, agg.Sum["lar"], "all")
	assert.NotContains(t, agg.Channel, "lar")

	assert.Len(t, agg.M2["m2"], len(M2Buckets))
	assert.Contains(t, agg.M2["m2"], "sd_0")
	assert.Contains(t, agg.M2["m2"], "cat_3")
}

func TestFillRunCreatesUnknownRuns(t *testing.T) {
	agg := NewAggregator(testCutConfigs(), testHistConfig, testChannelMap().Geds(), testRuns())

	agg.FillRun("raw", "p09", "r004", []float64{500})

	require.Contains(t, agg.Run["raw"], "p09_r004")
	assert.Equal(t, 1.0, Weights1D(agg.Run["raw"]["p09_r004"])[50])
}

func TestGroupSumsChannels(t *testing.T) {
	geds := testChannelMap().Geds()
	agg := NewAggregator(testCutConfigs(), testHistConfig, geds, testRuns())

	// disjoint samples in two icpc channels and one bege channel
	agg.FillChannel("raw", "ch1104000", []float64{105, 105, 105})
	agg.FillChannel("raw", "ch1104001", []float64{205})
	agg.FillChannel("raw", "ch1105600", []float64{305, 305})

	require.NoError(t, agg.Group(geds))

	all := Weights1D(agg.Channel["raw"]["all"])
	assert.Equal(t, 3.0, all[10])
	assert.Equal(t, 1.0, all[20])
	assert.Equal(t, 2.0, all[30])

	icpc := Weights1D(agg.Channel["raw"]["icpc"])
	assert.Equal(t, 3.0, icpc[10])
	assert.Equal(t, 1.0, icpc[20])
	assert.Equal(t, 0.0, icpc[30])

	bege := Weights1D(agg.Channel["raw"]["bege"])
	assert.Equal(t, 2.0, bege[30])

	// every detector type gets a histogram, filled or not
	assert.Contains(t, agg.Channel["raw"], "coax")
	assert.Contains(t, agg.Channel["raw"], "ppc")
}

func TestGroupRunsOnce(t *testing.T) {
	geds := testChannelMap().Geds()
	agg := NewAggregator(testCutConfigs(), testHistConfig, geds, testRuns())

	require.NoError(t, agg.Group(geds))
	assert.Error(t, agg.Group(geds))
}

func TestMergeIsCommutative(t *testing.T) {
	geds := testChannelMap().Geds()
	runs := testRuns()

	fills := [][]float64{{105, 205}, {105}, {305, 305, 105}}

	// accumulate [A,B] then [C]
	left := NewAggregator(testCutConfigs(), testHistConfig, geds, runs)
	partial := NewAggregator(testCutConfigs(), testHistConfig, geds, runs)
	partial.FillChannel("raw", "ch1104000", fills[0])
	partial.FillChannel("raw", "ch1104000", fills[1])
	left.Merge(partial)
	partial = NewAggregator(testCutConfigs(), testHistConfig, geds, runs)
	partial.FillChannel("raw", "ch1104000", fills[2])
	left.Merge(partial)

	// accumulate [C], [B], [A]
	right := NewAggregator(testCutConfigs(), testHistConfig, geds, runs)
	for i := len(fills) - 1; i >= 0; i-- {
		partial = NewAggregator(testCutConfigs(), testHistConfig, geds, runs)
		partial.FillChannel("raw", "ch1104000", fills[i])
		right.Merge(partial)
	}

	assert.Equal(t,
		Weights1D(left.Channel["raw"]["ch1104000"]),
		Weights1D(right.Channel["raw"]["ch1104000"]))
}

func TestAggregator2DBucketsAllocateOnFirstFill(t *testing.T) {
	// production binning: eleven pre-created buckets per 2d cut must not
	// materialize nbins-squared grids up front
	hist := HistConfig{NBins: 10001, EMin: -0.5, EMax: 10000.5}
	agg := NewAggregator([]CutConfig{{Name: "m2", Is2D: true}}, hist, nil, nil)

	require.Len(t, agg.M2["m2"], len(M2Buckets))
	for bucket, h := range agg.M2["m2"] {
		assert.Nil(t, h.weights, "bucket %s has a grid before any fill", bucket)
	}

	// only buckets that receive entries grow a grid
	small := NewAggregator([]CutConfig{{Name: "m2", Is2D: true}}, testHistConfig, nil, nil)
	small.FillM2("m2", "all", []float64{105}, []float64{205})
	assert.NotNil(t, small.M2["m2"]["all"].weights)
	assert.Nil(t, small.M2["m2"]["cat_1"].weights)
	assert.Equal(t, 1.0, small.M2["m2"]["all"].At(10, 20))
}

func TestHist2D(t *testing.T) {
	h := NewHist2D(100, 0, 1000)

	h.Fill(105, 205, 1)
	h.Fill(105, 205, 1)
	assert.Equal(t, 2.0, h.At(10, 20))

	// out-of-range values are dropped, not wrapped
	h.Fill(-1, 205, 1)
	h.Fill(105, 1000, 1)
	assert.Equal(t, 2.0, sum(h.Flat()))

	// an unfilled grid still renders dense zeros for the writer
	empty := NewHist2D(100, 0, 1000)
	flat := empty.Flat()
	assert.Len(t, flat, 100*100)
	assert.Equal(t, 0.0, sum(flat))
	assert.Equal(t, 0.0, empty.At(10, 20))
}

func TestMerge2D(t *testing.T) {
	geds := testChannelMap().Geds()
	agg := NewAggregator(testCutConfigs(), testHistConfig, geds, testRuns())
	other := NewAggregator(testCutConfigs(), testHistConfig, geds, testRuns())

	agg.FillM2("m2", "all", []float64{105}, []float64{205})
	other.FillM2("m2", "all", []float64{105}, []float64{205})
	other.FillM2("m2", "cat_1", []float64{305}, []float64{405})

	agg.Merge(other)

	weights := Weights2D(agg.M2["m2"]["all"])
	assert.Equal(t, 2.0, weights[10][20])

	cat1 := Weights2D(agg.M2["m2"]["cat_1"])
	assert.Equal(t, 1.0, cat1[30][40])
}

func TestEdges(t *testing.T) {
	edges := HistConfig{NBins: 4, EMin: 0, EMax: 8}.Edges()
	assert.Equal(t, []float64{0, 2, 4, 6, 8}, edges)
}

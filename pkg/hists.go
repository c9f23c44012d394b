package simflow

import (
	"fmt"

	"go-hep.org/x/hep/hbook"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DetectorTypes are the germanium detector families grouped in the output.
var DetectorTypes = []string{"bege", "coax", "icpc", "ppc"}

// M2Buckets are the coincidence buckets of a 2d cut.
var M2Buckets = []string{"sd_0", "sd_1", "sd_2", "sd_3", "sd_4", "sd_5", "sd_6", "all", "cat_1", "cat_2", "cat_3"}

// Edges returns the shared bin edges.
func (h HistConfig) Edges() []float64 {
	edges := make([]float64, h.NBins+1)
	width := (h.EMax - h.EMin) / float64(h.NBins)
	for i := range edges {
		edges[i] = h.EMin + float64(i)*width
	}
	edges[h.NBins] = h.EMax
	return edges
}

// Hist2D is a fixed-binning two-dimensional weights grid, x-major.
// hbook's H2D keeps a full statistical distribution per bin; at spectrum
// binning (10001 bins per axis) that is two orders of magnitude more
// memory than the counts the pdf container stores, so coincidence buckets
// carry plain weights instead. The grid is allocated on first fill:
// buckets no event ever matches cost nothing.
type Hist2D struct {
	nbins    int
	min, max float64
	weights  []float64
}

func NewHist2D(nbins int, min float64, max float64) *Hist2D {
	return &Hist2D{nbins: nbins, min: min, max: max}
}

// binIndex maps a value into [0, nbins), or -1 outside the range.
func (h *Hist2D) binIndex(v float64) int {
	if v < h.min || v >= h.max {
		return -1
	}
	i := int(float64(h.nbins) * (v - h.min) / (h.max - h.min))
	if i >= h.nbins {
		i = h.nbins - 1
	}
	return i
}

// Fill adds w to the bin holding (x, y). Out-of-range values are dropped.
func (h *Hist2D) Fill(x float64, y float64, w float64) {
	i := h.binIndex(x)
	j := h.binIndex(y)
	if i < 0 || j < 0 {
		return
	}
	if h.weights == nil {
		h.weights = make([]float64, h.nbins*h.nbins)
	}
	h.weights[i*h.nbins+j] += w
}

// At returns the weight of bin (i, j).
func (h *Hist2D) At(i int, j int) float64 {
	if h.weights == nil {
		return 0
	}
	return h.weights[i*h.nbins+j]
}

// Flat returns the dense x-major weights, materializing zeros for
// buckets never filled.
func (h *Hist2D) Flat() []float64 {
	if h.weights != nil {
		return h.weights
	}
	return make([]float64, h.nbins*h.nbins)
}

// Aggregator owns every histogram of one builder run. All histograms share
// the binning in Hist.
type Aggregator struct {
	Hist HistConfig

	// Channel keys plain cuts by channel label, plus the grouped "all" and
	// detector-type buckets once Group has run.
	Channel map[string]map[string]*hbook.H1D
	// Run keys every non-sum cut by "<period>_<run>".
	Run map[string]map[string]*hbook.H1D
	// Sum keys sum cuts by the single "all" bucket.
	Sum map[string]map[string]*hbook.H1D
	// M2 keys 2d cuts by coincidence bucket.
	M2 map[string]map[string]*Hist2D

	grouped bool
}

// NewAggregator pre-creates the histogram for every (cut, bucket) pair the
// run can fill: one per germanium channel and one per known (period, run)
// for plain cuts, the "all" bucket for sum cuts and the eleven coincidence
// buckets for 2d cuts.
func NewAggregator(cuts []CutConfig, hist HistConfig, geds map[string]ChannelEntry, runs map[string][]string) *Aggregator {
	a := &Aggregator{
		Hist:    hist,
		Channel: make(map[string]map[string]*hbook.H1D),
		Run:     make(map[string]map[string]*hbook.H1D),
		Sum:     make(map[string]map[string]*hbook.H1D),
		M2:      make(map[string]map[string]*Hist2D),
	}

	labels := maps.Keys(geds)
	slices.Sort(labels)
	periods := maps.Keys(runs)
	slices.Sort(periods)

	for _, cut := range cuts {
		if !cut.IsSum && !cut.Is2D {
			a.Channel[cut.Name] = make(map[string]*hbook.H1D, len(labels))
			for _, label := range labels {
				a.Channel[cut.Name][label] = a.newH1D()
			}
		}
		if !cut.IsSum {
			a.Run[cut.Name] = make(map[string]*hbook.H1D)
			for _, period := range periods {
				for _, run := range runs[period] {
					a.Run[cut.Name][period+"_"+run] = a.newH1D()
				}
			}
		}
		if cut.IsSum {
			a.Sum[cut.Name] = map[string]*hbook.H1D{"all": a.newH1D()}
		}
		if cut.Is2D {
			a.M2[cut.Name] = make(map[string]*Hist2D, len(M2Buckets))
			for _, bucket := range M2Buckets {
				a.M2[cut.Name][bucket] = a.newH2D()
			}
		}
	}
	return a
}

func (a *Aggregator) newH1D() *hbook.H1D {
	return hbook.NewH1D(a.Hist.NBins, a.Hist.EMin, a.Hist.EMax)
}

func (a *Aggregator) newH2D() *Hist2D {
	return NewHist2D(a.Hist.NBins, a.Hist.EMin, a.Hist.EMax)
}

// FillChannel adds unit-converted energies for one channel of a plain cut.
func (a *Aggregator) FillChannel(cut string, channel string, energies []float64) {
	h, ok := a.Channel[cut][channel]
	if !ok {
		return
	}
	for _, e := range energies {
		h.Fill(e, 1)
	}
}

// FillRun adds unit-converted energies to the (period, run) histogram of a
// non-sum cut. Pairs outside the run registry get a histogram on demand.
func (a *Aggregator) FillRun(cut string, period string, run string, energies []float64) {
	hists, ok := a.Run[cut]
	if !ok {
		return
	}
	key := period + "_" + run
	h, ok := hists[key]
	if !ok {
		h = a.newH1D()
		hists[key] = h
	}
	for _, e := range energies {
		h.Fill(e, 1)
	}
}

// FillSum adds per-event summed energies to a sum cut.
func (a *Aggregator) FillSum(cut string, energies []float64) {
	h, ok := a.Sum[cut]["all"]
	if !ok {
		return
	}
	for _, e := range energies {
		h.Fill(e, 1)
	}
}

// FillM2 adds coincidence pairs to one bucket of a 2d cut, smaller energy
// on x and larger on y.
func (a *Aggregator) FillM2(cut string, bucket string, x []float64, y []float64) {
	h, ok := a.M2[cut][bucket]
	if !ok {
		return
	}
	for i := range x {
		h.Fill(x[i], y[i], 1)
	}
}

// Group builds the per-cut "all" and detector-type sums from the channel
// histograms. It must run exactly once, after all input files are filled:
// grouping a partially-filled aggregator produces wrong totals.
func (a *Aggregator) Group(geds map[string]ChannelEntry) error {
	if a.grouped {
		return fmt.Errorf("grouped histograms already built")
	}
	a.grouped = true

	for _, channels := range a.Channel {
		labels := maps.Keys(channels)
		slices.Sort(labels)

		all := a.newH1D()
		types := make(map[string]*hbook.H1D, len(DetectorTypes))
		for _, t := range DetectorTypes {
			types[t] = a.newH1D()
		}
		for _, label := range labels {
			entry, ok := geds[label]
			if !ok {
				continue
			}
			addH1D(all, channels[label])
			if th, ok := types[entry.Type]; ok {
				addH1D(th, channels[label])
			}
		}
		channels["all"] = all
		for _, t := range DetectorTypes {
			channels[t] = types[t]
		}
	}
	return nil
}

// Merge adds the bin contents of another aggregator with the same binning.
// Buckets missing on the receiver are created. Merging is commutative, so
// per-worker partial aggregators can be combined in any order.
func (a *Aggregator) Merge(other *Aggregator) {
	mergeH1D(a.Channel, other.Channel, a)
	mergeH1D(a.Run, other.Run, a)
	mergeH1D(a.Sum, other.Sum, a)
	for cut, buckets := range other.M2 {
		if a.M2[cut] == nil {
			a.M2[cut] = make(map[string]*Hist2D, len(buckets))
		}
		for bucket, src := range buckets {
			dst, ok := a.M2[cut][bucket]
			if !ok {
				dst = a.newH2D()
				a.M2[cut][bucket] = dst
			}
			addHist2D(dst, src)
		}
	}
}

func mergeH1D(dst map[string]map[string]*hbook.H1D, src map[string]map[string]*hbook.H1D, a *Aggregator) {
	for cut, buckets := range src {
		if dst[cut] == nil {
			dst[cut] = make(map[string]*hbook.H1D, len(buckets))
		}
		for bucket, h := range buckets {
			target, ok := dst[cut][bucket]
			if !ok {
				target = a.newH1D()
				dst[cut][bucket] = target
			}
			addH1D(target, h)
		}
	}
}

// addH1D adds src bin contents into dst, which must share the binning.
func addH1D(dst *hbook.H1D, src *hbook.H1D) {
	for i := 0; i < src.Len(); i++ {
		x, y := src.XY(i)
		if y == 0 {
			continue
		}
		dst.Fill(x, y)
	}
}

// addHist2D adds src weights into dst, which must share the binning.
// Sources never filled carry no grid and contribute nothing.
func addHist2D(dst *Hist2D, src *Hist2D) {
	if src.weights == nil {
		return
	}
	if dst.weights == nil {
		dst.weights = make([]float64, dst.nbins*dst.nbins)
	}
	for i, w := range src.weights {
		dst.weights[i] += w
	}
}

// Weights1D extracts the per-bin sums of a 1d histogram.
func Weights1D(h *hbook.H1D) []float64 {
	weights := make([]float64, h.Len())
	for i := range weights {
		_, y := h.XY(i)
		weights[i] = y
	}
	return weights
}

// Weights2D extracts the per-bin sums of a 2d histogram, x-major.
func Weights2D(h *Hist2D) [][]float64 {
	rows := make([][]float64, h.nbins)
	for i := range rows {
		rows[i] = make([]float64, h.nbins)
		if h.weights != nil {
			copy(rows[i], h.weights[i*h.nbins:(i+1)*h.nbins])
		}
	}
	return rows
}

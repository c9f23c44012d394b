package simflow

import (
	"errors"
	"fmt"
	"strconv"

	hdf5 "github.com/next-exp/hdf5-go"
	"go-hep.org/x/hep/hbook"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// PDFWriter persists an aggregator as one group per cut. Each histogram
// lives in a subgroup of its cut holding a weights dataset and an edges
// dataset; run histograms share their cut's group.
type PDFWriter struct {
	File      *hdf5.File
	Filename  string
	cutGroups map[string]*hdf5.Group
}

func NewPDFWriter(filename string) *PDFWriter {
	// Set string size for HDF5
	hdf5.SetStringLength(STRLEN)

	writer := &PDFWriter{}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Creating file %s", filename), "writer")
	}
	writer.File = openFile(filename)
	writer.Filename = filename
	writer.cutGroups = make(map[string]*hdf5.Group)
	return writer
}

// WriteHistograms writes every histogram the aggregator holds. Call it
// after Group, so the grouped spectra are included.
func (w *PDFWriter) WriteHistograms(agg *Aggregator) {
	edges := agg.Hist.Edges()
	nbins := uint(agg.Hist.NBins)

	for _, cut := range sortedKeys(agg.Channel) {
		group := w.cutGroup(cut)
		for _, name := range sortedKeys(agg.Channel[cut]) {
			w.writeH1D(group, name, agg.Channel[cut][name], edges, nbins)
		}
	}

	for _, cut := range sortedKeys(agg.Run) {
		group := w.cutGroup(cut)
		for _, name := range sortedKeys(agg.Run[cut]) {
			w.writeH1D(group, name, agg.Run[cut][name], edges, nbins)
		}
	}

	for _, cut := range sortedKeys(agg.Sum) {
		group := w.cutGroup(cut)
		for _, name := range sortedKeys(agg.Sum[cut]) {
			w.writeH1D(group, name, agg.Sum[cut][name], edges, nbins)
		}
	}

	for _, cut := range sortedKeys(agg.M2) {
		group := w.cutGroup(cut)
		for _, name := range sortedKeys(agg.M2[cut]) {
			w.writeH2D(group, name, agg.M2[cut][name], edges, nbins)
		}
	}
}

// WritePrimaries writes the cumulative primaries count as a one-row table.
func (w *PDFWriter) WritePrimaries(nPrimaries int64) {
	table := createTable(w.File, "number_of_primaries", PrimariesHDF5{})
	entry := PrimariesHDF5{
		value: convertToHdf5String(strconv.FormatInt(nPrimaries, 10)),
	}
	writeEntryToTable(table, entry, 0)
	err := table.Close()
	if err != nil {
		panic(err)
	}
}

func (w *PDFWriter) cutGroup(cut string) *hdf5.Group {
	group, ok := w.cutGroups[cut]
	if !ok {
		group = createGroup(w.File, cut)
		w.cutGroups[cut] = group
	}
	return group
}

func (w *PDFWriter) writeH1D(group *hdf5.Group, name string, hist *hbook.H1D, edges []float64, nbins uint) {
	bucket := createSubGroup(group, name)
	writeFloatArray(bucket, "weights", Weights1D(hist), []uint{nbins})
	writeFloatArray(bucket, "edges", edges, []uint{nbins + 1})
	err := bucket.Close()
	if err != nil {
		panic(err)
	}
}

func (w *PDFWriter) writeH2D(group *hdf5.Group, name string, hist *Hist2D, edges []float64, nbins uint) {
	bucket := createSubGroup(group, name)
	writeFloatArray(bucket, "weights", hist.Flat(), []uint{nbins, nbins})
	writeFloatArray(bucket, "edges", edges, []uint{nbins + 1})
	err := bucket.Close()
	if err != nil {
		panic(err)
	}
}

func (w *PDFWriter) Close() error {
	var errs []error

	for _, cut := range sortedKeys(w.cutGroups) {
		if err := w.cutGroups[cut].Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing group %s: %w", cut, err))
		}
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

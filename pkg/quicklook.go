package simflow

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/vg"
)

// SavePlots renders the "all" spectrum of every cut as a png in dir.
// Call it after Group, the plain cuts have no "all" bucket before that.
func SavePlots(agg *Aggregator, dir string) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("error creating plots directory %s: %w", dir, err)
	}

	for _, cut := range sortedKeys(agg.Channel) {
		hist, ok := agg.Channel[cut]["all"]
		if !ok {
			continue
		}
		err := saveSpectrum(hist, cut, filepath.Join(dir, cut+".png"))
		if err != nil {
			return err
		}
	}

	for _, cut := range sortedKeys(agg.Sum) {
		hist, ok := agg.Sum[cut]["all"]
		if !ok {
			continue
		}
		err := saveSpectrum(hist, cut, filepath.Join(dir, cut+".png"))
		if err != nil {
			return err
		}
	}
	return nil
}

func saveSpectrum(hist *hbook.H1D, cut string, path string) error {
	p := hplot.New()
	p.Title.Text = cut
	p.Title.Padding = 2 * vg.Millimeter
	p.X.Label.Text = "energy [keV]"
	p.Y.Label.Text = "counts"

	h := hplot.NewH1D(hist)
	h.LineStyle.Color = color.RGBA{B: 255, A: 255}
	h.Infos.Style = hplot.HInfoEntries
	p.Add(h)

	err := p.Save(6*vg.Inch, 4*vg.Inch, path)
	if err != nil {
		return fmt.Errorf("error saving plot %s: %w", path, err)
	}
	return nil
}

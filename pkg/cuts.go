package simflow

import (
	"fmt"
	"strconv"
	"strings"
)

// CutSpec is one configured selection with its compiled expression. A nil
// Expr passes the whole batch through.
type CutSpec struct {
	Name  string
	IsSum bool
	Is2D  bool
	Expr  *Expr
}

// CompileCuts compiles the configured cut list, keeping declaration order.
func CompileCuts(configs []CutConfig) ([]CutSpec, error) {
	cuts := make([]CutSpec, 0, len(configs))
	for _, config := range configs {
		if config.Name == "" {
			return nil, &ErrMissingConfig{Key: "cuts[].name"}
		}
		spec := CutSpec{Name: config.Name, IsSum: config.IsSum, Is2D: config.Is2D}
		if strings.TrimSpace(config.CutString) != "" {
			expr, err := CompileCut(config.CutString)
			if err != nil {
				return nil, fmt.Errorf("cut %q: %w", config.Name, err)
			}
			spec.Expr = expr
		}
		cuts = append(cuts, spec)
	}
	return cuts, nil
}

// ApplyCuts runs every cut against the cleaned batch in declaration order
// and fills the aggregator. Energies are converted to histogram units on
// fill.
func ApplyCuts(cuts []CutSpec, batch *EventBatch, table MageIDTable, agg *Aggregator, period string, run string, nStrings int32) error {
	for _, cut := range cuts {
		if configuration.Verbosity > 1 {
			message := fmt.Sprintf("Processing cut %s", cut.Name)
			logger.Info(message, "cuts")
		}
		selected := batch
		if cut.Expr != nil {
			mask, err := cut.Expr.Eval(batch)
			if err != nil {
				return fmt.Errorf("cut %q: %w", cut.Name, err)
			}
			selected = batch.Select(mask)
		}
		switch {
		case !cut.IsSum && !cut.Is2D:
			fillPlainCut(cut.Name, selected, table, agg, period, run)
		case cut.Is2D:
			err := fill2DCut(cut.Name, selected, table, agg, nStrings)
			if err != nil {
				return err
			}
		default:
			fillSumCut(cut.Name, selected, agg)
		}
	}
	return nil
}

// fillPlainCut flattens the selected energies per resolved channel and adds
// them to the channel and (period, run) histograms. Channels without hits
// are skipped.
func fillPlainCut(cut string, batch *EventBatch, table MageIDTable, agg *Aggregator, period string, run string) {
	energies := make(map[int32][]float64)
	for i, row := range batch.MageID {
		for j, id := range row {
			if _, ok := table.Channel[id]; !ok {
				continue
			}
			energies[id] = append(energies[id], batch.Energy[i][j]*1000)
		}
	}
	for _, mageID := range table.MageIDs() {
		values := energies[mageID]
		if len(values) == 0 {
			continue
		}
		agg.FillChannel(cut, table.Channel[mageID], values)
		agg.FillRun(cut, period, run, values)
	}
}

// fill2DCut splits every selected event into its larger and smaller hit
// energy and fills the coincidence buckets. Every selected event must hold
// exactly two hits.
func fill2DCut(cut string, batch *EventBatch, table MageIDTable, agg *Aggregator, nStrings int32) error {
	if batch.Len() == 0 {
		return nil
	}
	for _, row := range batch.MageID {
		if len(row) != 2 {
			return fmt.Errorf("cut %q: %w", cut, &ErrPairMultiplicity{Hits: len(row)})
		}
	}

	eLarger := make([]float64, batch.Len())
	eSmaller := make([]float64, batch.Len())
	for i, row := range batch.Energy {
		hi, lo := row[0], row[1]
		if hi < lo {
			hi, lo = lo, hi
		}
		eLarger[i] = hi * 1000
		eSmaller[i] = lo * 1000
	}

	first, second, err := SplitPairs(batch.MageID)
	if err != nil {
		return fmt.Errorf("cut %q: %w", cut, err)
	}
	toString := Converter(VectorizedLookup(table.String))
	toPosition := Converter(VectorizedLookup(table.Position))
	categories, err := M2Categories(first, second, toString, toPosition)
	if err != nil {
		return fmt.Errorf("cut %q: %w", cut, err)
	}
	stringDiff, _, err := StringRowDiff(first, second, toString, toPosition, nStrings)
	if err != nil {
		return fmt.Errorf("cut %q: %w", cut, err)
	}

	for _, bucket := range M2Buckets {
		var x, y []float64
		switch {
		case bucket == "all":
			x, y = eSmaller, eLarger
		case strings.HasPrefix(bucket, "cat_"):
			cat, _ := strconv.Atoi(strings.TrimPrefix(bucket, "cat_"))
			x, y = selectPairs(eSmaller, eLarger, categories, int32(cat))
		default:
			sd, _ := strconv.Atoi(strings.TrimPrefix(bucket, "sd_"))
			x, y = selectPairs(eSmaller, eLarger, stringDiff, int32(sd))
		}
		if len(x) == 0 {
			continue
		}
		agg.FillM2(cut, bucket, x, y)
	}
	return nil
}

func selectPairs(x []float64, y []float64, keys []int32, want int32) ([]float64, []float64) {
	outX := make([]float64, 0)
	outY := make([]float64, 0)
	for i, key := range keys {
		if key == want {
			outX = append(outX, x[i])
			outY = append(outY, y[i])
		}
	}
	return outX, outY
}

// fillSumCut reduces every selected event to its summed hit energy.
func fillSumCut(cut string, batch *EventBatch, agg *Aggregator) {
	if batch.Len() == 0 {
		return
	}
	sums := make([]float64, batch.Len())
	for i, row := range batch.Energy {
		total := 0.0
		for _, e := range row {
			total += e
		}
		sums[i] = total * 1000
	}
	agg.FillSum(cut, sums)
}

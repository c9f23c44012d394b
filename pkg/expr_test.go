package simflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exprTestBatch() *EventBatch {
	b := &EventBatch{
		Energy: [][]float64{
			{0.5, 1.2},
			{2.0},
			{0.3, 0.4, 0.5},
		},
		MageID: [][]int32{
			{1010101, 1010102},
			{1010101},
			{1010101, 1010102, 1010201},
		},
		IsOff: [][]bool{
			{false, false},
			{false},
			{false, false, false},
		},
		IsAC: [][]bool{
			{false, true},
			{false},
			{false, false, false},
		},
		NpeTot:    []float64{10, 0, 3},
		HasNpeTot: true,
	}
	b.ComputeMultiplicity()
	return b
}

func TestCompileCutErrors(t *testing.T) {
	tests := []struct {
		name string
		cut  string
	}{
		{"empty", "   "},
		{"unknown column", "multiplicity == 2"},
		{"per-hit result", "energy > 1"},
		{"numeric result", "mul + 1"},
		{"chained comparison", "1 < mul < 3"},
		{"boolean arithmetic", "is_ac + 1"},
		{"single equals", "mul = 2"},
		{"unbalanced paren", "(mul == 2"},
		{"min of booleans", "min(is_ac) == 0"},
		{"unknown function", "median(energy) > 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileCut(tt.cut)
			var badExpr *ErrBadCutExpr
			require.ErrorAs(t, err, &badExpr, "cut %q should not compile", tt.cut)
		})
	}
}

func TestExprEval(t *testing.T) {
	tests := []struct {
		name string
		cut  string
		want []bool
	}{
		{"multiplicity", "mul == 2", []bool{true, false, false}},
		{"sum reduction", "sum(energy) > 1.5", []bool{true, true, false}},
		{"max reduction", "max(energy) >= 1.2", []bool{true, true, false}},
		{"min reduction", "min(energy) < 0.4", []bool{false, false, true}},
		{"count reduction", "count(energy) == 3", []bool{false, false, true}},
		{"any reduction", "any(is_ac)", []bool{true, false, false}},
		{"negated all", "~all(is_ac)", []bool{true, true, true}},
		{"boolean and", "mul == 2 & any(is_ac)", []bool{true, false, false}},
		{"boolean or", "mul == 1 | mul == 3", []bool{false, true, true}},
		{"arithmetic", "sum(energy) * 1000 > 1600", []bool{true, true, false}},
		{"scalar column", "npe_tot >= 3", []bool{true, false, true}},
		{"good multiplicity", "mul_is_good == mul", []bool{false, true, true}},
		{"unary minus", "-npe_tot < -5", []bool{true, false, false}},
		{"constant true", "True", []bool{true, true, true}},
		{"sum of booleans", "sum(is_ac) == 1", []bool{true, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := CompileCut(tt.cut)
			require.NoError(t, err, "cut %q", tt.cut)

			mask, err := expr.Eval(exprTestBatch())
			require.NoError(t, err)
			assert.Equal(t, tt.want, mask, "cut %q", tt.cut)
		})
	}
}

func TestExprEvalMissingColumn(t *testing.T) {
	expr, err := CompileCut("npe_tot_poisson > 5")
	require.NoError(t, err)

	batch := exprTestBatch()
	_, err = expr.Eval(batch)
	var missing *ErrMissingColumn
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "npe_tot_poisson", missing.Column)
}

func TestExprReductionOnEmptyEvent(t *testing.T) {
	batch := &EventBatch{
		Energy: [][]float64{{}, {1.0}},
		MageID: [][]int32{{}, {1010101}},
		IsOff:  [][]bool{{}, {false}},
		IsAC:   [][]bool{{}, {false}},
	}

	// min() of an empty hit list is +inf, the comparison never selects it
	expr, err := CompileCut("min(energy) < 100")
	require.NoError(t, err)
	mask, err := expr.Eval(batch)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, mask)

	expr, err = CompileCut("max(energy) > -100")
	require.NoError(t, err)
	mask, err = expr.Eval(batch)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, mask)
}

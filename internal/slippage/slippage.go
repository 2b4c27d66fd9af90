// Package slippage combines per-step slippage tolerances into one bound for a
// whole plan.
package slippage

import (
	"math"

	"github.com/meow-stack/chainplan/internal/types"
)

// precision is the number of decimals a compounded value is rounded to.
const precision = 6

// Compound combines tolerances, in percentage points, that apply one after
// another to the remaining amount. It returns false when values is empty.
// A single value is returned unchanged.
func Compound(values []float64) (float64, bool) {
	switch len(values) {
	case 0:
		return 0, false
	case 1:
		return values[0], true
	}

	remaining := 1.0
	for _, s := range values {
		remaining *= 1 - s/100
	}
	return round((1-remaining)*100, precision), true
}

// CompoundSteps compounds the tolerances of steps that carry one. Steps
// without a slippage value are skipped, not counted as 0%.
func CompoundSteps(steps []types.PlanStep) (float64, bool) {
	values := make([]float64, 0, len(steps))
	for i := range steps {
		if steps[i].Slippage != nil {
			values = append(values, *steps[i].Slippage)
		}
	}
	return Compound(values)
}

// PlanSlippage returns the compounded tolerance of a whole plan.
func PlanSlippage(plan *types.Plan) (float64, bool) {
	if plan == nil {
		return 0, false
	}
	return CompoundSteps(plan.Steps)
}

func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

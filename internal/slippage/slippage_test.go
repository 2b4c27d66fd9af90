package slippage

import (
	"math"
	"testing"

	"github.com/meow-stack/chainplan/internal/testutil"
	"github.com/meow-stack/chainplan/internal/types"
)

func TestCompound(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"two small", []float64{0.5, 0.25}, 0.74875},
		{"two equal", []float64{5, 5}, 9.75},
		{"three", []float64{0.5, 0.5, 0.5}, 1.492512},
		{"zero tolerance", []float64{0, 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compound(tt.values)
			if !ok {
				t.Fatal("Compound() ok = false, want true")
			}
			if math.Abs(got-tt.want) > 1e-5 {
				t.Errorf("Compound(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestCompound_SingleUnchanged(t *testing.T) {
	for _, s := range []float64{0, 0.1234567891, 3, 50, 100} {
		got, ok := Compound([]float64{s})
		if !ok || got != s {
			t.Errorf("Compound([%v]) = (%v, %v), want (%v, true)", s, got, ok, s)
		}
	}
}

func TestCompound_Empty(t *testing.T) {
	if _, ok := Compound(nil); ok {
		t.Error("Compound(nil) ok = true, want false")
	}
	if _, ok := Compound([]float64{}); ok {
		t.Error("Compound([]) ok = true, want false")
	}
}

func TestCompound_RoundedToSixDecimals(t *testing.T) {
	got, _ := Compound([]float64{0.1, 0.2, 0.3})
	scaled := got * 1e6
	if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
		t.Errorf("Compound() = %v has more than 6 decimals", got)
	}
}

func TestCompoundSteps_SkipsStepsWithoutSlippage(t *testing.T) {
	withGap := []types.PlanStep{
		{Slippage: testutil.Slippage(0.5)},
		{Routing: types.RoutingBridge},
		{Slippage: testutil.Slippage(0.25)},
	}
	got, ok := CompoundSteps(withGap)
	want, _ := Compound([]float64{0.5, 0.25})
	if !ok || got != want {
		t.Errorf("CompoundSteps() = (%v, %v), want (%v, true)", got, ok, want)
	}

	if _, ok := CompoundSteps([]types.PlanStep{{Routing: types.RoutingWrap}}); ok {
		t.Error("CompoundSteps() without any slippage should report false")
	}
}

func TestPlanSlippage(t *testing.T) {
	if _, ok := PlanSlippage(nil); ok {
		t.Error("PlanSlippage(nil) ok = true")
	}
	plan := &types.Plan{Steps: []types.PlanStep{{Slippage: testutil.Slippage(5)}, {Slippage: testutil.Slippage(5)}}}
	if got, _ := PlanSlippage(plan); math.Abs(got-9.75) > 1e-9 {
		t.Errorf("PlanSlippage() = %v, want 9.75", got)
	}
}

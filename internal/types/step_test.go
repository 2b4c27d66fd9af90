package types

import (
	"testing"
)

func TestStepStatus(t *testing.T) {
	t.Run("Valid returns true for canonical statuses", func(t *testing.T) {
		all := []StepStatus{
			StepStatusUnknown, StepStatusQueued, StepStatusAwaitingAction,
			StepStatusPending, StepStatusSuccess, StepStatusFailed,
		}
		for _, s := range all {
			if !s.Valid() {
				t.Errorf("%s should be valid", s)
			}
		}
		if StepStatus("COMPLETE").Valid() {
			t.Error("remote vocabulary values are not canonical statuses")
		}
	})

	t.Run("IsTerminal only for success and failed", func(t *testing.T) {
		tests := map[StepStatus]bool{
			StepStatusUnknown:        false,
			StepStatusQueued:         false,
			StepStatusAwaitingAction: false,
			StepStatusPending:        false,
			StepStatusSuccess:        true,
			StepStatusFailed:         true,
		}
		for s, want := range tests {
			if got := s.IsTerminal(); got != want {
				t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
			}
		}
	})
}

func TestRouting_Cancellation(t *testing.T) {
	tests := []struct {
		routing Routing
		want    CancellationType
		ok      bool
	}{
		{RoutingClassic, CancellationClassic, true},
		{RoutingBridge, CancellationClassic, true},
		{RoutingWrap, CancellationClassic, true},
		{RoutingUnwrap, CancellationClassic, true},
		{RoutingDutchLimit, CancellationUniswapX, true},
		{RoutingDutchV2, CancellationUniswapX, true},
		{RoutingDutchV3, CancellationUniswapX, true},
		{RoutingPriority, CancellationUniswapX, true},
		{RoutingPermit, "", false},
		{RoutingChained, "", false},
		{RoutingQuickroute, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.routing), func(t *testing.T) {
			got, ok := tt.routing.Cancellation()
			if got != tt.want || ok != tt.ok {
				t.Errorf("Cancellation() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
			if tt.routing.IsUniswapX() != (tt.want == CancellationUniswapX) {
				t.Errorf("IsUniswapX() = %v, disagrees with cancellation type", tt.routing.IsUniswapX())
			}
		})
	}
}

func TestPlanStep_Submitted(t *testing.T) {
	step := PlanStep{}
	if step.Submitted() {
		t.Error("step without proof should not be submitted")
	}

	step.Proof = ClassicProof{}
	if step.Submitted() {
		t.Error("empty tx hash should not count as submitted")
	}

	step.Proof = UniswapXProof{OrderID: "0xorder"}
	if !step.Submitted() {
		t.Error("step with order id should be submitted")
	}
	if step.Proof.Reference() != "0xorder" {
		t.Errorf("Reference() = %s, want 0xorder", step.Proof.Reference())
	}
}

package types

import "testing"

func planWithStatuses(current int, statuses ...StepStatus) *Plan {
	p := &Plan{PlanID: "plan-1", CurrentStepIndex: current}
	for i, s := range statuses {
		p.Steps = append(p.Steps, PlanStep{PlanID: "plan-1", StepIndex: i, Status: s})
	}
	return p
}

func TestPlan_CurrentStep(t *testing.T) {
	p := planWithStatuses(1, StepStatusSuccess, StepStatusAwaitingAction)

	step, ok := p.CurrentStep()
	if !ok {
		t.Fatal("CurrentStep() ok = false, want true")
	}
	if step.StepIndex != 1 {
		t.Errorf("StepIndex = %d, want 1", step.StepIndex)
	}
	if p.IsComplete() {
		t.Error("plan with an awaiting step should not be complete")
	}
}

func TestPlan_Complete(t *testing.T) {
	p := planWithStatuses(2, StepStatusSuccess, StepStatusSuccess)

	if !p.IsComplete() {
		t.Error("IsComplete() = false, want true")
	}
	if _, ok := p.CurrentStep(); ok {
		t.Error("complete plan should have no current step")
	}
}

func TestPlan_CurrentStep_OutOfRange(t *testing.T) {
	for _, idx := range []int{-1, 5} {
		p := planWithStatuses(idx, StepStatusPending)
		if _, ok := p.CurrentStep(); ok {
			t.Errorf("CurrentStep() with index %d should not be ok", idx)
		}
	}
}

func TestPlan_HasFailed(t *testing.T) {
	if planWithStatuses(1, StepStatusSuccess, StepStatusPending).HasFailed() {
		t.Error("HasFailed() = true, want false")
	}
	if !planWithStatuses(2, StepStatusSuccess, StepStatusFailed).HasFailed() {
		t.Error("HasFailed() = false, want true")
	}
}

package status

import (
	"time"

	"github.com/meow-stack/chainplan/internal/cancel"
	"github.com/meow-stack/chainplan/internal/slippage"
	"github.com/meow-stack/chainplan/internal/types"
)

// Plan roles as seen by the store.
const (
	RoleActive       = "active"
	RoleBackgrounded = "backgrounded"
	RoleRemote       = "remote"
)

// PlanSummary contains computed information about a plan for display.
type PlanSummary struct {
	PlanID           string         `json:"plan_id"`
	Role             string         `json:"role"`
	CurrentStepIndex int            `json:"current_step_index"`
	Complete         bool           `json:"complete"`
	Failed           bool           `json:"failed"`
	ProofPending     bool           `json:"proof_pending"`
	Locked           bool           `json:"locked"`
	Slippage         *float64       `json:"slippage,omitempty"`
	BackgroundedAt   *time.Time     `json:"backgrounded_at,omitempty"`
	StepStats        StepStats      `json:"step_stats"`
	Steps            []StepSummary  `json:"steps"`
	Cancelable       *CancelSummary `json:"cancelable,omitempty"`
}

// StepStats contains step count breakdown.
type StepStats struct {
	Total          int `json:"total"`
	Success        int `json:"success"`
	Pending        int `json:"pending"`
	AwaitingAction int `json:"awaiting_action"`
	Queued         int `json:"queued"`
	Failed         int `json:"failed"`
	Unknown        int `json:"unknown"`
}

// StepSummary describes one step.
type StepSummary struct {
	Index    int              `json:"index"`
	Type     types.StepType   `json:"type"`
	Routing  types.Routing    `json:"routing"`
	Status   types.StepStatus `json:"status"`
	Proof    string           `json:"proof,omitempty"`
	Slippage *float64         `json:"slippage,omitempty"`
	Current  bool             `json:"current,omitempty"`
}

// CancelSummary describes the step a cancel command would target.
type CancelSummary struct {
	StepIndex int                    `json:"step_index"`
	Type      types.CancellationType `json:"type"`
	Reference string                 `json:"reference"`
}

// SummaryContext carries store state that is not part of the plan itself.
type SummaryContext struct {
	Role           string
	Locked         bool
	BackgroundedAt *time.Time
}

// NewPlanSummary creates a summary from a plan.
func NewPlanSummary(plan *types.Plan, sc SummaryContext) *PlanSummary {
	summary := &PlanSummary{
		PlanID:           plan.PlanID,
		Role:             sc.Role,
		CurrentStepIndex: plan.CurrentStepIndex,
		Complete:         plan.IsComplete(),
		Failed:           plan.HasFailed(),
		ProofPending:     plan.ProofPending,
		Locked:           sc.Locked,
		BackgroundedAt:   sc.BackgroundedAt,
		StepStats:        computeStepStats(plan),
	}

	if v, ok := slippage.PlanSlippage(plan); ok {
		summary.Slippage = &v
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]
		ss := StepSummary{
			Index:    step.StepIndex,
			Type:     step.StepType,
			Routing:  step.Routing,
			Status:   step.Status,
			Slippage: step.Slippage,
			Current:  i == plan.CurrentStepIndex,
		}
		if step.Proof != nil {
			ss.Proof = step.Proof.Reference()
		}
		summary.Steps = append(summary.Steps, ss)
	}

	if info := cancel.FindCancelableStep(plan); info != nil {
		ref := info.TxHash
		if info.CancellationType == types.CancellationUniswapX {
			ref = info.OrderID
		}
		summary.Cancelable = &CancelSummary{
			StepIndex: info.StepIndex,
			Type:      info.CancellationType,
			Reference: ref,
		}
	}

	return summary
}

// computeStepStats tallies up step statuses.
func computeStepStats(plan *types.Plan) StepStats {
	stats := StepStats{Total: len(plan.Steps)}

	for i := range plan.Steps {
		switch plan.Steps[i].Status {
		case types.StepStatusSuccess:
			stats.Success++
		case types.StepStatusPending:
			stats.Pending++
		case types.StepStatusAwaitingAction:
			stats.AwaitingAction++
		case types.StepStatusQueued:
			stats.Queued++
		case types.StepStatusFailed:
			stats.Failed++
		default:
			stats.Unknown++
		}
	}
	return stats
}

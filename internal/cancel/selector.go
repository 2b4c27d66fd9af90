// Package cancel finds the step of a plan that can still be cancelled and
// submits a best-effort cancellation for it.
package cancel

import (
	"github.com/meow-stack/chainplan/internal/types"
)

// CancelableStepInfo describes the step selected for cancellation.
type CancelableStepInfo struct {
	PlanID           string
	StepIndex        int
	Step             types.PlanStep
	CancellationType types.CancellationType

	// TxHash is set for classic cancellations (nonce replacement).
	TxHash string
	// OrderID is set for UniswapX cancellations (permit2 invalidation).
	OrderID string

	// ChainID is the chain the cancellation must be submitted on.
	ChainID int64
}

// FindCancelableStep returns the lowest-index step that is pending, carries a
// proof and has a cancellation mechanism. It returns nil when there is none.
func FindCancelableStep(plan *types.Plan) *CancelableStepInfo {
	if plan == nil {
		return nil
	}

	for i := range plan.Steps {
		step := plan.Steps[i]
		if step.Status != types.StepStatusPending || !step.Submitted() {
			continue
		}
		if _, ok := step.Routing.Cancellation(); !ok {
			continue
		}

		info := &CancelableStepInfo{
			PlanID:    plan.PlanID,
			StepIndex: step.StepIndex,
			Step:      step,
			ChainID:   step.TokenIn.ChainID,
		}
		if info.ChainID == 0 {
			info.ChainID = plan.InputChainID
		}

		switch proof := step.Proof.(type) {
		case types.ClassicProof:
			info.CancellationType = types.CancellationClassic
			info.TxHash = proof.TxHash
		case types.UniswapXProof:
			info.CancellationType = types.CancellationUniswapX
			info.OrderID = proof.OrderID
		default:
			continue
		}
		return info
	}
	return nil
}

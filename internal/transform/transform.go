// Package transform builds the canonical plan model from raw backend responses.
package transform

import (
	"fmt"

	perrors "github.com/meow-stack/chainplan/internal/errors"
	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/status"
	"github.com/meow-stack/chainplan/internal/types"
)

// stepTypeRouting must cover every StepType the backend can send. A missing
// entry is a taxonomy drift between this table and the backend enum.
var stepTypeRouting = map[types.StepType]types.Routing{
	types.StepTypeClassic:          types.RoutingClassic,
	types.StepTypeApprovalTxn:      types.RoutingClassic,
	types.StepTypeResetApprovalTxn: types.RoutingClassic,
	types.StepTypeApprovalPermit:   types.RoutingPermit,
	types.StepTypeDutchLimit:       types.RoutingDutchLimit,
	types.StepTypeDutchV2:          types.RoutingDutchV2,
	types.StepTypeDutchV3:          types.RoutingDutchV3,
	types.StepTypePriority:         types.RoutingPriority,
	types.StepTypeBridge:           types.RoutingBridge,
	types.StepTypeWrap:             types.RoutingWrap,
	types.StepTypeUnwrap:           types.RoutingUnwrap,
	types.StepTypeChained:          types.RoutingChained,
	types.StepTypeQuickroute:       types.RoutingQuickroute,
}

// RoutingFor resolves the routing of a step type. It fails with PLAN_001 for
// an unmapped type; callers must treat that as a programmer error.
func RoutingFor(stepType types.StepType) (types.Routing, error) {
	routing, perr := routingFor(stepType)
	if perr != nil {
		return "", perr
	}
	return routing, nil
}

// routingFor returns the concrete error so callers can attach details.
func routingFor(stepType types.StepType) (types.Routing, *perrors.PlanError) {
	routing, ok := stepTypeRouting[stepType]
	if !ok {
		return "", perrors.PlanTaxonomyDrift(string(stepType))
	}
	return routing, nil
}

// Result is the canonical part of a plan derived from one backend response.
type Result struct {
	Steps            []types.PlanStep
	CurrentStepIndex int
	InputChainID     int64
	ProofPending     bool
}

// Transform converts a raw backend plan. Identical input always yields a
// deep-equal Result.
func Transform(resp *remote.PlanResponse) (*Result, error) {
	if resp == nil {
		return nil, perrors.PlanMalformed("", "empty response")
	}
	if resp.CurrentStepIndex < 0 || resp.CurrentStepIndex > len(resp.Steps) {
		return nil, perrors.PlanMalformed(resp.PlanID,
			fmt.Sprintf("current step index %d out of range for %d steps", resp.CurrentStepIndex, len(resp.Steps))).
			WithDetail("current_step_index", resp.CurrentStepIndex)
	}

	steps := make([]types.PlanStep, len(resp.Steps))
	for i, raw := range resp.Steps {
		stepType := types.StepType(raw.StepType)
		routing, perr := routingFor(stepType)
		if perr != nil {
			return nil, perr.
				WithDetail("plan_id", resp.PlanID).
				WithDetail("step_index", i)
		}

		steps[i] = types.PlanStep{
			PlanID:    resp.PlanID,
			StepIndex: i,
			StepType:  stepType,
			Status:    status.FromStep(raw),
			Routing:   routing,
			Proof:     proofFor(routing, raw.Hash),
			Slippage:  copyFloat(raw.Slippage),
			TokenIn:   types.Token{ChainID: raw.TokenIn.ChainID, Address: raw.TokenIn.Address},
			TokenOut:  types.Token{ChainID: raw.TokenOut.ChainID, Address: raw.TokenOut.Address},
			AmountIn:  raw.AmountIn,
			AmountOut: raw.AmountOut,
		}
	}

	result := &Result{
		Steps:            steps,
		CurrentStepIndex: resp.CurrentStepIndex,
		InputChainID:     resp.InputChainID,
	}
	if resp.CurrentStepIndex < len(steps) {
		cur := steps[resp.CurrentStepIndex]
		result.ProofPending = cur.Status == types.StepStatusAwaitingAction && cur.Submitted()
	}
	return result, nil
}

// ToPlan converts a raw backend plan into a full Plan, keeping a private copy
// of the response.
func ToPlan(resp *remote.PlanResponse) (*types.Plan, error) {
	res, err := Transform(resp)
	if err != nil {
		return nil, err
	}
	return &types.Plan{
		PlanID:           resp.PlanID,
		Steps:            res.Steps,
		CurrentStepIndex: res.CurrentStepIndex,
		InputChainID:     res.InputChainID,
		ProofPending:     res.ProofPending,
		Response:         resp.Clone(),
	}, nil
}

func proofFor(routing types.Routing, hash string) types.StepProof {
	if hash == "" {
		return nil
	}
	if routing.IsUniswapX() {
		return types.UniswapXProof{OrderID: hash}
	}
	return types.ClassicProof{TxHash: hash}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

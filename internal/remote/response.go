// Package remote holds the plan service wire types and its HTTP client.
//
// Only the fields the client needs are modelled. The backend is authoritative
// for step ordering and completion; nothing here interprets the values.
package remote

// PlanStatus is the plan-level lifecycle reported by the backend.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusFailed    PlanStatus = "FAILED"
	PlanStatusExpired   PlanStatus = "EXPIRED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// StopsTracking returns true if the backend has given up on the plan, so
// polling it further cannot produce a new status.
func (s PlanStatus) StopsTracking() bool {
	return s == PlanStatusExpired || s == PlanStatusCancelled
}

// QueryStepStatus is the step status vocabulary of the data query API.
type QueryStepStatus string

const (
	QueryStepQueued         QueryStepStatus = "queued"
	QueryStepActionRequired QueryStepStatus = "action_required"
	QueryStepInProgress     QueryStepStatus = "in_progress"
	QueryStepSucceeded      QueryStepStatus = "succeeded"
	QueryStepFailed         QueryStepStatus = "failed"
)

// SessionStepStatus is the step status vocabulary of the execution session API.
type SessionStepStatus string

const (
	SessionStepUnspecified    SessionStepStatus = "STEP_STATUS_UNSPECIFIED"
	SessionStepNotReady       SessionStepStatus = "NOT_READY"
	SessionStepAwaitingAction SessionStepStatus = "AWAITING_ACTION"
	SessionStepActive         SessionStepStatus = "ACTIVE"
	SessionStepComplete       SessionStepStatus = "COMPLETE"
	SessionStepError          SessionStepStatus = "ERROR"
)

// TokenRef identifies a token on a chain.
type TokenRef struct {
	ChainID int64  `json:"chainId" yaml:"chain_id"`
	Address string `json:"address" yaml:"address"`
}

// StepResponse is one raw plan step.
type StepResponse struct {
	StepType      string            `json:"stepType" yaml:"step_type"`
	Status        QueryStepStatus   `json:"status,omitempty" yaml:"status,omitempty"`
	SessionStatus SessionStepStatus `json:"sessionStatus,omitempty" yaml:"session_status,omitempty"`

	// Hash is a tx hash for classic-family steps and an order id for
	// UniswapX-family steps.
	Hash string `json:"hash,omitempty" yaml:"hash,omitempty"`

	Slippage  *float64 `json:"slippage,omitempty" yaml:"slippage,omitempty"`
	TokenIn   TokenRef `json:"tokenIn" yaml:"token_in"`
	TokenOut  TokenRef `json:"tokenOut" yaml:"token_out"`
	AmountIn  string   `json:"amountIn,omitempty" yaml:"amount_in,omitempty"`
	AmountOut string   `json:"amountOut,omitempty" yaml:"amount_out,omitempty"`
}

// PlanResponse is the raw plan returned by the backend.
type PlanResponse struct {
	PlanID           string         `json:"planId" yaml:"plan_id"`
	Status           PlanStatus     `json:"status" yaml:"status"`
	InputChainID     int64          `json:"inputChainId" yaml:"input_chain_id"`
	CurrentStepIndex int            `json:"currentStepIndex" yaml:"current_step_index"`
	Steps            []StepResponse `json:"steps" yaml:"steps"`
}

// Clone returns a deep copy of the response.
func (r *PlanResponse) Clone() *PlanResponse {
	if r == nil {
		return nil
	}
	out := *r
	if r.Steps != nil {
		out.Steps = make([]StepResponse, len(r.Steps))
		for i, step := range r.Steps {
			if step.Slippage != nil {
				v := *step.Slippage
				step.Slippage = &v
			}
			out.Steps[i] = step
		}
	}
	return &out
}

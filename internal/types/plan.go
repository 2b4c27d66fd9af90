// Package types holds the canonical in-memory plan model.
package types

import (
	"time"

	"github.com/meow-stack/chainplan/internal/remote"
)

// Plan is a backend-tracked, ordered sequence of steps representing one
// user-authorized multi-step action. It is also the wholesale value held in
// the active plan slot of the store.
//
// Invariant: 0 <= CurrentStepIndex <= len(Steps); steps before
// CurrentStepIndex are terminal; CurrentStepIndex == len(Steps) means the
// plan is complete.
type Plan struct {
	PlanID string

	// Steps are index-stable: Steps[i].StepIndex == i.
	Steps []PlanStep

	// CurrentStepIndex is taken verbatim from the backend.
	CurrentStepIndex int

	InputChainID int64

	// ProofPending is true while the current step carries a proof the
	// backend has not yet acted on.
	ProofPending bool

	// Response is the raw backend plan, for fields not modelled above.
	Response *remote.PlanResponse
}

// IsComplete returns true if every step has been processed.
func (p *Plan) IsComplete() bool {
	return p.CurrentStepIndex >= len(p.Steps)
}

// CurrentStep returns the first non-terminal step. It returns false when the
// plan is complete or the index is out of range.
func (p *Plan) CurrentStep() (*PlanStep, bool) {
	if p.CurrentStepIndex < 0 || p.CurrentStepIndex >= len(p.Steps) {
		return nil, false
	}
	return &p.Steps[p.CurrentStepIndex], true
}

// HasFailed returns true if any step failed.
func (p *Plan) HasFailed() bool {
	for i := range p.Steps {
		if p.Steps[i].Status == StepStatusFailed {
			return true
		}
	}
	return false
}

// BackgroundedPlan marks a plan as still executing but no longer foreground.
type BackgroundedPlan struct {
	PlanID         string
	BackgroundedAt time.Time

	// LastKnown is the last snapshot seen for the plan, if any.
	LastKnown *Plan
}

package updater

import (
	"log/slog"

	"github.com/meow-stack/chainplan/internal/types"
)

// CompletionReporter logs steps that completed between two snapshots of a
// plan. A completed step without a proof cannot be correlated on chain; that
// is logged as an error and otherwise ignored.
type CompletionReporter struct {
	logger *slog.Logger
}

// NewCompletionReporter creates a reporter.
func NewCompletionReporter(logger *slog.Logger) *CompletionReporter {
	return &CompletionReporter{logger: logger}
}

// Observe reports steps that are Success in next but were not in prev. It
// returns the indices of the newly completed steps.
func (r *CompletionReporter) Observe(prev, next *types.Plan) []int {
	if next == nil {
		return nil
	}

	var completed []int
	for i := range next.Steps {
		step := &next.Steps[i]
		if step.Status != types.StepStatusSuccess {
			continue
		}
		if prev != nil && prev.PlanID == next.PlanID && i < len(prev.Steps) &&
			prev.Steps[i].Status == types.StepStatusSuccess {
			continue
		}
		completed = append(completed, i)

		if !step.Submitted() {
			r.logger.Error("completed step has no proof",
				"plan_id", next.PlanID,
				"step_index", i,
				"step_type", step.StepType,
			)
			continue
		}
		r.logger.Info("plan step completed",
			"plan_id", next.PlanID,
			"step_index", i,
			"routing", step.Routing,
			"proof", step.Proof.Reference(),
		)
	}
	return completed
}

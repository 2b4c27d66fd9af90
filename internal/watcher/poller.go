package watcher

import (
	"context"
	"reflect"

	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/transform"
	"github.com/meow-stack/chainplan/internal/types"
)

// Refresher is the remote call behind RemotePoller.
type Refresher interface {
	RefreshPlan(ctx context.Context, planID string) (*remote.PlanResponse, error)
}

// RemotePoller polls plans through the plan service.
type RemotePoller struct {
	client Refresher
}

// NewRemotePoller creates a poller over client.
func NewRemotePoller(client Refresher) *RemotePoller {
	return &RemotePoller{client: client}
}

// Poll implements Poller. An unchanged plan yields an empty result.
func (p *RemotePoller) Poll(ctx context.Context, known *types.Plan) (PollResult, error) {
	resp, err := p.client.RefreshPlan(ctx, known.PlanID)
	if err != nil {
		return PollResult{}, err
	}
	if resp.Status.StopsTracking() {
		return PollResult{StopTracking: true}, nil
	}

	plan, err := transform.ToPlan(resp)
	if err != nil {
		return PollResult{}, err
	}
	if sameStatus(known, plan) {
		return PollResult{}, nil
	}
	return PollResult{Updated: plan}, nil
}

// sameStatus compares the canonical parts of two snapshots. The raw response
// is ignored since fields outside the model do not change plan status.
func sameStatus(a, b *types.Plan) bool {
	return a.CurrentStepIndex == b.CurrentStepIndex &&
		a.ProofPending == b.ProofPending &&
		a.InputChainID == b.InputChainID &&
		reflect.DeepEqual(a.Steps, b.Steps)
}

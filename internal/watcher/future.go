package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/meow-stack/chainplan/internal/types"
)

// PlanFuture is the pending result of WaitForPlanStatus. It resolves exactly
// once: with the next known plan snapshot, or with nil when the outcome could
// not be determined in time. A nil result is not a failure.
type PlanFuture struct {
	planID string
	done   chan struct{}
	once   sync.Once
	plan   *types.Plan

	// timer is guarded by Watcher.mu.
	timer *time.Timer
}

func newPlanFuture(planID string) *PlanFuture {
	return &PlanFuture{planID: planID, done: make(chan struct{})}
}

// PlanID returns the plan this future waits on.
func (f *PlanFuture) PlanID() string {
	return f.planID
}

// Done is closed once the future has resolved.
func (f *PlanFuture) Done() <-chan struct{} {
	return f.done
}

// Result returns the resolved plan. It returns nil before resolution and
// after a timeout.
func (f *PlanFuture) Result() *types.Plan {
	select {
	case <-f.done:
		return f.plan
	default:
		return nil
	}
}

// Wait blocks until the future resolves or ctx is done.
func (f *PlanFuture) Wait(ctx context.Context) (*types.Plan, error) {
	select {
	case <-f.done:
		return f.plan, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// complete resolves the future. Later calls are no-ops.
func (f *PlanFuture) complete(plan *types.Plan) bool {
	resolved := false
	f.once.Do(func() {
		f.plan = plan
		close(f.done)
		resolved = true
	})
	return resolved
}

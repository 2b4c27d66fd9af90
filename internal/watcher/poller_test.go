package watcher

import (
	"context"
	"errors"
	"testing"

	perrors "github.com/meow-stack/chainplan/internal/errors"
	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/testutil"
	"github.com/meow-stack/chainplan/internal/transform"
)

type fakeRefresher struct {
	resp *remote.PlanResponse
	err  error
}

func (f *fakeRefresher) RefreshPlan(ctx context.Context, planID string) (*remote.PlanResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp.Clone(), nil
}

func TestRemotePoller(t *testing.T) {
	known, err := transform.ToPlan(testutil.ThreeStepPlan("plan-1"))
	if err != nil {
		t.Fatalf("ToPlan() error = %v", err)
	}

	t.Run("unchanged", func(t *testing.T) {
		p := NewRemotePoller(&fakeRefresher{resp: testutil.ThreeStepPlan("plan-1")})
		res, err := p.Poll(context.Background(), known)
		if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if res.Updated != nil || res.StopTracking {
			t.Errorf("Poll() = %+v, want empty result", res)
		}
	})

	t.Run("updated", func(t *testing.T) {
		resp := testutil.ThreeStepPlan("plan-1")
		resp.Steps[2].Status = remote.QueryStepSucceeded
		resp.Steps[2].Hash = "0xswap"
		resp.CurrentStepIndex = 3
		res, err := NewRemotePoller(&fakeRefresher{resp: resp}).Poll(context.Background(), known)
		if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if res.Updated == nil || !res.Updated.IsComplete() {
			t.Errorf("Poll() = %+v, want complete plan", res)
		}
	})

	t.Run("stop tracking", func(t *testing.T) {
		for _, status := range []remote.PlanStatus{remote.PlanStatusExpired, remote.PlanStatusCancelled} {
			resp := testutil.ThreeStepPlan("plan-1")
			resp.Status = status
			res, err := NewRemotePoller(&fakeRefresher{resp: resp}).Poll(context.Background(), known)
			if err != nil || !res.StopTracking {
				t.Errorf("Poll() with %s = (%+v, %v), want stop tracking", status, res, err)
			}
		}
	})

	t.Run("remote error", func(t *testing.T) {
		boom := errors.New("timeout")
		_, err := NewRemotePoller(&fakeRefresher{err: boom}).Poll(context.Background(), known)
		if !errors.Is(err, boom) {
			t.Errorf("Poll() error = %v, want %v", err, boom)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		resp := testutil.ThreeStepPlan("plan-1")
		resp.CurrentStepIndex = 7
		_, err := NewRemotePoller(&fakeRefresher{resp: resp}).Poll(context.Background(), known)
		if !perrors.HasCode(err, perrors.CodePlanMalformed) {
			t.Errorf("Poll() error = %v, want %s", err, perrors.CodePlanMalformed)
		}
	})
}

package updater

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/meow-stack/chainplan/internal/config"
	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/store"
	"github.com/meow-stack/chainplan/internal/testutil"
	"github.com/meow-stack/chainplan/internal/transform"
	"github.com/meow-stack/chainplan/internal/types"
)

type fakeRefresher struct {
	mu     sync.Mutex
	resp   *remote.PlanResponse
	err    error
	calls  int
	during func()
}

func (f *fakeRefresher) RefreshPlan(ctx context.Context, planID string) (*remote.PlanResponse, error) {
	f.mu.Lock()
	f.calls++
	resp, err, during := f.resp, f.err, f.during
	f.mu.Unlock()

	if during != nil {
		during()
	}
	if err != nil {
		return nil, err
	}
	out := resp.Clone()
	out.PlanID = planID
	return out, nil
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func completedPlan(planID string) *remote.PlanResponse {
	resp := testutil.ThreeStepPlan(planID)
	resp.Steps[2].Status = remote.QueryStepSucceeded
	resp.Steps[2].Hash = "0xswap"
	resp.CurrentStepIndex = 3
	return resp
}

func setup(t *testing.T, client *fakeRefresher) (*Updater, *store.Store, *testutil.TestLogger) {
	t.Helper()
	tl := testutil.NewTestLogger(t)
	st := store.New(testutil.DiscardLogger())
	u := New(config.UpdaterConfig{Interval: time.Second}, st, client, tl.Logger)
	return u, st, tl
}

func activate(t *testing.T, st *store.Store, resp *remote.PlanResponse) {
	t.Helper()
	plan, err := transform.ToPlan(resp)
	if err != nil {
		t.Fatalf("ToPlan() error = %v", err)
	}
	st.SetActivePlan(plan)
}

func TestRefresh_NoActivePlan(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("plan-1")}
	u, _, _ := setup(t, client)

	got, err := u.Refresh(context.Background())
	if err != nil || got != OutcomeNoActivePlan {
		t.Errorf("Refresh() = (%s, %v), want no_active_plan", got, err)
	}
	if client.Calls() != 0 {
		t.Error("no request should be made without an active plan")
	}
}

func TestRefresh_Updates(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("plan-1")}
	u, st, tl := setup(t, client)
	activate(t, st, testutil.ThreeStepPlan("plan-1"))

	got, err := u.Refresh(context.Background())
	if err != nil || got != OutcomeUpdated {
		t.Fatalf("Refresh() = (%s, %v), want updated", got, err)
	}
	if st.ActivePlan() != nil {
		t.Error("completed plan should leave the active slot")
	}
	tl.AssertContains(t, "plan step completed")
	tl.AssertNoErrors(t)

	got, _ = u.Refresh(context.Background())
	if got != OutcomeNoActivePlan {
		t.Errorf("second Refresh() = %s, want no_active_plan", got)
	}
	if client.Calls() != 1 {
		t.Errorf("backend calls = %d, want 1", client.Calls())
	}
}

func TestRefresh_InProgressPlanStaysActive(t *testing.T) {
	resp := testutil.ThreeStepPlan("plan-1")
	resp.Steps[2].Status = remote.QueryStepInProgress
	resp.Steps[2].Hash = "0xswap"
	client := &fakeRefresher{resp: resp}
	u, st, _ := setup(t, client)
	activate(t, st, testutil.ThreeStepPlan("plan-1"))

	if got, err := u.Refresh(context.Background()); err != nil || got != OutcomeUpdated {
		t.Fatalf("Refresh() = (%s, %v), want updated", got, err)
	}
	if st.ActivePlan() == nil || st.ActivePlan().IsComplete() {
		t.Error("unfinished plan should stay active")
	}
}

func TestRefresh_OnUpdateSeesFinishedPlan(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("plan-1")}
	u, st, _ := setup(t, client)
	activate(t, st, testutil.ThreeStepPlan("plan-1"))

	var seen []*types.Plan
	u.OnUpdate(func(p *types.Plan) { seen = append(seen, p) })

	if _, err := u.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(seen) != 1 || !seen[0].IsComplete() {
		t.Fatalf("OnUpdate saw %d plans, want one complete plan", len(seen))
	}
}

func TestTick_TaxonomyDriftLogsError(t *testing.T) {
	resp := testutil.ThreeStepPlan("plan-1")
	resp.Steps[1].StepType = "TELEPORT"
	u, st, tl := setup(t, &fakeRefresher{resp: resp})
	activate(t, st, testutil.ThreeStepPlan("plan-1"))

	u.tick(context.Background())

	if n := tl.CountLevel(slog.LevelError); n != 1 {
		t.Errorf("error entries = %d, want 1", n)
	}
	if n := len(tl.EntriesContaining("active plan refresh failed")); n != 0 {
		t.Errorf("drift logged as a transient failure %d times", n)
	}
	tl.AssertErrorContains(t, "unmapped step type")
}

func TestTick_TransientFailureWarns(t *testing.T) {
	u, st, tl := setup(t, &fakeRefresher{err: errors.New("backend down")})
	activate(t, st, testutil.ThreeStepPlan("plan-1"))

	u.tick(context.Background())

	tl.AssertNoErrors(t)
	tl.AssertContains(t, "active plan refresh failed")
}

func TestRefresh_FinishedPlanLeavesBackground(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("plan-1")}
	u, st, _ := setup(t, client)
	activate(t, st, testutil.ThreeStepPlan("plan-1"))
	st.BackgroundPlan("plan-1", st.ActivePlan())

	if got, err := u.Refresh(context.Background()); err != nil || got != OutcomeUpdated {
		t.Fatalf("Refresh() = (%s, %v), want updated", got, err)
	}
	if _, ok := st.BackgroundedPlans()["plan-1"]; ok {
		t.Error("completed plan should be dropped from the background set")
	}
}

func TestRefresh_SkipsWhenLocked(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("plan-1")}
	u, st, _ := setup(t, client)
	activate(t, st, testutil.ThreeStepPlan("plan-1"))
	st.LockPlanForExecution("plan-1")

	got, err := u.Refresh(context.Background())
	if err != nil || got != OutcomeLocked {
		t.Errorf("Refresh() = (%s, %v), want locked", got, err)
	}
	if client.Calls() != 0 {
		t.Error("locked plan should not be refreshed")
	}
	if st.ActivePlan().IsComplete() {
		t.Error("locked plan was overwritten")
	}
}

func TestRefresh_LockedDuringRequest(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("plan-1")}
	u, st, _ := setup(t, client)
	activate(t, st, testutil.ThreeStepPlan("plan-1"))
	client.during = func() { st.LockPlanForExecution("plan-1") }

	got, err := u.Refresh(context.Background())
	if err != nil || got != OutcomeLocked {
		t.Errorf("Refresh() = (%s, %v), want locked", got, err)
	}
	if st.ActivePlan().IsComplete() {
		t.Error("refresh result applied after the plan got locked")
	}
}

func TestRefresh_SupersededDuringRequest(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("plan-1")}
	u, st, _ := setup(t, client)
	activate(t, st, testutil.ThreeStepPlan("plan-1"))
	client.during = func() { activate(t, st, testutil.ThreeStepPlan("plan-2")) }

	got, err := u.Refresh(context.Background())
	if err != nil || got != OutcomeSuperseded {
		t.Errorf("Refresh() = (%s, %v), want superseded", got, err)
	}
	if st.ActivePlan().PlanID != "plan-2" {
		t.Error("newer active plan was overwritten")
	}
}

func TestRefresh_StaleLockDoesNotBlock(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("plan-2")}
	u, st, _ := setup(t, client)
	st.LockPlanForExecution("plan-1")
	activate(t, st, testutil.ThreeStepPlan("plan-2"))

	got, err := u.Refresh(context.Background())
	if err != nil || got != OutcomeUpdated {
		t.Errorf("Refresh() = (%s, %v), want updated", got, err)
	}
}

func TestRefresh_Error(t *testing.T) {
	boom := errors.New("backend down")
	u, st, _ := setup(t, &fakeRefresher{err: boom})
	activate(t, st, testutil.ThreeStepPlan("plan-1"))

	if _, err := u.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Refresh() error = %v, want %v", err, boom)
	}
}

func TestResume(t *testing.T) {
	client := &fakeRefresher{resp: testutil.ThreeStepPlan("x")}
	u, st, _ := setup(t, client)
	bg, _ := transform.ToPlan(testutil.ThreeStepPlan("plan-1"))
	st.BackgroundPlan("plan-1", bg)

	plan, err := u.Resume(context.Background(), "plan-1")
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if plan.PlanID != "plan-1" || st.ActivePlan() != plan {
		t.Error("resumed plan should become the active plan")
	}
	if _, ok := st.BackgroundedPlans()["plan-1"]; ok {
		t.Error("resumed plan should leave the backgrounded set")
	}
}

func TestResume_FinishedPlan(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("x")}
	u, st, _ := setup(t, client)
	bg, _ := transform.ToPlan(testutil.ThreeStepPlan("plan-1"))
	st.BackgroundPlan("plan-1", bg)

	plan, err := u.Resume(context.Background(), "plan-1")
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if !plan.IsComplete() {
		t.Error("Resume() should return the refreshed plan")
	}
	if st.ActivePlan() != nil {
		t.Error("finished plan should not take the active slot")
	}
	if _, ok := st.BackgroundedPlans()["plan-1"]; ok {
		t.Error("finished plan should leave the backgrounded set")
	}
}

func TestResume_Locked(t *testing.T) {
	client := &fakeRefresher{resp: testutil.ThreeStepPlan("x")}
	u, st, _ := setup(t, client)
	activate(t, st, testutil.ThreeStepPlan("driving"))
	st.LockPlanForExecution("driving")

	if _, err := u.Resume(context.Background(), "plan-1"); err == nil {
		t.Fatal("Resume() should refuse while the active plan is locked")
	}
	if st.ActivePlan().PlanID != "driving" {
		t.Error("locked active plan was replaced")
	}
}

func TestStartStop(t *testing.T) {
	client := &fakeRefresher{resp: completedPlan("plan-1")}
	u, st, _ := setup(t, client)
	activate(t, st, testutil.ThreeStepPlan("plan-1"))

	if err := u.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := u.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for client.Calls() == 0 || st.ActivePlan() != nil {
		if time.Now().After(deadline) {
			t.Fatal("scheduled refresh never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
	u.Stop()
	u.Stop()
}

func TestCompletionReporter(t *testing.T) {
	tl := testutil.NewTestLogger(t)
	r := NewCompletionReporter(tl.Logger)

	prev := testutil.Plan("p", 1,
		testutil.Step(0, types.RoutingClassic, types.StepStatusSuccess, types.ClassicProof{TxHash: "0xa"}),
		testutil.Step(1, types.RoutingBridge, types.StepStatusPending, types.ClassicProof{TxHash: "0xb"}),
		testutil.Step(2, types.RoutingWrap, types.StepStatusQueued, nil),
	)
	next := testutil.Plan("p", 3,
		testutil.Step(0, types.RoutingClassic, types.StepStatusSuccess, types.ClassicProof{TxHash: "0xa"}),
		testutil.Step(1, types.RoutingBridge, types.StepStatusSuccess, types.ClassicProof{TxHash: "0xb"}),
		testutil.Step(2, types.RoutingWrap, types.StepStatusSuccess, nil),
	)

	got := r.Observe(prev, next)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Observe() = %v, want [1 2]", got)
	}
	tl.AssertErrorContains(t, "completed step has no proof")
}

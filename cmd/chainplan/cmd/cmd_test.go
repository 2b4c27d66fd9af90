package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	perrors "github.com/meow-stack/chainplan/internal/errors"
	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/status"
	"github.com/meow-stack/chainplan/internal/testutil"
	"github.com/meow-stack/chainplan/internal/types"
)

// fakeBackend serves one plan. Refreshes return next once it is set.
type fakeBackend struct {
	mu        sync.Mutex
	plan      *remote.PlanResponse
	next      *remote.PlanResponse
	cancelled []remote.CancelStepRequest
}

func newFakeBackend(t *testing.T, plan *remote.PlanResponse) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{plan: plan}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/plans", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		json.NewEncoder(w).Encode(map[string][]string{"planIds": {fb.plan.PlanID}})
	})
	mux.HandleFunc("GET /v1/plans/{id}", fb.serve(false))
	mux.HandleFunc("POST /v1/plans/{id}/refresh", fb.serve(true))
	mux.HandleFunc("POST /v1/plans/{id}/steps/{idx}/cancel", func(w http.ResponseWriter, r *http.Request) {
		var req remote.CancelStepRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fb.mu.Lock()
		fb.cancelled = append(fb.cancelled, req)
		fb.mu.Unlock()
		json.NewEncoder(w).Encode(remote.CancelStepResponse{CancelTxHash: "0xcancel"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) cancelRequests() []remote.CancelStepRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]remote.CancelStepRequest(nil), fb.cancelled...)
}

func (fb *fakeBackend) serve(refresh bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		if r.PathValue("id") != fb.plan.PlanID {
			http.NotFound(w, r)
			return
		}
		if refresh && fb.next != nil {
			fb.plan = fb.next
		}
		json.NewEncoder(w).Encode(fb.plan)
	}
}

// fastWorkspace creates a workspace whose watcher polls quickly.
func fastWorkspace(t *testing.T, backendURL string) string {
	t.Helper()
	dir := testutil.NewTestWorkspace(t, backendURL)
	f, err := os.OpenFile(filepath.Join(dir, ".chainplan", "config.toml"), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	f.WriteString(`
[watcher]
initial_delay = "1ms"
poll_interval = "5ms"
plan_max_age = "2s"
`)
	return dir
}

// execute runs the root command in dir and returns what it printed.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	statusJSON, statusQuiet, statusNoColor = false, false, true
	cancelSubmit = false
	plansRemote, plansQuiet, plansNoColor = false, false, true
	watchNoColor, resumeNoColor = true, true

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--workdir", dir}, args...))
	t.Cleanup(func() { workDir = "" })

	err := rootCmd.Execute()
	return out.String(), err
}

func inFlightPlan(planID string) *remote.PlanResponse {
	return testutil.RawPlan(planID, 1,
		testutil.RawStep(types.StepTypeApprovalTxn, remote.QueryStepSucceeded, "0xapprove"),
		testutil.RawStep(types.StepTypeClassic, remote.QueryStepInProgress, "0xswap"),
	)
}

func completedPlan(planID string) *remote.PlanResponse {
	return testutil.RawPlan(planID, 2,
		testutil.RawStep(types.StepTypeApprovalTxn, remote.QueryStepSucceeded, "0xapprove"),
		testutil.RawStep(types.StepTypeClassic, remote.QueryStepSucceeded, "0xswap"),
	)
}

func TestRootCmdFlags(t *testing.T) {
	for _, name := range []string{"verbose", "workdir"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag not found", name)
		}
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"status", "watch", "resume", "cancel", "slippage", "plans"}
	for _, name := range want {
		found := false
		for _, sub := range rootCmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %q to be a subcommand", name)
		}
	}
}

func TestSlippageCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "slippage", "0.5", "0.25")
	if err != nil {
		t.Fatalf("slippage error = %v", err)
	}
	if out != "0.74875\n" {
		t.Errorf("slippage output = %q, want %q", out, "0.74875\n")
	}

	if _, err := execute(t, dir, "slippage", "abc"); err == nil {
		t.Error("expected error for non-numeric slippage")
	}
	if _, err := execute(t, dir, "slippage", "100"); err == nil {
		t.Error("expected error for slippage of 100")
	}
}

func TestStatusCommand_JSON(t *testing.T) {
	_, srv := newFakeBackend(t, testutil.ThreeStepPlan("plan-1"))
	dir := testutil.NewTestWorkspace(t, srv.URL)

	out, err := execute(t, dir, "status", "plan-1", "--json")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}

	var summary status.PlanSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decoding status output: %v\n%s", err, out)
	}
	if summary.PlanID != "plan-1" || summary.Role != status.RoleRemote {
		t.Errorf("summary = %+v", summary)
	}
	if summary.CurrentStepIndex != 2 || summary.StepStats.Success != 2 || summary.StepStats.AwaitingAction != 1 {
		t.Errorf("summary progress = index %d, stats %+v", summary.CurrentStepIndex, summary.StepStats)
	}
	if summary.Slippage == nil || *summary.Slippage != 0.5 {
		t.Errorf("Slippage = %v, want 0.5", summary.Slippage)
	}
}

func TestStatusCommand_NotFound(t *testing.T) {
	_, srv := newFakeBackend(t, testutil.ThreeStepPlan("plan-1"))
	dir := testutil.NewTestWorkspace(t, srv.URL)

	_, err := execute(t, dir, "status", "missing")
	if !perrors.HasCode(err, perrors.CodePlanNotFound) {
		t.Errorf("status error = %v, want %s", err, perrors.CodePlanNotFound)
	}
}

func TestCancelCommand_PrintsRequest(t *testing.T) {
	fb, srv := newFakeBackend(t, inFlightPlan("plan-1"))
	dir := testutil.NewTestWorkspace(t, srv.URL)

	out, err := execute(t, dir, "cancel", "plan-1")
	if err != nil {
		t.Fatalf("cancel error = %v", err)
	}

	var req cancelRequestJSON
	if err := json.Unmarshal([]byte(out), &req); err != nil {
		t.Fatalf("decoding cancel output: %v\n%s", err, out)
	}
	if req.StepIndex != 1 || req.Mechanism != "nonce_replacement" || req.TxHash != "0xswap" || req.ChainID != 1 {
		t.Errorf("printed request = %+v", req)
	}
	if len(fb.cancelRequests()) != 0 {
		t.Error("dry run should not reach the backend")
	}
}

func TestCancelCommand_Submit(t *testing.T) {
	fb, srv := newFakeBackend(t, inFlightPlan("plan-1"))
	dir := testutil.NewTestWorkspace(t, srv.URL)

	out, err := execute(t, dir, "cancel", "plan-1", "--submit")
	if err != nil {
		t.Fatalf("cancel error = %v", err)
	}
	if !strings.Contains(out, "0xcancel") {
		t.Errorf("cancel output = %q, want cancel tx hash", out)
	}
	if got := fb.cancelRequests(); len(got) != 1 || got[0].TxHash != "0xswap" {
		t.Errorf("backend received %+v", got)
	}

	out, err = execute(t, dir, "plans")
	if err != nil {
		t.Fatalf("plans error = %v", err)
	}
	if !strings.Contains(out, "Cancelled:\n  plan-1") {
		t.Errorf("plans output should list the cancelled plan:\n%s", out)
	}
}

func TestCancelCommand_NothingToCancel(t *testing.T) {
	_, srv := newFakeBackend(t, testutil.ThreeStepPlan("plan-1"))
	dir := testutil.NewTestWorkspace(t, srv.URL)

	_, err := execute(t, dir, "cancel", "plan-1")
	if !perrors.HasCode(err, perrors.CodeCancelNothingToCancel) {
		t.Errorf("cancel error = %v, want %s", err, perrors.CodeCancelNothingToCancel)
	}
}

func TestWatchCommand(t *testing.T) {
	fb, srv := newFakeBackend(t, inFlightPlan("plan-1"))
	fb.next = completedPlan("plan-1")
	dir := fastWorkspace(t, srv.URL)

	out, err := execute(t, dir, "watch", "plan-1")
	if err != nil {
		t.Fatalf("watch error = %v", err)
	}
	if !strings.Contains(out, "✓ plan-1") || !strings.Contains(out, "Status:   complete") {
		t.Errorf("watch output = %q, want completed plan", out)
	}

	// Completed plans are dropped from the background set.
	out, err = execute(t, dir, "plans")
	if err != nil {
		t.Fatalf("plans error = %v", err)
	}
	if !strings.Contains(out, "No tracked plans.") {
		t.Errorf("plans output = %q, want no tracked plans", out)
	}
}

func TestWatchCommand_NotPollable(t *testing.T) {
	_, srv := newFakeBackend(t, completedPlan("plan-1"))
	dir := fastWorkspace(t, srv.URL)

	out, err := execute(t, dir, "watch", "plan-1")
	if err != nil {
		t.Fatalf("watch error = %v", err)
	}
	if !strings.Contains(out, "plan-1") {
		t.Errorf("watch output = %q, want the local snapshot", out)
	}
}

func TestResumeCommand_CompletedPlan(t *testing.T) {
	_, srv := newFakeBackend(t, completedPlan("plan-1"))
	dir := testutil.NewTestWorkspace(t, srv.URL)

	out, err := execute(t, dir, "resume", "plan-1")
	if err != nil {
		t.Fatalf("resume error = %v", err)
	}
	if !strings.Contains(out, "✓ complete") || strings.Contains(out, "Role:     active") {
		t.Errorf("resume output = %q, want a complete plan outside the active slot", out)
	}

	// The driver lock is released on exit.
	if _, err := os.Stat(filepath.Join(dir, ".chainplan", "state", "plan-plan-1.lock")); !os.IsNotExist(err) {
		t.Errorf("driver lock file left behind: %v", err)
	}

	out, err = execute(t, dir, "plans", "--quiet")
	if err != nil {
		t.Fatalf("plans error = %v", err)
	}
	if !strings.Contains(out, "No tracked plans.") {
		t.Errorf("plans output = %q, want the finished plan untracked", out)
	}
}

func TestPlansCommand_Remote(t *testing.T) {
	_, srv := newFakeBackend(t, completedPlan("plan-1"))
	dir := testutil.NewTestWorkspace(t, srv.URL)

	out, err := execute(t, dir, "plans", "--remote")
	if err != nil {
		t.Fatalf("plans error = %v", err)
	}
	if out != "plan-1\n" {
		t.Errorf("plans --remote output = %q", out)
	}
}

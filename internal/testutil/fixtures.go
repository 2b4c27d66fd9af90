// Package testutil provides fixtures and helpers shared by chainplan tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meow-stack/chainplan/internal/config"
	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/types"
)

// Slippage returns a pointer to v.
func Slippage(v float64) *float64 {
	return &v
}

// RawStep builds a raw step in the data query vocabulary.
func RawStep(stepType types.StepType, status remote.QueryStepStatus, hash string) remote.StepResponse {
	return remote.StepResponse{
		StepType: string(stepType),
		Status:   status,
		Hash:     hash,
		TokenIn:  remote.TokenRef{ChainID: 1, Address: "0xin"},
		TokenOut: remote.TokenRef{ChainID: 1, Address: "0xout"},
		AmountIn: "1000",
	}
}

// RawPlan builds an active raw plan.
func RawPlan(planID string, current int, steps ...remote.StepResponse) *remote.PlanResponse {
	if steps == nil {
		steps = []remote.StepResponse{}
	}
	return &remote.PlanResponse{
		PlanID:           planID,
		Status:           remote.PlanStatusActive,
		InputChainID:     1,
		CurrentStepIndex: current,
		Steps:            steps,
	}
}

// ThreeStepPlan returns approve, bridge, swap with the first two done and the
// swap waiting on the user.
func ThreeStepPlan(planID string) *remote.PlanResponse {
	swap := RawStep(types.StepTypeClassic, remote.QueryStepActionRequired, "")
	swap.Slippage = Slippage(0.5)
	return RawPlan(planID, 2,
		RawStep(types.StepTypeApprovalTxn, remote.QueryStepSucceeded, "0xapprove"),
		RawStep(types.StepTypeBridge, remote.QueryStepSucceeded, "0xbridge"),
		swap,
	)
}

// Step builds a transformed step directly, for tests that do not need the
// transformer.
func Step(index int, routing types.Routing, status types.StepStatus, proof types.StepProof) types.PlanStep {
	return types.PlanStep{
		StepIndex: index,
		Routing:   routing,
		Status:    status,
		Proof:     proof,
	}
}

// Plan builds a plan from already transformed steps, fixing up plan ids and
// step indices.
func Plan(planID string, current int, steps ...types.PlanStep) *types.Plan {
	for i := range steps {
		steps[i].PlanID = planID
		steps[i].StepIndex = i
	}
	return &types.Plan{
		PlanID:           planID,
		Steps:            steps,
		CurrentStepIndex: current,
		InputChainID:     1,
	}
}

// NewTestConfig returns a config rooted in a temp dir with fast timings.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(tmpDir, "state")
	cfg.Paths.LogsDir = filepath.Join(tmpDir, "logs")
	cfg.Logging.Level = config.LogLevelDebug
	cfg.Watcher.InitialDelay = time.Millisecond
	cfg.Watcher.PollInterval = 5 * time.Millisecond
	cfg.Watcher.PlanMaxAge = time.Second

	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
	return cfg
}

// NewTestWorkspace creates a temp dir holding a minimal .chainplan config.
func NewTestWorkspace(t *testing.T, backendURL string) string {
	t.Helper()
	dir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dir, ".chainplan"), 0755); err != nil {
		t.Fatalf("Failed to create workspace: %v", err)
	}
	content := `version = "1"

[backend]
base_url = "` + backendURL + `"
timeout = "2s"

[logging]
level = "debug"
format = "text"
`
	if err := os.WriteFile(filepath.Join(dir, ".chainplan", "config.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return dir
}

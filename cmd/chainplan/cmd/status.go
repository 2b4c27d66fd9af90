package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/meow-stack/chainplan/internal/status"
	"github.com/meow-stack/chainplan/internal/transform"
	"github.com/meow-stack/chainplan/internal/types"
)

// Status command flags
var (
	statusJSON    bool
	statusQuiet   bool
	statusNoColor bool
)

var statusCmd = &cobra.Command{
	Use:   "status <plan-id>",
	Short: "Show plan status",
	Long: `Fetch a plan from the backend and display its normalized status.

Examples:
  chainplan status 7f3c...          # Show step-by-step status
  chainplan status 7f3c... --json   # Output as JSON`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusJSON, "json", "j", false, "Output as JSON")
	statusCmd.Flags().BoolVarP(&statusQuiet, "quiet", "q", false, "Minimal output")
	statusCmd.Flags().BoolVar(&statusNoColor, "no-color", false, "Disable colors")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.fetchPlan(ctx, args[0])
	if err != nil {
		return err
	}

	// Keep the local snapshot of a tracked plan current.
	if a.store.ApplyRefresh(plan) || a.store.UpdateBackgroundedPlan(plan) {
		a.save(ctx)
	}

	return printSummary(cmd.OutOrStdout(), a.summarize(plan), status.FormatOptions{
		NoColor: statusNoColor,
		Quiet:   statusQuiet,
	}, statusJSON)
}

// fetchPlan loads and transforms a plan from the backend.
func (a *app) fetchPlan(ctx context.Context, planID string) (*types.Plan, error) {
	resp, err := a.client.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return transform.ToPlan(resp)
}

// summarize builds a display summary with the store's view of plan.
func (a *app) summarize(plan *types.Plan) *status.PlanSummary {
	sc := status.SummaryContext{Role: status.RoleRemote}
	if active := a.store.ActivePlan(); active != nil && active.PlanID == plan.PlanID {
		sc.Role = status.RoleActive
		sc.Locked = a.store.IsExecutionLocked()
	} else if bp, ok := a.store.BackgroundedPlans()[plan.PlanID]; ok {
		sc.Role = status.RoleBackgrounded
		at := bp.BackgroundedAt
		sc.BackgroundedAt = &at
	}
	return status.NewPlanSummary(plan, sc)
}

func printSummary(w io.Writer, summary *status.PlanSummary, opts status.FormatOptions, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	_, err := fmt.Fprint(w, status.FormatDetailedPlan(summary, opts))
	return err
}

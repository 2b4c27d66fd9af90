package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/meow-stack/chainplan/internal/status"
	"github.com/meow-stack/chainplan/internal/types"
	"github.com/meow-stack/chainplan/internal/watcher"
)

var watchNoColor bool

var watchCmd = &cobra.Command{
	Use:   "watch <plan-id>...",
	Short: "Wait for the next status of running plans",
	Long: `Track plans in the background and print each plan's next known status.

Plans are polled until the backend reports a change, the plan stops being
pollable, or the configured plan_max_age passes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchNoColor, "no-color", false, "Disable colors")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.save(context.Background())

	for _, planID := range args {
		if err := a.track(ctx, planID); err != nil {
			return err
		}
	}

	w := watcher.New(a.cfg.Watcher, a.store.KnownPlan, a.store.ShouldPollPlan,
		watcher.NewRemotePoller(a.client), a.flags, a.logger)
	w.Initialize(ctx)
	defer w.Stop()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	g, gctx := errgroup.WithContext(ctx)
	for _, planID := range args {
		g.Go(func() error {
			plan, err := w.WaitForPlanStatus(planID).Wait(gctx)
			if err != nil {
				return err
			}
			a.recordWatched(plan)
			out.printWatched(planID, plan)
			return nil
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// track seeds the store with a fresh snapshot so the watcher has something to
// compare against.
func (a *app) track(ctx context.Context, planID string) error {
	if a.store.KnownPlan(planID) != nil {
		return nil
	}
	plan, err := a.fetchPlan(ctx, planID)
	if err != nil {
		return err
	}
	if !a.store.BackgroundPlan(planID, plan) {
		a.logger.Info("plan was cancelled, not tracking", "plan_id", planID)
	}
	return nil
}

// recordWatched writes a watch result back to whichever slot holds the plan.
func (a *app) recordWatched(plan *types.Plan) {
	if plan == nil {
		return
	}
	if !a.store.ApplyRefresh(plan) {
		a.store.UpdateBackgroundedPlan(plan)
	}
	if plan.IsComplete() || plan.HasFailed() {
		a.store.ClearFinishedPlan(plan.PlanID)
		a.store.RemoveBackgroundedPlan(plan.PlanID)
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) printWatched(planID string, plan *types.Plan) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if plan == nil {
		fmt.Fprintf(lw.w, "%s: unable to determine status\n", planID)
		return
	}
	summary := status.NewPlanSummary(plan, status.SummaryContext{Role: status.RoleBackgrounded})
	fmt.Fprintln(lw.w, status.FormatPlanList([]*status.PlanSummary{summary}, status.FormatOptions{NoColor: watchNoColor}))
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

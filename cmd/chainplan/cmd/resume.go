package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meow-stack/chainplan/internal/persist"
	"github.com/meow-stack/chainplan/internal/status"
	"github.com/meow-stack/chainplan/internal/types"
	"github.com/meow-stack/chainplan/internal/updater"
)

var resumeNoColor bool

var resumeCmd = &cobra.Command{
	Use:   "resume <plan-id>",
	Short: "Resume following a plan in the foreground",
	Long: `Make a plan the active plan and keep it fresh until it completes. A plan that
already finished is printed and left out of the active slot.

Only one process may drive a plan at a time. Press Ctrl+C to stop following;
the plan is backgrounded and can be resumed later.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().BoolVar(&resumeNoColor, "no-color", false, "Disable colors")
}

func runResume(cmd *cobra.Command, args []string) error {
	planID := args[0]
	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	lock, err := persist.AcquireDriverLock(a.cfg.StateDir(a.dir), planID)
	if err != nil {
		return err
	}
	defer lock.Release()

	u := updater.New(a.cfg.Updater, a.store, a.client, a.logger)
	plan, err := u.Resume(ctx, planID)
	if err != nil {
		return err
	}
	a.save(ctx)

	out := cmd.OutOrStdout()
	opts := status.FormatOptions{NoColor: resumeNoColor}
	fmt.Fprint(out, status.FormatDetailedPlan(a.summarize(plan), opts))

	if plan.IsComplete() || plan.HasFailed() {
		return nil
	}

	updates := make(chan *types.Plan, 1)
	done := make(chan struct{})
	u.OnUpdate(func(p *types.Plan) {
		select {
		case updates <- p:
		case <-ctx.Done():
		case <-done:
		}
	})
	if err := u.Start(ctx); err != nil {
		return err
	}
	defer u.Stop()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			// Interrupted: hand the plan back to the background set.
			if cur := a.store.ActivePlan(); cur != nil && cur.PlanID == planID {
				a.store.BackgroundPlan(planID, cur)
				a.store.ResetActivePlan()
			}
			a.save(context.Background())
			fmt.Fprintf(out, "\nStopped following %s; plan backgrounded.\n", planID)
			return nil
		case cur := <-updates:
			a.save(ctx)
			fmt.Fprintf(out, "\n%s\n", status.FormatDetailedPlan(a.summarize(cur), opts))
			if cur.IsComplete() || cur.HasFailed() {
				return nil
			}
		}
	}
}

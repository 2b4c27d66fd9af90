package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/meow-stack/chainplan/internal/status"
)

// Plans command flags
var (
	plansRemote  bool
	plansQuiet   bool
	plansNoColor bool
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List tracked plans",
	Long: `List the active, backgrounded and cancelled plans from saved state.

With --remote, list the plan ids the backend knows about instead.`,
	Args: cobra.NoArgs,
	RunE: runPlans,
}

func init() {
	rootCmd.AddCommand(plansCmd)

	plansCmd.Flags().BoolVar(&plansRemote, "remote", false, "List plans known to the backend")
	plansCmd.Flags().BoolVarP(&plansQuiet, "quiet", "q", false, "Minimal output")
	plansCmd.Flags().BoolVar(&plansNoColor, "no-color", false, "Disable colors")
}

func runPlans(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	out := cmd.OutOrStdout()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if plansRemote {
		ids, err := a.client.ListPlans(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	var summaries []*status.PlanSummary
	if active := a.store.ActivePlan(); active != nil {
		summaries = append(summaries, a.summarize(active))
	}

	bg := a.store.BackgroundedPlans()
	ids := make([]string, 0, len(bg))
	for id := range bg {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if last := bg[id].LastKnown; last != nil {
			summaries = append(summaries, a.summarize(last))
		}
	}

	if len(summaries) == 0 {
		fmt.Fprintln(out, "No tracked plans.")
	} else {
		fmt.Fprint(out, status.FormatPlanList(summaries, status.FormatOptions{
			NoColor: plansNoColor,
			Quiet:   plansQuiet,
		}))
	}

	if cancelled := a.store.CancelledPlanIDs(); len(cancelled) > 0 {
		fmt.Fprintf(out, "\nCancelled:\n")
		for _, id := range cancelled {
			fmt.Fprintf(out, "  %s\n", id)
		}
	}
	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/meow-stack/chainplan/internal/cancel"
)

var cancelSubmit bool

var cancelCmd = &cobra.Command{
	Use:   "cancel <plan-id>",
	Short: "Cancel the in-flight step of a plan",
	Long: `Find the submitted step of a plan that can still be cancelled.

Without --submit the cancellation request is printed as JSON for an external
signer. With --submit it is relayed through the backend. A submitted
cancellation can still lose the race against the original transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)

	cancelCmd.Flags().BoolVar(&cancelSubmit, "submit", false, "Relay the cancellation through the backend")
}

func runCancel(cmd *cobra.Command, args []string) error {
	planID := args[0]
	ctx := cmdContext(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.fetchPlan(ctx, planID)
	if err != nil {
		return err
	}

	var submitter cancel.Submitter = printSubmitter{w: cmd.OutOrStdout()}
	if cancelSubmit {
		submitter = cancel.RemoteSubmitter{Client: a.client}
	}

	// Hold the execution lock so a concurrent refresh cannot replace the plan
	// mid-submission.
	a.store.LockPlanForExecution(planID)
	defer a.store.UnlockPlanForExecution(planID)

	result, err := cancel.NewService(submitter, a.logger).CancelStep(ctx, plan)
	if err != nil {
		return err
	}

	if cancelSubmit {
		a.store.CancelPlan(planID)
		a.save(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Cancellation for step %d submitted: %s\n",
			result.Info.StepIndex, result.CancelTxHash)
	}
	return nil
}

// printSubmitter writes the request instead of broadcasting it.
type printSubmitter struct {
	w io.Writer
}

func (p printSubmitter) SubmitCancellation(ctx context.Context, req cancel.Request) (string, error) {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cancelRequestJSON{
		PlanID:    req.PlanID,
		StepIndex: req.StepIndex,
		ChainID:   req.ChainID,
		Mechanism: string(req.Mechanism),
		TxHash:    req.TxHash,
		OrderID:   req.OrderID,
	}); err != nil {
		return "", err
	}
	return "", nil
}

type cancelRequestJSON struct {
	PlanID    string `json:"plan_id"`
	StepIndex int    `json:"step_index"`
	ChainID   int64  `json:"chain_id"`
	Mechanism string `json:"mechanism"`
	TxHash    string `json:"tx_hash,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
}

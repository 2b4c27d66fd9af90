package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/meow-stack/chainplan/internal/slippage"
)

var slippageCmd = &cobra.Command{
	Use:   "slippage <percent>...",
	Short: "Compound per-step slippage tolerances",
	Long: `Combine slippage tolerances that apply one after another into a
single bound for the whole plan.

Example:
  chainplan slippage 0.5 0.25       # 0.74875`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSlippage,
}

func init() {
	rootCmd.AddCommand(slippageCmd)
}

func runSlippage(cmd *cobra.Command, args []string) error {
	values := make([]float64, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid slippage %q: %w", arg, err)
		}
		if v < 0 || v >= 100 {
			return fmt.Errorf("slippage %q must be in [0, 100)", arg)
		}
		values = append(values, v)
	}

	total, _ := slippage.Compound(values)
	fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(total, 'f', -1, 64))
	return nil
}

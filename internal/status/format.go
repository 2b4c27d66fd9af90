package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/meow-stack/chainplan/internal/types"
)

// FormatOptions controls output formatting.
type FormatOptions struct {
	NoColor bool
	Quiet   bool
}

// FormatDetailedPlan formats a single plan with every step.
func FormatDetailedPlan(summary *PlanSummary, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString(formatHeader(summary, opts))
	b.WriteString("\n\n")
	b.WriteString(formatProgress(summary, opts))
	b.WriteString("\n\n")
	b.WriteString(formatSteps(summary, opts))

	if summary.Cancelable != nil {
		b.WriteString(fmt.Sprintf("\nCancelable: step %d (%s, %s)\n",
			summary.Cancelable.StepIndex, summary.Cancelable.Type, summary.Cancelable.Reference))
	}
	return b.String()
}

// FormatPlanList formats a list of plans in the given order.
func FormatPlanList(summaries []*PlanSummary, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Found %d plan(s):\n\n", len(summaries)))
	for i, summary := range summaries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(formatPlanListItem(summary, opts))
		b.WriteString("\n")
	}
	return b.String()
}

func formatHeader(summary *PlanSummary, opts FormatOptions) string {
	var b strings.Builder

	state := planState(summary)
	b.WriteString(fmt.Sprintf("Plan:     %s\n", summary.PlanID))
	b.WriteString(fmt.Sprintf("Role:     %s\n", summary.Role))
	b.WriteString(fmt.Sprintf("Status:   %s%s %s%s",
		stateColor(state, opts.NoColor), stateIcon(state), state, resetColor(opts.NoColor)))

	if summary.Locked {
		b.WriteString("\nLock:     held for execution")
	}
	if summary.ProofPending {
		b.WriteString("\nProof:    awaiting backend confirmation")
	}
	if summary.Slippage != nil {
		b.WriteString(fmt.Sprintf("\nSlippage: %s%%", formatPercent(*summary.Slippage)))
	}
	if summary.BackgroundedAt != nil && !opts.Quiet {
		b.WriteString(fmt.Sprintf("\nBackgrounded: %s (%s ago)",
			formatTime(*summary.BackgroundedAt), formatDuration(time.Since(*summary.BackgroundedAt))))
	}
	return b.String()
}

func formatProgress(summary *PlanSummary, opts FormatOptions) string {
	stats := summary.StepStats
	completed := stats.Success + stats.Failed

	var percentage int
	if stats.Total > 0 {
		percentage = (completed * 100) / stats.Total
	}

	barWidth := 25
	filled := (percentage * barWidth) / 100
	progressBar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	return fmt.Sprintf("Progress: %s %d%% (%d/%d steps)", progressBar, percentage, completed, stats.Total)
}

func formatSteps(summary *PlanSummary, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString("Steps:\n")
	for _, step := range summary.Steps {
		marker := " "
		if step.Current {
			marker = ">"
		}
		b.WriteString(fmt.Sprintf(" %s %s%s%s %d. %s (%s) %s",
			marker,
			getColor(stepColorName(step.Status), opts.NoColor), stepIcon(step.Status), resetColor(opts.NoColor),
			step.Index, step.Type, step.Routing, step.Status))
		if step.Slippage != nil {
			b.WriteString(fmt.Sprintf(" slippage=%s%%", formatPercent(*step.Slippage)))
		}
		if step.Proof != "" && !opts.Quiet {
			b.WriteString(fmt.Sprintf(" proof=%s", step.Proof))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatPlanListItem(summary *PlanSummary, opts FormatOptions) string {
	var b strings.Builder

	state := planState(summary)
	b.WriteString(fmt.Sprintf("%s%s %s%s", stateColor(state, opts.NoColor), stateIcon(state), summary.PlanID, resetColor(opts.NoColor)))

	if !opts.Quiet {
		b.WriteString(fmt.Sprintf("\n  Role:     %s", summary.Role))
		b.WriteString(fmt.Sprintf("\n  Status:   %s", state))
		b.WriteString(fmt.Sprintf("\n  Progress: %d/%d steps", summary.StepStats.Success+summary.StepStats.Failed, summary.StepStats.Total))
		if summary.Locked {
			b.WriteString("\n  Locked:   yes")
		}
	}
	return b.String()
}

// planState collapses a summary into one display word.
func planState(summary *PlanSummary) string {
	switch {
	case summary.Failed:
		return "failed"
	case summary.Complete:
		return "complete"
	default:
		return "in progress"
	}
}

// Formatting helpers

func stateIcon(state string) string {
	switch state {
	case "complete":
		return "✓"
	case "failed":
		return "✗"
	default:
		return "●"
	}
}

func stateColor(state string, noColor bool) string {
	switch state {
	case "complete":
		return getColor("green", noColor)
	case "failed":
		return getColor("red", noColor)
	default:
		return getColor("yellow", noColor)
	}
}

func stepIcon(s types.StepStatus) string {
	switch s {
	case types.StepStatusSuccess:
		return "✓"
	case types.StepStatusFailed:
		return "✗"
	case types.StepStatusPending:
		return "●"
	case types.StepStatusAwaitingAction:
		return "◐"
	case types.StepStatusQueued:
		return "○"
	default:
		return "?"
	}
}

func stepColorName(s types.StepStatus) string {
	switch s {
	case types.StepStatusSuccess:
		return "green"
	case types.StepStatusFailed:
		return "red"
	case types.StepStatusPending:
		return "yellow"
	case types.StepStatusAwaitingAction:
		return "cyan"
	default:
		return "gray"
	}
}

func getColor(name string, noColor bool) string {
	if noColor {
		return ""
	}

	switch name {
	case "red":
		return "\033[31m"
	case "green":
		return "\033[32m"
	case "yellow":
		return "\033[33m"
	case "cyan":
		return "\033[36m"
	case "gray":
		return "\033[90m"
	default:
		return ""
	}
}

func resetColor(noColor bool) string {
	if noColor {
		return ""
	}
	return "\033[0m"
}

func formatPercent(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// Package status maps remote step statuses onto the canonical taxonomy and
// renders plan summaries.
package status

import (
	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/types"
)

// FromQuery maps a data query API step status to the canonical status.
// Unrecognized values, including the empty string, map to Unknown.
func FromQuery(s remote.QueryStepStatus) types.StepStatus {
	switch s {
	case remote.QueryStepQueued:
		return types.StepStatusQueued
	case remote.QueryStepActionRequired:
		return types.StepStatusAwaitingAction
	case remote.QueryStepInProgress:
		return types.StepStatusPending
	case remote.QueryStepSucceeded:
		return types.StepStatusSuccess
	case remote.QueryStepFailed:
		return types.StepStatusFailed
	default:
		return types.StepStatusUnknown
	}
}

// FromSession maps an execution session API step status to the canonical
// status. Unrecognized values, including unspecified and empty, map to Unknown.
func FromSession(s remote.SessionStepStatus) types.StepStatus {
	switch s {
	case remote.SessionStepNotReady:
		return types.StepStatusQueued
	case remote.SessionStepAwaitingAction:
		return types.StepStatusAwaitingAction
	case remote.SessionStepActive:
		return types.StepStatusPending
	case remote.SessionStepComplete:
		return types.StepStatusSuccess
	case remote.SessionStepError:
		return types.StepStatusFailed
	default:
		return types.StepStatusUnknown
	}
}

// FromStep resolves the canonical status of a raw step. The session status
// wins when the backend reports one.
func FromStep(step remote.StepResponse) types.StepStatus {
	if st := FromSession(step.SessionStatus); st != types.StepStatusUnknown {
		return st
	}
	return FromQuery(step.Status)
}

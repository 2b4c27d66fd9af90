// Package errors provides structured error types for chainplan.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes for chainplan operations.
const (
	// Config errors
	CodeConfigMissingField = "CONFIG_001" // Missing required field
	CodeConfigInvalidValue = "CONFIG_002" // Invalid value

	// Plan errors
	CodePlanTaxonomyDrift = "PLAN_001" // Step type with no known routing
	CodePlanMalformed     = "PLAN_002" // Backend response violates plan invariants
	CodePlanNotFound      = "PLAN_003" // Plan not known locally or remotely

	// Remote errors
	CodeRemoteRequest = "REMOTE_001" // Transport failure
	CodeRemoteStatus  = "REMOTE_002" // Unexpected HTTP status
	CodeRemoteDecode  = "REMOTE_003" // Response body could not be decoded

	// Cancellation errors
	CodeCancelNothingToCancel = "CANCEL_001" // No pending submitted step
	CodeCancelSubmitFailed    = "CANCEL_002" // Submitter rejected the request

	// IO errors
	CodeIOFileNotFound = "IO_001" // File not found
	CodeIOPermission   = "IO_002" // Permission denied
	CodeIOReadError    = "IO_004" // Read error
	CodeIOWriteError   = "IO_005" // Write error
)

// PlanError is the structured error type for chainplan operations.
type PlanError struct {
	Code    string         `json:"code"`              // Error code (e.g., "PLAN_001")
	Message string         `json:"message"`           // Human-readable message
	Details map[string]any `json:"details,omitempty"` // Context (plan_id, step_index, etc.)
	Cause   error          `json:"-"`                 // Wrapped error (not serialized)
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *PlanError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *PlanError) WithDetail(key string, value any) *PlanError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error.
func (e *PlanError) WithCause(err error) *PlanError {
	e.Cause = err
	return e
}

// MarshalJSON implements json.Marshaler with cause error message.
func (e *PlanError) MarshalJSON() ([]byte, error) {
	type alias PlanError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// New creates a new PlanError.
func New(code, message string) *PlanError {
	return &PlanError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new PlanError with formatted message.
func Newf(code, format string, args ...any) *PlanError {
	return &PlanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a PlanError.
func Wrap(code, message string, err error) *PlanError {
	return &PlanError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// --- Config Errors ---

// ConfigMissingField creates an error for missing config field.
func ConfigMissingField(field string) *PlanError {
	return Newf(CodeConfigMissingField, "missing required config field: %s", field).
		WithDetail("field", field)
}

// ConfigInvalidValue creates an error for invalid config value.
func ConfigInvalidValue(field string, value any, reason string) *PlanError {
	return Newf(CodeConfigInvalidValue, "invalid config value for %s: %s", field, reason).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// --- Plan Errors ---

// PlanTaxonomyDrift reports a step type the local routing table does not know.
// This is a programmer error: the local enum is behind the backend's.
func PlanTaxonomyDrift(stepType string) *PlanError {
	return Newf(CodePlanTaxonomyDrift, "no routing for plan step type %q", stepType).
		WithDetail("step_type", stepType)
}

// PlanMalformed creates an error for a backend plan that breaks an invariant.
func PlanMalformed(planID, reason string) *PlanError {
	return Newf(CodePlanMalformed, "malformed plan %s: %s", planID, reason).
		WithDetail("plan_id", planID).
		WithDetail("reason", reason)
}

// PlanNotFound creates an error for an unknown plan.
func PlanNotFound(planID string) *PlanError {
	return Newf(CodePlanNotFound, "plan not found: %s", planID).
		WithDetail("plan_id", planID)
}

// --- Remote Errors ---

// RemoteRequest creates an error for a failed backend call.
func RemoteRequest(op, planID string, err error) *PlanError {
	return Wrap(CodeRemoteRequest, "backend request failed", err).
		WithDetail("op", op).
		WithDetail("plan_id", planID)
}

// RemoteStatus creates an error for an unexpected backend HTTP status.
func RemoteStatus(op, planID string, status int) *PlanError {
	return Newf(CodeRemoteStatus, "backend returned status %d for %s", status, op).
		WithDetail("op", op).
		WithDetail("plan_id", planID).
		WithDetail("status", status)
}

// RemoteDecode creates an error for an undecodable backend response.
func RemoteDecode(op, planID string, err error) *PlanError {
	return Wrap(CodeRemoteDecode, "decoding backend response", err).
		WithDetail("op", op).
		WithDetail("plan_id", planID)
}

// --- Cancellation Errors ---

// NothingToCancel creates an error for a plan without a cancelable step.
func NothingToCancel(planID string) *PlanError {
	return Newf(CodeCancelNothingToCancel, "plan %s has no cancelable step", planID).
		WithDetail("plan_id", planID)
}

// CancelSubmitFailed creates an error for a rejected cancellation submission.
func CancelSubmitFailed(planID string, stepIndex int, err error) *PlanError {
	return Wrap(CodeCancelSubmitFailed, "submitting cancellation", err).
		WithDetail("plan_id", planID).
		WithDetail("step_index", stepIndex)
}

// --- IO Errors ---

// IOFileNotFound creates an error for missing file.
func IOFileNotFound(path string) *PlanError {
	return Newf(CodeIOFileNotFound, "file not found: %s", path).
		WithDetail("path", path)
}

// IOPermissionDenied creates an error for permission issues.
func IOPermissionDenied(path string, err error) *PlanError {
	return Wrap(CodeIOPermission, "permission denied", err).
		WithDetail("path", path)
}

// IOReadError creates an error for read failures.
func IOReadError(path string, err error) *PlanError {
	return Wrap(CodeIOReadError, "failed to read file", err).
		WithDetail("path", path)
}

// IOWriteError creates an error for write failures.
func IOWriteError(path string, err error) *PlanError {
	return Wrap(CodeIOWriteError, "failed to write file", err).
		WithDetail("path", path)
}

// HasCode checks if an error is a PlanError with the given code.
// It handles wrapped errors by unwrapping to find a PlanError.
func HasCode(err error, code string) bool {
	var perr *PlanError
	if errors.As(err, &perr) {
		return perr.Code == code
	}
	return false
}

// Code returns the error code if err is a PlanError, empty string otherwise.
func Code(err error) string {
	var perr *PlanError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}

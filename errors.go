package main

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories the pipeline reports.
type ErrorKind string

const (
	// ErrKindProviderCall marks a single failed model call. Non-fatal; the
	// failure is attached to the relevant response or submission.
	ErrKindProviderCall ErrorKind = "provider_call_failed"

	// ErrKindAllProviders marks a Stage 1 round with zero successes. Fatal.
	ErrKindAllProviders ErrorKind = "all_providers_failed"

	// ErrKindInvalidRanking marks a submission whose label list is unknown,
	// duplicated or incomplete. The submission is excluded from aggregation
	// but kept for diagnostics.
	ErrKindInvalidRanking ErrorKind = "invalid_ranking"

	// ErrKindSynthesis marks a failed chairman call. Fatal, and distinct
	// from all_providers_failed.
	ErrKindSynthesis ErrorKind = "synthesis_failed"

	// ErrKindPersistence marks a failed store operation. The computed
	// result is still returned to the caller.
	ErrKindPersistence ErrorKind = "persistence_failed"
)

// CouncilError is a failure with a machine-distinguishable kind.
type CouncilError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CouncilError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CouncilError) Unwrap() error {
	return e.Err
}

// newCouncilError builds a CouncilError wrapping an optional cause.
func newCouncilError(kind ErrorKind, message string, err error) *CouncilError {
	return &CouncilError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Errors outside the
// closed set report as provider_call_failed, the weakest kind.
func KindOf(err error) ErrorKind {
	var ce *CouncilError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrKindProviderCall
}

// ErrorInfo is the serializable diagnostic attached to responses,
// submissions and synthesis results.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// errorInfo converts an error into its diagnostic form.
func errorInfo(kind ErrorKind, err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{Kind: kind, Message: err.Error()}
}

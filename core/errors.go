package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures across the orchestration layer. Capability
// failures are classified exactly once, at the port boundary.
type ErrorKind string

const (
	// ErrorKindTransient covers timeouts, rate limiting and 5xx-equivalent
	// failures. Eligible for local retry.
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindNotFound is a valid call that produced no data.
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindInvalidInput is a caller error. Never retried, surfaced to the
	// reasoner as an observation.
	ErrorKindInvalidInput ErrorKind = "invalid_input"
	// ErrorKindFatal covers authorization and configuration failures. Aborts
	// the worker immediately.
	ErrorKindFatal ErrorKind = "fatal"
	// ErrorKindCapabilityGap means no worker type can service a focus area.
	ErrorKindCapabilityGap ErrorKind = "capability_gap"
	// ErrorKindDecompositionAmbiguity means several worker types matched
	// equally well; resolved by priority order.
	ErrorKindDecompositionAmbiguity ErrorKind = "decomposition_ambiguity"
	// ErrorKindSynthesisDegraded means the narrative summary could not be
	// produced.
	ErrorKindSynthesisDegraded ErrorKind = "synthesis_degraded"
	// ErrorKindCancelled means the research run was cancelled before the task
	// reached a terminal state.
	ErrorKindCancelled ErrorKind = "cancelled"
	// ErrorKindReasoner means the reasoner returned an unusable response.
	ErrorKindReasoner ErrorKind = "reasoner"
	// ErrorKindDuplicateSection means two results targeted the same focus
	// area; the later one wins.
	ErrorKindDuplicateSection ErrorKind = "duplicate_section"
	// ErrorKindUnrequestedSection means a result targeted a focus area that
	// was not part of the plan. It is dropped.
	ErrorKindUnrequestedSection ErrorKind = "unrequested_section"
)

// Retryable reports whether failures of this kind may be retried locally.
func (k ErrorKind) Retryable() bool { return k == ErrorKindTransient }

var (
	// ErrNoReport is returned when a follow-up is asked for a session that has
	// no stored report. A fresh research run is required first.
	ErrNoReport = errors.New("no report available for session")
	// ErrInvalidRequest is returned for malformed research requests.
	ErrInvalidRequest = errors.New("invalid research request")
	// ErrSessionNotFound is returned by context stores for unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// CapabilityError is the classified failure of a single capability
// invocation.
type CapabilityError struct {
	Kind       ErrorKind
	Capability CapabilityKind
	Action     string
	Err        error
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	msg := "capability failure"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Action != "" {
		return fmt.Sprintf("%s %s [%s]: %s", e.Capability, e.Action, e.Kind, msg)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Capability, e.Kind, msg)
}

// Unwrap exposes the underlying cause.
func (e *CapabilityError) Unwrap() error { return e.Err }

// KindForHTTPStatus classifies an HTTP response status of an external API.
// 404 is NotFound, 401/403 Fatal, 408/429/5xx Transient, other 4xx InvalidInput.
func KindForHTTPStatus(status int) ErrorKind {
	switch {
	case status == 404 || status == 410:
		return ErrorKindNotFound
	case status == 401 || status == 403:
		return ErrorKindFatal
	case status == 408 || status == 425 || status == 429 || status >= 500:
		return ErrorKindTransient
	case status >= 400:
		return ErrorKindInvalidInput
	}
	return ""
}

// NewCapabilityError wraps err with a classification.
func NewCapabilityError(kind ErrorKind, capability CapabilityKind, action string, err error) *CapabilityError {
	return &CapabilityError{Kind: kind, Capability: capability, Action: action, Err: err}
}

// KindOf returns the classification of err. Unclassified errors are Fatal,
// except context deadline (Transient) and cancellation (Cancelled).
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrorKindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTransient
	}
	return ErrorKindFatal
}

// SectionError describes why a report section is degraded or failed.
type SectionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// NewSectionError builds a SectionError from err using KindOf.
func NewSectionError(err error) *SectionError {
	if err == nil {
		return nil
	}
	return &SectionError{Kind: KindOf(err), Message: err.Error()}
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is. The typed errors below match them.
var (
	ErrInvalidTransition     = errors.New("invalid session transition")
	ErrGrantDenied           = errors.New("authorization grant denied")
	ErrBackendUnavailable    = errors.New("verification backend unavailable")
	ErrBackendRejected       = errors.New("verification rejected by backend")
	ErrMalformedResponse     = errors.New("malformed verification response")
	ErrFlowAlreadyInProgress = errors.New("sign-in flow already in progress")
	ErrStaleFlow             = errors.New("sign-in flow is no longer current")
)

// InvalidTransitionError is returned when a session update would break a
// state or email invariant
type InvalidTransitionError struct {
	From   AuthState
	To     AuthState
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid session transition %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// GrantDeniedError is returned when the identity provider refuses the grant or
// returns no authorization code
type GrantDeniedError struct {
	Reason string
	Err    error
}

func (e *GrantDeniedError) Error() string {
	msg := "authorization grant denied"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GrantDeniedError) Unwrap() error { return e.Err }

func (e *GrantDeniedError) Is(target error) bool { return target == ErrGrantDenied }

// BackendUnavailableError wraps a transport failure talking to the
// verification endpoint
type BackendUnavailableError struct {
	Endpoint string
	Err      error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("failed to reach verification endpoint %s: %v", e.Endpoint, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

func (e *BackendUnavailableError) Is(target error) bool { return target == ErrBackendUnavailable }

// BackendRejectedError carries a non-success status and the reason the
// backend reported for it
type BackendRejectedError struct {
	StatusCode int
	Reason     string
}

func (e *BackendRejectedError) Error() string {
	return fmt.Sprintf("verification failed: HTTP %d: %s", e.StatusCode, e.Reason)
}

func (e *BackendRejectedError) Is(target error) bool { return target == ErrBackendRejected }

// MalformedResponseError is returned when a verification response body does
// not contain a list of project names
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed verification response: %s: %v", e.Reason, e.Err)
	}
	return "malformed verification response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// FlowAlreadyInProgressError is returned by Signin while another flow owns the session
type FlowAlreadyInProgressError struct {
	State AuthState
}

func (e *FlowAlreadyInProgressError) Error() string {
	return fmt.Sprintf("sign-in flow already in progress (state: %s)", e.State)
}

func (e *FlowAlreadyInProgressError) Is(target error) bool { return target == ErrFlowAlreadyInProgress }

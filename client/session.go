package client

import (
	"fmt"
	"strings"
	"sync"
)

// AuthState is the stage a sign-in session has reached.
type AuthState int

const (
	StateLoggedOut AuthState = iota
	StateLoggingIn
	StateVerifying
	StateVerified
	StateError
)

func (s AuthState) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggingIn:
		return "logging_in"
	case StateVerifying:
		return "verifying"
	case StateVerified:
		return "verified"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// Valid returns true for the five known states
func (s AuthState) Valid() bool {
	return s >= StateLoggedOut && s <= StateError
}

// InProgress returns true while a sign-in flow owns the session
func (s AuthState) InProgress() bool {
	return s == StateLoggingIn || s == StateVerifying
}

// RequiresEmail returns true for states that are only legal with an email
func (s AuthState) RequiresEmail() bool {
	return s == StateVerifying || s == StateVerified
}

// transitions lists the legal target states for each source state.
var transitions = map[AuthState][]AuthState{
	StateLoggedOut: {StateLoggingIn},
	StateLoggingIn: {StateVerifying, StateError, StateLoggedOut},
	StateVerifying: {StateVerified, StateError, StateLoggedOut},
	StateVerified:  {StateLoggedOut},
	StateError:     {StateLoggingIn, StateLoggedOut},
}

// CanTransition reports whether the session may move from one state to another
func CanTransition(from, to AuthState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AuthSession is a snapshot of the client's authentication progress.
// Snapshots are values; mutating one does not affect the store.
type AuthSession struct {
	State AuthState `json:"state"`
	Email string    `json:"email,omitempty"`
}

// HasEmail returns true if the identity provider has supplied an email
func (s AuthSession) HasEmail() bool {
	return strings.TrimSpace(s.Email) != ""
}

func (s AuthSession) String() string {
	if s.Email == "" {
		return s.State.String()
	}
	return fmt.Sprintf("%s (%s)", s.State, s.Email)
}

// SessionUpdate is a partial AuthSession applied by SessionStore.Transition.
// A nil Email carries the current email forward.
type SessionUpdate struct {
	State AuthState
	Email *string
}

// SessionStore holds the authoritative AuthSession and guards its transitions
type SessionStore struct {
	mu      sync.RWMutex
	session AuthSession
}

// NewSessionStore creates a store in the logged out state
func NewSessionStore() *SessionStore {
	return &SessionStore{session: AuthSession{State: StateLoggedOut}}
}

// Current returns the current session snapshot
func (s *SessionStore) Current() AuthSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Transition validates next against the current session and merges it in.
// On failure the held session is left exactly as it was.
func (s *SessionStore) Transition(next SessionUpdate) (AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.session
	if !next.State.Valid() {
		return current, &InvalidTransitionError{From: current.State, To: next.State, Reason: "unknown state"}
	}
	if !CanTransition(current.State, next.State) {
		return current, &InvalidTransitionError{From: current.State, To: next.State, Reason: "transition not allowed"}
	}

	merged := AuthSession{State: next.State, Email: current.Email}
	if next.Email != nil {
		merged.Email = strings.TrimSpace(*next.Email)
	}
	if next.State == StateLoggedOut {
		merged.Email = ""
	}

	// Verifying must be entered with the email the provider just returned,
	// never with one left over from an earlier flow.
	if next.State == StateVerifying && (next.Email == nil || merged.Email == "") {
		return current, &InvalidTransitionError{From: current.State, To: next.State, Reason: "missing email"}
	}
	if next.State.RequiresEmail() && !merged.HasEmail() {
		return current, &InvalidTransitionError{From: current.State, To: next.State, Reason: "missing email"}
	}

	s.session = merged
	return merged, nil
}

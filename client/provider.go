package client

import "context"

// Grant is the outcome of an offline access request. An empty Code means the
// provider denied the request; Error and ErrorDescription say why when known.
type Grant struct {
	Code             string
	Error            string
	ErrorDescription string
}

// Denied returns true if the grant carries no authorization code
func (g Grant) Denied() bool {
	return g.Code == ""
}

// Profile is the basic profile of the signed in user
type Profile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// AuthResponse holds the provider's current authentication response
type AuthResponse struct {
	IDToken string
}

// IdentityProvider is the capability the flow controller drives to obtain an
// authorization grant and the user's identity.
type IdentityProvider interface {
	// GrantOfflineAccess asks the user for consent and returns the resulting
	// grant. It may block until the user has interacted with the provider.
	GrantOfflineAccess(ctx context.Context) (Grant, error)

	// BasicProfile returns the profile of the user that granted access
	BasicProfile(ctx context.Context) (Profile, error)

	// AuthResponse returns the current auth response without prompting the user again
	AuthResponse(ctx context.Context) (AuthResponse, error)
}

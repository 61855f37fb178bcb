package oauth2

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alephnan/pcgcp/client"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DevIssuer   = "pcgcp-dev"
	DevAudience = "pcgcp-dev-client"
)

// DevProvider grants access without a browser. It mints id_tokens signed
// with Key so that a backend started in development mode can verify them.
type DevProvider struct {
	Email    string
	Name     string
	Key      []byte
	Issuer   string
	Audience string

	// Deny makes the next grant fail with the given OAuth error code
	Deny string

	mu      sync.RWMutex
	code    string
	idToken string
	claims  *IDTokenClaims
}

var _ client.IdentityProvider = (*DevProvider)(nil)

func NewDevProvider(email string, key []byte) *DevProvider {
	return &DevProvider{
		Email:    email,
		Name:     email,
		Key:      key,
		Issuer:   DevIssuer,
		Audience: DevAudience,
	}
}

func (d *DevProvider) GrantOfflineAccess(ctx context.Context) (client.Grant, error) {
	if err := ctx.Err(); err != nil {
		return client.Grant{}, err
	}
	if d.Deny != "" {
		return client.Grant{Error: d.Deny, ErrorDescription: "development provider denied access"}, nil
	}
	if len(d.Key) == 0 {
		return client.Grant{}, errors.New("development provider has no signing key")
	}

	code, err := generateState()
	if err != nil {
		return client.Grant{}, err
	}
	code = "dev-" + code

	now := time.Now()
	claims := IDTokenClaims{
		Email:         d.Email,
		EmailVerified: d.Email != "",
		Name:          d.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    d.Issuer,
			Subject:   d.Email,
			Audience:  jwt.ClaimStrings{d.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	idToken, err := SignIDToken(d.Key, claims)
	if err != nil {
		return client.Grant{}, err
	}

	d.mu.Lock()
	d.code = code
	d.idToken = idToken
	d.claims = &claims
	d.mu.Unlock()

	return client.Grant{Code: code}, nil
}

func (d *DevProvider) BasicProfile(ctx context.Context) (client.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.claims == nil {
		return client.Profile{}, ErrNoGrant
	}
	return d.claims.Profile(), nil
}

func (d *DevProvider) AuthResponse(ctx context.Context) (client.AuthResponse, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.idToken == "" {
		return client.AuthResponse{}, ErrNoGrant
	}
	return client.AuthResponse{IDToken: d.idToken}, nil
}

// LastCode returns the code from the most recent grant
func (d *DevProvider) LastCode() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.code
}

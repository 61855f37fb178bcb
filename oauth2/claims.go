package oauth2

import (
	"fmt"
	"time"

	"github.com/alephnan/pcgcp/client"
	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims are the OpenID Connect claims read from an id_token
type IDTokenClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

// Profile converts the claims into the profile handed to the flow controller
func (c *IDTokenClaims) Profile() client.Profile {
	return client.Profile{
		ID:      c.Subject,
		Email:   c.Email,
		Name:    c.Name,
		Picture: c.Picture,
	}
}

// DecodeIDToken reads the claims of an id_token without checking its
// signature; the backend verifies the token before trusting it. A non-empty
// nonce must match the token's nonce claim.
func DecodeIDToken(idToken, nonce string) (*IDTokenClaims, error) {
	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to decode id_token: %w", err)
	}
	if nonce != "" && claims.Nonce != nonce {
		return nil, ErrNonceMismatch
	}
	return claims, nil
}

// SignIDToken signs claims with an HMAC key. It is used by the development
// provider and the matching backend verifier.
func SignIDToken(key []byte, claims IDTokenClaims) (string, error) {
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(time.Now())
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign id_token: %w", err)
	}
	return signed, nil
}

package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrStateMismatch = errors.New("oauth state mismatch")
	ErrNonceMismatch = errors.New("id_token nonce mismatch")
	ErrNoGrant       = errors.New("no access has been granted yet")
)

// generateState returns a random URL-safe value for the state and nonce parameters
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

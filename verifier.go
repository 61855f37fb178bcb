package pcgcp

import (
	"context"
	"errors"
	"fmt"

	idp "github.com/alephnan/pcgcp/oauth2"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/idtoken"
)

var ErrUnverifiedEmail = errors.New("id_token has no verified email")

// Identity is what the backend learns about the caller from a verified id_token
type Identity struct {
	Subject string
	Email   string
}

// IDTokenVerifier checks the signature, audience and expiry of an id_token
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

// GoogleIDTokenVerifier validates Google-issued id_tokens against Google's
// published keys.
type GoogleIDTokenVerifier struct {
	// Audience is the OAuth client id the token must be issued for
	Audience string

	validate func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

func NewGoogleIDTokenVerifier(audience string) *GoogleIDTokenVerifier {
	return &GoogleIDTokenVerifier{Audience: audience, validate: idtoken.Validate}
}

func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	validate := v.validate
	if validate == nil {
		validate = idtoken.Validate
	}
	payload, err := validate(ctx, idToken, v.Audience)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid id_token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if email == "" || !verified {
		return Identity{}, ErrUnverifiedEmail
	}
	return Identity{Subject: payload.Subject, Email: email}, nil
}

// HMACIDTokenVerifier validates id_tokens minted by the development provider
type HMACIDTokenVerifier struct {
	Key      []byte
	Audience string
	Issuer   string
}

func NewHMACIDTokenVerifier(key []byte) *HMACIDTokenVerifier {
	return &HMACIDTokenVerifier{Key: key, Audience: idp.DevAudience, Issuer: idp.DevIssuer}
}

func (v *HMACIDTokenVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	claims := &idp.IDTokenClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}

	token, err := jwt.ParseWithClaims(idToken, claims, func(token *jwt.Token) (any, error) {
		return v.Key, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid id_token: %w", err)
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("invalid token")
	}
	if claims.Email == "" || !claims.EmailVerified {
		return Identity{}, ErrUnverifiedEmail
	}
	return Identity{Subject: claims.Subject, Email: claims.Email}, nil
}

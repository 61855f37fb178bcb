package oauth2

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alephnan/pcgcp/client"
	"golang.org/x/oauth2"
)

// GoogleProvider obtains an offline authorization grant from Google for a
// command line client. It opens the consent page in a browser and receives
// the code and id_token on a loopback redirect.
type GoogleProvider struct {
	*BaseOAuth2

	// CallbackPort is the loopback port of the redirect URI. It must match a
	// redirect URI registered for the client; 0 picks a free port.
	CallbackPort int

	// Prompt is passed through as the prompt parameter (e.g. "select_account", "consent")
	Prompt string

	// OpenURL shows the consent page to the user. Defaults to OpenBrowser.
	OpenURL func(authURL string) error

	// CallbackTimeout bounds how long to wait for the user. Defaults to CallbackTimeout.
	CallbackTimeout time.Duration

	mu      sync.RWMutex
	idToken string
	claims  *IDTokenClaims
}

var _ client.IdentityProvider = (*GoogleProvider)(nil)

func NewGoogleProvider(clientId string, clientSecret string, callbackPort int) *GoogleProvider {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	return &GoogleProvider{
		BaseOAuth2:   NewBaseOAuth2(clientId, clientSecret, os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")),
		CallbackPort: callbackPort,
		Prompt:       "select_account",
	}
}

// AuthCodeURL builds the consent URL for an offline grant. The response asks
// for both a code and an id_token, posted back to the redirect URI.
func (g *GoogleProvider) AuthCodeURL(redirectURI, state, nonce string) string {
	cfg := g.Config()
	cfg.RedirectURL = redirectURI
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("response_type", "code id_token"),
		oauth2.SetAuthURLParam("response_mode", "form_post"),
		oauth2.SetAuthURLParam("nonce", nonce),
	}
	if g.Prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", g.Prompt))
	}
	return cfg.AuthCodeURL(state, opts...)
}

// GrantOfflineAccess runs the browser consent step. A denial is returned as a
// Grant without a code, not as an error.
func (g *GoogleProvider) GrantOfflineAccess(ctx context.Context) (client.Grant, error) {
	state, err := generateState()
	if err != nil {
		return client.Grant{}, err
	}
	nonce, err := generateState()
	if err != nil {
		return client.Grant{}, err
	}

	cb := NewCallbackServer(g.CallbackPort)
	redirectURI, err := cb.Start(ctx)
	if err != nil {
		return client.Grant{}, err
	}
	defer cb.Stop()

	authURL := g.AuthCodeURL(redirectURI, state, nonce)
	open := g.OpenURL
	if open == nil {
		open = OpenBrowser
	}
	if err := open(authURL); err != nil {
		slog.Warn("Could not open a browser, visit the URL manually", "url", authURL, "error", err)
	}

	timeout := g.CallbackTimeout
	if timeout <= 0 {
		timeout = CallbackTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := cb.WaitForCallback(waitCtx)
	if err != nil {
		return client.Grant{}, fmt.Errorf("waiting for authorization: %w", err)
	}
	if result.State != state {
		return client.Grant{}, ErrStateMismatch
	}
	if result.IsError() || result.Code == "" {
		slog.Info("Authorization was not granted", "error", result.Error, "description", result.ErrorDescription)
		return client.Grant{Error: result.Error, ErrorDescription: result.ErrorDescription}, nil
	}

	var claims *IDTokenClaims
	if result.IDToken != "" {
		claims, err = DecodeIDToken(result.IDToken, nonce)
		if err != nil {
			return client.Grant{}, err
		}
	}

	g.mu.Lock()
	g.idToken = result.IDToken
	g.claims = claims
	g.mu.Unlock()

	return client.Grant{Code: result.Code}, nil
}

// BasicProfile returns the profile carried by the last id_token
func (g *GoogleProvider) BasicProfile(ctx context.Context) (client.Profile, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.claims == nil {
		return client.Profile{}, ErrNoGrant
	}
	return g.claims.Profile(), nil
}

// AuthResponse returns the last id_token without prompting the user
func (g *GoogleProvider) AuthResponse(ctx context.Context) (client.AuthResponse, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.idToken == "" {
		return client.AuthResponse{}, ErrNoGrant
	}
	return client.AuthResponse{IDToken: g.idToken}, nil
}

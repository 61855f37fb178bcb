package oauth2_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/alephnan/pcgcp/oauth2"
	"github.com/golang-jwt/jwt/v5"
	oauth2lib "golang.org/x/oauth2"
)

var testKey = []byte("test-signing-key")

func newTestProvider() *oauth2.GoogleProvider {
	p := oauth2.NewGoogleProvider("test-client-id", "test-client-secret", 0)
	p.SetEndpoint(oauth2lib.Endpoint{
		AuthURL:  "https://provider.example.com/auth",
		TokenURL: "https://provider.example.com/token",
	})
	p.CallbackTimeout = 5 * time.Second
	return p
}

// consentBrowser plays the user's browser: it reads the consent URL and posts
// the given response to the redirect URI.
func consentBrowser(t *testing.T, respond func(q url.Values) url.Values) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			t.Errorf("Failed to parse consent URL: %v", err)
			return err
		}
		q := u.Query()
		resp, err := http.PostForm(q.Get("redirect_uri"), respond(q))
		if err != nil {
			t.Errorf("Failed to post callback: %v", err)
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil
	}
}

func signedToken(t *testing.T, email, nonce string) string {
	t.Helper()
	tok, err := oauth2.SignIDToken(testKey, oauth2.IDTokenClaims{
		Email: email,
		Name:  "Test User",
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "12345",
		},
	})
	if err != nil {
		t.Fatalf("SignIDToken failed: %v", err)
	}
	return tok
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	p := newTestProvider()
	p.Prompt = "consent"

	u, err := url.Parse(p.AuthCodeURL("http://127.0.0.1:8085/callback", "st", "nn"))
	if err != nil {
		t.Fatalf("Failed to parse URL: %v", err)
	}
	if !strings.HasPrefix(u.String(), "https://provider.example.com/auth") {
		t.Errorf("Expected provider auth URL, got: %s", u)
	}

	q := u.Query()
	want := map[string]string{
		"client_id":     "test-client-id",
		"redirect_uri":  "http://127.0.0.1:8085/callback",
		"response_type": "code id_token",
		"response_mode": "form_post",
		"access_type":   "offline",
		"prompt":        "consent",
		"state":         "st",
		"nonce":         "nn",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("Expected %s=%q, got %q", k, v, got)
		}
	}
	if !strings.Contains(q.Get("scope"), "cloudplatformprojects.readonly") {
		t.Errorf("Expected projects scope, got %q", q.Get("scope"))
	}
}

func TestGoogleProvider_NoGrantYet(t *testing.T) {
	p := newTestProvider()
	if _, err := p.BasicProfile(context.Background()); !errors.Is(err, oauth2.ErrNoGrant) {
		t.Errorf("Expected ErrNoGrant, got %v", err)
	}
	if _, err := p.AuthResponse(context.Background()); !errors.Is(err, oauth2.ErrNoGrant) {
		t.Errorf("Expected ErrNoGrant, got %v", err)
	}
}

func TestGoogleProvider_GrantOfflineAccess(t *testing.T) {
	var idToken string
	p := newTestProvider()
	p.OpenURL = consentBrowser(t, func(q url.Values) url.Values {
		idToken = signedToken(t, "user@example.com", q.Get("nonce"))
		return url.Values{
			"code":     {"auth-code"},
			"id_token": {idToken},
			"state":    {q.Get("state")},
		}
	})

	grant, err := p.GrantOfflineAccess(context.Background())
	if err != nil {
		t.Fatalf("GrantOfflineAccess failed: %v", err)
	}
	if grant.Code != "auth-code" || grant.Denied() {
		t.Errorf("Expected code auth-code, got %+v", grant)
	}

	profile, err := p.BasicProfile(context.Background())
	if err != nil {
		t.Fatalf("BasicProfile failed: %v", err)
	}
	if profile.Email != "user@example.com" || profile.ID != "12345" || profile.Name != "Test User" {
		t.Errorf("Unexpected profile: %+v", profile)
	}

	resp, err := p.AuthResponse(context.Background())
	if err != nil {
		t.Fatalf("AuthResponse failed: %v", err)
	}
	if resp.IDToken != idToken {
		t.Errorf("Expected id_token from callback, got %q", resp.IDToken)
	}
}

func TestGoogleProvider_Denied(t *testing.T) {
	p := newTestProvider()
	p.OpenURL = consentBrowser(t, func(q url.Values) url.Values {
		return url.Values{
			"error":             {"access_denied"},
			"error_description": {"The user denied access"},
			"state":             {q.Get("state")},
		}
	})

	grant, err := p.GrantOfflineAccess(context.Background())
	if err != nil {
		t.Fatalf("Expected denial as a grant, got error: %v", err)
	}
	if !grant.Denied() || grant.Error != "access_denied" || grant.ErrorDescription != "The user denied access" {
		t.Errorf("Unexpected grant: %+v", grant)
	}
	if _, err := p.AuthResponse(context.Background()); !errors.Is(err, oauth2.ErrNoGrant) {
		t.Errorf("Expected no token after denial, got %v", err)
	}
}

func TestGoogleProvider_StateMismatch(t *testing.T) {
	p := newTestProvider()
	p.OpenURL = consentBrowser(t, func(q url.Values) url.Values {
		return url.Values{"code": {"auth-code"}, "state": {"forged"}}
	})

	if _, err := p.GrantOfflineAccess(context.Background()); !errors.Is(err, oauth2.ErrStateMismatch) {
		t.Errorf("Expected ErrStateMismatch, got %v", err)
	}
}

func TestGoogleProvider_NonceMismatch(t *testing.T) {
	p := newTestProvider()
	p.OpenURL = consentBrowser(t, func(q url.Values) url.Values {
		return url.Values{
			"code":     {"auth-code"},
			"id_token": {signedToken(t, "user@example.com", "replayed")},
			"state":    {q.Get("state")},
		}
	})

	if _, err := p.GrantOfflineAccess(context.Background()); !errors.Is(err, oauth2.ErrNonceMismatch) {
		t.Errorf("Expected ErrNonceMismatch, got %v", err)
	}
}

func TestGoogleProvider_Timeout(t *testing.T) {
	p := newTestProvider()
	p.CallbackTimeout = 50 * time.Millisecond
	p.OpenURL = func(string) error { return nil }

	_, err := p.GrantOfflineAccess(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestGoogleProvider_BrowserFailureStillWaits(t *testing.T) {
	p := newTestProvider()
	p.CallbackTimeout = 50 * time.Millisecond
	p.OpenURL = func(string) error { return fmt.Errorf("no display") }

	if _, err := p.GrantOfflineAccess(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestCallbackServer(t *testing.T) {
	t.Run("query string callback", func(t *testing.T) {
		s := oauth2.NewCallbackServer(0)
		redirectURI, err := s.Start(context.Background())
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer s.Stop()

		if s.Port() == 0 {
			t.Error("Expected a port to be assigned")
		}
		if !strings.HasPrefix(redirectURI, "http://127.0.0.1:") {
			t.Errorf("Expected loopback redirect URI, got %s", redirectURI)
		}

		resp, err := http.Get(redirectURI + "?code=c1&state=s1")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}

		result, err := s.WaitForCallback(context.Background())
		if err != nil {
			t.Fatalf("WaitForCallback failed: %v", err)
		}
		if result.Code != "c1" || result.State != "s1" || result.IsError() {
			t.Errorf("Unexpected result: %+v", result)
		}

		resp, err = http.Get(redirectURI + "?code=c2&state=s2")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected second callback to be rejected, got %d", resp.StatusCode)
		}
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := oauth2.NewCallbackServer(0)
		if _, err := s.Start(ctx); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		cancel()

		select {
		case <-s.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("Expected server to stop after cancel")
		}

		waitCtx, waitCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer waitCancel()
		if _, err := s.WaitForCallback(waitCtx); err == nil {
			t.Error("Expected no callback after cancel")
		}
	})

	t.Run("stop releases the context watcher", func(t *testing.T) {
		before := runtime.NumGoroutine()

		s := oauth2.NewCallbackServer(0)
		if _, err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		s.Stop()
		s.Stop()

		select {
		case <-s.Done():
		default:
			t.Fatal("Expected Done to be closed after Stop")
		}

		deadline := time.Now().Add(2 * time.Second)
		for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if n := runtime.NumGoroutine(); n > before {
			t.Errorf("Expected goroutines to return to %d after Stop, got %d", before, n)
		}
	})
}

func TestDecodeIDToken(t *testing.T) {
	if _, err := oauth2.DecodeIDToken("not-a-jwt", ""); err == nil {
		t.Error("Expected error for malformed token")
	}

	tok := signedToken(t, "a@b.com", "n1")
	claims, err := oauth2.DecodeIDToken(tok, "n1")
	if err != nil {
		t.Fatalf("DecodeIDToken failed: %v", err)
	}
	if claims.Email != "a@b.com" {
		t.Errorf("Expected email a@b.com, got %q", claims.Email)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Error("Expected iat and exp to be set")
	}

	if _, err := oauth2.DecodeIDToken(tok, "other"); !errors.Is(err, oauth2.ErrNonceMismatch) {
		t.Errorf("Expected ErrNonceMismatch, got %v", err)
	}
}

func TestDevProvider(t *testing.T) {
	t.Run("grants a signed token", func(t *testing.T) {
		p := oauth2.NewDevProvider("dev@example.com", testKey)
		grant, err := p.GrantOfflineAccess(context.Background())
		if err != nil {
			t.Fatalf("GrantOfflineAccess failed: %v", err)
		}
		if !strings.HasPrefix(grant.Code, "dev-") || grant.Code != p.LastCode() {
			t.Errorf("Unexpected code %q", grant.Code)
		}

		profile, err := p.BasicProfile(context.Background())
		if err != nil || profile.Email != "dev@example.com" {
			t.Errorf("Unexpected profile %+v, err %v", profile, err)
		}

		resp, err := p.AuthResponse(context.Background())
		if err != nil {
			t.Fatalf("AuthResponse failed: %v", err)
		}
		claims := &oauth2.IDTokenClaims{}
		_, err = jwt.ParseWithClaims(resp.IDToken, claims, func(*jwt.Token) (any, error) { return testKey, nil },
			jwt.WithAudience(oauth2.DevAudience), jwt.WithIssuer(oauth2.DevIssuer))
		if err != nil {
			t.Fatalf("Token does not verify: %v", err)
		}
		if claims.Email != "dev@example.com" {
			t.Errorf("Expected email claim, got %q", claims.Email)
		}
	})

	t.Run("deny", func(t *testing.T) {
		p := oauth2.NewDevProvider("dev@example.com", testKey)
		p.Deny = "access_denied"
		grant, err := p.GrantOfflineAccess(context.Background())
		if err != nil {
			t.Fatalf("GrantOfflineAccess failed: %v", err)
		}
		if !grant.Denied() || grant.Error != "access_denied" {
			t.Errorf("Expected denial, got %+v", grant)
		}
	})

	t.Run("no key", func(t *testing.T) {
		p := oauth2.NewDevProvider("dev@example.com", nil)
		if _, err := p.GrantOfflineAccess(context.Background()); err == nil {
			t.Error("Expected error without a signing key")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := oauth2.NewDevProvider("dev@example.com", testKey)
		if _, err := p.GrantOfflineAccess(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// maxResponseBytes caps how much of a verification response is read
const maxResponseBytes = 1 << 20

// AuthFlowController drives the sign-in handshake: it obtains an offline grant
// from the identity provider, verifies it with the backend and records each
// step in the SessionStore.
type AuthFlowController struct {
	mu             sync.Mutex
	flowID         string // token of the flow allowed to mutate the session
	store          *SessionStore
	provider       IdentityProvider
	notifier       Notifier
	backendURL     string
	verifyEndpoint string
	httpClient     *http.Client
	baseTransport  http.RoundTripper
	logger         *slog.Logger
}

// Option configures an AuthFlowController
type Option func(*AuthFlowController)

// WithVerifyEndpoint sets a custom verification endpoint path
func WithVerifyEndpoint(path string) Option {
	return func(c *AuthFlowController) {
		c.verifyEndpoint = path
	}
}

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with XHR handling.
func WithHTTPClient(client *http.Client) Option {
	return func(c *AuthFlowController) {
		if client != nil && client.Transport != nil {
			c.baseTransport = client.Transport
		}
		if client != nil {
			c.httpClient.Timeout = client.Timeout
			if client.Jar != nil {
				c.httpClient.Jar = client.Jar
			}
		}
	}
}

// WithTransport sets a custom base transport
func WithTransport(transport http.RoundTripper) Option {
	return func(c *AuthFlowController) {
		c.baseTransport = transport
	}
}

// WithLogger sets the logger used for flow progress
func WithLogger(logger *slog.Logger) Option {
	return func(c *AuthFlowController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewAuthFlowController creates a controller for the backend at backendURL.
// The store is owned by the caller; a nil notifier discards UI events.
func NewAuthFlowController(backendURL string, store *SessionStore, provider IdentityProvider, notifier Notifier, opts ...Option) *AuthFlowController {
	// Normalize backend URL to its origin
	u, err := url.Parse(backendURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		backendURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	c := &AuthFlowController{
		store:          store,
		provider:       provider,
		notifier:       notifier,
		backendURL:     strings.TrimSuffix(backendURL, "/"),
		verifyEndpoint: DefaultVerifyEndpoint,
		httpClient: &http.Client{
			Jar:           newCookieJar(),
			CheckRedirect: sameOriginRedirects,
		},
		baseTransport: http.DefaultTransport,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.Transport = NewXHRTransportWithBase(c.baseTransport)
	return c
}

// Session returns the current session snapshot
func (c *AuthFlowController) Session() AuthSession {
	return c.store.Current()
}

// VerifyURL returns the full URL of the verification endpoint
func (c *AuthFlowController) VerifyURL() string {
	return c.backendURL + c.verifyEndpoint
}

// HTTPClient returns the client used to talk to the backend. It shares the
// cookie jar, so follow-up calls carry the verified session.
func (c *AuthFlowController) HTTPClient() *http.Client {
	return c.httpClient
}

// Signin runs a complete sign-in flow and blocks until it ends. Failures at
// any I/O step leave the session in StateError and are returned; a malformed
// project list is only reported to the notifier as a warning.
func (c *AuthFlowController) Signin(ctx context.Context) error {
	flow, err := c.begin()
	if err != nil {
		return err
	}
	log := c.logger.With("flow", flow)
	log.Debug("Requesting offline access grant")

	grant, err := c.provider.GrantOfflineAccess(ctx)
	if err != nil {
		return c.fail(flow, &GrantDeniedError{Err: err})
	}
	if grant.Denied() {
		reason := grant.ErrorDescription
		if reason == "" {
			reason = grant.Error
		}
		if reason == "" {
			reason = "no authorization code"
		}
		return c.fail(flow, &GrantDeniedError{Reason: reason})
	}

	profile, err := c.provider.BasicProfile(ctx)
	if err != nil {
		return c.fail(flow, &GrantDeniedError{Reason: "profile unavailable", Err: err})
	}

	email := profile.Email
	sidebar := Event{Kind: EventSidebarShown}
	if _, err := c.apply(flow, SessionUpdate{State: StateVerifying, Email: &email}, sidebar); err != nil {
		if errors.Is(err, ErrStaleFlow) {
			return err
		}
		return c.fail(flow, err)
	}
	log.Info("Grant received, verifying with backend", "email", email)

	return c.verify(ctx, flow, grant)
}

// Abandon marks the running flow stale so that its late results are
// discarded, and resets the session. Returns false if no flow was running.
func (c *AuthFlowController) Abandon() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flowID == "" {
		return false
	}
	c.logger.Info("Abandoning sign-in flow", "flow", c.flowID)
	c.flowID = ""
	if _, err := c.store.Transition(SessionUpdate{State: StateLoggedOut}); err != nil {
		c.logger.Warn("failed to reset session", "error", err)
	}
	return true
}

// SignOut discards any running flow and returns the session to StateLoggedOut
func (c *AuthFlowController) SignOut() AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flowID = ""
	if c.store.Current().State == StateLoggedOut {
		return c.store.Current()
	}
	session, err := c.store.Transition(SessionUpdate{State: StateLoggedOut})
	if err != nil {
		c.logger.Warn("failed to sign out", "error", err)
	}
	return session
}

// begin claims the session for a new flow and moves it to StateLoggingIn
func (c *AuthFlowController) begin() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.store.Current()
	if current.State.InProgress() {
		return "", &FlowAlreadyInProgressError{State: current.State}
	}
	if _, err := c.store.Transition(SessionUpdate{State: StateLoggingIn}); err != nil {
		return "", err
	}
	c.flowID = uuid.NewString()
	return c.flowID, nil
}

// apply transitions the session on behalf of flow, provided it is still the
// current flow. events are sent before the lock is released, so an Abandon
// cannot slip in between the transition and its notification.
func (c *AuthFlowController) apply(flow string, update SessionUpdate, events ...Event) (AuthSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if flow == "" || c.flowID != flow {
		c.logger.Debug("Discarding result of stale flow", "flow", flow, "state", update.State.String())
		return c.store.Current(), ErrStaleFlow
	}
	session, err := c.store.Transition(update)
	if err != nil {
		return session, err
	}
	if !session.State.InProgress() {
		c.flowID = ""
	}
	for _, ev := range events {
		c.notifier.Notify(ev)
	}
	return session, nil
}

// fail moves the flow to StateError and returns cause
func (c *AuthFlowController) fail(flow string, cause error) error {
	if _, err := c.apply(flow, SessionUpdate{State: StateError}); err != nil {
		if errors.Is(err, ErrStaleFlow) {
			return fmt.Errorf("%w: %w", ErrStaleFlow, cause)
		}
		c.logger.Warn("failed to record flow error", "error", err)
	}
	c.logger.Warn("Sign-in failed", "flow", flow, "error", cause)
	return cause
}

// verify exchanges the grant with the backend. It is only called once the
// session has been recorded as StateVerifying.
func (c *AuthFlowController) verify(ctx context.Context, flow string, grant Grant) error {
	authResp, err := c.provider.AuthResponse(ctx)
	if err != nil {
		return c.fail(flow, &GrantDeniedError{Reason: "identity token unavailable", Err: err})
	}
	if authResp.IDToken == "" {
		return c.fail(flow, &GrantDeniedError{Reason: "identity token unavailable"})
	}

	statusCode, body, err := c.postVerification(ctx, VerificationRequest{
		Code:    grant.Code,
		IDToken: authResp.IDToken,
	})
	if err != nil {
		return c.fail(flow, &BackendUnavailableError{Endpoint: c.VerifyURL(), Err: err})
	}
	if statusCode < 200 || statusCode > 299 {
		return c.fail(flow, &BackendRejectedError{StatusCode: statusCode, Reason: rejectionReason(statusCode, body)})
	}

	// A nil email carries forward the one captured at StateVerifying
	session, err := c.apply(flow, SessionUpdate{State: StateVerified})
	if err != nil {
		if errors.Is(err, ErrStaleFlow) {
			return err
		}
		return c.fail(flow, err)
	}
	c.logger.Info("Session verified", "flow", flow, "email", session.Email)

	if _, err := c.handleVerificationResponse(body); err != nil {
		c.logger.Warn("Ignoring malformed verification response", "flow", flow, "error", err)
	}
	return nil
}

// postVerification sends the grant to the backend and returns the status and body
func (c *AuthFlowController) postVerification(ctx context.Context, vr VerificationRequest) (int, []byte, error) {
	jsonBody, err := json.Marshal(vr)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.VerifyURL(), bytes.NewReader(jsonBody))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// handleVerificationResponse hands the project list to the notifier. A body
// without a valid project list is reported as a warning and the session is
// left alone.
func (c *AuthFlowController) handleVerificationResponse(body []byte) ([]string, error) {
	names, err := ParseVerificationResponse(body)
	if err != nil {
		c.notifier.Notify(Event{Kind: EventWarning, Warning: err.Error()})
		return nil, err
	}
	c.notifier.Notify(Event{Kind: EventProjectsReady, Projects: names})
	return names, nil
}

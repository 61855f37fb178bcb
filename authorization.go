package pcgcp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alephnan/pcgcp/client"
	"github.com/alexedwards/scs/v2"
)

const (
	// SessionEmailKey holds the verified email in the server session
	SessionEmailKey = "email"

	maxRequestBody = 1 << 20
)

// AuthorizationHandler verifies a sign-in grant and returns the caller's projects.
//
// The request body is {"code", "id_token"}. The id_token is verified first;
// only then is the code exchanged and the projects listed with the resulting
// access token. The verified email is stored in the session when one is set.
type AuthorizationHandler struct {
	Verifier  IDTokenVerifier
	Exchanger CodeExchanger
	Projects  ProjectLister
	Session   *scs.SessionManager
	Logger    *slog.Logger
}

func (h *AuthorizationHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthorizationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger().With("remote", getClientIP(r))

	var req client.VerificationRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(w, "invalid_request", "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		errorResponse(w, "invalid_request", "Please send a JSON request body", http.StatusBadRequest)
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.IDToken = strings.TrimSpace(req.IDToken)
	if req.Code == "" || req.IDToken == "" {
		errorResponse(w, "invalid_request", "code and id_token are required", http.StatusBadRequest)
		return
	}

	identity, err := h.Verifier.Verify(r.Context(), req.IDToken)
	if err != nil {
		log.Warn("Error verifying id_token", "error", err)
		errorResponse(w, "invalid_token", "Cannot verify id_token JWT", http.StatusForbidden)
		return
	}
	log = log.With("email", identity.Email)

	token, err := h.Exchanger.Exchange(r.Context(), req.Code)
	if err != nil {
		log.Warn("Error exchanging authorization code", "error", err)
		errorResponse(w, "invalid_grant", "Authorization code was rejected", http.StatusForbidden)
		return
	}
	if token == nil || token.AccessToken == "" {
		errorResponse(w, "invalid_grant", "No token response received", http.StatusForbidden)
		return
	}

	names, err := h.Projects.ListProjects(r.Context(), token)
	if err != nil {
		log.Error("Error listing projects", "error", err)
		errorResponse(w, "upstream_error", "Could not list projects", http.StatusBadGateway)
		return
	}
	if names == nil {
		names = []string{}
	}

	if h.Session != nil {
		if err := h.Session.RenewToken(r.Context()); err != nil {
			log.Warn("Error renewing session token", "error", err)
		}
		h.Session.Put(r.Context(), SessionEmailKey, identity.Email)
	}

	log.Info("Authorization verified", "projects", len(names))
	jsonResponse(w, http.StatusOK, client.VerificationResponse{Projects: names})
}

func jsonResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func errorResponse(w http.ResponseWriter, errorCode, description string, statusCode int) {
	jsonResponse(w, statusCode, client.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// getClientIP extracts the client IP from a request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

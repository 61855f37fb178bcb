package client

import (
	"encoding/json"
	"net/http"
	"strings"
)

// DefaultVerifyEndpoint is the backend path that verifies a grant
const DefaultVerifyEndpoint = "/api/authorization"

// maxReasonLength bounds how much of a plain-text error body is kept as a reason
const maxReasonLength = 256

// VerificationRequest is the body POSTed to the verification endpoint
type VerificationRequest struct {
	Code    string `json:"code"`
	IDToken string `json:"id_token"`
}

// VerificationResponse is the success body of the verification endpoint
type VerificationResponse struct {
	Projects []string `json:"projects"`
}

// ErrorResponse is the error body returned by the verification endpoint
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ParseVerificationResponse extracts the ordered project names from a
// verification response body.
func ParseVerificationResponse(body []byte) ([]string, error) {
	var raw struct {
		Projects *json.RawMessage `json:"projects"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedResponseError{Reason: "body is not a JSON object", Err: err}
	}
	if raw.Projects == nil {
		return nil, &MalformedResponseError{Reason: "missing projects field"}
	}

	// null elements decode to nil rather than ""
	var entries []*string
	if err := json.Unmarshal(*raw.Projects, &entries); err != nil {
		return nil, &MalformedResponseError{Reason: "projects is not a list of strings", Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, name := range entries {
		if name == nil {
			return nil, &MalformedResponseError{Reason: "projects is not a list of strings"}
		}
		names = append(names, *name)
	}
	return names, nil
}

// rejectionReason picks the most useful description of a failed verification
func rejectionReason(statusCode int, body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.ErrorDescription != "" {
			return errResp.ErrorDescription
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}

	text := strings.TrimSpace(string(body))
	if text != "" && !strings.HasPrefix(text, "{") {
		if len(text) > maxReasonLength {
			text = text[:maxReasonLength]
		}
		return text
	}

	if st := http.StatusText(statusCode); st != "" {
		return st
	}
	return "unexpected status"
}

package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/httpx"
)

// Stable error codes. Clients switch on these, so they never change.
const (
	CodeInvalidBody        = "invalid_body"
	CodeEmailInUse         = "email_in_use"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidRefresh     = "invalid_refresh"
	CodeRefreshRevoked     = "refresh_revoked"
	CodeRefreshExpired     = "refresh_expired"
	CodeUnauthorized       = httpx.CodeUnauthorized
	CodeForbidden          = httpx.CodeForbidden
	CodeRateLimited        = httpx.CodeRateLimited
	CodeNotFound           = "not_found"
	CodeServerError        = "server_error"
)

// APIError is an error as written by the service and as seen by the SDK.
type APIError struct {
	StatusCode int           `json:"-"`
	Code       string        `json:"error"`
	Details    *ErrorDetails `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != nil && len(e.Details.Fields) > 0 {
		return fmt.Sprintf("%s (HTTP %d): %v", e.Code, e.StatusCode, e.Details.Fields)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
}

// Is matches on code, so errors.Is(err, authsdk.ErrRefreshRevoked) works on
// errors decoded from a response.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes this error to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if e.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer`)
	}
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{Error: e.Code, Details: e.Details})
}

// WithFields returns a copy carrying per-field validation messages.
func (e *APIError) WithFields(fields map[string]string) *APIError {
	return &APIError{
		StatusCode: e.StatusCode,
		Code:       e.Code,
		Details:    &ErrorDetails{Fields: fields},
	}
}

var (
	ErrInvalidBody        = &APIError{StatusCode: http.StatusBadRequest, Code: CodeInvalidBody}
	ErrEmailInUse         = &APIError{StatusCode: http.StatusConflict, Code: CodeEmailInUse}
	ErrInvalidCredentials = &APIError{StatusCode: http.StatusUnauthorized, Code: CodeInvalidCredentials}
	ErrInvalidRefresh     = &APIError{StatusCode: http.StatusUnauthorized, Code: CodeInvalidRefresh}
	ErrRefreshRevoked     = &APIError{StatusCode: http.StatusUnauthorized, Code: CodeRefreshRevoked}
	ErrRefreshExpired     = &APIError{StatusCode: http.StatusUnauthorized, Code: CodeRefreshExpired}
	ErrUnauthorized       = &APIError{StatusCode: http.StatusUnauthorized, Code: CodeUnauthorized}
	ErrForbidden          = &APIError{StatusCode: http.StatusForbidden, Code: CodeForbidden}
	ErrRateLimited        = &APIError{StatusCode: http.StatusTooManyRequests, Code: CodeRateLimited}
	ErrNotFound           = &APIError{StatusCode: http.StatusNotFound, Code: CodeNotFound}
	ErrServerError        = &APIError{StatusCode: http.StatusInternalServerError, Code: CodeServerError}
)

// parseErrorResponse turns a non-2xx response into *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Error,
			Details:    errResp.Details,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       CodeServerError,
	}
}

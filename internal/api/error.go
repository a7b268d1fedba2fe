package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for the two failure classes callers branch on.
var (
	// ErrUnauthorized is returned after a 401 response; the registered
	// unauthorized hook has already torn the session down by the time the
	// caller sees it.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnreachable wraps transport-level failures (connection refused,
	// timeout) where no HTTP response was received.
	ErrUnreachable = errors.New("could not reach server")
)

// Error represents a non-2xx HTTP response from the API
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is an API 409 (e.g. duplicate account
// number or email/CPF already in use).
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// decodeError builds an *Error from a non-2xx response body. The backend
// answers either with a plain string or with {"message": ...} / {"error": ...},
// so all three shapes are accepted.
func decodeError(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var structured struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && (structured.Message != "" || structured.Error != "") {
		apiErr.Code = structured.Error
		apiErr.Message = structured.Message
		if apiErr.Message == "" {
			apiErr.Message = structured.Error
		}
		return apiErr
	}

	var plain string
	if err := json.Unmarshal(body, &plain); err == nil {
		apiErr.Message = plain
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

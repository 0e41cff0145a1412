// Package mcperrors defines the structured error taxonomy shared by tools, the log
// executor and the server boundary.
package mcperrors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCategory classifies the type of error
type ErrorCategory string

const (
	// ClientError indicates the error was caused by the caller (4xx)
	ClientError ErrorCategory = "CLIENT_ERROR"
	// ServerError indicates the error was caused by this server (5xx)
	ServerError ErrorCategory = "SERVER_ERROR"
	// ExternalError indicates the error was caused by the cluster or the log backend
	ExternalError ErrorCategory = "EXTERNAL_ERROR"
	// ConfigError indicates a startup configuration problem
	ConfigError ErrorCategory = "CONFIG_ERROR"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Client errors
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeMissingParameter  ErrorCode = "MISSING_PARAMETER"
	CodeInvalidQuery      ErrorCode = "INVALID_QUERY"
	CodeResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Server errors
	CodeInternalError      ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeTimeout            ErrorCode = "TIMEOUT"

	// External errors
	CodeAPIError       ErrorCode = "API_ERROR"
	CodeNetworkError   ErrorCode = "NETWORK_ERROR"
	CodeBackendControl ErrorCode = "BACKEND_CONTROL"
	CodeParseError     ErrorCode = "PARSE_ERROR"
	CodeChannelsFailed ErrorCode = "ALL_CHANNELS_FAILED"

	// Configuration errors
	CodeConfiguration ErrorCode = "CONFIGURATION"
)

// MaxMessageLength bounds messages carried in internal error results.
const MaxMessageLength = 200

// StructuredError represents a detailed error with category, code, and recovery suggestion
type StructuredError struct {
	Code       ErrorCode     `json:"code"`
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	Details    interface{}   `json:"details,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// ToJSON converts the error to JSON string
func (e *StructuredError) ToJSON() string {
	bytes, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"code":"%s","category":"%s","message":"%s"}`, e.Code, e.Category, e.Message)
	}
	return string(bytes)
}

// HTTPStatus returns the HTTP-equivalent status used in tool result envelopes.
func (e *StructuredError) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput, CodeMissingParameter, CodeInvalidQuery:
		return http.StatusBadRequest
	case CodeResourceNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable, CodeChannelsFailed:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeAPIError, CodeNetworkError:
		return http.StatusBadGateway
	}
	if e.Category == ClientError {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Envelope renders the error in the {code, error} shape returned to the agent.
func (e *StructuredError) Envelope() map[string]interface{} {
	env := map[string]interface{}{
		"code":  e.HTTPStatus(),
		"error": e.Message,
		"type":  e.Code,
	}
	if e.Suggestion != "" {
		env["suggestion"] = e.Suggestion
	}
	if e.Details != nil {
		env["details"] = e.Details
	}
	return env
}

// New creates a new structured error
func New(code ErrorCode, category ErrorCategory, message string) *StructuredError {
	return &StructuredError{
		Code:     code,
		Category: category,
		Message:  message,
	}
}

// WithDetails adds details to the error
func (e *StructuredError) WithDetails(details interface{}) *StructuredError {
	e.Details = details
	return e
}

// WithSuggestion adds a recovery suggestion to the error
func (e *StructuredError) WithSuggestion(suggestion string) *StructuredError {
	e.Suggestion = suggestion
	return e
}

// NewInvalidInput creates an invalid input error
func NewInvalidInput(message string) *StructuredError {
	return New(CodeInvalidInput, ClientError, message).
		WithSuggestion("Check the input parameters and try again")
}

// NewMissingParameter creates a missing parameter error
func NewMissingParameter(param string) *StructuredError {
	return New(CodeMissingParameter, ClientError, fmt.Sprintf("Required parameter '%s' is missing", param)).
		WithSuggestion(fmt.Sprintf("Provide the '%s' parameter", param))
}

// NewInvalidQuery creates an invalid where-clause error
func NewInvalidQuery(message string) *StructuredError {
	return New(CodeInvalidQuery, ClientError, message).
		WithSuggestion("Use _and/_or/_not with field conditions such as {\"PRIORITY\": {\"_lte\": 3}}")
}

// NewResourceNotFound creates a resource not found error
func NewResourceNotFound(resourceType, id string) *StructuredError {
	return New(CodeResourceNotFound, ClientError, fmt.Sprintf("%s '%s' not found", resourceType, id)).
		WithSuggestion("Verify the identifier and try again")
}

// NewUnauthorized creates an unauthorized error
func NewUnauthorized() *StructuredError {
	return New(CodeUnauthorized, ClientError, "Authentication required or token invalid").
		WithSuggestion("Check CROIT_API_TOKEN and try again")
}

// NewRateLimitExceeded creates a rate limit exceeded error
func NewRateLimitExceeded() *StructuredError {
	return New(CodeRateLimitExceeded, ClientError, "Rate limit exceeded").
		WithSuggestion("Wait a moment and try again")
}

// NewInternalError creates an internal error with a truncated message
func NewInternalError(message string) *StructuredError {
	return New(CodeInternalError, ServerError, Truncate(message, MaxMessageLength)).
		WithSuggestion("Try again later; if the issue persists check the server logs")
}

// NewServiceUnavailable creates a service unavailable error
func NewServiceUnavailable() *StructuredError {
	return New(CodeServiceUnavailable, ServerError, "Service temporarily unavailable").
		WithSuggestion("Try again in a few moments")
}

// NewTimeout creates a timeout error
func NewTimeout(operation string) *StructuredError {
	return New(CodeTimeout, ServerError, fmt.Sprintf("Operation '%s' timed out", operation)).
		WithSuggestion("Narrow the time range or add filters and try again")
}

// NewAPIError creates a cluster API error
func NewAPIError(statusCode int, message string) *StructuredError {
	return New(CodeAPIError, ExternalError, fmt.Sprintf("croit API error (HTTP %d): %s", statusCode, message)).
		WithDetails(map[string]interface{}{
			"status_code": statusCode,
		}).
		WithSuggestion("Check the cluster status in the croit UI")
}

// NewNetworkError creates a connectivity error
func NewNetworkError(message string) *StructuredError {
	return New(CodeNetworkError, ExternalError, message).
		WithSuggestion("Check that CROIT_HOST is reachable from this machine")
}

// NewBackendControl wraps a semantic signal from the log backend, such as a
// query that is too broad.
func NewBackendControl(signal, message string) *StructuredError {
	e := New(CodeBackendControl, ExternalError, message).
		WithDetails(map[string]interface{}{"signal": signal})
	if signal == "too_wide" {
		e.Suggestion = "Narrow the time range or add service/priority filters"
	}
	return e
}

// NewParseError describes a single record that could not be decoded.
func NewParseError(lineNumber int, cause error) *StructuredError {
	return New(CodeParseError, ExternalError, fmt.Sprintf("line %d: %v", lineNumber, cause))
}

// NewChannelsFailed reports that both log channels failed.
func NewChannelsFailed(reasons map[string]string) *StructuredError {
	return New(CodeChannelsFailed, ExternalError, "Log search failed on both the streaming and the export channel").
		WithDetails(reasons).
		WithSuggestion("Verify the log service is running and the token has log access")
}

// NewConfiguration creates a fatal configuration error
func NewConfiguration(message string) *StructuredError {
	return New(CodeConfiguration, ConfigError, message).
		WithSuggestion("Set CROIT_HOST and CROIT_API_TOKEN or provide them in the config file")
}

// FromHTTPStatus creates an appropriate error from HTTP status code
func FromHTTPStatus(statusCode int, responseBody string) *StructuredError {
	switch {
	case statusCode == 400:
		return NewInvalidInput(responseBody)
	case statusCode == 401:
		return NewUnauthorized()
	case statusCode == 403:
		return New(CodeForbidden, ClientError, "Access forbidden").
			WithSuggestion("The API token lacks the role for this endpoint")
	case statusCode == 404:
		return New(CodeResourceNotFound, ClientError, "Resource not found")
	case statusCode == 409:
		return New(CodeConflict, ClientError, "Resource conflict").
			WithSuggestion("Resource may already exist or be in use")
	case statusCode == 429:
		return NewRateLimitExceeded()
	case statusCode >= 500 && statusCode < 600:
		return NewAPIError(statusCode, responseBody)
	default:
		return New(CodeInternalError, ServerError, fmt.Sprintf("Unexpected HTTP status %d: %s", statusCode, Truncate(responseBody, MaxMessageLength)))
	}
}

// Truncate shortens s to at most n bytes, marking the cut.
func Truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

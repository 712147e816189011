package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers and pipeline stages MUST use these constants instead of
// hardcoded strings.
const (
	// Validation (400)
	ErrCodeInvalidRequest ErrorCode = "invalid_request"

	// Dispatch pipeline (per-record; never surface as HTTP responses)
	ErrCodeMessageDecode     ErrorCode = "message_decode_failed"
	ErrCodeTemplateNotFound  ErrorCode = "template_not_found"
	ErrCodeTemplateRender    ErrorCode = "template_render_failed"
	ErrCodeNoValidRecipients ErrorCode = "no_valid_recipients"
	ErrCodeEmailSend         ErrorCode = "email_send_failed"
	ErrCodeEmailBlocked      ErrorCode = "email_blocked"

	// Upstream (502)
	ErrCodeStoreUnavailable    ErrorCode = "store_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// Internal (500)
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case c == ErrCodeInvalidRequest, c == ErrCodeMessageDecode:
		return http.StatusBadRequest // 400
	case c == ErrCodeTemplateNotFound:
		return http.StatusNotFound // 404
	case c == ErrCodeUpstreamRateLimited:
		return http.StatusTooManyRequests // 429
	case c == ErrCodeStoreUnavailable,
		strings.HasPrefix(s, "upstream_"),
		c == ErrCodeEmailSend:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf extracts the ErrorCode from an error chain. Returns
// ErrCodeInternalUnexpected when the chain contains no AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}

package api

import "net/http"

// HTTPError represents an HTTP error with all data needed for rendering.
// It implements the error interface and provides structured data for
// the global ErrorHandler to log and respond with.
type HTTPError struct {
	// Err is the underlying error (for logging, not exposed to callers).
	Err error

	// Message is the caller-facing error message.
	Message string

	// ErrorCode is an application-specific error code (stable, machine-readable).
	ErrorCode string

	// RequestID is the request tracking ID.
	RequestID string

	// RetryAfter, when non-zero, is surfaced as a Retry-After response header
	// (seconds). Used for RateLimited responses (spec §7).
	RetryAfter int

	// Code is the HTTP status code (e.g., 404, 500).
	Code int
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) StatusCode() int {
	return e.Code
}

func (e *HTTPError) StatusText() string {
	return http.StatusText(e.Code)
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) { e.ErrorCode = code }
}

func WithRequestID(id string) HTTPErrorOption {
	return func(e *HTTPError) { e.RequestID = id }
}

func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) { e.Err = err }
}

func WithRetryAfter(seconds int) HTTPErrorOption {
	return func(e *HTTPError) { e.RetryAfter = seconds }
}

// Convenience constructors matching the error taxonomy in spec §7.

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return build(http.StatusBadRequest, message, opts)
}

func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return build(http.StatusUnauthorized, message, opts)
}

func ErrForbidden(message string, opts ...HTTPErrorOption) *HTTPError {
	return build(http.StatusForbidden, message, opts)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return build(http.StatusNotFound, message, opts)
}

func ErrConflict(message string, opts ...HTTPErrorOption) *HTTPError {
	return build(http.StatusConflict, message, opts)
}

func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return build(http.StatusUnprocessableEntity, message, opts)
}

func ErrTooManyRequests(message string, opts ...HTTPErrorOption) *HTTPError {
	return build(http.StatusTooManyRequests, message, opts)
}

func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return build(http.StatusInternalServerError, message, opts)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return build(http.StatusServiceUnavailable, message, opts)
}

func build(code int, message string, opts []HTTPErrorOption) *HTTPError {
	e := NewHTTPError(code, message)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsHTTPError reports whether err is an *HTTPError.
func IsHTTPError(err error) bool {
	_, ok := err.(*HTTPError)
	return ok
}

// AsHTTPError extracts the HTTPError from an error if present.
func AsHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	if httpErr, ok := err.(*HTTPError); ok {
		return httpErr
	}
	return nil
}

package domain

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// ErrorKind is the closed set of failure classes used for metrics and traces.
type ErrorKind string

// Error kinds.
const (
	ErrorKindCancelled      ErrorKind = "cancelled"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindRateLimit      ErrorKind = "rate_limit"
	ErrorKindAuthentication ErrorKind = "authentication"
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindProviderError  ErrorKind = "provider_error"
	ErrorKindNoEngine       ErrorKind = "no_engine"
	ErrorKindInternal       ErrorKind = "internal"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// ErrNoEngine is returned when no engine can serve a provider tag.
var ErrNoEngine = errors.New("no completion engine available")

// UpstreamError is a classified completion failure.
type UpstreamError struct {
	Kind     ErrorKind
	Provider ProviderTag
	Err      error
}

// NewUpstreamError wraps err with its kind and provider.
func NewUpstreamError(kind ErrorKind, provider ProviderTag, err error) *UpstreamError {
	return &UpstreamError{
		Kind:     kind,
		Provider: provider,
		Err:      err,
	}
}

// Error returns the underlying message, which is what callers see.
func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// KindFromStatus maps an upstream HTTP status code to an error kind.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrorKindAuthentication
	case status == http.StatusTooManyRequests:
		return ErrorKindRateLimit
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ErrorKindTimeout
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return ErrorKindInvalidRequest
	case status >= http.StatusInternalServerError:
		return ErrorKindProviderError
	default:
		return ErrorKindUnknown
	}
}

// ClassifyError maps err to an error kind. The request context takes
// precedence: a cancelled request is "cancelled" whatever the engine said.
func ClassifyError(ctx context.Context, err error) ErrorKind {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return ErrorKindCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrorKindTimeout
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.Kind != "" {
		return upstream.Kind
	}

	if errors.Is(err, ErrNoEngine) {
		return ErrorKindNoEngine
	}

	if errors.Is(err, context.Canceled) {
		return ErrorKindCancelled
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTimeout
	}

	return ErrorKindUnknown
}

package domain_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/ember/internal/domain"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	background := context.Background()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		ctx      context.Context
		err      error
		expected domain.ErrorKind
	}{
		{"nil error", background, nil, ""},
		{"upstream kind", background, domain.NewUpstreamError(domain.ErrorKindRateLimit, domain.ProviderOpenAI, errors.New("slow down")), domain.ErrorKindRateLimit},
		{"wrapped upstream kind", background, fmt.Errorf("call: %w", domain.NewUpstreamError(domain.ErrorKindAuthentication, "", errors.New("bad key"))), domain.ErrorKindAuthentication},
		{"no engine", background, fmt.Errorf("resolve: %w", domain.ErrNoEngine), domain.ErrorKindNoEngine},
		{"context canceled error", background, context.Canceled, domain.ErrorKindCancelled},
		{"deadline exceeded error", background, context.DeadlineExceeded, domain.ErrorKindTimeout},
		{"network timeout", background, timeoutError{}, domain.ErrorKindTimeout},
		{"cancelled request wins", cancelled, domain.NewUpstreamError(domain.ErrorKindProviderError, "", errors.New("boom")), domain.ErrorKindCancelled},
		{"anything else", background, errors.New("mystery"), domain.ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run("should classify "+tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, domain.ClassifyError(tt.ctx, tt.err))
		})
	}
}

func TestKindFromStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected domain.ErrorKind
	}{
		{http.StatusUnauthorized, domain.ErrorKindAuthentication},
		{http.StatusForbidden, domain.ErrorKindAuthentication},
		{http.StatusTooManyRequests, domain.ErrorKindRateLimit},
		{http.StatusRequestTimeout, domain.ErrorKindTimeout},
		{http.StatusGatewayTimeout, domain.ErrorKindTimeout},
		{http.StatusBadRequest, domain.ErrorKindInvalidRequest},
		{http.StatusNotFound, domain.ErrorKindInvalidRequest},
		{http.StatusBadGateway, domain.ErrorKindProviderError},
		{http.StatusOK, domain.ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			require.Equal(t, tt.expected, domain.KindFromStatus(tt.status))
		})
	}
}

func TestUpstreamError(t *testing.T) {
	t.Run("should expose the underlying message", func(t *testing.T) {
		cause := errors.New("model not found")
		err := domain.NewUpstreamError(domain.ErrorKindInvalidRequest, domain.ProviderOpenAI, cause)

		require.Equal(t, "model not found", err.Error())
		require.ErrorIs(t, err, cause)
	})

	t.Run("should fall back to the kind without a cause", func(t *testing.T) {
		err := domain.NewUpstreamError(domain.ErrorKindInternal, "", nil)
		require.Equal(t, "internal", err.Error())
	})
}

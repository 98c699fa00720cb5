package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
)

// Provider error classes. Aliased so callers can match either package.
var (
	ErrAuth        = appErr.ErrProviderAuth
	ErrRateLimited = appErr.ErrProviderRateLimited
	ErrTimeout     = appErr.ErrProviderTimeout
	ErrUnavailable = appErr.ErrProviderUnavailable
)

// classifyStatus maps an HTTP status from any provider into the normalized
// taxonomy. Unknown 4xx is treated as unavailable so it stays inspectable
// without being retried forever by accident (budget still applies).
func classifyStatus(provider string, status int, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s: status %d: %s", ErrAuth, provider, status, body)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: status %d: %s", ErrRateLimited, provider, status, body)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s: status %d: %s", ErrTimeout, provider, status, body)
	default:
		return fmt.Errorf("%w: %s: status %d: %s", ErrUnavailable, provider, status, body)
	}
}

// classifyTransport normalizes transport-level failures: deadline exceeded
// becomes timeout, everything else unavailable.
func classifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, provider, err)
}

func IsRetryable(err error) bool {
	return appErr.IsTransientProvider(err)
}

package platform

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthExchange means the authorization code was rejected. Codes are
	// single-use, so callers must not retry the exchange.
	ErrAuthExchange = errors.New("platform: authorization code exchange failed")

	// ErrRefreshRejected means the platform declared the refresh token itself
	// invalid or revoked. Terminal; only a fresh OAuth flow recovers.
	ErrRefreshRejected = errors.New("platform: refresh token rejected")

	// ErrAuthRequired means the access token was rejected on an API call.
	ErrAuthRequired = errors.New("platform: access token rejected")

	// ErrTransient covers network failures and 5xx responses.
	ErrTransient = errors.New("platform: transient failure")
)

// RateLimitedError is returned when the platform throttles us. RetryAfter is
// the platform's hint, zero when none was given.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("platform: rate limited, retry after %s", e.RetryAfter)
	}
	return "platform: rate limited"
}

func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

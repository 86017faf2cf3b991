package service

import "errors"

var (
	// ErrNotConnected is returned when an operation needs a linked account
	// and none exists (or the stored connection is no longer active).
	ErrNotConnected = errors.New("platform is not connected")

	// ErrReauthRequired means the stored credentials are dead and only a
	// fresh user-initiated OAuth flow can recover. Never retried internally.
	ErrReauthRequired = errors.New("reauthorization required")

	// ErrTemporarilyUnavailable is surfaced after transient-failure retries
	// are exhausted. Safe for the caller to retry later.
	ErrTemporarilyUnavailable = errors.New("platform temporarily unavailable")

	// ErrConnectionFailed wraps a failed OAuth code exchange.
	ErrConnectionFailed = errors.New("connection failed")

	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

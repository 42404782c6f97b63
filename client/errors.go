package client

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound         = errors.New("node not found")
	ErrBadRequest       = errors.New("store rejected the request")
	ErrUnauthorized     = errors.New("store rejected the credential")
	ErrTooLarge         = errors.New("payload exceeds store limits")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ErrRateLimited is returned when the store signals backoff. The client
// never retries on its own; RetryAfter is the store's hint for the caller.
type ErrRateLimited struct {
	RetryAfter time.Duration
	Message    string
}

func (e *ErrRateLimited) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rate limited: %s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (retry after %v)", e.RetryAfter)
}

// errorResponse is the store's error body shape. RetryAfter is in
// milliseconds and only present on 429 responses.
type errorResponse struct {
	Error      string `json:"error,omitempty"`
	RetryAfter int64  `json:"retryAfter,omitempty"`
}

package core

import (
	"net/http"
	"time"
)

// NewHTTPClient returns an HTTP client with the given timeout.
// A zero timeout means no client-side limit, which is appropriate for
// synchronous generation calls that may sit behind a cold start.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// DefaultRequestTimeout bounds short control-plane calls (health, status).
const DefaultRequestTimeout = 10 * time.Second

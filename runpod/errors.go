package runpod

import (
	"errors"
	"fmt"
)

// Sentinel errors for client operations.
var (
	// ErrJobTimeout indicates GetResult exceeded its wait budget
	// before the job reached a terminal status.
	ErrJobTimeout = errors.New("runpod: timed out waiting for job result")

	// ErrJobFailed indicates the platform reported FAILED.
	ErrJobFailed = errors.New("runpod: job failed")

	// ErrJobCancelled indicates the job was cancelled before completion.
	ErrJobCancelled = errors.New("runpod: job cancelled")

	// ErrUnknownStatus indicates the platform returned a job status the
	// client does not recognize.
	ErrUnknownStatus = errors.New("runpod: unknown job status")

	// ErrMissingEndpoint indicates no endpoint ID was configured.
	ErrMissingEndpoint = errors.New("runpod: endpoint ID is required")
)

// APIError is a non-2xx response from the platform API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("runpod: API returned status %d: %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether the error is a 401/403 API response.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

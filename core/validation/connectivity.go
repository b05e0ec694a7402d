package validation

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"zimage_worker/core"
)

// ConnectivityChecker probes the platform API so misconfigured networks
// fail at startup rather than on the first job.
type ConnectivityChecker struct {
	timeout time.Duration
	client  *http.Client
}

// NewConnectivityChecker creates a checker with a 10 second timeout.
func NewConnectivityChecker() *ConnectivityChecker {
	return &ConnectivityChecker{
		timeout: core.DefaultRequestTimeout,
	}
}

// WithTimeout sets the probe timeout.
func (c *ConnectivityChecker) WithTimeout(timeout time.Duration) *ConnectivityChecker {
	c.timeout = timeout
	c.client = nil
	return c
}

// WithClient injects a custom HTTP client, used by tests.
func (c *ConnectivityChecker) WithClient(client *http.Client) *ConnectivityChecker {
	c.client = client
	return c
}

// CheckEndpoint probes the configured endpoint's health route. Skipped
// (reported as a warning) when no endpoint is configured, which is the
// normal state for a purely local setup.
func (c *ConnectivityChecker) CheckEndpoint() (bool, string, error) {
	endpointID := os.Getenv("RUNPOD_ENDPOINT_ID")
	if endpointID == "" {
		return false, "RUNPOD_ENDPOINT_ID not set, skipping probe", nil
	}

	baseURL := os.Getenv("RUNPOD_API_BASE_URL")
	if baseURL == "" {
		baseURL = core.DefaultAPIBaseURL
	}
	url := fmt.Sprintf("%s/%s/health", baseURL, endpointID)

	client := c.client
	if client == nil {
		client = core.NewHTTPClient(c.timeout)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false, "", err
	}
	if key := os.Getenv("RUNPOD_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, "", core.ErrServerUnreachable(url, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, "", core.ErrMissingAuth("runpod")
	}
	if resp.StatusCode >= 500 {
		return false, fmt.Sprintf("endpoint returned %d", resp.StatusCode), nil
	}

	return true, fmt.Sprintf("endpoint %s reachable", endpointID), nil
}

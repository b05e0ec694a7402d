package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"zimage_worker/handler"
)

// DefaultBaseURL is the public serverless API root.
const DefaultBaseURL = "https://api.runpod.ai/v2"

// DefaultPollInterval is the delay between status checks in GetResult.
const DefaultPollInterval = 1 * time.Second

// Client talks to one serverless endpoint. All methods are safe for
// concurrent use.
type Client struct {
	baseURL      string
	endpointID   string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, mainly for tests and
// self-hosted deployments.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPollInterval sets the delay between status checks in GetResult.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewClient creates a client for the given endpoint. apiKey may be
// empty for endpoints that do not require authentication (local dev
// servers).
func NewClient(endpointID, apiKey string, opts ...Option) (*Client, error) {
	if endpointID == "" {
		return nil, ErrMissingEndpoint
	}

	c := &Client{
		baseURL:      DefaultBaseURL,
		endpointID:   endpointID,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		pollInterval: DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// EndpointID returns the configured endpoint ID.
func (c *Client) EndpointID() string {
	return c.endpointID
}

// RunSync submits a job and blocks until the platform returns the
// result. The platform holds the connection open; long generations
// should prefer Run plus GetResult.
func (c *Client) RunSync(ctx context.Context, input handler.JobInput) (*JobResponse, error) {
	var resp JobResponse
	if err := c.post(ctx, "runsync", JobRequest{Input: input}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Run submits a job asynchronously and returns immediately with the
// job ID and initial status.
func (c *Client) Run(ctx context.Context, input handler.JobInput) (*JobResponse, error) {
	var resp JobResponse
	if err := c.post(ctx, "run", JobRequest{Input: input}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the current state of a previously submitted job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.get(ctx, "status/"+jobID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel requests cancellation of a queued or running job.
func (c *Client) Cancel(ctx context.Context, jobID string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.post(ctx, "cancel/"+jobID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches worker and queue counts for the endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var resp HealthStatus
	if err := c.get(ctx, "health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("runpod: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("runpod: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return fmt.Errorf("runpod: failed to build request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("runpod: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("runpod: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("runpod: failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.endpointID, path)
}

package runpod

import (
	"context"
	"fmt"
	"time"

	"zimage_worker/handler"
)

// DefaultMaxWait is the default budget for GetResult.
const DefaultMaxWait = 5 * time.Minute

// GetResult polls the job status until it reaches a terminal state or
// maxWait elapses. maxWait <= 0 uses DefaultMaxWait. Returns
// ErrJobTimeout when the budget runs out, ErrJobFailed or
// ErrJobCancelled when the platform reports those states, and
// ErrUnknownStatus immediately on a status string the client does not
// recognize; the response is returned alongside the error for
// inspection.
func (c *Client) GetResult(ctx context.Context, jobID string, maxWait time.Duration) (*JobResponse, error) {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch resp.Status {
		case StatusCompleted:
			return resp, nil
		case StatusFailed, StatusTimedOut:
			return resp, fmt.Errorf("%w: %s", ErrJobFailed, resp.Error)
		case StatusCancelled:
			return resp, ErrJobCancelled
		case StatusInQueue, StatusInProgress:
			// Keep polling.
		default:
			return resp, fmt.Errorf("%w: %q", ErrUnknownStatus, resp.Status)
		}

		if time.Now().After(deadline) {
			return resp, fmt.Errorf("%w: job %s still %s after %s",
				ErrJobTimeout, jobID, resp.Status, maxWait)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return resp, ctx.Err()
		}
	}
}

// RunAndWait submits a job asynchronously and polls until completion.
// Convenience wrapper over Run and GetResult.
func (c *Client) RunAndWait(ctx context.Context, input handler.JobInput, maxWait time.Duration) (*JobResponse, error) {
	submitted, err := c.Run(ctx, input)
	if err != nil {
		return nil, err
	}

	if submitted.Status.Terminal() {
		return submitted, nil
	}

	return c.GetResult(ctx, submitted.ID, maxWait)
}

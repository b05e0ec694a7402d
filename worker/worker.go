// Package worker runs the serverless poll loop: take a job from the
// platform queue, hand it to the job handler, post the result back.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zimage_worker/handler"
	"zimage_worker/logging"
)

// Default loop timings.
const (
	DefaultPollInterval = 1 * time.Second
	DefaultMaxBackoff   = 30 * time.Second
)

// jobResult is the envelope posted back to the done URL. Exactly one
// of Output or Error is set.
type jobResult struct {
	ID     string             `json:"id"`
	Output *handler.JobOutput `json:"output,omitempty"`
	Error  *handler.JobError  `json:"error,omitempty"`
}

// Worker pulls jobs from a take URL and reports results to a done
// URL. A 204 from the take URL means the queue is empty.
type Worker struct {
	takeURL      string
	doneURL      string
	handler      *handler.Handler
	log          *logging.Logger
	httpClient   *http.Client
	pollInterval time.Duration
	maxBackoff   time.Duration
}

// Config holds worker construction parameters.
type Config struct {
	TakeURL      string
	DoneURL      string
	PollInterval time.Duration // defaults to DefaultPollInterval
	HTTPClient   *http.Client  // defaults to a 2 minute timeout client
}

// New creates a worker. TakeURL and DoneURL are required.
func New(cfg Config, h *handler.Handler, log *logging.Logger) (*Worker, error) {
	if cfg.TakeURL == "" || cfg.DoneURL == "" {
		return nil, fmt.Errorf("worker: both take and done URLs are required")
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}

	return &Worker{
		takeURL:      cfg.TakeURL,
		doneURL:      cfg.DoneURL,
		handler:      h,
		log:          log,
		httpClient:   hc,
		pollInterval: interval,
		maxBackoff:   DefaultMaxBackoff,
	}, nil
}

// Run polls for jobs until ctx is cancelled. Transport errors back
// off exponentially up to maxBackoff and never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Infow("worker started",
		"take_url", w.takeURL,
		"poll_interval", w.pollInterval.String(),
	)

	backoff := w.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			w.log.Info("worker stopping")
			return err
		}

		job, err := w.takeJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("worker stopping")
				return ctx.Err()
			}
			w.log.Warnw("failed to take job", "error", err.Error(), "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = minDuration(backoff*2, w.maxBackoff)
			continue
		}
		backoff = w.pollInterval

		if job == nil {
			// Queue empty.
			if !sleepCtx(ctx, w.pollInterval) {
				w.log.Info("worker stopping")
				return ctx.Err()
			}
			continue
		}

		w.process(ctx, *job)
	}
}

// process runs the handler and reports the result. The job is
// reported as failed only through the error envelope; the handler
// itself never returns a transport error.
func (w *Worker) process(ctx context.Context, job handler.Job) {
	result := w.handler.Handle(ctx, job)

	envelope := jobResult{ID: job.ID}
	switch v := result.(type) {
	case *handler.JobOutput:
		envelope.Output = v
	case *handler.JobError:
		envelope.Error = v
	default:
		envelope.Error = &handler.JobError{
			Error: fmt.Sprintf("unexpected handler result type %T", result),
		}
	}

	if err := w.reportResult(ctx, envelope); err != nil {
		w.log.Errorw("failed to report job result",
			"job_id", job.ID,
			"error", err.Error(),
		)
	}
}

// takeJob requests one job from the take URL. Returns (nil, nil) when
// the queue is empty.
func (w *Worker) takeJob(ctx context.Context) (*handler.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.takeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build take request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("take request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	case http.StatusOK:
		var job handler.Job
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return nil, fmt.Errorf("decode job: %w", err)
		}
		if job.ID == "" {
			return nil, fmt.Errorf("job missing id")
		}
		return &job, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("take returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// reportResult posts the result envelope to the done URL.
func (w *Worker) reportResult(ctx context.Context, result jobResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.doneURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build done request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("done request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("done returned status %d", resp.StatusCode)
	}

	return nil
}

// sleepCtx waits for d or until ctx is done. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// Package runpod implements a client for RunPod serverless endpoints:
// synchronous runs, asynchronous submission with status polling, job
// cancellation, and endpoint health.
package runpod

import (
	"encoding/json"
	"fmt"

	"zimage_worker/handler"
)

// JobStatus is the lifecycle state reported by the platform.
type JobStatus string

const (
	StatusInQueue    JobStatus = "IN_QUEUE"
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
	StatusCancelled  JobStatus = "CANCELLED"
	StatusTimedOut   JobStatus = "TIMED_OUT"
)

// Terminal reports whether the status is final and polling can stop.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// JobRequest is the envelope posted to /run and /runsync.
type JobRequest struct {
	Input handler.JobInput `json:"input"`
}

// JobResponse is returned by /run, /runsync, /status, and /cancel.
// Output is left raw so callers decode into their own type.
type JobResponse struct {
	ID            string          `json:"id"`
	Status        JobStatus       `json:"status"`
	Output        json.RawMessage `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	DelayTime     int64           `json:"delayTime,omitempty"`
	ExecutionTime int64           `json:"executionTime,omitempty"`
}

// DecodeOutput unmarshals the job output into v. Returns an error if
// the job has no output.
func (r *JobResponse) DecodeOutput(v any) error {
	if len(r.Output) == 0 {
		return fmt.Errorf("runpod: job %s has no output (status %s)", r.ID, r.Status)
	}
	return json.Unmarshal(r.Output, v)
}

// DecodeImageOutput unmarshals the output as the image generation
// payload produced by the worker.
func (r *JobResponse) DecodeImageOutput() (*handler.JobOutput, error) {
	var out handler.JobOutput
	if err := r.DecodeOutput(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WorkerCounts reports endpoint worker states from /health.
type WorkerCounts struct {
	Idle         int `json:"idle"`
	Initializing int `json:"initializing"`
	Ready        int `json:"ready"`
	Running      int `json:"running"`
	Throttled    int `json:"throttled"`
	Unhealthy    int `json:"unhealthy"`
}

// JobCounts reports endpoint queue depths from /health.
type JobCounts struct {
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	InProgress int `json:"inProgress"`
	InQueue    int `json:"inQueue"`
	Retried    int `json:"retried"`
}

// HealthStatus is the /health response.
type HealthStatus struct {
	Workers WorkerCounts `json:"workers"`
	Jobs    JobCounts    `json:"jobs"`
}

package runpod

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"zimage_worker/handler"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithBaseURL(srv.URL), WithPollInterval(5 * time.Millisecond)}, opts...)
	c, err := NewClient("test-endpoint", "rpa_test_key", opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewClient("", "key"); !errors.Is(err, ErrMissingEndpoint) {
		t.Errorf("expected ErrMissingEndpoint, got: %v", err)
	}
}

func TestRunSync(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/test-endpoint/runsync", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer rpa_test_key" {
			t.Errorf("missing bearer auth, got %q", got)
		}

		var req JobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Input.Prompt != "a koi pond" {
			t.Errorf("unexpected prompt: %q", req.Input.Prompt)
		}

		json.NewEncoder(w).Encode(JobResponse{
			ID:     "sync-1",
			Status: StatusCompleted,
			Output: json.RawMessage(`{"image":"aGk=","format":"base64","prompt":"a koi pond","seed":5,"height":1024,"width":1024}`),
		})
	})

	c := newTestClient(t, mux)

	resp, err := c.RunSync(context.Background(), handler.JobInput{Prompt: "a koi pond"})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if resp.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", resp.Status)
	}

	out, err := resp.DecodeImageOutput()
	if err != nil {
		t.Fatalf("DecodeImageOutput failed: %v", err)
	}
	if out.Seed != 5 || out.Format != "base64" {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestRun_ReturnsJobID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/test-endpoint/run", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JobResponse{ID: "async-1", Status: StatusInQueue})
	})

	c := newTestClient(t, mux)

	resp, err := c.Run(context.Background(), handler.JobInput{Prompt: "queued"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.ID != "async-1" || resp.Status != StatusInQueue {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestStatus_And_Cancel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/test-endpoint/status/job-9", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JobResponse{ID: "job-9", Status: StatusInProgress})
	})
	mux.HandleFunc("/test-endpoint/cancel/job-9", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("cancel should POST, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(JobResponse{ID: "job-9", Status: StatusCancelled})
	})

	c := newTestClient(t, mux)

	st, err := c.Status(context.Background(), "job-9")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Status != StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", st.Status)
	}

	cancelled, err := c.Cancel(context.Background(), "job-9")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}
}

func TestHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/test-endpoint/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HealthStatus{
			Workers: WorkerCounts{Ready: 2, Running: 1},
			Jobs:    JobCounts{InQueue: 3},
		})
	})

	c := newTestClient(t, mux)

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if h.Workers.Ready != 2 || h.Jobs.InQueue != 3 {
		t.Errorf("unexpected health: %+v", h)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))

	_, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected error for 401 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got: %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", apiErr.StatusCode)
	}
	if !IsAuthError(err) {
		t.Error("IsAuthError should match 401")
	}
}

func TestGetResult_PollsUntilComplete(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/test-endpoint/status/job-2", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		status := StatusInProgress
		var output json.RawMessage
		if n >= 3 {
			status = StatusCompleted
			output = json.RawMessage(`{"image":"eA==","format":"base64"}`)
		}
		json.NewEncoder(w).Encode(JobResponse{ID: "job-2", Status: status, Output: output})
	})

	c := newTestClient(t, mux)

	resp, err := c.GetResult(context.Background(), "job-2", time.Second)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if resp.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", resp.Status)
	}
	if atomic.LoadInt32(&calls) < 3 {
		t.Errorf("expected at least 3 polls, got %d", calls)
	}
}

func TestGetResult_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/test-endpoint/status/job-3", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JobResponse{ID: "job-3", Status: StatusInQueue})
	})

	c := newTestClient(t, mux)

	resp, err := c.GetResult(context.Background(), "job-3", 30*time.Millisecond)
	if !errors.Is(err, ErrJobTimeout) {
		t.Fatalf("expected ErrJobTimeout, got: %v", err)
	}
	if resp == nil || resp.Status != StatusInQueue {
		t.Errorf("timeout should return last response, got: %+v", resp)
	}
}

func TestGetResult_UnknownStatus(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/test-endpoint/status/job-8", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(JobResponse{ID: "job-8", Status: JobStatus("SOMETHING_NEW")})
	})

	c := newTestClient(t, mux)

	resp, err := c.GetResult(context.Background(), "job-8", time.Second)
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got: %v", err)
	}
	if !strings.Contains(err.Error(), "SOMETHING_NEW") {
		t.Errorf("error should name the status, got: %v", err)
	}
	if resp == nil || resp.Status != JobStatus("SOMETHING_NEW") {
		t.Errorf("response should be returned for inspection, got: %+v", resp)
	}
	// No further polling after the unrecognized status.
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly 1 status call, got %d", got)
	}
}

func TestGetResult_FailedJob(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/test-endpoint/status/job-4", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JobResponse{ID: "job-4", Status: StatusFailed, Error: "prompt is required"})
	})

	c := newTestClient(t, mux)

	resp, err := c.GetResult(context.Background(), "job-4", time.Second)
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got: %v", err)
	}
	if resp.Error != "prompt is required" {
		t.Errorf("unexpected platform error: %q", resp.Error)
	}
}

func TestRunAndWait(t *testing.T) {
	var statusCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/test-endpoint/run", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JobResponse{ID: "job-5", Status: StatusInQueue})
	})
	mux.HandleFunc("/test-endpoint/status/job-5", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&statusCalls, 1)
		status := StatusInProgress
		if n >= 2 {
			status = StatusCompleted
		}
		json.NewEncoder(w).Encode(JobResponse{ID: "job-5", Status: status})
	})

	c := newTestClient(t, mux)

	resp, err := c.RunAndWait(context.Background(), handler.JobInput{Prompt: "combined"}, time.Second)
	if err != nil {
		t.Fatalf("RunAndWait failed: %v", err)
	}
	if resp.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", resp.Status)
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{StatusInQueue, false},
		{StatusInProgress, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
		{StatusTimedOut, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

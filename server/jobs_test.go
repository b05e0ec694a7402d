package server

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"zimage_worker/handler"
	"zimage_worker/logging"
	"zimage_worker/runpod"
	"zimage_worker/zimage"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.NewLogger(true, filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

func testHandler(t *testing.T) *handler.Handler {
	t.Helper()
	gen, err := zimage.NewGenerator(1, "")
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	t.Cleanup(func() { gen.Close() })
	return handler.NewHandler(gen, testLogger(t), 30*time.Second)
}

func smallInput(prompt string) handler.JobInput {
	w, h := 256, 256
	return handler.JobInput{Prompt: prompt, Width: &w, Height: &h}
}

func waitForStatus(t *testing.T, q *JobQueue, id string, want runpod.JobStatus) QueuedJob {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		job, err := q.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if job.Status == want {
			return job
		}
		if job.Status.Terminal() {
			t.Fatalf("job reached %s while waiting for %s", job.Status, want)
		}
		select {
		case <-deadline:
			t.Fatalf("job never reached %s, still %s", want, job.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestJobQueue_SubmitAndComplete(t *testing.T) {
	q := NewJobQueue(testHandler(t), testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1)

	job, err := q.Submit(smallInput("queued generation"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != runpod.StatusInQueue {
		t.Errorf("expected IN_QUEUE, got %s", job.Status)
	}
	if job.ID == "" {
		t.Error("expected a generated job ID")
	}

	done := waitForStatus(t, q, job.ID, runpod.StatusCompleted)
	if done.Output == nil || done.Output.Image == "" {
		t.Error("completed job should carry output")
	}
	if done.Error != nil {
		t.Errorf("completed job should not carry error: %+v", done.Error)
	}
}

func TestJobQueue_FailedJob(t *testing.T) {
	q := NewJobQueue(testHandler(t), testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1)

	job, err := q.Submit(handler.JobInput{}) // no prompt
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	failed := waitForStatus(t, q, job.ID, runpod.StatusFailed)
	if failed.Error == nil || failed.Error.Error == "" {
		t.Error("failed job should carry an error envelope")
	}
	if failed.Output != nil {
		t.Error("failed job should not carry output")
	}
}

func TestJobQueue_GetMissing(t *testing.T) {
	q := NewJobQueue(testHandler(t), testLogger(t))

	if _, err := q.Get("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got: %v", err)
	}
}

func TestJobQueue_CancelQueued(t *testing.T) {
	q := NewJobQueue(testHandler(t), testLogger(t))
	// Workers never started, so the job stays queued.

	job, err := q.Submit(smallInput("to cancel"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	cancelled, err := q.Cancel(job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != runpod.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}

	// Cancelling again is rejected.
	if _, err := q.Cancel(job.ID); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("expected ErrNotCancelable, got: %v", err)
	}
}

func TestJobQueue_OnUpdateNotified(t *testing.T) {
	q := NewJobQueue(testHandler(t), testLogger(t))

	updates := make(chan QueuedJob, 16)
	q.OnUpdate(func(job QueuedJob) { updates <- job })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1)

	if _, err := q.Submit(smallInput("observed")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	var seen []runpod.JobStatus
	deadline := time.After(5 * time.Second)
	for len(seen) < 3 {
		select {
		case job := <-updates:
			seen = append(seen, job.Status)
		case <-deadline:
			t.Fatalf("expected 3 updates, got %v", seen)
		}
	}

	want := []runpod.JobStatus{runpod.StatusInQueue, runpod.StatusInProgress, runpod.StatusCompleted}
	for i, status := range want {
		if seen[i] != status {
			t.Errorf("update %d: expected %s, got %s", i, status, seen[i])
		}
	}
}

package handler

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"zimage_worker/logging"
	"zimage_worker/zimage"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	log, err := logging.NewLogger(true, filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { log.Sync() })

	gen, err := zimage.NewGenerator(1, "")
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	t.Cleanup(func() { gen.Close() })

	return NewHandler(gen, log, 30*time.Second)
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestHandle_DefaultsApplied(t *testing.T) {
	h := newTestHandler(t)

	result := h.Handle(context.Background(), Job{
		ID:    "job-1",
		Input: JobInput{Prompt: "a red bicycle"},
	})

	out, ok := result.(*JobOutput)
	if !ok {
		t.Fatalf("expected *JobOutput, got %T: %+v", result, result)
	}

	if out.Format != ImageFormat {
		t.Errorf("expected format %q, got %q", ImageFormat, out.Format)
	}
	if out.Width != zimage.DefaultWidth || out.Height != zimage.DefaultHeight {
		t.Errorf("expected default dimensions, got %dx%d", out.Width, out.Height)
	}
	if out.Prompt != "a red bicycle" {
		t.Errorf("unexpected prompt echo: %q", out.Prompt)
	}
	if out.Seed < 0 {
		t.Errorf("expected concrete seed in output, got %d", out.Seed)
	}

	data, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		t.Fatalf("image is not valid base64: %v", err)
	}
	if err := zimage.ValidateImageData(data); err != nil {
		t.Errorf("decoded image failed validation: %v", err)
	}
}

func TestHandle_MissingPrompt(t *testing.T) {
	h := newTestHandler(t)

	result := h.Handle(context.Background(), Job{ID: "job-2"})

	jerr, ok := result.(*JobError)
	if !ok {
		t.Fatalf("expected *JobError, got %T", result)
	}
	if !strings.Contains(jerr.Error, "prompt") {
		t.Errorf("error should mention prompt: %q", jerr.Error)
	}
	if jerr.Traceback == "" {
		t.Error("error envelope should carry a traceback")
	}
}

func TestHandle_InvalidDimensions(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name  string
		input JobInput
	}{
		{"width not divisible by 8", JobInput{Prompt: "x", Width: intPtr(1025)}},
		{"height not divisible by 8", JobInput{Prompt: "x", Height: intPtr(1030)}},
		{"width too small", JobInput{Prompt: "x", Width: intPtr(64)}},
		{"height too large", JobInput{Prompt: "x", Height: intPtr(4096)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := h.Handle(context.Background(), Job{ID: "job-3", Input: tt.input})
			if _, ok := result.(*JobError); !ok {
				t.Fatalf("expected *JobError, got %T", result)
			}
		})
	}
}

func TestHandle_FixedSeedDeterministic(t *testing.T) {
	h := newTestHandler(t)

	job := Job{
		ID: "job-4",
		Input: JobInput{
			Prompt: "reproducible output",
			Width:  intPtr(256),
			Height: intPtr(256),
			Seed:   int64Ptr(7),
		},
	}

	first, ok := h.Handle(context.Background(), job).(*JobOutput)
	if !ok {
		t.Fatal("first run did not succeed")
	}
	second, ok := h.Handle(context.Background(), job).(*JobOutput)
	if !ok {
		t.Fatal("second run did not succeed")
	}

	if first.Image != second.Image {
		t.Error("same seed should produce identical base64 output")
	}
	if first.Seed != 7 || second.Seed != 7 {
		t.Errorf("seed echo mismatch: %d, %d", first.Seed, second.Seed)
	}
}

func TestHandle_PanicRecovered(t *testing.T) {
	log, err := logging.NewLogger(true, filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer log.Sync()

	// Nil generator makes generation dereference nil, exercising the
	// recover path.
	h := NewHandler(nil, log, 0)

	result := h.Handle(context.Background(), Job{
		ID:    "job-5",
		Input: JobInput{Prompt: "boom"},
	})

	jerr, ok := result.(*JobError)
	if !ok {
		t.Fatalf("expected *JobError after panic, got %T", result)
	}
	if !strings.Contains(jerr.Error, "panic") {
		t.Errorf("error should mention panic: %q", jerr.Error)
	}
	if jerr.Traceback == "" {
		t.Error("panic envelope should carry a stack trace")
	}
}

type recordingObserver struct {
	mu        sync.Mutex
	completed int
	failed    int
	lastErr   string
}

func (o *recordingObserver) JobCompleted(_ context.Context, _ Job, _ *JobOutput, _ []byte, _ time.Duration) {
	o.mu.Lock()
	o.completed++
	o.mu.Unlock()
}

func (o *recordingObserver) JobFailed(_ context.Context, _ Job, errMsg string, _ time.Duration) {
	o.mu.Lock()
	o.failed++
	o.lastErr = errMsg
	o.mu.Unlock()
}

type upperEnhancer struct{}

func (upperEnhancer) Enhance(_ context.Context, original string) string {
	return strings.ToUpper(original)
}

func TestHandle_EnhancerAppliedToPrompt(t *testing.T) {
	h := newTestHandler(t)
	h.SetEnhancer(upperEnhancer{})

	result := h.Handle(context.Background(), Job{
		ID:    "job-8",
		Input: JobInput{Prompt: "quiet harbor", Width: intPtr(256), Height: intPtr(256)},
	})

	out, ok := result.(*JobOutput)
	if !ok {
		t.Fatalf("expected *JobOutput, got %T", result)
	}
	if out.Prompt != "QUIET HARBOR" {
		t.Errorf("enhanced prompt should be echoed, got %q", out.Prompt)
	}
}

func TestHandle_ObserverNotified(t *testing.T) {
	h := newTestHandler(t)
	obs := &recordingObserver{}
	h.SetObserver(obs)

	h.Handle(context.Background(), Job{
		ID:    "job-6",
		Input: JobInput{Prompt: "observer test", Width: intPtr(256), Height: intPtr(256)},
	})
	h.Handle(context.Background(), Job{ID: "job-7"})

	if obs.completed != 1 {
		t.Errorf("expected 1 completion, got %d", obs.completed)
	}
	if obs.failed != 1 {
		t.Errorf("expected 1 failure, got %d", obs.failed)
	}
	if !strings.Contains(obs.lastErr, "prompt") {
		t.Errorf("failure message should mention prompt: %q", obs.lastErr)
	}
}

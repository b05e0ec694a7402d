package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"runtime/debug"
	"time"

	"zimage_worker/logging"
	"zimage_worker/zimage"
)

// Observer receives the outcome of each handled job. Implementations
// wire persistence, metrics, and live updates without the handler
// knowing about them.
type Observer interface {
	JobCompleted(ctx context.Context, job Job, out *JobOutput, imageData []byte, duration time.Duration)
	JobFailed(ctx context.Context, job Job, errMsg string, duration time.Duration)
}

// PromptEnhancer rewrites a prompt before generation. Implementations
// must fall back to the original text on failure rather than erroring.
type PromptEnhancer interface {
	Enhance(ctx context.Context, original string) string
}

// Handler processes jobs against a zimage.Generator.
type Handler struct {
	gen      *zimage.Generator
	log      *logging.Logger
	observer Observer
	enhancer PromptEnhancer
	timeout  time.Duration
}

// NewHandler creates a job handler. timeout bounds each generation;
// zero means no per-job timeout beyond the caller's context.
func NewHandler(gen *zimage.Generator, log *logging.Logger, timeout time.Duration) *Handler {
	return &Handler{
		gen:     gen,
		log:     log,
		timeout: timeout,
	}
}

// SetObserver attaches an observer for job outcomes. Must be called
// before Handle; not safe to swap concurrently with handling.
func (h *Handler) SetObserver(o Observer) {
	h.observer = o
}

// SetEnhancer attaches an optional prompt enhancer. Same constraints
// as SetObserver.
func (h *Handler) SetEnhancer(e PromptEnhancer) {
	h.enhancer = e
}

// Handle processes one job and returns either *JobOutput or
// *JobError. It never panics; panics inside generation are converted
// into an error envelope carrying the stack trace.
func (h *Handler) Handle(ctx context.Context, job Job) (result any) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			h.log.Errorw("job handler panicked",
				"job_id", job.ID,
				"panic", fmt.Sprintf("%v", r),
			)
			msg := fmt.Sprintf("panic: %v", r)
			h.notifyFailed(ctx, job, msg, time.Since(start))
			result = &JobError{Error: msg, Traceback: stack}
		}
	}()

	params, err := h.resolveParams(job.Input)
	if err != nil {
		return h.fail(ctx, job, err, start)
	}

	if h.enhancer != nil {
		params.Prompt = h.enhancer.Enhance(ctx, params.Prompt)
	}

	h.log.Infow("job started",
		"job_id", job.ID,
		"prompt", params.Prompt,
		"width", params.Width,
		"height", params.Height,
		"steps", params.Steps,
	)

	genCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.gen.GenerateWithResult(genCtx, params)
	if err != nil {
		return h.fail(ctx, job, err, start)
	}

	out := &JobOutput{
		Image:  base64.StdEncoding.EncodeToString(res.ImageData),
		Format: ImageFormat,
		Prompt: params.Prompt,
		Seed:   res.Seed,
		Height: res.Height,
		Width:  res.Width,
	}

	duration := time.Since(start)
	h.log.Infow("job completed",
		"job_id", job.ID,
		"seed", out.Seed,
		"duration_ms", duration.Milliseconds(),
		"image_bytes", len(res.ImageData),
	)

	if h.observer != nil {
		h.observer.JobCompleted(ctx, job, out, res.ImageData, duration)
	}

	return out
}

// resolveParams applies defaults to the job input and validates the
// resulting parameters.
func (h *Handler) resolveParams(in JobInput) (zimage.GenerateParams, error) {
	params := zimage.DefaultParams()

	if in.Prompt == "" {
		return params, fmt.Errorf("%w: prompt is required", zimage.ErrInvalidPrompt)
	}
	params.Prompt = zimage.SanitizePrompt(in.Prompt)

	if in.Width != nil {
		params.Width = *in.Width
	}
	if in.Height != nil {
		params.Height = *in.Height
	}
	if in.Steps != nil {
		params.Steps = *in.Steps
	}
	if in.GuidanceScale != nil {
		params.GuidanceScale = *in.GuidanceScale
	}
	if in.Seed != nil {
		params.Seed = *in.Seed
	}

	if err := zimage.ValidateParams(params); err != nil {
		return params, err
	}

	return params, nil
}

// fail logs the error and builds the error envelope.
func (h *Handler) fail(ctx context.Context, job Job, err error, start time.Time) *JobError {
	duration := time.Since(start)
	h.log.Errorw("job failed",
		"job_id", job.ID,
		"error", err.Error(),
		"duration_ms", duration.Milliseconds(),
	)

	h.notifyFailed(ctx, job, err.Error(), duration)

	return &JobError{
		Error:     err.Error(),
		Traceback: string(debug.Stack()),
	}
}

func (h *Handler) notifyFailed(ctx context.Context, job Job, msg string, duration time.Duration) {
	if h.observer != nil {
		h.observer.JobFailed(ctx, job, msg, duration)
	}
}

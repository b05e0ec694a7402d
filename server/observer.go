package server

import (
	"context"
	"time"

	"zimage_worker/db"
	"zimage_worker/handler"
	"zimage_worker/imaging"
	"zimage_worker/logging"
	"zimage_worker/metrics"
	"zimage_worker/zimage"
)

// GenerationObserver fans job outcomes out to the history database
// and the metrics store. Any of repo or store may be nil; recording
// failures are logged and never affect the job result.
type GenerationObserver struct {
	repo  *db.GenerationRepository
	store *metrics.Store
	log   *logging.Logger
}

// NewGenerationObserver wires the observer. Implements
// handler.Observer.
func NewGenerationObserver(repo *db.GenerationRepository, store *metrics.Store, log *logging.Logger) *GenerationObserver {
	return &GenerationObserver{repo: repo, store: store, log: log}
}

// JobCompleted records a successful generation.
func (o *GenerationObserver) JobCompleted(ctx context.Context, job handler.Job, out *handler.JobOutput, imageData []byte, duration time.Duration) {
	if o.store != nil {
		o.store.RecordJob(metrics.JobRecord{
			JobID:    job.ID,
			Prompt:   out.Prompt,
			Width:    out.Width,
			Height:   out.Height,
			Steps:    stepsOf(job.Input),
			Seed:     out.Seed,
			Success:  true,
			Duration: duration,
		})
	}

	if o.repo != nil {
		preview, err := imaging.Thumbnail(imageData, imaging.DefaultPreviewSize)
		if err != nil {
			o.log.Warnw("failed to build preview thumbnail",
				"job_id", job.ID,
				"error", err.Error(),
			)
			preview = nil
		}

		rec := db.GenerationRecord{
			JobID:      job.ID,
			Prompt:     out.Prompt,
			Width:      out.Width,
			Height:     out.Height,
			Steps:      stepsOf(job.Input),
			Seed:       out.Seed,
			Status:     db.StatusCompleted,
			DurationMs: duration.Milliseconds(),
			Preview:    preview,
		}
		if job.Input.GuidanceScale != nil {
			rec.GuidanceScale = *job.Input.GuidanceScale
		}

		if _, err := o.repo.Save(ctx, rec); err != nil {
			o.log.Warnw("failed to persist generation record",
				"job_id", job.ID,
				"error", err.Error(),
			)
		}
	}
}

// JobFailed records a failed generation.
func (o *GenerationObserver) JobFailed(ctx context.Context, job handler.Job, errMsg string, duration time.Duration) {
	if o.store != nil {
		o.store.RecordJob(metrics.JobRecord{
			JobID:    job.ID,
			Prompt:   job.Input.Prompt,
			Success:  false,
			Error:    errMsg,
			Duration: duration,
		})
	}

	if o.repo != nil {
		rec := db.GenerationRecord{
			JobID:      job.ID,
			Prompt:     job.Input.Prompt,
			Seed:       -1,
			Status:     db.StatusFailed,
			Error:      errMsg,
			DurationMs: duration.Milliseconds(),
		}
		if job.Input.Seed != nil {
			rec.Seed = *job.Input.Seed
		}

		if _, err := o.repo.Save(ctx, rec); err != nil {
			o.log.Warnw("failed to persist failure record",
				"job_id", job.ID,
				"error", err.Error(),
			)
		}
	}
}

// stepsOf mirrors the handler's default when the request omitted
// steps.
func stepsOf(in handler.JobInput) int {
	if in.Steps != nil {
		return *in.Steps
	}
	return zimage.DefaultSteps
}

var _ handler.Observer = (*GenerationObserver)(nil)

// Package server implements the local development server: the same
// job contract as the serverless platform, plus a stats API, live
// updates over WebSocket, and an optional password-protected
// dashboard.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"zimage_worker/handler"
	"zimage_worker/logging"
	"zimage_worker/runpod"
)

// Queue errors.
var (
	ErrJobNotFound   = errors.New("server: job not found")
	ErrQueueFull     = errors.New("server: job queue is full")
	ErrQueueStopped  = errors.New("server: job queue is stopped")
	ErrNotCancelable = errors.New("server: job is not cancelable")
)

// QueuedJob tracks one submitted job through its lifecycle. Status
// strings match the platform's so clients behave identically against
// the dev server.
type QueuedJob struct {
	ID          string             `json:"id"`
	Status      runpod.JobStatus   `json:"status"`
	Input       handler.JobInput   `json:"input"`
	Output      *handler.JobOutput `json:"output,omitempty"`
	Error       *handler.JobError  `json:"error,omitempty"`
	SubmittedAt time.Time          `json:"submitted_at"`
	StartedAt   time.Time          `json:"started_at,omitempty"`
	FinishedAt  time.Time          `json:"finished_at,omitempty"`
}

// JobQueue is an in-memory async job queue processed by background
// workers. Finished jobs are retained up to maxRetained so /status
// keeps answering after completion.
type JobQueue struct {
	mu      sync.Mutex
	jobs    map[string]*QueuedJob
	order   []string // insertion order, for pruning
	pending chan string
	stopped bool

	handler     *handler.Handler
	log         *logging.Logger
	maxRetained int

	onUpdate func(QueuedJob)
}

// Queue sizing defaults.
const (
	DefaultQueueCapacity = 64
	DefaultMaxRetained   = 256
)

// NewJobQueue creates a queue feeding jobs to h.
func NewJobQueue(h *handler.Handler, log *logging.Logger) *JobQueue {
	return &JobQueue{
		jobs:        make(map[string]*QueuedJob),
		pending:     make(chan string, DefaultQueueCapacity),
		handler:     h,
		log:         log,
		maxRetained: DefaultMaxRetained,
	}
}

// OnUpdate registers a callback invoked with a snapshot after every
// status change. Must be set before Start.
func (q *JobQueue) OnUpdate(fn func(QueuedJob)) {
	q.onUpdate = fn
}

// Start launches worker goroutines that process jobs until ctx is
// cancelled. Start itself returns immediately.
func (q *JobQueue) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go q.worker(ctx)
	}
}

// Submit enqueues a job and returns its snapshot with a fresh UUID.
func (q *JobQueue) Submit(input handler.JobInput) (QueuedJob, error) {
	job := &QueuedJob{
		ID:          uuid.NewString(),
		Status:      runpod.StatusInQueue,
		Input:       input,
		SubmittedAt: time.Now(),
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return QueuedJob{}, ErrQueueStopped
	}

	select {
	case q.pending <- job.ID:
	default:
		q.mu.Unlock()
		return QueuedJob{}, ErrQueueFull
	}

	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	q.pruneLocked()
	snapshot := *job
	q.mu.Unlock()

	q.notify(snapshot)
	return snapshot, nil
}

// Get returns a snapshot of the job.
func (q *JobQueue) Get(id string) (QueuedJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return QueuedJob{}, ErrJobNotFound
	}
	return *job, nil
}

// Cancel marks a queued job as cancelled. Jobs already running or
// finished cannot be cancelled.
func (q *JobQueue) Cancel(id string) (QueuedJob, error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return QueuedJob{}, ErrJobNotFound
	}
	if job.Status != runpod.StatusInQueue {
		snapshot := *job
		q.mu.Unlock()
		return snapshot, ErrNotCancelable
	}

	job.Status = runpod.StatusCancelled
	job.FinishedAt = time.Now()
	snapshot := *job
	q.mu.Unlock()

	q.notify(snapshot)
	return snapshot, nil
}

// Counts returns jobs per lifecycle state.
func (q *JobQueue) Counts() (inQueue, inProgress, completed, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		switch job.Status {
		case runpod.StatusInQueue:
			inQueue++
		case runpod.StatusInProgress:
			inProgress++
		case runpod.StatusCompleted:
			completed++
		case runpod.StatusFailed:
			failed++
		}
	}
	return
}

func (q *JobQueue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.stopped = true
			q.mu.Unlock()
			return
		case id := <-q.pending:
			q.process(ctx, id)
		}
	}
}

func (q *JobQueue) process(ctx context.Context, id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != runpod.StatusInQueue {
		// Pruned or cancelled while waiting.
		q.mu.Unlock()
		return
	}
	job.Status = runpod.StatusInProgress
	job.StartedAt = time.Now()
	snapshot := *job
	input := job.Input
	q.mu.Unlock()

	q.notify(snapshot)

	result := q.handler.Handle(ctx, handler.Job{ID: id, Input: input})

	q.mu.Lock()
	job, ok = q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	switch v := result.(type) {
	case *handler.JobOutput:
		job.Status = runpod.StatusCompleted
		job.Output = v
	case *handler.JobError:
		job.Status = runpod.StatusFailed
		job.Error = v
	}
	job.FinishedAt = time.Now()
	snapshot = *job
	q.mu.Unlock()

	q.notify(snapshot)
}

// pruneLocked drops the oldest finished jobs beyond maxRetained.
// Caller holds q.mu.
func (q *JobQueue) pruneLocked() {
	for len(q.order) > q.maxRetained {
		oldest := q.order[0]
		job, ok := q.jobs[oldest]
		if ok && !job.Status.Terminal() {
			// Never drop live jobs; retry pruning on a later submit.
			return
		}
		delete(q.jobs, oldest)
		q.order = q.order[1:]
	}
}

func (q *JobQueue) notify(job QueuedJob) {
	if q.onUpdate != nil {
		q.onUpdate(job)
	}
}

package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"zimage_worker/handler"
	"zimage_worker/runpod"
)

// jobResponse mirrors the platform response shape so the same client
// works against the dev server and the real endpoint.
type jobResponse struct {
	ID     string             `json:"id"`
	Status runpod.JobStatus   `json:"status"`
	Output *handler.JobOutput `json:"output,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeInput accepts both the platform envelope {"input": {...}} and
// a bare input object.
func decodeInput(r *http.Request) (handler.JobInput, error) {
	var envelope struct {
		Input *handler.JobInput `json:"input"`

		// Bare-input fields. Only Prompt needs checking to decide
		// which shape the caller used.
		Prompt        string   `json:"prompt"`
		Height        *int     `json:"height"`
		Width         *int     `json:"width"`
		Steps         *int     `json:"num_inference_steps"`
		GuidanceScale *float64 `json:"guidance_scale"`
		Seed          *int64   `json:"seed"`
	}

	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		return handler.JobInput{}, err
	}

	if envelope.Input != nil {
		return *envelope.Input, nil
	}

	return handler.JobInput{
		Prompt:        envelope.Prompt,
		Height:        envelope.Height,
		Width:         envelope.Width,
		Steps:         envelope.Steps,
		GuidanceScale: envelope.GuidanceScale,
		Seed:          envelope.Seed,
	}, nil
}

// handleRunSync runs one generation synchronously. Serves both
// /runsync and /generate.
func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	input, err := decodeInput(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	id := newJobID()
	result := s.handler.Handle(r.Context(), handler.Job{ID: id, Input: input})

	switch v := result.(type) {
	case *handler.JobOutput:
		writeJSON(w, http.StatusOK, jobResponse{ID: id, Status: runpod.StatusCompleted, Output: v})
	case *handler.JobError:
		writeJSON(w, http.StatusOK, jobResponse{ID: id, Status: runpod.StatusFailed, Error: v.Error})
	default:
		writeJSONError(w, http.StatusInternalServerError, "unexpected handler result")
	}
}

// handleGeneratePNG runs one generation and returns the raw PNG, for
// browsers and curl.
func (s *Server) handleGeneratePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	input, err := decodeInput(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	result := s.handler.Handle(r.Context(), handler.Job{ID: newJobID(), Input: input})

	out, ok := result.(*handler.JobOutput)
	if !ok {
		if jerr, ok := result.(*handler.JobError); ok {
			writeJSONError(w, http.StatusBadRequest, jerr.Error)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "unexpected handler result")
		return
	}

	data, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to decode image payload")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleRun enqueues a job and returns its ID immediately.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	input, err := decodeInput(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	job, err := s.queue.Submit(input)
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			writeJSONError(w, http.StatusTooManyRequests, "job queue is full")
			return
		}
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{ID: job.ID, Status: job.Status})
}

// handleStatus serves /status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/status/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusNotFound, "job id required")
		return
	}

	job, err := s.queue.Get(id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := jobResponse{ID: job.ID, Status: job.Status, Output: job.Output}
	if job.Error != nil {
		resp.Error = job.Error.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancel serves /cancel/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/cancel/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusNotFound, "job id required")
		return
	}

	job, err := s.queue.Cancel(id)
	switch {
	case errors.Is(err, ErrJobNotFound):
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, ErrNotCancelable):
		// Report current state; matches platform behavior for
		// finished jobs.
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{ID: job.ID, Status: job.Status})
}

// handleHealth mimics the platform health shape with local queue
// counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	inQueue, inProgress, completed, failed := s.queue.Counts()

	writeJSON(w, http.StatusOK, runpod.HealthStatus{
		Workers: runpod.WorkerCounts{
			Ready:   s.workers,
			Running: inProgress,
		},
		Jobs: runpod.JobCounts{
			Completed:  completed,
			Failed:     failed,
			InProgress: inProgress,
			InQueue:    inQueue,
		},
	})
}

// handleStats serves aggregated job statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSONError(w, http.StatusNotFound, "metrics not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.store.Stats(20))
}

// handleHistory serves recent generation records from the database.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeJSONError(w, http.StatusNotFound, "history not enabled")
		return
	}

	records, err := s.repo.ListRecent(r.Context(), 50)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	type historyEntry struct {
		JobID      string `json:"job_id"`
		Prompt     string `json:"prompt"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Steps      int    `json:"steps"`
		Seed       int64  `json:"seed"`
		Status     string `json:"status"`
		Error      string `json:"error,omitempty"`
		DurationMs int64  `json:"duration_ms"`
		Preview    string `json:"preview,omitempty"` // base64 PNG thumbnail
		CreatedAt  string `json:"created_at"`
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entry := historyEntry{
			JobID:      rec.JobID,
			Prompt:     rec.Prompt,
			Width:      rec.Width,
			Height:     rec.Height,
			Steps:      rec.Steps,
			Seed:       rec.Seed,
			Status:     rec.Status,
			Error:      rec.Error,
			DurationMs: rec.DurationMs,
			CreatedAt:  rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if len(rec.Preview) > 0 {
			entry.Preview = base64.StdEncoding.EncodeToString(rec.Preview)
		}
		entries = append(entries, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"generations": entries})
}

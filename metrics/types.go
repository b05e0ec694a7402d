// Package metrics provides in-memory job statistics and GPU telemetry
// for the dashboard and stats API.
package metrics

import "time"

// JobRecord captures one completed (or failed) generation job.
type JobRecord struct {
	JobID       string        `json:"job_id"`
	Prompt      string        `json:"prompt"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Steps       int           `json:"steps"`
	Seed        int64         `json:"seed"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// GPUMetrics is one sample of GPU state.
type GPUMetrics struct {
	Utilization float64   `json:"utilization"`  // percent
	Temperature float64   `json:"temperature"`  // celsius
	MemoryTotal int64     `json:"memory_total"` // bytes
	MemoryUsed  int64     `json:"memory_used"`  // bytes
	MemoryFree  int64     `json:"memory_free"`  // bytes
	SampledAt   time.Time `json:"sampled_at"`
}

// JobStats is the aggregated view over all recorded jobs.
type JobStats struct {
	TotalJobs    int64         `json:"total_jobs"`
	TotalSuccess int64         `json:"total_success"`
	TotalFailed  int64         `json:"total_failed"`
	SuccessRate  float64       `json:"success_rate"` // percent
	AvgDuration  time.Duration `json:"avg_duration"`
	TotalPixels  int64         `json:"total_pixels"`
	Uptime       time.Duration `json:"uptime"`
	RecentJobs   []JobRecord   `json:"recent_jobs"`
	GPU          GPUMetrics    `json:"gpu"`
	GPUAvailable bool          `json:"gpu_available"`
}

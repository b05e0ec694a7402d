package metrics

import (
	"sync"
	"time"
)

// Store is thread-safe in-memory storage for job records and the
// latest GPU snapshot. Job history lives in a fixed-size circular
// buffer; aggregates cover the full process lifetime.
type Store struct {
	mu sync.RWMutex

	history []JobRecord
	histCap int
	head    int
	size    int

	totalJobs     int64
	totalSuccess  int64
	totalFailed   int64
	totalDuration time.Duration
	totalPixels   int64

	gpu          GPUMetrics
	gpuAvailable bool

	startTime time.Time
}

// DefaultHistoryCapacity is the number of recent jobs retained.
const DefaultHistoryCapacity = 100

// NewStore creates a Store retaining up to capacity recent jobs.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}

	return &Store{
		history:   make([]JobRecord, capacity),
		histCap:   capacity,
		startTime: time.Now(),
	}
}

// RecordJob logs a finished job.
func (s *Store) RecordJob(rec JobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}

	s.history[s.head] = rec
	s.head = (s.head + 1) % s.histCap
	if s.size < s.histCap {
		s.size++
	}

	s.totalJobs++
	if rec.Success {
		s.totalSuccess++
		s.totalPixels += int64(rec.Width) * int64(rec.Height)
	} else {
		s.totalFailed++
	}
	s.totalDuration += rec.Duration
}

// UpdateGPU records the latest GPU sample.
func (s *Store) UpdateGPU(gpu GPUMetrics, available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gpu = gpu
	s.gpuAvailable = available
}

// RecentJobs returns up to limit records, most recent first.
func (s *Store) RecentJobs(limit int) []JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []JobRecord{}
	}
	if limit > s.size {
		limit = s.size
	}

	result := make([]JobRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - 1 - i + s.histCap) % s.histCap
		result[i] = s.history[idx]
	}
	return result
}

// Stats returns the aggregated view, including up to recentLimit
// recent jobs.
func (s *Store) Stats(recentLimit int) JobStats {
	recent := s.RecentJobs(recentLimit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := JobStats{
		TotalJobs:    s.totalJobs,
		TotalSuccess: s.totalSuccess,
		TotalFailed:  s.totalFailed,
		TotalPixels:  s.totalPixels,
		Uptime:       time.Since(s.startTime),
		RecentJobs:   recent,
		GPU:          s.gpu,
		GPUAvailable: s.gpuAvailable,
	}

	if s.totalJobs > 0 {
		stats.SuccessRate = float64(s.totalSuccess) / float64(s.totalJobs) * 100
		stats.AvgDuration = s.totalDuration / time.Duration(s.totalJobs)
	}

	return stats
}

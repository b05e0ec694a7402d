package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates no record matched the query.
var ErrNotFound = errors.New("db: record not found")

// GenerationRecord is one row of generation history.
type GenerationRecord struct {
	ID            int64
	JobID         string
	Prompt        string
	Width         int
	Height        int
	Steps         int
	GuidanceScale float64
	Seed          int64
	Status        string // COMPLETED or FAILED
	Error         string
	DurationMs    int64
	Preview       []byte // small PNG thumbnail, nil when the job failed
	CreatedAt     time.Time
}

// Record statuses.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// GenerationRepository provides CRUD access to the generations table.
type GenerationRepository struct {
	db *sql.DB
}

// NewGenerationRepository wraps an open connection.
func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Save inserts a record and returns its row ID.
func (r *GenerationRepository) Save(ctx context.Context, rec GenerationRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO generations
			(job_id, prompt, width, height, steps, guidance_scale, seed,
			 status, error, duration_ms, preview, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.Prompt, rec.Width, rec.Height, rec.Steps,
		rec.GuidanceScale, rec.Seed, rec.Status, rec.Error,
		rec.DurationMs, rec.Preview, rec.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}
	return id, nil
}

// GetByJobID fetches the record for a job. Returns ErrNotFound if the
// job was never recorded.
func (r *GenerationRepository) GetByJobID(ctx context.Context, jobID string) (*GenerationRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, prompt, width, height, steps, guidance_scale, seed,
		       status, error, duration_ms, preview, created_at
		FROM generations WHERE job_id = ?`, jobID)

	rec, err := scanGeneration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to query generation: %w", err)
	}
	return rec, nil
}

// ListRecent returns up to limit records, newest first.
func (r *GenerationRepository) ListRecent(ctx context.Context, limit int) ([]GenerationRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, prompt, width, height, steps, guidance_scale, seed,
		       status, error, duration_ms, preview, created_at
		FROM generations ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var records []GenerationRecord
	for rows.Next() {
		rec, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// CountByStatus returns the number of records with the given status.
func (r *GenerationRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generations WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes records created before the cutoff and
// returns how many were deleted.
func (r *GenerationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM generations WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old generations: %w", err)
	}
	return res.RowsAffected()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(s scanner) (*GenerationRecord, error) {
	var rec GenerationRecord
	err := s.Scan(
		&rec.ID, &rec.JobID, &rec.Prompt, &rec.Width, &rec.Height,
		&rec.Steps, &rec.GuidanceScale, &rec.Seed, &rec.Status,
		&rec.Error, &rec.DurationMs, &rec.Preview, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

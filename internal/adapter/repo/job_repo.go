package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, user_id, status, profile_json, aspect_ratio, attempts_used, result_key, result_accepted, error_message, created_at, updated_at`

// Create inserts a new job record in PENDING state.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	profileJSON, err := json.Marshal(job.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	query := `
INSERT INTO jobs (id, user_id, status, profile_json, aspect_ratio, attempts_used, result_key, result_accepted, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.Status,
		profileJSON,
		job.AspectRatio,
		job.AttemptsUsed,
		job.ResultKey,
		job.ResultAccepted,
		job.ErrorMessage,
	)
	return err
}

// ClaimPending atomically moves the oldest PENDING job to PROCESSING and
// returns it. SKIP LOCKED lets concurrent workers claim distinct jobs without
// blocking each other. Returns domain.ErrNotFound when the queue is empty.
func (r *JobRepositoryPG) ClaimPending(ctx context.Context) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = $1, updated_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = $2
    ORDER BY created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns + `;
`
	row := r.pool.QueryRow(ctx, query, domain.JobStatusProcessing, domain.JobStatusPending)
	return scanJob(row)
}

// Update applies a partial mutation. Nil fields keep their stored value.
func (r *JobRepositoryPG) Update(ctx context.Context, jobID string, upd domain.JobUpdate) error {
	query := `
UPDATE jobs
SET status = COALESCE($2, status),
    attempts_used = COALESCE($3, attempts_used),
    result_key = COALESCE($4, result_key),
    result_accepted = COALESCE($5, result_accepted),
    error_message = COALESCE($6, error_message),
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, jobID, upd.Status, upd.AttemptsUsed, upd.ResultKey, upd.ResultAccepted, upd.ErrorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	return scanJob(r.pool.QueryRow(ctx, query, jobID))
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var profileJSON []byte
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&profileJSON,
		&job.AspectRatio,
		&job.AttemptsUsed,
		&job.ResultKey,
		&job.ResultAccepted,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &job.Profile); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
	}
	return &job, nil
}

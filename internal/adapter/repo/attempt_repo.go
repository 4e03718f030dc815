package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// AttemptRepositoryPG implements domain.AttemptRepository.
type AttemptRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new attempt log backed by PostgreSQL.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepositoryPG {
	return &AttemptRepositoryPG{pool: pool}
}

// Record appends one attempt row.
func (r *AttemptRepositoryPG) Record(ctx context.Context, attempt *domain.GenerationAttempt) error {
	query := `
INSERT INTO generation_attempts (job_id, attempt_index, provider_id, model_name, outcome, quality_score, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query,
		attempt.JobID,
		attempt.AttemptIndex,
		attempt.ProviderID,
		attempt.ModelName,
		attempt.Outcome,
		attempt.QualityScore,
		attempt.ErrorMessage,
	)
	return err
}

// ListByJobID returns the attempts of one job in execution order.
func (r *AttemptRepositoryPG) ListByJobID(ctx context.Context, jobID string) ([]domain.GenerationAttempt, error) {
	query := `
SELECT job_id, attempt_index, provider_id, model_name, outcome, quality_score, error_message, created_at
FROM generation_attempts
WHERE job_id = $1
ORDER BY attempt_index, created_at;
`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.GenerationAttempt
	for rows.Next() {
		var a domain.GenerationAttempt
		if err := rows.Scan(
			&a.JobID,
			&a.AttemptIndex,
			&a.ProviderID,
			&a.ModelName,
			&a.Outcome,
			&a.QualityScore,
			&a.ErrorMessage,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// QuotaRepositoryPG implements domain.QuotaRepository.
type QuotaRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewQuotaRepository creates a new quota repository backed by PostgreSQL.
func NewQuotaRepository(pool *pgxpool.Pool) *QuotaRepositoryPG {
	return &QuotaRepositoryPG{pool: pool}
}

// Get returns the stored usage record for the user.
func (r *QuotaRepositoryPG) Get(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	query := `
SELECT user_id, plan, current_usage, cycle_start, max_per_cycle
FROM quota_usage
WHERE user_id = $1;
`
	row := r.pool.QueryRow(ctx, query, userID)
	var rec domain.QuotaRecord
	if err := row.Scan(
		&rec.UserID,
		&rec.Plan,
		&rec.CurrentUsage,
		&rec.CycleStart,
		&rec.MaxPerCycle,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Increment adds one accepted generation in a single atomic upsert. A row
// left over from an earlier cycle is rolled into the new cycle with usage 1,
// so concurrent commits can never lose or double-count an update.
func (r *QuotaRepositoryPG) Increment(ctx context.Context, userID string, plan domain.Plan, cycleStart time.Time, maxPerCycle int) error {
	query := `
INSERT INTO quota_usage (user_id, plan, current_usage, cycle_start, max_per_cycle)
VALUES ($1, $2, 1, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET current_usage = CASE
        WHEN quota_usage.cycle_start = EXCLUDED.cycle_start THEN quota_usage.current_usage + 1
        ELSE 1
    END,
    cycle_start = EXCLUDED.cycle_start,
    plan = EXCLUDED.plan,
    max_per_cycle = EXCLUDED.max_per_cycle;
`
	_, err := r.pool.Exec(ctx, query, userID, plan, cycleStart, maxPerCycle)
	return err
}

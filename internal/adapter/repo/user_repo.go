package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository backed by PostgreSQL.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// GetPlan returns the user's billing plan, defaulting to free when the user
// has no stored row.
func (r *UserRepositoryPG) GetPlan(ctx context.Context, userID string) (domain.Plan, error) {
	query := `SELECT plan FROM users WHERE id = $1;`
	var plan domain.Plan
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&plan); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PlanFree, nil
		}
		return "", err
	}
	return plan, nil
}

// SetPlan upserts the user's billing plan.
func (r *UserRepositoryPG) SetPlan(ctx context.Context, userID string, plan domain.Plan) error {
	query := `
INSERT INTO users (id, plan)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET plan = EXCLUDED.plan, updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query, userID, plan)
	return err
}

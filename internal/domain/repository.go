package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job entities.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	// ClaimPending atomically claims the oldest PENDING job and moves it to
	// PROCESSING. Returns ErrNotFound when no job is waiting.
	ClaimPending(ctx context.Context) (*Job, error)
	Update(ctx context.Context, jobID string, upd JobUpdate) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
}

// QuotaRepository persists per-user usage counters.
type QuotaRepository interface {
	// Get returns the stored record for the user, or ErrNotFound when the
	// user has never committed usage.
	Get(ctx context.Context, userID string) (*QuotaRecord, error)
	// Increment adds one accepted generation to the user's counter for the
	// given cycle in a single atomic statement. A stored record from an
	// earlier cycle is rolled over to the new cycle with usage 1.
	Increment(ctx context.Context, userID string, plan Plan, cycleStart time.Time, maxPerCycle int) error
}

// UserRepository resolves billing plans. Users without a stored row are on
// the free plan.
type UserRepository interface {
	GetPlan(ctx context.Context, userID string) (Plan, error)
	SetPlan(ctx context.Context, userID string, plan Plan) error
}

// AttemptRepository logs generation attempts for observability.
type AttemptRepository interface {
	Record(ctx context.Context, attempt *GenerationAttempt) error
	ListByJobID(ctx context.Context, jobID string) ([]GenerationAttempt, error)
}

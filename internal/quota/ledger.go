// Package quota meters accepted generations per user and monthly cycle.
// Check is a pre-flight gate; Commit records usage and is called exactly once
// per job, only after it completed with an accepted artifact.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

// CycleStart truncates t to the first instant of its month in UTC. All quota
// rows are keyed on this value.
func CycleStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Options configure a Ledger.
type Options struct {
	Repo domain.QuotaRepository
	// Limits maps each metered plan to its per-cycle maximum. Plans absent
	// from the map are denied outright.
	Limits map[domain.Plan]int
	Logger infra.Logger
	// Now is a test hook; defaults to time.Now.
	Now func() time.Time
}

// Ledger enforces per-plan monthly generation limits.
type Ledger struct {
	repo   domain.QuotaRepository
	limits map[domain.Plan]int
	logger infra.Logger
	now    func() time.Time
}

func NewLedger(opts Options) *Ledger {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		repo:   opts.Repo,
		limits: opts.Limits,
		logger: opts.Logger,
		now:    now,
	}
}

// Check answers whether the user may start another generation right now.
// Unlimited plans bypass the counter entirely. A stored record from a past
// cycle counts as zero usage; the row itself is rolled over lazily on the
// next Commit.
func (l *Ledger) Check(ctx context.Context, userID string, plan domain.Plan) (domain.QuotaStatus, error) {
	if plan == domain.PlanUnlimited {
		return domain.QuotaStatus{Allowed: true, Unlimited: true}, nil
	}
	max, ok := l.limits[plan]
	if !ok {
		return domain.QuotaStatus{}, fmt.Errorf("quota: no limit configured for plan %q", plan)
	}

	usage := 0
	record, err := l.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// First generation ever.
	case err != nil:
		return domain.QuotaStatus{}, fmt.Errorf("quota: load record: %w", err)
	case record.CycleStart.Equal(CycleStart(l.now())):
		usage = record.CurrentUsage
	}

	return domain.QuotaStatus{
		Allowed:      usage < max,
		CurrentUsage: usage,
		MaxPerCycle:  max,
	}, nil
}

// Commit records one accepted generation. The underlying increment is a
// single atomic statement, so concurrent commits for the same user cannot
// lose updates.
func (l *Ledger) Commit(ctx context.Context, userID string, plan domain.Plan) error {
	if plan == domain.PlanUnlimited {
		return nil
	}
	max, ok := l.limits[plan]
	if !ok {
		return fmt.Errorf("quota: no limit configured for plan %q", plan)
	}
	if err := l.repo.Increment(ctx, userID, plan, CycleStart(l.now()), max); err != nil {
		return fmt.Errorf("quota: commit usage: %w", err)
	}
	l.logger.Debug().Str("user_id", userID).Str("plan", string(plan)).Msg("quota: usage committed")
	return nil
}

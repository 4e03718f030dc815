package quota

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

type memQuotaRepo struct {
	records    map[string]*domain.QuotaRecord
	increments int
}

func newMemQuotaRepo() *memQuotaRepo {
	return &memQuotaRepo{records: make(map[string]*domain.QuotaRecord)}
}

func (m *memQuotaRepo) Get(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	r, ok := m.records[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memQuotaRepo) Increment(ctx context.Context, userID string, plan domain.Plan, cycleStart time.Time, maxPerCycle int) error {
	m.increments++
	r, ok := m.records[userID]
	if !ok || !r.CycleStart.Equal(cycleStart) {
		m.records[userID] = &domain.QuotaRecord{
			UserID:       userID,
			Plan:         plan,
			CurrentUsage: 1,
			CycleStart:   cycleStart,
			MaxPerCycle:  maxPerCycle,
		}
		return nil
	}
	r.CurrentUsage++
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)
}

func testLedger(repo domain.QuotaRepository) *Ledger {
	return NewLedger(Options{
		Repo:   repo,
		Limits: map[domain.Plan]int{domain.PlanFree: 2, domain.PlanPro: 100},
		Logger: zerolog.New(io.Discard),
		Now:    fixedNow,
	})
}

func TestCheckAllowsUntilLimitReached(t *testing.T) {
	repo := newMemQuotaRepo()
	ledger := testLedger(repo)
	ctx := context.Background()

	status, err := ledger.Check(ctx, "u1", domain.PlanFree)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !status.Allowed || status.CurrentUsage != 0 || status.MaxPerCycle != 2 {
		t.Fatalf("fresh user status = %+v", status)
	}

	for i := 0; i < 2; i++ {
		if err := ledger.Commit(ctx, "u1", domain.PlanFree); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	status, err = ledger.Check(ctx, "u1", domain.PlanFree)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status.Allowed {
		t.Fatalf("user at limit must be denied: %+v", status)
	}
	if status.CurrentUsage != 2 {
		t.Fatalf("usage = %d, want 2", status.CurrentUsage)
	}
}

func TestUnlimitedPlanBypassesCheckAndCommit(t *testing.T) {
	repo := newMemQuotaRepo()
	ledger := testLedger(repo)
	ctx := context.Background()

	status, err := ledger.Check(ctx, "admin", domain.PlanUnlimited)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !status.Allowed || !status.Unlimited {
		t.Fatalf("status = %+v, want allowed unlimited", status)
	}

	if err := ledger.Commit(ctx, "admin", domain.PlanUnlimited); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if repo.increments != 0 {
		t.Fatalf("unlimited commit must not touch the store, increments = %d", repo.increments)
	}
}

func TestStaleCycleCountsAsZeroUsage(t *testing.T) {
	repo := newMemQuotaRepo()
	repo.records["u1"] = &domain.QuotaRecord{
		UserID:       "u1",
		Plan:         domain.PlanFree,
		CurrentUsage: 2,
		CycleStart:   time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		MaxPerCycle:  2,
	}
	ledger := testLedger(repo)

	status, err := ledger.Check(context.Background(), "u1", domain.PlanFree)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !status.Allowed || status.CurrentUsage != 0 {
		t.Fatalf("stale cycle status = %+v, want allowed with zero usage", status)
	}
}

func TestCommitRollsOverStaleCycle(t *testing.T) {
	repo := newMemQuotaRepo()
	repo.records["u1"] = &domain.QuotaRecord{
		UserID:       "u1",
		Plan:         domain.PlanFree,
		CurrentUsage: 2,
		CycleStart:   time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		MaxPerCycle:  2,
	}
	ledger := testLedger(repo)

	if err := ledger.Commit(context.Background(), "u1", domain.PlanFree); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got := repo.records["u1"]
	if got.CurrentUsage != 1 {
		t.Fatalf("rolled-over usage = %d, want 1", got.CurrentUsage)
	}
	if !got.CycleStart.Equal(CycleStart(fixedNow())) {
		t.Fatalf("cycle start = %v, want current cycle", got.CycleStart)
	}
}

func TestUnknownPlanIsRejected(t *testing.T) {
	ledger := testLedger(newMemQuotaRepo())
	if _, err := ledger.Check(context.Background(), "u1", domain.Plan("enterprise")); err == nil {
		t.Fatalf("unknown plan must error on Check")
	}
	if err := ledger.Commit(context.Background(), "u1", domain.Plan("enterprise")); err == nil {
		t.Fatalf("unknown plan must error on Commit")
	}
}

func TestCycleStartTruncatesToMonthUTC(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	in := time.Date(2025, time.March, 1, 1, 30, 0, 0, loc) // still February in UTC
	got := CycleStart(in)
	want := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("CycleStart = %v, want %v", got, want)
	}
}

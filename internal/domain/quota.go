package domain

import "time"

// Plan enumerates billing plans.
type Plan string

const (
	PlanFree      Plan = "free"
	PlanPro       Plan = "pro"
	PlanUnlimited Plan = "unlimited"
)

// QuotaRecord tracks a user's metered generation usage within one monthly
// cycle. Usage only grows within a cycle, and only when a job completes with
// an accepted artifact.
type QuotaRecord struct {
	UserID       string
	Plan         Plan
	CurrentUsage int
	CycleStart   time.Time
	MaxPerCycle  int
	Unlimited    bool
}

// QuotaStatus is the answer to a pre-flight quota check.
type QuotaStatus struct {
	Allowed      bool
	CurrentUsage int
	MaxPerCycle  int
	Unlimited    bool
}

package domain

import "time"

// AttemptOutcome enumerates how a single generation attempt ended.
type AttemptOutcome string

const (
	AttemptOutcomeSuccess         AttemptOutcome = "SUCCESS"
	AttemptOutcomeProviderError   AttemptOutcome = "PROVIDER_ERROR"
	AttemptOutcomeQualityRejected AttemptOutcome = "QUALITY_REJECTED"
)

// GenerationAttempt records one logical attempt of the orchestrator loop.
// Retried sub-calls inside the provider gateway collapse into a single
// attempt; the rows exist for observability, not control flow.
type GenerationAttempt struct {
	JobID        string
	AttemptIndex int
	ProviderID   string
	ModelName    string
	Outcome      AttemptOutcome
	QualityScore float64
	ErrorMessage string
	CreatedAt    time.Time
}

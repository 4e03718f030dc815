// Package orchestrator drives one claimed job through classification, prompt
// composition, provider generation, quality review and quota commit. It is
// the sole writer of job state after intake.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/fallback"
	"server/internal/infra"
	"server/internal/promptgen"
	"server/internal/providers/image"
	"server/internal/quality"
)

// ExhaustionPolicy values accepted by config. Exactly one is active.
const (
	ExhaustionFail       = "fail"
	ExhaustionBestEffort = "best_effort"
)

// Classifier resolves the niche profile for a business, at most once per job.
type Classifier interface {
	Classify(ctx context.Context, profile domain.BusinessProfile) domain.NicheProfile
}

// ProviderChain is the fallback rotation contract.
type ProviderChain interface {
	Next() (fallback.Candidate, error)
	MarkExhausted(fallback.Candidate)
	RecordSuccess()
	Len() int
}

// Gate screens artifacts before a job may complete.
type Gate interface {
	Review(ctx context.Context, artifact *image.Artifact, profile domain.BusinessProfile) (quality.Verdict, error)
}

// QuotaLedger is the usage meter. Commit runs only for accepted completions.
type QuotaLedger interface {
	Check(ctx context.Context, userID string, plan domain.Plan) (domain.QuotaStatus, error)
	Commit(ctx context.Context, userID string, plan domain.Plan) error
}

// ArtifactStore persists the winning image bytes.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Options wire an Orchestrator.
type Options struct {
	Jobs       domain.JobRepository
	Attempts   domain.AttemptRepository
	Users      domain.UserRepository
	Quota      QuotaLedger
	Classifier Classifier
	Chain      ProviderChain
	Gate       Gate
	Store      ArtifactStore
	Logger     infra.Logger

	MaxAttempts      int
	JobTimeout       time.Duration
	ExhaustionPolicy string
	DefaultLanguage  string
}

// Orchestrator runs the generation state machine for claimed jobs.
type Orchestrator struct {
	jobs       domain.JobRepository
	attempts   domain.AttemptRepository
	users      domain.UserRepository
	quota      QuotaLedger
	classifier Classifier
	chain      ProviderChain
	gate       Gate
	store      ArtifactStore
	logger     infra.Logger

	maxAttempts int
	jobTimeout  time.Duration
	bestEffort  bool
	defaultLang string
}

func New(opts Options) (*Orchestrator, error) {
	switch opts.ExhaustionPolicy {
	case ExhaustionFail, ExhaustionBestEffort:
	default:
		return nil, fmt.Errorf("orchestrator: unknown exhaustion policy %q", opts.ExhaustionPolicy)
	}
	if opts.MaxAttempts < 1 {
		return nil, errors.New("orchestrator: max attempts must be at least 1")
	}
	return &Orchestrator{
		jobs:        opts.Jobs,
		attempts:    opts.Attempts,
		users:       opts.Users,
		quota:       opts.Quota,
		classifier:  opts.Classifier,
		chain:       opts.Chain,
		gate:        opts.Gate,
		store:       opts.Store,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		jobTimeout:  opts.JobTimeout,
		bestEffort:  opts.ExhaustionPolicy == ExhaustionBestEffort,
		defaultLang: opts.DefaultLanguage,
	}, nil
}

// Process runs one claimed PROCESSING job to a terminal state. It always
// leaves the job COMPLETED or FAILED; the returned error reports processing
// faults for the worker log, not job outcomes.
func (o *Orchestrator) Process(ctx context.Context, job *domain.Job) error {
	if job.Status != domain.JobStatusProcessing {
		return fmt.Errorf("orchestrator: job %s is %s, not claimed", job.ID, job.Status)
	}
	logger := o.logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()

	ctx, cancel := context.WithTimeout(ctx, o.jobTimeout)
	defer cancel()

	plan, err := o.users.GetPlan(ctx, job.UserID)
	if err != nil {
		return o.fail(ctx, job, fmt.Sprintf("resolve plan: %v", err))
	}
	// Intake already checked quota, but jobs can sit in the queue across a
	// limit change, so the worker re-checks before spending provider calls.
	status, err := o.quota.Check(ctx, job.UserID, plan)
	if err != nil {
		return o.fail(ctx, job, fmt.Sprintf("quota check: %v", err))
	}
	if !status.Allowed {
		return o.fail(ctx, job, "quota exceeded for current cycle")
	}

	niche := o.classifier.Classify(ctx, job.Profile)
	logger.Info().Str("niche", niche.Key).Bool("dynamic", niche.Dynamic()).Msg("orchestrator: job classified")

	language := job.Profile.Language
	if language == "" {
		language = o.defaultLang
	}

	var lastArtifact *image.Artifact
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, job, fmt.Sprintf("job deadline exceeded after %d attempts", attempt-1))
		}
		o.setAttemptsUsed(ctx, job, attempt)

		prompt := promptgen.Compose(promptgen.Input{
			Profile:     job.Profile,
			Niche:       niche,
			AspectRatio: job.AspectRatio,
			Language:    language,
			Attempt:     attempt,
		})

		artifact, candidate, genErr := o.generate(ctx, job, prompt)
		if genErr != nil {
			o.recordAttempt(ctx, job.ID, attempt, candidate, domain.AttemptOutcomeProviderError, 0, genErr.Error())
			// Chain exhaustion and fatal provider errors are terminal for
			// the whole job; remaining attempts are not consumed.
			return o.fail(ctx, job, genErr.Error())
		}
		lastArtifact = artifact

		verdict, reviewErr := o.gate.Review(ctx, artifact, job.Profile)
		if reviewErr != nil {
			o.recordAttempt(ctx, job.ID, attempt, candidate, domain.AttemptOutcomeQualityRejected, 0, reviewErr.Error())
			continue
		}
		if verdict.Accepted {
			o.recordAttempt(ctx, job.ID, attempt, candidate, domain.AttemptOutcomeSuccess, verdict.Score, "")
			return o.complete(ctx, logger, job, plan, artifact, true)
		}
		o.recordAttempt(ctx, job.ID, attempt, candidate, domain.AttemptOutcomeQualityRejected, verdict.Score, "")
		logger.Info().Int("attempt", attempt).Float64("score", verdict.Score).Msg("orchestrator: attempt rejected by quality gate")
	}

	if o.bestEffort && lastArtifact != nil {
		logger.Warn().Msg("orchestrator: attempts exhausted, delivering unaccepted artifact")
		return o.complete(ctx, logger, job, plan, lastArtifact, false)
	}
	return o.fail(ctx, job, fmt.Sprintf("no acceptable image after %d attempts", o.maxAttempts))
}

// generate walks the fallback chain for one attempt. Only rate-limit class
// errors rotate to the next candidate; any other failure is returned as-is
// and aborts the job.
func (o *Orchestrator) generate(ctx context.Context, job *domain.Job, prompt promptgen.Prompt) (*image.Artifact, fallback.Candidate, error) {
	var last fallback.Candidate
	for i := 0; i < o.chain.Len(); i++ {
		candidate, err := o.chain.Next()
		if err != nil {
			return nil, last, err
		}
		last = candidate

		artifact, err := candidate.Generator.Generate(ctx, image.Request{
			Prompt:         prompt.Positive,
			NegativePrompt: prompt.Negative,
			AspectRatio:    job.AspectRatio,
			Model:          candidate.Model,
			RequestID:      job.ID,
		})
		if err == nil {
			o.chain.RecordSuccess()
			return artifact, candidate, nil
		}
		if image.IsRateLimited(err) {
			o.chain.MarkExhausted(candidate)
			continue
		}
		return nil, candidate, err
	}
	return nil, last, fallback.ErrAllProvidersExhausted
}

func (o *Orchestrator) complete(ctx context.Context, logger infra.Logger, job *domain.Job, plan domain.Plan, artifact *image.Artifact, accepted bool) error {
	key := fmt.Sprintf("%s/%s.%s", job.UserID, job.ID, extensionFor(artifact.Format))
	storedKey, err := o.store.Write(ctx, key, artifact.Data)
	if err != nil {
		return o.fail(ctx, job, fmt.Sprintf("store artifact: %v", err))
	}

	completed := domain.JobStatusCompleted
	upd := domain.JobUpdate{
		Status:         &completed,
		ResultKey:      &storedKey,
		ResultAccepted: &accepted,
	}
	if err := o.jobs.Update(writeCtx(ctx), job.ID, upd); err != nil {
		return fmt.Errorf("orchestrator: complete job %s: %w", job.ID, err)
	}

	// Usage grows only for accepted completions. Best-effort deliveries are
	// free: the user did not get what they paid for.
	if accepted {
		if err := o.quota.Commit(writeCtx(ctx), job.UserID, plan); err != nil {
			logger.Error().Err(err).Msg("orchestrator: quota commit failed after completion")
		}
	}
	logger.Info().Str("result_key", storedKey).Bool("accepted", accepted).Msg("orchestrator: job completed")
	return nil
}

// fail moves the job to FAILED carrying the terminal error verbatim. State
// writes use a detached context so a blown job deadline cannot strand the job
// in PROCESSING.
func (o *Orchestrator) fail(ctx context.Context, job *domain.Job, message string) error {
	failed := domain.JobStatusFailed
	upd := domain.JobUpdate{Status: &failed, ErrorMessage: &message}
	if err := o.jobs.Update(writeCtx(ctx), job.ID, upd); err != nil {
		return fmt.Errorf("orchestrator: fail job %s: %w", job.ID, err)
	}
	o.logger.Warn().Str("job_id", job.ID).Str("reason", message).Msg("orchestrator: job failed")
	return nil
}

func (o *Orchestrator) setAttemptsUsed(ctx context.Context, job *domain.Job, n int) {
	job.AttemptsUsed = n
	if err := o.jobs.Update(writeCtx(ctx), job.ID, domain.JobUpdate{AttemptsUsed: &n}); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("orchestrator: persist attempt counter")
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, jobID string, index int, candidate fallback.Candidate, outcome domain.AttemptOutcome, score float64, errMsg string) {
	attempt := &domain.GenerationAttempt{
		JobID:        jobID,
		AttemptIndex: index,
		ProviderID:   candidate.Provider,
		ModelName:    candidate.Model,
		Outcome:      outcome,
		QualityScore: score,
		ErrorMessage: errMsg,
	}
	if err := o.attempts.Record(writeCtx(ctx), attempt); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("orchestrator: record attempt")
	}
}

func writeCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func extensionFor(format string) string {
	switch format {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}

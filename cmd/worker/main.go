package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/fallback"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/niche"
	"server/internal/orchestrator"
	"server/internal/providers/genai"
	"server/internal/providers/image"
	"server/internal/quality"
	"server/internal/quota"
	"server/internal/retry"
	"server/internal/storage"
)

const claimInterval = 2 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	credStore := credentials.NewStore(pool)
	geminiKey, err := credStore.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: failed to load gemini api key from store")
		geminiKey = cfg.GeminiAPIKey
	}
	dashscopeKey, err := credStore.Resolve(ctx, credentials.ProviderDashScope, cfg.DashScopeAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: failed to load dashscope api key from store")
		dashscopeKey = cfg.DashScopeAPIKey
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:      geminiKey,
		BaseURL:     cfg.GeminiBaseURL,
		Model:       cfg.GeminiModel,
		VisionModel: cfg.GeminiVisionModel,
		HTTPClient:  httpClient,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}

	policy := retry.New(cfg.ProviderRetries, cfg.ProviderRetryBase, image.IsTransient, &logger)
	generators := map[string]image.Generator{
		"gemini": image.NewGeminiGenerator(geminiClient, policy),
		"dashscope": image.NewDashScopeGenerator(image.DashScopeOptions{
			APIKey:       dashscopeKey,
			BaseURL:      cfg.DashScopeBaseURL,
			HTTPClient:   httpClient,
			Logger:       &logger,
			Policy:       policy,
			PollInterval: cfg.PollInterval,
			MaxPolls:     cfg.PollMaxAttempts,
		}),
	}

	candidates := make([]fallback.Candidate, 0, len(cfg.ImageModelChain))
	for _, entry := range cfg.ImageModelChain {
		gen, ok := generators[entry.Provider]
		if !ok {
			logger.Fatal().Str("provider", entry.Provider).Msg("worker: unknown provider in model chain")
		}
		candidates = append(candidates, fallback.Candidate{
			Provider:  entry.Provider,
			Model:     entry.Model,
			Generator: gen,
		})
	}
	chain, err := fallback.NewChain(logger, candidates)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid model chain")
	}

	classifier, err := niche.NewClassifier(logger, niche.DefaultRules, niche.DefaultProfiles, geminiClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid niche rule table")
	}

	gate := quality.NewGate(quality.Options{
		Evaluator: quality.NewGeminiEvaluator(geminiClient),
		Threshold: cfg.QualityThreshold,
		FailOpen:  cfg.QualityFailOpen,
		Logger:    logger,
	})

	jobs := repo.NewJobRepository(pool)
	ledger := quota.NewLedger(quota.Options{
		Repo: repo.NewQuotaRepository(pool),
		Limits: map[domain.Plan]int{
			domain.PlanFree: cfg.QuotaFreePerMonth,
			domain.PlanPro:  cfg.QuotaProPerMonth,
		},
		Logger: logger,
	})

	orch, err := orchestrator.New(orchestrator.Options{
		Jobs:             jobs,
		Attempts:         repo.NewAttemptRepository(pool),
		Users:            repo.NewUserRepository(pool),
		Quota:            ledger,
		Classifier:       classifier,
		Chain:            chain,
		Gate:             gate,
		Store:            fileStore,
		Logger:           logger,
		MaxAttempts:      cfg.MaxAttempts,
		JobTimeout:       cfg.JobTimeout,
		ExhaustionPolicy: cfg.ExhaustionPolicy,
		DefaultLanguage:  cfg.DefaultLang,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid orchestrator configuration")
	}

	logger.Info().Int("workers", cfg.WorkerCount).Msg("worker: starting")
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.WorkerCount; i++ {
		g.Go(func() error {
			return runWorker(ctx, jobs, orch, logger)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// runWorker claims and processes jobs until the context is cancelled. An
// empty queue backs off for claimInterval; processing faults are logged and
// the loop keeps going.
func runWorker(ctx context.Context, jobs domain.JobRepository, orch *orchestrator.Orchestrator, logger infra.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		job, err := jobs.ClaimPending(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Error().Err(err).Msg("worker: claim failed")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(claimInterval):
			}
			continue
		}
		if err := orch.Process(ctx, job); err != nil {
			logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: job processing fault")
		}
	}
}

package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	StoragePath    string
	StorageBaseURL string
	GeoIPDBPath    string
	DefaultLang    string

	GeminiAPIKey      string
	GeminiBaseURL     string
	GeminiModel       string
	GeminiVisionModel string

	DashScopeAPIKey  string
	DashScopeBaseURL string

	// ImageModelChain is the ordered provider/model fallback list, parsed
	// from IMAGE_MODEL_CHAIN ("provider:model,provider:model,...").
	ImageModelChain []ChainEntry

	RedisAddr       string
	RedisPassword   string
	RateLimitPerMin int

	QuotaFreePerMonth int
	QuotaProPerMonth  int

	MaxAttempts       int
	JobTimeout        time.Duration
	ExhaustionPolicy  string
	QualityThreshold  float64
	QualityFailOpen   bool
	ProviderRetries   int
	ProviderRetryBase time.Duration
	PollInterval      time.Duration
	PollMaxAttempts   int

	WorkerCount int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// ChainEntry names one candidate of the model fallback chain.
type ChainEntry struct {
	Provider string
	Model    string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: os.Getenv("STORAGE_BASE_URL"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
		DefaultLang:    getEnv("DEFAULT_LANGUAGE", "pt"),

		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiVisionModel: getEnv("GEMINI_VISION_MODEL", "gemini-2.5-flash"),

		DashScopeAPIKey:  os.Getenv("DASHSCOPE_API_KEY"),
		DashScopeBaseURL: getEnv("DASHSCOPE_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		QuotaFreePerMonth: getEnvInt("QUOTA_FREE_PER_MONTH", 10),
		QuotaProPerMonth:  getEnvInt("QUOTA_PRO_PER_MONTH", 100),

		MaxAttempts:       getEnvInt("GENERATION_MAX_ATTEMPTS", 3),
		JobTimeout:        getEnvDuration("GENERATION_JOB_TIMEOUT", 3*time.Minute),
		ExhaustionPolicy:  getEnv("GENERATION_EXHAUSTION_POLICY", "fail"),
		QualityThreshold:  getEnvFloat("QUALITY_GATE_THRESHOLD", 7),
		QualityFailOpen:   getEnvBool("QUALITY_GATE_FAIL_OPEN", true),
		ProviderRetries:   getEnvInt("PROVIDER_MAX_RETRIES", 3),
		ProviderRetryBase: getEnvDuration("PROVIDER_RETRY_INITIAL_DELAY", 500*time.Millisecond),
		PollInterval:      getEnvDuration("PROVIDER_POLL_INTERVAL", 2*time.Second),
		PollMaxAttempts:   getEnvInt("PROVIDER_POLL_MAX_ATTEMPTS", 30),

		WorkerCount: getEnvInt("WORKER_COUNT", 4),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
	}

	switch cfg.ExhaustionPolicy {
	case "fail", "best_effort":
	default:
		return nil, fmt.Errorf("GENERATION_EXHAUSTION_POLICY must be fail or best_effort, got %q", cfg.ExhaustionPolicy)
	}

	chain, err := parseChain(getEnv("IMAGE_MODEL_CHAIN", "gemini:gemini-2.5-flash-image,dashscope:wan2.2-t2i-flash,dashscope:wanx2.1-t2i-turbo"))
	if err != nil {
		return nil, err
	}
	cfg.ImageModelChain = chain

	return cfg, nil
}

func parseChain(raw string) ([]ChainEntry, error) {
	parts := strings.Split(raw, ",")
	entries := make([]ChainEntry, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		provider, model, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(provider) == "" || strings.TrimSpace(model) == "" {
			return nil, fmt.Errorf("IMAGE_MODEL_CHAIN entry %q must be provider:model", part)
		}
		entries = append(entries, ChainEntry{
			Provider: strings.TrimSpace(provider),
			Model:    strings.TrimSpace(model),
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("IMAGE_MODEL_CHAIN must list at least one provider:model entry")
	}
	return entries, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

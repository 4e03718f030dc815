package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:1919/static" {
		t.Fatalf("StorageBaseURL mismatch: %q", cfg.StorageBaseURL)
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.ExhaustionPolicy != "fail" {
		t.Fatalf("ExhaustionPolicy = %q, want fail", cfg.ExhaustionPolicy)
	}
	if !cfg.QualityFailOpen {
		t.Fatalf("QualityFailOpen should default to true")
	}
	if cfg.PollInterval != 2*time.Second || cfg.PollMaxAttempts != 30 {
		t.Fatalf("poll defaults mismatch: %v / %d", cfg.PollInterval, cfg.PollMaxAttempts)
	}
	if len(cfg.ImageModelChain) != 3 {
		t.Fatalf("default chain length = %d, want 3", len(cfg.ImageModelChain))
	}
	if cfg.ImageModelChain[0].Provider != "gemini" {
		t.Fatalf("first chain provider = %q, want gemini", cfg.ImageModelChain[0].Provider)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigRejectsUnknownExhaustionPolicy(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("GENERATION_EXHAUSTION_POLICY", "retry-forever")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown exhaustion policy")
	}
}

func TestLoadConfigParsesModelChain(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("IMAGE_MODEL_CHAIN", "dashscope:wanx2.1-t2i-turbo, gemini:gemini-2.5-flash-image")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.ImageModelChain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(cfg.ImageModelChain))
	}
	if cfg.ImageModelChain[0].Provider != "dashscope" || cfg.ImageModelChain[0].Model != "wanx2.1-t2i-turbo" {
		t.Fatalf("unexpected first entry: %#v", cfg.ImageModelChain[0])
	}
}

func TestLoadConfigRejectsMalformedChainEntry(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("IMAGE_MODEL_CHAIN", "gemini")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for malformed chain entry")
	}
}

package fallback

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/providers/image"
)

type nopGenerator struct{}

func (nopGenerator) Generate(ctx context.Context, req image.Request) (*image.Artifact, error) {
	return &image.Artifact{}, nil
}

func testChain(t *testing.T, keys ...[2]string) *Chain {
	t.Helper()
	candidates := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		candidates = append(candidates, Candidate{Provider: k[0], Model: k[1], Generator: nopGenerator{}})
	}
	chain, err := NewChain(zerolog.New(io.Discard), candidates)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return chain
}

func TestNextReturnsCandidatesInOrder(t *testing.T) {
	chain := testChain(t, [2]string{"gemini", "flash"}, [2]string{"dashscope", "wanx"})

	first, err := chain.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Provider != "gemini" {
		t.Fatalf("first provider = %q, want gemini", first.Provider)
	}

	chain.MarkExhausted(first)
	second, err := chain.Next()
	if err != nil {
		t.Fatalf("Next after exhaustion: %v", err)
	}
	if second.Provider != "dashscope" {
		t.Fatalf("second provider = %q, want dashscope", second.Provider)
	}
}

func TestExhaustedCandidateNotReturnedUntilSuccess(t *testing.T) {
	chain := testChain(t, [2]string{"gemini", "flash"}, [2]string{"dashscope", "wanx"})

	first, _ := chain.Next()
	chain.MarkExhausted(first)
	for i := 0; i < 5; i++ {
		next, err := chain.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if next.key() == first.key() {
			t.Fatalf("exhausted candidate returned before any success")
		}
	}

	chain.RecordSuccess()
	next, err := chain.Next()
	if err != nil {
		t.Fatalf("Next after success: %v", err)
	}
	if next.key() != first.key() {
		t.Fatalf("success should reopen the chain head, got %s", next.key())
	}
}

func TestAllExhaustedRaisesSentinel(t *testing.T) {
	chain := testChain(t, [2]string{"gemini", "flash"}, [2]string{"dashscope", "wanx"})
	for i := 0; i < chain.Len(); i++ {
		c, err := chain.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		chain.MarkExhausted(c)
	}
	if _, err := chain.Next(); !errors.Is(err, ErrAllProvidersExhausted) {
		t.Fatalf("error = %v, want ErrAllProvidersExhausted", err)
	}
}

func TestNewChainValidation(t *testing.T) {
	logger := zerolog.New(io.Discard)
	if _, err := NewChain(logger, nil); err == nil {
		t.Fatalf("empty chain should be rejected")
	}
	dup := []Candidate{
		{Provider: "gemini", Model: "flash", Generator: nopGenerator{}},
		{Provider: "gemini", Model: "flash", Generator: nopGenerator{}},
	}
	if _, err := NewChain(logger, dup); err == nil {
		t.Fatalf("duplicate candidates should be rejected")
	}
	missing := []Candidate{{Provider: "gemini", Model: "flash"}}
	if _, err := NewChain(logger, missing); err == nil {
		t.Fatalf("candidate without generator should be rejected")
	}
}

func TestChainIsSafeForConcurrentUse(t *testing.T) {
	chain := testChain(t, [2]string{"gemini", "flash"}, [2]string{"dashscope", "wanx"})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if c, err := chain.Next(); err == nil {
					chain.MarkExhausted(c)
				}
				chain.RecordSuccess()
			}
		}()
	}
	wg.Wait()
	if _, err := chain.Next(); err != nil {
		t.Fatalf("chain should be open after final success: %v", err)
	}
}

package niche

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

type stubKeyClassifier struct {
	key   string
	err   error
	calls int
}

func (s *stubKeyClassifier) ClassifyBusiness(ctx context.Context, description string, keys []string) (string, error) {
	s.calls++
	return s.key, s.err
}

func newTestClassifier(t *testing.T, llm KeyClassifier) *Classifier {
	t.Helper()
	c, err := NewClassifier(zerolog.New(io.Discard), DefaultRules, DefaultProfiles, llm)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestSpecificRuleWinsOverBroadCategory(t *testing.T) {
	llm := &stubKeyClassifier{}
	c := newTestClassifier(t, llm)

	got := c.Classify(context.Background(), domain.BusinessProfile{
		CompanyName: "Brilho Total",
		OfferText:   "lavagem de carros com entrega do veículo em casa",
	})
	if got.Key != "lavagem_carro" {
		t.Fatalf("niche = %q, want lavagem_carro", got.Key)
	}
	if llm.calls != 0 {
		t.Fatalf("rule match must not consult llm, calls = %d", llm.calls)
	}
}

func TestAcaiMatchesByRegexWithoutLLM(t *testing.T) {
	llm := &stubKeyClassifier{}
	c := newTestClassifier(t, llm)

	got := c.Classify(context.Background(), domain.BusinessProfile{
		CompanyName: "Açaí do Mano",
		OfferText:   "copos de 300ml a 700ml com adicionais",
	})
	if got.Key != "acai" {
		t.Fatalf("niche = %q, want acai", got.Key)
	}
	if llm.calls != 0 {
		t.Fatalf("llm calls = %d, want 0", llm.calls)
	}
}

func TestLLMFallbackPicksCuratedKey(t *testing.T) {
	llm := &stubKeyClassifier{key: "barbearia"}
	c := newTestClassifier(t, llm)

	got := c.Classify(context.Background(), domain.BusinessProfile{
		CompanyName: "Navalha de Ouro",
		OfferText:   "cortes masculinos com hora marcada",
	})
	if got.Key != "barbearia" {
		t.Fatalf("niche = %q, want barbearia", got.Key)
	}
	if llm.calls != 1 {
		t.Fatalf("llm calls = %d, want 1", llm.calls)
	}
}

func TestLLMAnswerOutsideCuratedKeysFallsBackToDynamic(t *testing.T) {
	llm := &stubKeyClassifier{key: "joalheria artesanal"}
	c := newTestClassifier(t, llm)

	got := c.Classify(context.Background(), domain.BusinessProfile{
		CompanyName: "Pedra Viva",
		OfferText:   "joias sob encomenda",
	})
	if !got.Dynamic() {
		t.Fatalf("expected dynamic profile, got %q", got.Key)
	}
	if got.Scene == "" {
		t.Fatalf("dynamic profile must carry a scene")
	}
}

func TestLLMErrorFallsBackToDynamic(t *testing.T) {
	llm := &stubKeyClassifier{err: errors.New("model unavailable")}
	c := newTestClassifier(t, llm)

	got := c.Classify(context.Background(), domain.BusinessProfile{
		CompanyName: "Pedra Viva",
		OfferText:   "joias sob encomenda",
	})
	if !got.Dynamic() {
		t.Fatalf("expected dynamic profile, got %q", got.Key)
	}
}

func TestNilLLMSynthesizesDirectly(t *testing.T) {
	c := newTestClassifier(t, nil)
	got := c.Classify(context.Background(), domain.BusinessProfile{CompanyName: "Serralheria do Zé"})
	if !got.Dynamic() {
		t.Fatalf("expected dynamic profile, got %q", got.Key)
	}
}

func TestRuleTableValidation(t *testing.T) {
	logger := zerolog.New(io.Discard)
	if _, err := NewClassifier(logger, nil, DefaultProfiles, nil); err == nil {
		t.Fatalf("empty rule table should be rejected")
	}
	bad := []Rule{{Key: "acai", Pattern: `([`}}
	if _, err := NewClassifier(logger, bad, DefaultProfiles, nil); err == nil {
		t.Fatalf("malformed pattern should be rejected")
	}
	orphan := []Rule{{Key: "nope", Pattern: `x`}}
	if _, err := NewClassifier(logger, orphan, DefaultProfiles, nil); err == nil {
		t.Fatalf("rule without profile should be rejected")
	}
	if _, err := NewClassifier(logger, DefaultRules, DefaultProfiles, nil); err != nil {
		t.Fatalf("default table must validate: %v", err)
	}
}

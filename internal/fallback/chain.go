// Package fallback implements the ordered provider/model chain with
// exhaustion tracking and optimistic recovery.
package fallback

import (
	"errors"
	"fmt"
	"sync"

	"server/internal/infra"
	"server/internal/providers/image"
)

// ErrAllProvidersExhausted is returned when every candidate in the chain is
// currently marked exhausted. It is terminal for the running attempt.
var ErrAllProvidersExhausted = errors.New("fallback: all providers exhausted")

// Candidate names one (provider, model) pair and the generator serving it.
type Candidate struct {
	Provider  string
	Model     string
	Generator image.Generator
}

func (c Candidate) key() string {
	return c.Provider + "/" + c.Model
}

// Chain holds the ordered candidate list and the set of currently exhausted
// entries. The exhausted set is process-wide shared state across concurrent
// jobs, so all access goes through the mutex. Instances are injected, never
// package-level.
type Chain struct {
	mu         sync.Mutex
	candidates []Candidate
	exhausted  map[string]struct{}
	logger     infra.Logger
}

// NewChain validates and builds a chain from the ordered candidate list.
func NewChain(logger infra.Logger, candidates []Candidate) (*Chain, error) {
	if len(candidates) == 0 {
		return nil, errors.New("fallback: at least one candidate is required")
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.Provider == "" || c.Model == "" {
			return nil, fmt.Errorf("fallback: candidate %q needs provider and model", c.key())
		}
		if c.Generator == nil {
			return nil, fmt.Errorf("fallback: candidate %s has no generator", c.key())
		}
		if _, dup := seen[c.key()]; dup {
			return nil, fmt.Errorf("fallback: duplicate candidate %s", c.key())
		}
		seen[c.key()] = struct{}{}
	}
	return &Chain{
		candidates: append([]Candidate(nil), candidates...),
		exhausted:  make(map[string]struct{}),
		logger:     logger,
	}, nil
}

// Len returns the number of configured candidates, which bounds any rotation loop.
func (c *Chain) Len() int {
	return len(c.candidates)
}

// Next returns the first candidate not currently exhausted.
func (c *Chain) Next() (Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, candidate := range c.candidates {
		if _, down := c.exhausted[candidate.key()]; !down {
			return candidate, nil
		}
	}
	return Candidate{}, ErrAllProvidersExhausted
}

// MarkExhausted records a quota/rate-limit class failure for the candidate.
func (c *Chain) MarkExhausted(candidate Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exhausted[candidate.key()] = struct{}{}
	c.logger.Warn().
		Str("provider", candidate.Provider).
		Str("model", candidate.Model).
		Int("exhausted", len(c.exhausted)).
		Msg("fallback: candidate marked exhausted")
}

// RecordSuccess clears the whole exhausted set. Rate limits are assumed to be
// time-windowed, not permanent, so one success anywhere reopens the chain.
func (c *Chain) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.exhausted) > 0 {
		c.logger.Info().
			Int("cleared", len(c.exhausted)).
			Msg("fallback: success observed, reopening exhausted candidates")
	}
	c.exhausted = make(map[string]struct{})
}

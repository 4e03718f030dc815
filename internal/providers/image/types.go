// Package image defines the uniform gateway over external image providers.
// Two shapes exist behind one contract: synchronous generation (Gemini) and
// asynchronous submit+poll task APIs (DashScope).
package image

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Request describes a normalized generation request passed to any provider.
type Request struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Resolution     string
	Model          string
	RequestID      string
}

// Artifact is one generated image candidate.
type Artifact struct {
	Data   []byte
	Format string
	URL    string
	Width  int
	Height int
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Artifact, error)
}

// Error carries the provider's original HTTP failure so callers can classify
// it without string matching against wrapped messages.
type Error struct {
	Provider string
	Status   int
	Body     string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

// Transient reports whether the failure is worth retrying in place.
func (e *Error) Transient() bool {
	return e.Status == 429 || e.Status >= 500
}

// ErrPollTimeout is returned when an async task exceeds its poll ceiling.
var ErrPollTimeout = errors.New("image: async task poll timeout")

// IsTransient classifies retryable failures: HTTP 429 and 5xx, plus network
// timeouts. Everything else aborts immediately.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// IsRateLimited classifies quota/rate-limit class errors, the only class that
// rotates the fallback chain instead of failing the attempt.
func IsRateLimited(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	if pe.Status == 429 {
		return true
	}
	body := strings.ToLower(pe.Body)
	return strings.Contains(body, "quota") || strings.Contains(body, "rate limit") || strings.Contains(body, "resource exhausted")
}

package image

import (
	"context"
	"errors"
	"testing"
	"time"

	"server/internal/providers/genai"
	"server/internal/retry"
)

type stubGeminiClient struct {
	queue          []stubGeminiResponse
	asset          *genai.ImageAsset
	err            error
	hasCredentials bool
	calls          int
}

type stubGeminiResponse struct {
	asset *genai.ImageAsset
	err   error
}

func (s *stubGeminiClient) GenerateImage(ctx context.Context, req genai.ImageRequest) (*genai.ImageAsset, error) {
	s.calls++
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		return next.asset, next.err
	}
	return s.asset, s.err
}

func (s *stubGeminiClient) HasCredentials() bool { return s.hasCredentials }

func (s *stubGeminiClient) Model() string { return "gemini-2.5-flash-image" }

func fastPolicy(maxRetries int) retry.Policy {
	return retry.New(maxRetries, time.Millisecond, nil, nil)
}

func TestGeminiGeneratorRetriesTransientAPIErrors(t *testing.T) {
	generated := &genai.ImageAsset{Data: []byte{0x89}, Format: "image/png", Width: 1024, Height: 1024}
	client := &stubGeminiClient{
		hasCredentials: true,
		queue: []stubGeminiResponse{
			{err: &genai.APIError{Status: 503, Message: "overloaded"}},
			{asset: generated},
		},
	}
	gen := NewGeminiGenerator(client, fastPolicy(3))

	artifact, err := gen.Generate(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("calls = %d, want 2", client.calls)
	}
	if artifact.Format != "image/png" {
		t.Fatalf("unexpected artifact: %#v", artifact)
	}
}

func TestGeminiGeneratorMapsAPIErrorStatus(t *testing.T) {
	client := &stubGeminiClient{
		hasCredentials: true,
		err:            &genai.APIError{Status: 429, Message: "Resource has been exhausted"},
	}
	gen := NewGeminiGenerator(client, fastPolicy(1))

	_, err := gen.Generate(context.Background(), Request{Prompt: "hello"})
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if pe.Status != 429 || pe.Provider != "gemini" {
		t.Fatalf("unexpected mapped error: %#v", pe)
	}
	if !IsRateLimited(err) {
		t.Fatalf("429 should classify as rate limited")
	}
	if client.calls != 2 {
		t.Fatalf("calls = %d, want 2 (one retry for 429)", client.calls)
	}
}

func TestGeminiGeneratorFatalErrorNotRetried(t *testing.T) {
	client := &stubGeminiClient{
		hasCredentials: true,
		err:            &genai.APIError{Status: 400, Message: "invalid argument"},
	}
	gen := NewGeminiGenerator(client, fastPolicy(5))

	_, err := gen.Generate(context.Background(), Request{Prompt: "hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d, want 1", client.calls)
	}
	if IsRateLimited(err) {
		t.Fatalf("400 must not classify as rate limited")
	}
}

func TestGeminiGeneratorRequiresCredentials(t *testing.T) {
	gen := NewGeminiGenerator(&stubGeminiClient{hasCredentials: false}, fastPolicy(1))
	if _, err := gen.Generate(context.Background(), Request{Prompt: "hello"}); err == nil {
		t.Fatalf("expected missing credentials error")
	}
}

package image

import (
	"context"
	"errors"
	"fmt"

	"server/internal/providers/genai"
	"server/internal/retry"
)

type geminiImageClient interface {
	GenerateImage(ctx context.Context, req genai.ImageRequest) (*genai.ImageAsset, error)
	HasCredentials() bool
	Model() string
}

// GeminiGenerator adapts the synchronous Gemini client to the Generator
// contract. The single remote call is wrapped by the retry policy.
type GeminiGenerator struct {
	client geminiImageClient
	policy retry.Policy
}

// NewGeminiGenerator wires a Gemini client with a retry policy for transient failures.
func NewGeminiGenerator(client geminiImageClient, policy retry.Policy) *GeminiGenerator {
	policy.IsRetryable = IsTransient
	return &GeminiGenerator{client: client, policy: policy}
}

// Generate fulfils the Generator interface.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*Artifact, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gemini generator not configured")
	}
	if !g.client.HasCredentials() {
		return nil, fmt.Errorf("gemini generator missing credentials")
	}

	var asset *genai.ImageAsset
	err := g.policy.Do(ctx, "gemini generate", func() error {
		var callErr error
		asset, callErr = g.client.GenerateImage(ctx, genai.ImageRequest{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			AspectRatio:    req.AspectRatio,
			RequestID:      req.RequestID,
		})
		return mapGeminiError(callErr)
	})
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Data:   asset.Data,
		Format: asset.Format,
		Width:  asset.Width,
		Height: asset.Height,
	}, nil
}

func (g *GeminiGenerator) String() string {
	if g == nil || g.client == nil {
		return "gemini"
	}
	return g.client.Model()
}

var _ Generator = (*GeminiGenerator)(nil)

func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Provider: "gemini", Status: apiErr.Status, Body: apiErr.Message}
	}
	return err
}

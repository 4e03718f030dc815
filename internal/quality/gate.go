// Package quality screens generated artifacts before a job may complete. A
// vision model checks the mandatory text fields; the gate combines the
// model's verdict with a numeric score threshold.
package quality

import (
	"context"
	"strings"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/genai"
	"server/internal/providers/image"
)

// Verdict is the gate's decision for one artifact.
type Verdict struct {
	Accepted bool
	Score    float64
	Issues   []string
	// Skipped is set when evaluation errored and the fail-open policy let
	// the artifact through unreviewed.
	Skipped bool
}

// Evaluator reviews an artifact against the literal fields it must contain.
type Evaluator interface {
	Evaluate(ctx context.Context, artifact *image.Artifact, expected []string) (accepted bool, score float64, issues []string, err error)
}

// Options configure a Gate.
type Options struct {
	Evaluator Evaluator
	// Threshold is exclusive: an artifact passes only when the model says
	// accepted AND score > Threshold.
	Threshold float64
	// FailOpen accepts artifacts when the evaluator itself errors. When
	// false, evaluator failure rejects the attempt.
	FailOpen bool
	Logger   infra.Logger
}

// Gate applies the acceptance policy.
type Gate struct {
	evaluator Evaluator
	threshold float64
	failOpen  bool
	logger    infra.Logger
}

func NewGate(opts Options) *Gate {
	return &Gate{
		evaluator: opts.Evaluator,
		threshold: opts.Threshold,
		failOpen:  opts.FailOpen,
		logger:    opts.Logger,
	}
}

// Review evaluates one artifact. It returns an error only on evaluator
// failure with fail-open disabled; a healthy evaluation that rejects the
// artifact is a Verdict, not an error.
func (g *Gate) Review(ctx context.Context, artifact *image.Artifact, profile domain.BusinessProfile) (Verdict, error) {
	accepted, score, issues, err := g.evaluator.Evaluate(ctx, artifact, profile.MandatoryFields())
	if err != nil {
		if g.failOpen {
			g.logger.Warn().Err(err).Msg("quality: evaluator unavailable, accepting unreviewed artifact")
			return Verdict{Accepted: true, Skipped: true}, nil
		}
		g.logger.Error().Err(err).Msg("quality: evaluator unavailable, rejecting artifact")
		return Verdict{}, err
	}

	verdict := Verdict{
		Accepted: accepted && score > g.threshold,
		Score:    score,
		Issues:   issues,
	}
	if !verdict.Accepted {
		g.logger.Info().
			Bool("model_accepted", accepted).
			Float64("score", score).
			Float64("threshold", g.threshold).
			Str("issues", strings.Join(issues, "; ")).
			Msg("quality: artifact rejected")
	}
	return verdict, nil
}

// GeminiEvaluator adapts the Gemini vision review endpoint to the Evaluator
// contract.
type GeminiEvaluator struct {
	client geminiReviewClient
}

type geminiReviewClient interface {
	ReviewImage(ctx context.Context, data []byte, mimeType string, expected []string) (*genai.ImageReview, error)
}

func NewGeminiEvaluator(client geminiReviewClient) *GeminiEvaluator {
	return &GeminiEvaluator{client: client}
}

func (e *GeminiEvaluator) Evaluate(ctx context.Context, artifact *image.Artifact, expected []string) (bool, float64, []string, error) {
	review, err := e.client.ReviewImage(ctx, artifact.Data, artifact.Format, expected)
	if err != nil {
		return false, 0, nil, err
	}
	return review.Accepted, review.Score, review.Issues, nil
}

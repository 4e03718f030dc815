// Package genai is a lightweight facade over the Gemini generateContent API.
// It backs three concerns: synchronous image generation, constrained niche
// classification, and vision-based artifact review.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	HTTPClient  *http.Client
	Logger      *infra.Logger
}

// Client performs HTTP calls against Gemini models.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	visionModel string
	httpClient  *http.Client
	logger      *infra.Logger
}

// APIError preserves the HTTP status and message of a failed Gemini call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini: status %d", e.Status)
	}
	return fmt.Sprintf("gemini: status %d: %s", e.Status, e.Message)
}

// ImageRequest represents the information required to generate one image.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	RequestID      string
}

// ImageAsset is the normalized representation returned by the client.
type ImageAsset struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// ImageReview is the structured verdict of a vision evaluation.
type ImageReview struct {
	Accepted bool     `json:"accepted"`
	Score    float64  `json:"score"`
	Issues   []string `json:"issues"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}
	visionModel := opts.VisionModel
	if visionModel == "" {
		visionModel = "gemini-2.5-flash"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		visionModel: visionModel,
		httpClient:  client,
		logger:      logger,
	}, nil
}

// Model returns the configured image model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImage performs one synchronous image generation call and returns
// the first inline image candidate.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("gemini: prompt is required")
	}
	text := prompt
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		text += "\nAspect ratio: " + aspect
	}
	if negative := strings.TrimSpace(req.NegativePrompt); negative != "" {
		text += "\nStrictly avoid: " + negative
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: text}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:     1,
			ResponseModalities: []string{"IMAGE"},
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, c.model, payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("gemini: decode inline data: %w", err)
			}
			format := part.InlineData.MimeType
			if format == "" {
				format = "image/png"
			}
			width, height := decodeImageDimensions(data)
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.model).
				Int("bytes", len(data)).
				Msg("genai: generated image asset")
			return &ImageAsset{Data: data, Format: format, Width: width, Height: height}, nil
		}
	}
	return nil, fmt.Errorf("gemini: no image content returned")
}

// ClassifyBusiness asks the text model to map a business description onto one
// of the given niche keys. The response is constrained to JSON; any value
// outside the key set is returned as-is for the caller to reject.
func (c *Client) ClassifyBusiness(ctx context.Context, description string, keys []string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("gemini: description is required")
	}

	var b strings.Builder
	b.WriteString("Classify the following business description into exactly one category key.\n")
	b.WriteString("Valid keys: ")
	b.WriteString(strings.Join(keys, ", "))
	b.WriteString("\nRespond with JSON of the form {\"niche\": \"<key>\"} and nothing else.\n")
	b.WriteString("Description: ")
	b.WriteString(description)

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: b.String()}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, c.visionModel, payload, &response); err != nil {
		return "", err
	}

	raw := firstText(response)
	if raw == "" {
		return "", fmt.Errorf("gemini: empty classification response")
	}
	var decoded struct {
		Niche string `json:"niche"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return "", fmt.Errorf("gemini: decode classification: %w", err)
	}
	return strings.TrimSpace(decoded.Niche), nil
}

// ReviewImage sends the artifact to the vision model and asks for a
// structured verdict on whether all expected literal fields are rendered
// legibly and correctly.
func (c *Client) ReviewImage(ctx context.Context, data []byte, mimeType string, expected []string) (*ImageReview, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("gemini: artifact data is required")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	var b strings.Builder
	b.WriteString("You are reviewing a marketing image. Check that every one of these literal text fields appears in the image, rendered exactly and legibly:\n")
	for _, field := range expected {
		b.WriteString("- ")
		b.WriteString(field)
		b.WriteString("\n")
	}
	b.WriteString("Also check for gibberish or invented text, wrong language, and extra logos.\n")
	b.WriteString("Respond with JSON: {\"accepted\": bool, \"score\": number from 0 to 10, \"issues\": [string]} and nothing else.")

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
				{Text: b.String()},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, c.visionModel, payload, &response); err != nil {
		return nil, err
	}

	raw := firstText(response)
	if raw == "" {
		return nil, fmt.Errorf("gemini: empty review response")
	}
	var review ImageReview
	if err := json.Unmarshal([]byte(raw), &review); err != nil {
		return nil, fmt.Errorf("gemini: decode review: %w", err)
	}
	return &review, nil
}

func (c *Client) invoke(ctx context.Context, model string, payload any, out any) error {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gemini: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gemini: create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: invoke: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gemini: decode response: %w", err)
	}
	return nil
}

func firstText(resp geminiGenerateContentResponse) string {
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

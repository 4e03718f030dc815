package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/retry"
)

// DashScope task statuses for asynchronous image synthesis.
const (
	dashScopeStatusPending   = "PENDING"
	dashScopeStatusRunning   = "RUNNING"
	dashScopeStatusSucceeded = "SUCCEEDED"
	dashScopeStatusFailed    = "FAILED"
)

// DashScopeOptions configures the asynchronous DashScope generator.
type DashScopeOptions struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	Policy       retry.Policy
	PollInterval time.Duration
	MaxPolls     int
}

// DashScopeGenerator drives DashScope's submit+poll text-to-image task API.
// Submit, every poll, and the artifact download are each wrapped individually
// by the retry policy; a FAILED terminal status from the provider is a
// definitive answer and is never retried.
type DashScopeGenerator struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	policy       retry.Policy
	pollInterval time.Duration
	maxPolls     int
}

type dashScopeSubmitRequest struct {
	Model string `json:"model"`
	Input struct {
		Prompt         string `json:"prompt"`
		NegativePrompt string `json:"negative_prompt,omitempty"`
	} `json:"input"`
	Parameters struct {
		Size string `json:"size,omitempty"`
		N    int    `json:"n"`
	} `json:"parameters"`
}

type dashScopeTaskResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Results    []struct {
			URL string `json:"url"`
		} `json:"results"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewDashScopeGenerator constructs the async generator with sane defaults.
func NewDashScopeGenerator(opts DashScopeOptions) *DashScopeGenerator {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 45 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 30
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	policy := opts.Policy
	policy.IsRetryable = IsTransient
	return &DashScopeGenerator{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		policy:       policy,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
	}
}

// HasCredentials reports whether the generator can perform remote calls.
func (g *DashScopeGenerator) HasCredentials() bool {
	return g != nil && g.apiKey != ""
}

// Generate submits the task, polls it to completion, and downloads the artifact.
func (g *DashScopeGenerator) Generate(ctx context.Context, req Request) (*Artifact, error) {
	if g == nil {
		return nil, fmt.Errorf("dashscope generator not configured")
	}
	if g.apiKey == "" {
		return nil, fmt.Errorf("dashscope generator missing credentials")
	}

	taskID, err := g.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	g.logger.Debug().
		Str("request_id", req.RequestID).
		Str("task_id", taskID).
		Str("model", req.Model).
		Msg("dashscope: task submitted")

	artifactURL, err := g.awaitTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	data, format, err := g.download(ctx, artifactURL)
	if err != nil {
		return nil, err
	}
	return &Artifact{Data: data, Format: format, URL: artifactURL}, nil
}

var _ Generator = (*DashScopeGenerator)(nil)

func (g *DashScopeGenerator) submit(ctx context.Context, req Request) (string, error) {
	var payload dashScopeSubmitRequest
	payload.Model = req.Model
	payload.Input.Prompt = req.Prompt
	payload.Input.NegativePrompt = strings.TrimSpace(req.NegativePrompt)
	payload.Parameters.Size = resolutionForAspect(req.AspectRatio, req.Resolution)
	payload.Parameters.N = 1

	var taskID string
	err := g.policy.Do(ctx, "dashscope submit", func() error {
		var out dashScopeTaskResponse
		if err := g.post(ctx, "/services/aigc/text2image/image-synthesis", payload, &out); err != nil {
			return err
		}
		if out.Output.TaskID == "" {
			return &Error{Provider: "dashscope", Status: http.StatusBadGateway, Body: "submit returned no task id"}
		}
		taskID = out.Output.TaskID
		return nil
	})
	return taskID, err
}

// awaitTask polls the task at a fixed interval up to the poll ceiling.
func (g *DashScopeGenerator) awaitTask(ctx context.Context, taskID string) (string, error) {
	for poll := 0; poll < g.maxPolls; poll++ {
		if poll > 0 {
			timer := time.NewTimer(g.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		var out dashScopeTaskResponse
		err := g.policy.Do(ctx, "dashscope poll", func() error {
			return g.get(ctx, "/tasks/"+taskID, &out)
		})
		if err != nil {
			return "", err
		}

		switch out.Output.TaskStatus {
		case dashScopeStatusSucceeded:
			if len(out.Output.Results) == 0 || out.Output.Results[0].URL == "" {
				return "", &Error{Provider: "dashscope", Status: http.StatusBadGateway, Body: "succeeded task has no result url"}
			}
			return out.Output.Results[0].URL, nil
		case dashScopeStatusFailed:
			message := out.Output.Message
			if message == "" {
				message = out.Message
			}
			if message == "" {
				message = "task failed"
			}
			return "", fmt.Errorf("dashscope: task %s failed: %s", taskID, message)
		case dashScopeStatusPending, dashScopeStatusRunning:
		default:
			g.logger.Warn().
				Str("task_id", taskID).
				Str("status", out.Output.TaskStatus).
				Msg("dashscope: unknown task status, continuing to poll")
		}
	}
	return "", fmt.Errorf("dashscope: task %s: %w", taskID, ErrPollTimeout)
}

func (g *DashScopeGenerator) download(ctx context.Context, artifactURL string) ([]byte, string, error) {
	var data []byte
	var format string
	err := g.policy.Do(ctx, "dashscope download", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
		if err != nil {
			return fmt.Errorf("dashscope: build download request: %w", err)
		}
		resp, err := g.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("dashscope: download artifact: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusMultipleChoices {
			return &Error{Provider: "dashscope", Status: resp.StatusCode, Body: "artifact download failed"}
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("dashscope: read artifact: %w", err)
		}
		format = resp.Header.Get("Content-Type")
		if format == "" {
			format = "image/png"
		}
		return nil
	})
	return data, format, err
}

func (g *DashScopeGenerator) post(ctx context.Context, path string, payload any, out *dashScopeTaskResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dashscope: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dashscope: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("X-DashScope-Async", "enable")
	return g.do(req, out)
}

func (g *DashScopeGenerator) get(ctx context.Context, path string, out *dashScopeTaskResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("dashscope: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	return g.do(req, out)
}

func (g *DashScopeGenerator) do(req *http.Request, out *dashScopeTaskResponse) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dashscope: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("dashscope: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var detail dashScopeTaskResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return &Error{Provider: "dashscope", Status: resp.StatusCode, Body: fmt.Sprintf("%s (%s)", detail.Message, detail.Code)}
		}
		return &Error{Provider: "dashscope", Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("dashscope: decode response: %w", err)
	}
	return nil
}

// resolutionForAspect maps an aspect ratio to the DashScope size token unless
// the caller pinned an explicit resolution.
func resolutionForAspect(aspect, resolution string) string {
	if strings.TrimSpace(resolution) != "" {
		return resolution
	}
	switch strings.TrimSpace(aspect) {
	case "16:9":
		return "1664*928"
	case "4:3":
		return "1472*1104"
	case "3:4":
		return "1140*1472"
	case "9:16":
		return "928*1664"
	default:
		return "1328*1328"
	}
}

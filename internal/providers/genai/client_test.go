package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Options{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		Model:       "gemini-2.5-flash-image",
		VisionModel: "gemini-2.5-flash",
		HTTPClient:  server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func textResponse(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	resp := geminiGenerateContentResponse{
		Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		}},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestGenerateImageDecodesInlineData(t *testing.T) {
	imgBytes := []byte("fake-image-bytes")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash-image") {
			t.Errorf("image generation must use the image model, path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key query param")
		}
		resp := geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{
					InlineData: &geminiInlineData{
						MimeType: "image/png",
						Data:     base64.StdEncoding.EncodeToString(imgBytes),
					},
				}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	asset, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "storefront"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(asset.Data) != string(imgBytes) || asset.Format != "image/png" {
		t.Fatalf("asset = %+v", asset)
	}
}

func TestGenerateImageFoldsAspectAndNegativeIntoText(t *testing.T) {
	var gotText string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req geminiGenerateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotText = req.Contents[0].Parts[0].Text
		resp := geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{
					InlineData: &geminiInlineData{Data: base64.StdEncoding.EncodeToString([]byte("x"))},
				}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	_, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:         "storefront",
		AspectRatio:    "16:9",
		NegativePrompt: "watermarks",
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !strings.Contains(gotText, "Aspect ratio: 16:9") || !strings.Contains(gotText, "Strictly avoid: watermarks") {
		t.Fatalf("request text missing directives:\n%s", gotText)
	}
}

func TestClassifyBusinessParsesConstrainedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash:") {
			t.Errorf("classification must use the vision/text model, path = %s", r.URL.Path)
		}
		var req geminiGenerateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !strings.Contains(req.Contents[0].Parts[0].Text, "acai, barbearia") {
			t.Errorf("prompt must enumerate valid keys")
		}
		textResponse(t, w, `{"niche": "barbearia"}`)
	})

	key, err := client.ClassifyBusiness(context.Background(), "cortes masculinos", []string{"acai", "barbearia"})
	if err != nil {
		t.Fatalf("ClassifyBusiness: %v", err)
	}
	if key != "barbearia" {
		t.Fatalf("key = %q", key)
	}
}

func TestReviewImageParsesVerdict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req geminiGenerateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		parts := req.Contents[0].Parts
		if len(parts) != 2 || parts[0].InlineData == nil {
			t.Errorf("review request must carry the artifact inline")
		}
		if !strings.Contains(parts[1].Text, "(11) 98765-4321") {
			t.Errorf("review prompt must list expected fields")
		}
		textResponse(t, w, `{"accepted": true, "score": 8.5, "issues": []}`)
	})

	review, err := client.ReviewImage(context.Background(), []byte("img"), "image/png", []string{"(11) 98765-4321"})
	if err != nil {
		t.Fatalf("ReviewImage: %v", err)
	}
	if !review.Accepted || review.Score != 8.5 {
		t.Fatalf("review = %+v", review)
	}
}

func TestInvokeSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "Resource has been exhausted"}}`))
	})

	_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || !strings.Contains(apiErr.Message, "exhausted") {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestGenerateImageRejectsEmptyPrompt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	if _, err := client.GenerateImage(context.Background(), ImageRequest{}); err == nil {
		t.Fatalf("empty prompt must be rejected")
	}
}

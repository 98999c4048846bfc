// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

// geminiAPIURL is the Generative Language API base. Package-level var for test substitution.
var geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Gemini generateContent endpoint.
type GeminiClient struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature *float32
	Client      *http.Client
}

// NewGeminiClient builds a Gemini client from cfg. The API key is required.
func NewGeminiClient(cfg types.AIConfig, httpClient *http.Client) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	return &GeminiClient{
		APIKey:      cfg.APIKey,
		Model:       defaultModel(cfg, types.DefaultModel),
		BaseURL:     cfg.BaseURL,
		MaxTokens:   maxTokens(cfg),
		Temperature: cfg.Temperature,
		Client:      httpClient,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float32 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	ModelVersion string `json:"modelVersion"`
}

// Complete sends one generateContent request.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := checkPrompt(req.Prompt); err != nil {
		return Response{}, err
	}
	model := req.Model
	if model == "" {
		model = c.Model
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: c.MaxTokens,
			Temperature:     c.Temperature,
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	base := c.BaseURL
	if base == "" {
		base = geminiAPIURL
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(base, "/"), url.PathEscape(model))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.APIKey)

	respBody, err := httputil.Do(ctx, c.Client, httpReq)
	if err != nil {
		return Response{}, classify(string(types.BackendGemini), err)
	}

	var gResp geminiResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return Response{}, &Error{Kind: ErrBackend, Backend: string(types.BackendGemini), Err: fmt.Errorf("decoding response: %w", err)}
	}

	if len(gResp.Candidates) == 0 {
		reason := "no candidates"
		if gResp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + gResp.PromptFeedback.BlockReason
		}
		return Response{}, &Error{Kind: ErrBackend, Backend: string(types.BackendGemini), Err: errors.New(reason)}
	}

	var sb strings.Builder
	for _, p := range gResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return Response{}, &Error{Kind: ErrBackend, Backend: string(types.BackendGemini),
			Err: fmt.Errorf("empty text (finish reason %s)", gResp.Candidates[0].FinishReason)}
	}

	used := model
	if gResp.ModelVersion != "" {
		used = gResp.ModelVersion
	}
	return Response{Text: sb.String(), Model: used}, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

// ClaudeClient calls the Claude Messages API.
type ClaudeClient struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature *float32
	Client      *http.Client
}

// NewClaudeClient builds a Claude client from cfg. The API key is required.
func NewClaudeClient(cfg types.AIConfig, httpClient *http.Client) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude: %w", ErrMissingAPIKey)
	}
	return &ClaudeClient{
		APIKey:      cfg.APIKey,
		Model:       defaultModel(cfg, defaultClaudeModel),
		BaseURL:     cfg.BaseURL,
		MaxTokens:   maxTokens(cfg),
		Temperature: cfg.Temperature,
		Client:      httpClient,
	}, nil
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float32        `json:"temperature,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Model   string          `json:"model"`
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends one Messages API request and joins the text blocks of the reply.
func (c *ClaudeClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := checkPrompt(req.Prompt); err != nil {
		return Response{}, err
	}
	model := req.Model
	if model == "" {
		model = c.Model
	}

	bodyBytes, err := json.Marshal(claudeRequest{
		Model:       model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Messages: []claudeMessage{
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := claudeAPIURL
	if c.BaseURL != "" {
		endpoint = strings.TrimRight(c.BaseURL, "/") + "/v1/messages"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	respBody, err := httputil.Do(ctx, c.Client, httpReq)
	if err != nil {
		return Response{}, classify(string(types.BackendClaude), err)
	}

	var cResp claudeResponse
	if err := json.Unmarshal(respBody, &cResp); err != nil {
		return Response{}, &Error{Kind: ErrBackend, Backend: string(types.BackendClaude), Err: fmt.Errorf("decoding response: %w", err)}
	}

	var sb strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return Response{}, &Error{Kind: ErrBackend, Backend: string(types.BackendClaude), Err: errors.New("no text content in response")}
	}

	used := model
	if cResp.Model != "" {
		used = cResp.Model
	}
	return Response{Text: sb.String(), Model: used}, nil
}

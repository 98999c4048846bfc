// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

const (
	qwenCompatibleURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	ollamaLocalURL    = "http://localhost:11434"
)

// ChatModelClient adapts an eino chat model to Client. Each Complete sends a
// single user message and returns the assistant reply.
type ChatModelClient struct {
	Provider types.Backend
	Model    string
	chat     model.BaseChatModel
}

// NewChatModelClient builds the eino-ext chat model for cfg.Backend.
func NewChatModelClient(ctx context.Context, cfg types.AIConfig) (*ChatModelClient, error) {
	cm, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return WrapChatModel(cfg.Backend, cfg.Model, cm), nil
}

// WrapChatModel adapts an existing chat model.
func WrapChatModel(provider types.Backend, modelName string, cm model.BaseChatModel) *ChatModelClient {
	return &ChatModelClient{Provider: provider, Model: modelName, chat: cm}
}

// NewChatModel constructs an eino-ext chat model for the provider named by
// cfg.Backend. Providers other than ollama require cfg.APIKey.
func NewChatModel(ctx context.Context, cfg types.AIConfig) (cm model.BaseChatModel, err error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: model is required", cfg.Backend)
	}
	if cfg.Backend != types.BackendOllama && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Backend, ErrMissingAPIKey)
	}

	tokens := maxTokens(cfg)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httputil.DefaultTimeout
	}

	switch cfg.Backend {
	case types.BackendOpenAI:
		cm, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   &tokens,
			Timeout:     timeout,
		})
	case types.BackendAnthropic:
		conf := &claude.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   tokens,
		}
		if cfg.BaseURL != "" {
			conf.BaseURL = &cfg.BaseURL
		}
		cm, err = claude.NewChatModel(ctx, conf)
	case types.BackendOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = ollamaLocalURL
		}
		cm, err = ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
		})
	case types.BackendArk:
		cm, err = ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   &tokens,
		})
	case types.BackendQwen:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = qwenCompatibleURL
		}
		cm, err = qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
			BaseURL:     baseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   &tokens,
			Timeout:     timeout,
		})
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s chat model: %w", cfg.Backend, err)
	}
	return cm, nil
}

// Complete sends the prompt as a single user message.
func (c *ChatModelClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := checkPrompt(req.Prompt); err != nil {
		return Response{}, err
	}

	used := c.Model
	var opts []model.Option
	if req.Model != "" && req.Model != c.Model {
		opts = append(opts, model.WithModel(req.Model))
		used = req.Model
	}

	msg, err := c.chat.Generate(ctx, []*schema.Message{schema.UserMessage(req.Prompt)}, opts...)
	if err != nil {
		return Response{}, classify(string(c.Provider), err)
	}
	if msg == nil || msg.Content == "" {
		return Response{}, &Error{Kind: ErrBackend, Backend: string(c.Provider), Err: errors.New("empty reply")}
	}
	return Response{Text: msg.Content, Model: used}, nil
}

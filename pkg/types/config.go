// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single completion call (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "content-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// Backend identifies the text-generation provider behind the completion client.
// gemini and claude are served by native HTTP clients that see the raw status
// and body of every response; the rest go through eino chat-model components.
type Backend string

const (
	BackendGemini Backend = "gemini"

	// BackendClaude calls the Anthropic Messages API directly. It has a
	// default model, honors BaseURL as a full endpoint, and classifies
	// failures from the HTTP status. Use it for api.anthropic.com and
	// Messages-compatible proxies.
	BackendClaude Backend = "claude"

	// BackendAnthropic serves Claude through the eino-ext claude component
	// (anthropic-sdk-go). It needs an explicit model and is the choice when
	// the SDK's own request handling is wanted, e.g. alongside other eino
	// providers in the same deployment.
	BackendAnthropic Backend = "anthropic"

	BackendOpenAI    Backend = "openai"
	BackendOllama    Backend = "ollama"
	BackendArk       Backend = "ark"
	BackendQwen      Backend = "qwen"
)

// DefaultModel is the model the content assistant targets when none is configured.
const DefaultModel = "gemini-2.0-flash"

// AIConfig holds settings for the completion client.
type AIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the provider: gemini, claude, anthropic, openai, ollama, ark, qwen.
	Backend Backend `json:"backend" yaml:"backend"`

	// Model is the default model identifier (e.g. "gemini-2.0-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the backend. It is resolved at
	// startup and never read from the environment by the client itself.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (proxies, local servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxTokens caps the generated output length (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is passed through to providers that accept it.
	Temperature *float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// StageOverride customizes one stage of the content pipeline.
type StageOverride struct {
	// Model replaces the default model for this stage only.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Template replaces the stage's prompt template (text/template syntax,
	// the stage input is available as {{.Input}}).
	Template string `json:"template,omitempty" yaml:"template,omitempty"`
}

// StageDefinition declares one stage in a pipeline definition file.
type StageDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Input       string `json:"input" yaml:"input"`
	Output      string `json:"output" yaml:"output"`
	Model       string `json:"model,omitempty" yaml:"model,omitempty"`
	Template    string `json:"template" yaml:"template"`
}

// PipelineDefinition is the on-disk form of a custom stage chain.
type PipelineDefinition struct {
	Name   string            `json:"name" yaml:"name"`
	Stages []StageDefinition `json:"stages" yaml:"stages"`
	// Result names the state key returned as the final output
	// (default: the last stage's output).
	Result string `json:"result,omitempty" yaml:"result,omitempty"`
}

// ContentConfig holds settings for the content assistant.
type ContentConfig struct {
	// Stages maps stage name (IdeaAgent, WriterAgent, FormatterAgent) to overrides.
	Stages map[string]StageOverride `json:"stages,omitempty" yaml:"stages,omitempty"`

	// PipelineFile is an optional YAML pipeline definition replacing the defaults.
	PipelineFile string `json:"pipeline_file,omitempty" yaml:"pipeline_file,omitempty"`

	// OutputDir receives the formatted Markdown and the run record.
	// Empty disables writing.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// HistoryConfig holds settings for the run history store.
type HistoryConfig struct {
	// Dir contains history.db.
	Dir string `json:"dir" yaml:"dir"`

	// Disabled skips recording runs.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// Config groups all configuration for one content-engine invocation.
type Config struct {
	AI      AIConfig      `json:"ai" yaml:"ai"`
	Content ContentConfig `json:"content" yaml:"content"`
	History HistoryConfig `json:"history" yaml:"history"`
}

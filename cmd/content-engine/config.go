// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pdiddy/content-engine/internal/completion"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.backend", string(types.BackendGemini))
	v.SetDefault("ai.timeout", pipeline.DefaultTimeout)
	v.SetDefault("ai.user_agent", "content-engine/"+version)
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("content.output_dir", "output")
	v.SetDefault("history.dir", "output")
	v.SetDefault("history.disabled", false)
}

// loadConfig assembles the effective configuration from defaults, the config
// file, CONTENT_ENGINE_* environment variables, and bound flags, in
// increasing precedence.
func loadConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.Config{
		AI: types.AIConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("ai.timeout"),
				UserAgent: v.GetString("ai.user_agent"),
			},
			Backend:   types.Backend(v.GetString("ai.backend")),
			Model:     v.GetString("ai.model"),
			APIKey:    v.GetString("ai.api_key"),
			BaseURL:   v.GetString("ai.base_url"),
			MaxTokens: v.GetInt("ai.max_tokens"),
		},
		Content: types.ContentConfig{
			PipelineFile: v.GetString("content.pipeline_file"),
			OutputDir:    v.GetString("content.output_dir"),
		},
		History: types.HistoryConfig{
			Dir:      v.GetString("history.dir"),
			Disabled: v.GetBool("history.disabled"),
		},
	}

	if v.IsSet("ai.temperature") {
		t := float32(v.GetFloat64("ai.temperature"))
		cfg.AI.Temperature = &t
	}

	if v.IsSet("content.stages") {
		if err := v.UnmarshalKey("content.stages", &cfg.Content.Stages, yamlTags); err != nil {
			return cfg, fmt.Errorf("parsing content.stages: %w", err)
		}
	}

	if cfg.AI.Model == "" {
		cfg.AI.Model = completion.DefaultModelFor(cfg.AI.Backend)
	}
	return cfg, nil
}

// yamlTags makes viper decode into structs by their yaml tags, so the config
// file and pkg/types agree on field names.
func yamlTags(dc *mapstructure.DecoderConfig) {
	dc.TagName = "yaml"
}

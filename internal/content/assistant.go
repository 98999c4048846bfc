// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package content assembles the content assistant: a pipeline that turns a
// topic into brainstormed ideas, a short blog post draft, and finally a
// Markdown-formatted article. Each stage is one completion call whose prompt
// function is bound when the pipeline is built.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/content-engine/internal/completion"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// ErrEmptyTopic is returned by Generate for a blank topic.
var ErrEmptyTopic = errors.New("topic is empty")

// Assistant runs the content pipeline against a completion client.
type Assistant struct {
	def       types.PipelineDefinition
	pipe      *pipeline.Pipeline
	resultKey string
}

// New builds and validates the content pipeline. The definition comes from
// cfg.PipelineFile when set, otherwise the built-in three-stage chain; stage
// overrides from cfg are applied on top. No completion call is made.
func New(client completion.Client, cfg types.ContentConfig, opts ...pipeline.Option) (*Assistant, error) {
	def := DefaultDefinition()
	if cfg.PipelineFile != "" {
		loaded, err := LoadDefinition(cfg.PipelineFile)
		if err != nil {
			return nil, err
		}
		def = *loaded
	}
	return NewFromDefinition(client, def, cfg.Stages, opts...)
}

// NewFromDefinition builds the assistant from an explicit definition.
func NewFromDefinition(client completion.Client, def types.PipelineDefinition, overrides map[string]types.StageOverride, opts ...pipeline.Option) (*Assistant, error) {
	def, err := ApplyOverrides(def, overrides)
	if err != nil {
		return nil, err
	}
	specs, err := Specs(def)
	if err != nil {
		return nil, err
	}

	opts = append([]pipeline.Option{pipeline.WithName(def.Name)}, opts...)
	pipe, err := pipeline.New(client, specs, opts...)
	if err != nil {
		return nil, err
	}

	key, err := resultKey(def)
	if err != nil {
		return nil, err
	}
	return &Assistant{def: def, pipe: pipe, resultKey: key}, nil
}

// Definition returns the effective pipeline definition, overrides applied.
func (a *Assistant) Definition() types.PipelineDefinition { return a.def }

// Pipeline returns the underlying validated pipeline.
func (a *Assistant) Pipeline() *pipeline.Pipeline { return a.pipe }

// ResultKey returns the state key holding the final output.
func (a *Assistant) ResultKey() string { return a.resultKey }

// Generate runs the pipeline for topic and returns the final output. The
// Result is returned on failure too so callers can inspect the partial state.
func (a *Assistant) Generate(ctx context.Context, topic string) (string, *pipeline.Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", nil, ErrEmptyTopic
	}
	res, err := a.pipe.Run(ctx, topic)
	return a.finish(res, err)
}

// Resume continues a run from a previously recorded state. Stages whose
// output is already present are skipped.
func (a *Assistant) Resume(ctx context.Context, prior map[string]string) (string, *pipeline.Result, error) {
	if strings.TrimSpace(prior[pipeline.InitialKey]) == "" {
		return "", nil, ErrEmptyTopic
	}
	res, err := a.pipe.Resume(ctx, prior)
	return a.finish(res, err)
}

func (a *Assistant) finish(res *pipeline.Result, err error) (string, *pipeline.Result, error) {
	if err != nil {
		return "", res, err
	}
	out, ok := res.Output(a.resultKey)
	if !ok {
		return "", res, fmt.Errorf("result key %q missing from final state", a.resultKey)
	}
	return out, res, nil
}

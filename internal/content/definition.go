// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package content

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// DefaultPipelineName names the built-in three-stage chain.
const DefaultPipelineName = "ContentAssistant"

// DefaultDefinition returns the built-in chain: topic → ideas → draft →
// formatted Markdown.
func DefaultDefinition() types.PipelineDefinition {
	return types.PipelineDefinition{
		Name: DefaultPipelineName,
		Stages: []types.StageDefinition{
			{
				Name:        IdeaAgent,
				Description: "Brainstorms blog post ideas.",
				Input:       pipeline.InitialKey,
				Output:      KeyIdeas,
				Template:    ideasTemplate,
			},
			{
				Name:        WriterAgent,
				Description: "Writes a blog post draft from ideas.",
				Input:       KeyIdeas,
				Output:      KeyDraft,
				Template:    draftTemplate,
			},
			{
				Name:        FormatterAgent,
				Description: "Formats the draft into Markdown.",
				Input:       KeyDraft,
				Output:      KeyFormatted,
				Template:    formatTemplate,
			},
		},
		Result: KeyFormatted,
	}
}

// LoadDefinition reads a pipeline definition from a YAML file. Unknown
// fields are rejected so that typos do not silently fall back to defaults.
func LoadDefinition(path string) (*types.PipelineDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline definition: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes a YAML pipeline definition.
func ParseDefinition(data []byte) (*types.PipelineDefinition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def types.PipelineDefinition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition: %w", err)
	}
	if def.Name == "" {
		def.Name = "custom"
	}
	return &def, nil
}

// ApplyOverrides returns a copy of def with per-stage model and template
// overrides applied. Stage names match case-insensitively since viper
// lowercases map keys. An override naming a stage that is not in def is an
// error.
func ApplyOverrides(def types.PipelineDefinition, overrides map[string]types.StageOverride) (types.PipelineDefinition, error) {
	out := def
	out.Stages = slices.Clone(def.Stages)

	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		o := overrides[name]
		i := slices.IndexFunc(out.Stages, func(s types.StageDefinition) bool { return strings.EqualFold(s.Name, name) })
		if i < 0 {
			return out, fmt.Errorf("stage override %q: no such stage in pipeline %s", name, def.Name)
		}
		if o.Model != "" {
			out.Stages[i].Model = o.Model
		}
		if o.Template != "" {
			out.Stages[i].Template = o.Template
		}
	}
	return out, nil
}

// Specs compiles def into stage specs. Every stage skips itself when its
// output is already present, which lets a failed run be resumed.
func Specs(def types.PipelineDefinition) ([]pipeline.StageSpec, error) {
	specs := make([]pipeline.StageSpec, 0, len(def.Stages))
	for _, sd := range def.Stages {
		prompt, err := compilePrompt(sd.Name, sd.Template)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pipeline.ErrInvalidPipelineConfig, err)
		}
		specs = append(specs, pipeline.StageSpec{
			Name:        sd.Name,
			Description: sd.Description,
			Input:       sd.Input,
			Output:      sd.Output,
			Model:       sd.Model,
			Prompt:      prompt,
			OnExisting:  pipeline.SkipExisting,
		})
	}
	return specs, nil
}

// resultKey returns the state key holding the final output of def.
func resultKey(def types.PipelineDefinition) (string, error) {
	if def.Result == "" {
		if len(def.Stages) == 0 {
			return "", nil
		}
		return def.Stages[len(def.Stages)-1].Output, nil
	}
	if def.Result == pipeline.InitialKey {
		return def.Result, nil
	}
	for _, s := range def.Stages {
		if s.Output == def.Result {
			return def.Result, nil
		}
	}
	return "", fmt.Errorf("%w: result key %q is not written by any stage", pipeline.ErrInvalidPipelineConfig, def.Result)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package content

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/pdiddy/content-engine/internal/pipeline"
)

// Stage names of the default content pipeline.
const (
	IdeaAgent      = "IdeaAgent"
	WriterAgent    = "WriterAgent"
	FormatterAgent = "FormatterAgent"
)

// State keys written by the default stages.
const (
	KeyIdeas     = "ideas"
	KeyDraft     = "draft"
	KeyFormatted = "formatted"
)

// Default prompt templates. The stage input is available as {{.Input}}.
const (
	ideasTemplate = "Brainstorm 4–6 creative blog post ideas for the topic:\n\n{{.Input}}"

	draftTemplate = "Expand the following outline into a cohesive ~300-word blog post:\n\n{{.Input}}"

	formatTemplate = "Format this draft as clean Markdown with headings, sub-headings, and bullet lists:\n\n{{.Input}}"
)

// promptData is the value a stage template is executed against.
type promptData struct {
	Input string
}

// compilePrompt parses text as a stage template and returns the prompt
// function bound to it. Unknown fields fail at render time.
func compilePrompt(stage, text string) (pipeline.PromptFunc, error) {
	if text == "" {
		return nil, fmt.Errorf("stage %s: empty prompt template", stage)
	}
	tmpl, err := template.New(stage).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("stage %s: parsing prompt template: %w", stage, err)
	}
	return func(input string) (string, error) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, promptData{Input: input}); err != nil {
			return "", fmt.Errorf("executing %s template: %w", stage, err)
		}
		return buf.String(), nil
	}, nil
}

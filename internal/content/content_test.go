// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package content

import (
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-engine/internal/completion"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// fakeClient answers by prompt prefix and fails the first call whose prompt
// starts with failOn.
type fakeClient struct {
	mu     sync.Mutex
	calls  []completion.Request
	failOn string
	err    error
}

func (f *fakeClient) Complete(_ context.Context, req completion.Request) (completion.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.failOn != "" && strings.HasPrefix(req.Prompt, f.failOn) {
		return completion.Response{}, f.err
	}
	switch {
	case strings.HasPrefix(req.Prompt, "Brainstorm"):
		return completion.Response{Text: "1. Why cats nap\n2. Cat cafes"}, nil
	case strings.HasPrefix(req.Prompt, "Expand"):
		return completion.Response{Text: "Cats sleep a lot. Cat cafes are fun."}, nil
	case strings.HasPrefix(req.Prompt, "Format"):
		return completion.Response{Text: "# Cats\n\n- naps\n- cafes"}, nil
	}
	return completion.Response{Text: "echo: " + req.Prompt}, nil
}

func TestGenerate_Cats(t *testing.T) {
	client := &fakeClient{}
	a, err := New(client, types.ContentConfig{})
	require.NoError(t, err)

	out, res, err := a.Generate(context.Background(), "cats")
	require.NoError(t, err)
	assert.Equal(t, "# Cats\n\n- naps\n- cafes", out)

	assert.Equal(t, DefaultPipelineName, res.Pipeline)
	assert.Equal(t, []string{"draft", "formatted", "ideas", "initial"}, sortedKeys(res.State))

	require.Len(t, client.calls, 3)
	assert.Equal(t, "Brainstorm 4–6 creative blog post ideas for the topic:\n\ncats", client.calls[0].Prompt)
	assert.Equal(t, "Expand the following outline into a cohesive ~300-word blog post:\n\n1. Why cats nap\n2. Cat cafes", client.calls[1].Prompt)
	assert.Equal(t, "Format this draft as clean Markdown with headings, sub-headings, and bullet lists:\n\nCats sleep a lot. Cat cafes are fun.", client.calls[2].Prompt)
}

func TestGenerate_AuthFailureAtWriter(t *testing.T) {
	client := &fakeClient{
		failOn: "Expand",
		err:    &completion.Error{Kind: completion.ErrAuthentication, Backend: "gemini", StatusCode: 403, Err: errors.New("API key not valid")},
	}
	a, err := New(client, types.ContentConfig{})
	require.NoError(t, err)

	out, res, err := a.Generate(context.Background(), "cats")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.ErrorIs(t, err, completion.ErrAuthentication)

	name, ok := pipeline.FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, WriterAgent, name)

	require.NotNil(t, res)
	assert.Equal(t, []string{"ideas", "initial"}, sortedKeys(res.State))
	assert.Len(t, client.calls, 2)
}

func TestGenerate_EmptyTopic(t *testing.T) {
	client := &fakeClient{}
	a, err := New(client, types.ContentConfig{})
	require.NoError(t, err)

	for _, topic := range []string{"", "   \n"} {
		_, res, err := a.Generate(context.Background(), topic)
		assert.ErrorIs(t, err, ErrEmptyTopic)
		assert.Nil(t, res)
	}
	assert.Empty(t, client.calls)
}

func TestResume_SkipsRecordedStages(t *testing.T) {
	client := &fakeClient{}
	a, err := New(client, types.ContentConfig{})
	require.NoError(t, err)

	out, res, err := a.Resume(context.Background(), map[string]string{
		"initial": "cats",
		"ideas":   "saved ideas",
	})
	require.NoError(t, err)
	assert.Equal(t, "# Cats\n\n- naps\n- cafes", out)
	assert.Equal(t, pipeline.StageSkipped, res.Log[0].Status)
	require.Len(t, client.calls, 2)
	assert.True(t, strings.HasSuffix(client.calls[0].Prompt, "saved ideas"))
}

func TestNew_StageOverrides(t *testing.T) {
	client := &fakeClient{}
	a, err := New(client, types.ContentConfig{
		Stages: map[string]types.StageOverride{
			"ideaagent":    {Model: "gemini-1.5-pro"},
			FormatterAgent: {Template: "Polish: {{.Input}}"},
		},
	})
	require.NoError(t, err)

	_, _, err = a.Generate(context.Background(), "cats")
	require.NoError(t, err)

	require.Len(t, client.calls, 3)
	assert.Equal(t, "gemini-1.5-pro", client.calls[0].Model)
	assert.Empty(t, client.calls[1].Model)
	assert.Equal(t, "Polish: Cats sleep a lot. Cat cafes are fun.", client.calls[2].Prompt)

	// The default definition is not mutated.
	assert.Empty(t, DefaultDefinition().Stages[0].Model)
}

func TestNew_UnknownOverride(t *testing.T) {
	_, err := New(&fakeClient{}, types.ContentConfig{
		Stages: map[string]types.StageOverride{"EditorAgent": {Model: "x"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EditorAgent")
}

func TestNew_BadTemplate(t *testing.T) {
	_, err := New(&fakeClient{}, types.ContentConfig{
		Stages: map[string]types.StageOverride{IdeaAgent: {Template: "{{.Input"}},
	})
	assert.ErrorIs(t, err, pipeline.ErrInvalidPipelineConfig)
}

func TestPromptUnknownField(t *testing.T) {
	prompt, err := compilePrompt("X", "{{.Topic}}")
	require.NoError(t, err)
	_, err = prompt("cats")
	assert.Error(t, err)
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: tweet
stages:
  - name: Summarizer
    input: initial
    output: summary
    template: "Summarize: {{.Input}}"
  - name: Tweeter
    input: summary
    output: tweet
    model: gemini-1.5-flash
    template: "Tweet: {{.Input}}"
`), 0o644))

	client := &fakeClient{}
	a, err := New(client, types.ContentConfig{PipelineFile: path})
	require.NoError(t, err)
	assert.Equal(t, "tweet", a.Pipeline().Name())
	assert.Equal(t, "tweet", a.ResultKey())

	out, _, err := a.Generate(context.Background(), "cats")
	require.NoError(t, err)
	assert.Equal(t, "echo: Tweet: echo: Summarize: cats", out)
	assert.Equal(t, "gemini-1.5-flash", client.calls[1].Model)
}

func TestLoadDefinition_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "unknown field",
			yaml: "name: x\nstages:\n  - name: A\n    input: initial\n    output: a\n    prompt: hi\n",
		},
		{
			name: "chain mismatch",
			yaml: "stages:\n  - name: A\n    input: initial\n    output: a\n    template: '{{.Input}}'\n  - name: B\n    input: z\n    output: b\n    template: '{{.Input}}'\n",
			want: pipeline.ErrInvalidPipelineConfig,
		},
		{
			name: "bad result key",
			yaml: "result: nope\nstages:\n  - name: A\n    input: initial\n    output: a\n    template: '{{.Input}}'\n",
			want: pipeline.ErrInvalidPipelineConfig,
		},
		{
			name: "no stages",
			yaml: "name: empty\n",
			want: pipeline.ErrInvalidPipelineConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			client := &fakeClient{}
			_, err := New(client, types.ContentConfig{PipelineFile: path})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Empty(t, client.calls)
		})
	}
}

func TestLoadDefinition_Missing(t *testing.T) {
	_, err := LoadDefinition(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"cats", "cats"},
		{"Why Cats Nap?", "why-cats-nap"},
		{"  --Go 1.25: what's new--  ", "go-1-25-what-s-new"},
		{"日本語", "untitled"},
		{"", "untitled"},
		{strings.Repeat("a", 100), strings.Repeat("a", maxSlugLen)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestSaveResult(t *testing.T) {
	client := &fakeClient{}
	a, err := New(client, types.ContentConfig{})
	require.NoError(t, err)
	out, res, err := a.Generate(context.Background(), "Cat Cafes")
	require.NoError(t, err)

	rec := NewRecord(res, "Cat Cafes", "gemini", "gemini-2.0-flash", nil)
	assert.Equal(t, types.RunCompleted, rec.Status)
	require.Len(t, rec.Stages, 3)
	assert.Equal(t, "succeeded", rec.Stages[0].Status)

	dir := filepath.Join(t.TempDir(), "output")
	mdPath, err := SaveResult(dir, rec, out)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(mdPath, "-cat-cafes.md"))

	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Equal(t, out+"\n", string(data))

	loaded, err := LoadRecord(strings.TrimSuffix(mdPath, ".md") + ".yaml")
	require.NoError(t, err)
	assert.Equal(t, "Cat Cafes", loaded.Topic)
	assert.Equal(t, DefaultPipelineName, loaded.Pipeline)
	assert.Equal(t, res.State, loaded.State)
	assert.WithinDuration(t, rec.StartedAt, loaded.StartedAt, time.Second)
}

func TestSaveResult_FailedRunWritesOnlyRecord(t *testing.T) {
	client := &fakeClient{failOn: "Format", err: &completion.Error{Kind: completion.ErrBackend, Backend: "gemini", StatusCode: 500, Err: errors.New("internal")}}
	a, err := New(client, types.ContentConfig{})
	require.NoError(t, err)
	_, res, runErr := a.Generate(context.Background(), "cats")
	require.Error(t, runErr)

	rec := NewRecord(res, "cats", "gemini", "gemini-2.0-flash", runErr)
	assert.Equal(t, types.RunFailed, rec.Status)
	assert.Equal(t, FormatterAgent, rec.FailedStage)
	assert.Equal(t, "failed", rec.Stages[2].Status)
	assert.NotEmpty(t, rec.Stages[2].Error)

	dir := t.TempDir()
	mdPath, err := SaveResult(dir, rec, "")
	require.NoError(t, err)
	assert.Empty(t, mdPath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "-cats.yaml"))
}

func TestSaveResult_SameSecondRunsKeepSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	first := types.RunRecord{Topic: "cats", StartedAt: started, Status: types.RunCompleted}
	second := first

	p1, err := SaveResult(dir, first, "# One")
	require.NoError(t, err)
	p2, err := SaveResult(dir, second, "# Two")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "20260501-120000-cats.md"), p1)
	assert.Equal(t, filepath.Join(dir, "20260501-120000-cats-2.md"), p2)

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "# One\n", string(data))
	data, err = os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, "# Two\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestSaveResult_StemIncludesRunID(t *testing.T) {
	dir := t.TempDir()
	rec := types.RunRecord{
		ID:        7,
		Topic:     "cats",
		StartedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Status:    types.RunCompleted,
	}
	p, err := SaveResult(dir, rec, "# Cats")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260501-120000-7-cats.md"), p)
	assert.FileExists(t, filepath.Join(dir, "20260501-120000-7-cats.yaml"))
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

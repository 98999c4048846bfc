// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.HistoryConfig{Dir: filepath.Join(t.TempDir(), "history")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func completedRun(topic string, started time.Time) types.RunRecord {
	return types.RunRecord{
		Pipeline:   "ContentAssistant",
		Topic:      topic,
		Backend:    "gemini",
		Model:      "gemini-2.0-flash",
		Status:     types.RunCompleted,
		StartedAt:  started,
		DurationMS: 4200,
		State: map[string]string{
			"initial":   topic,
			"ideas":     "ideas about " + topic,
			"draft":     "draft about " + topic,
			"formatted": "# " + topic,
		},
		Stages: []types.StageRecord{
			{Index: 0, Name: "IdeaAgent", Status: "succeeded", DurationMS: 1000},
			{Index: 1, Name: "WriterAgent", Status: "succeeded", DurationMS: 2000},
			{Index: 2, Name: "FormatterAgent", Status: "succeeded", DurationMS: 1200},
		},
	}
}

func failedRun(topic string, started time.Time) types.RunRecord {
	return types.RunRecord{
		Pipeline:    "ContentAssistant",
		Topic:       topic,
		Backend:     "gemini",
		Model:       "gemini-2.0-flash",
		Status:      types.RunFailed,
		FailedStage: "WriterAgent",
		Error:       `stage "WriterAgent" (#1) failed: gemini: authentication failed: HTTP 403`,
		StartedAt:   started,
		DurationMS:  900,
		State:       map[string]string{"initial": topic, "ideas": "ideas about " + topic},
		Stages: []types.StageRecord{
			{Index: 0, Name: "IdeaAgent", Status: "succeeded", DurationMS: 800},
			{Index: 1, Name: "WriterAgent", Status: "failed", DurationMS: 100, Error: "authentication failed"},
			{Index: 2, Name: "FormatterAgent", Status: "not_run"},
		},
	}
}

func TestOpen_CreatesDatabase(t *testing.T) {
	s := testStore(t)
	_, err := os.Stat(s.Path())
	assert.NoError(t, err)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(types.HistoryConfig{})
	assert.Error(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(types.HistoryConfig{Dir: dir})
	require.NoError(t, err)
	id, err := s.Record(context.Background(), completedRun("cats", time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(types.HistoryConfig{Dir: dir})
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "cats", rec.Topic)
}

func TestRecordAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	want := failedRun("cats", started)
	id, err := s.Record(ctx, want)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)

	want.ID = id
	assert.Equal(t, want, *got)
}

func TestGet_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, rec := range []types.RunRecord{
		completedRun("cats", base),
		failedRun("dogs", base.Add(time.Minute)),
		completedRun("cat cafes", base.Add(2*time.Minute)),
		completedRun("100%_real", base.Add(3*time.Minute)),
	} {
		_, err := s.Record(ctx, rec)
		require.NoError(t, err, "record %d", i)
	}

	tests := []struct {
		name   string
		opts   ListOptions
		topics []string
	}{
		{"all newest first", ListOptions{}, []string{"100%_real", "cat cafes", "dogs", "cats"}},
		{"limit", ListOptions{Limit: 2}, []string{"100%_real", "cat cafes"}},
		{"failed only", ListOptions{Status: types.RunFailed}, []string{"dogs"}},
		{"topic filter", ListOptions{Topic: "CAT"}, []string{"cat cafes", "cats"}},
		{"like wildcards are literal", ListOptions{Topic: "%_"}, []string{"100%_real"}},
		{"no match", ListOptions{Topic: "fish"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.List(ctx, tt.opts)
			require.NoError(t, err)
			var topics []string
			for _, r := range runs {
				topics = append(topics, r.Topic)
				assert.Nil(t, r.State, "List does not load state")
				assert.Nil(t, r.Stages, "List does not load stages")
			}
			assert.Equal(t, tt.topics, topics)
		})
	}
}

func TestExportYAML(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.Record(ctx, completedRun("cats", base))
	require.NoError(t, err)
	_, err = s.Record(ctx, failedRun("dogs", base.Add(time.Hour)))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.yaml")
	n, err := s.ExportYAML(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var runs []types.RunRecord
	require.NoError(t, yaml.Unmarshal(data, &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "cats", runs[0].Topic)
	assert.Equal(t, "dogs", runs[1].Topic)
	assert.Equal(t, "ideas about dogs", runs[1].State["ideas"])
	assert.Len(t, runs[1].Stages, 3)
}

func TestExportYAML_Empty(t *testing.T) {
	s := testStore(t)
	path := filepath.Join(t.TempDir(), "export.yaml")
	n, err := s.ExportYAML(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

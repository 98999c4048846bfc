// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

const maxSlugLen = 60

// NewRecord summarizes a pipeline result for persistence. runErr is the error
// returned by the run, nil on success.
func NewRecord(res *pipeline.Result, topic, backend, model string, runErr error) types.RunRecord {
	rec := types.RunRecord{
		Topic:   topic,
		Backend: backend,
		Model:   model,
		Status:  types.RunCompleted,
	}
	if runErr != nil {
		rec.Status = types.RunFailed
		rec.Error = runErr.Error()
		if name, ok := pipeline.FailedStage(runErr); ok {
			rec.FailedStage = name
		}
	}
	if res == nil {
		return rec
	}

	rec.Pipeline = res.Pipeline
	rec.StartedAt = res.Started.UTC()
	rec.DurationMS = res.Duration.Milliseconds()
	rec.State = res.State
	for _, l := range res.Log {
		sr := types.StageRecord{
			Index:      l.Index,
			Name:       l.Name,
			Status:     string(l.Status),
			DurationMS: l.Duration.Milliseconds(),
		}
		if l.Err != nil {
			sr.Error = l.Err.Error()
		}
		rec.Stages = append(rec.Stages, sr)
	}
	return rec
}

// Slug returns a filesystem-safe filename stem for a topic: lowercase ASCII
// letters and digits separated by single hyphens.
func Slug(topic string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(topic) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			if b.Len() >= maxSlugLen {
				break
			}
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}

// SaveResult writes the run record as <stem>.yaml and, when markdown is
// non-empty, the output as <stem>.md into dir. The stem is the run's start
// time, the history run id when recorded, and the topic slug; a numeric
// suffix keeps it from replacing the files of another run. It returns the
// Markdown path, or "" when none was written. Files are written to a temp
// name and renamed.
func SaveResult(dir string, rec types.RunRecord, markdown string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	stem := uniqueStem(dir, recordStem(rec))

	data, err := yaml.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshaling run record: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, stem+".yaml"), data); err != nil {
		return "", err
	}

	if markdown == "" {
		return "", nil
	}
	mdPath := filepath.Join(dir, stem+".md")
	if !strings.HasSuffix(markdown, "\n") {
		markdown += "\n"
	}
	if err := writeFileAtomic(mdPath, []byte(markdown)); err != nil {
		return "", err
	}
	return mdPath, nil
}

func recordStem(rec types.RunRecord) string {
	var parts []string
	if !rec.StartedAt.IsZero() {
		parts = append(parts, rec.StartedAt.Format("20060102-150405"))
	}
	if rec.ID != 0 {
		parts = append(parts, strconv.FormatInt(rec.ID, 10))
	}
	return strings.Join(append(parts, Slug(rec.Topic)), "-")
}

// uniqueStem returns stem, or stem-2, stem-3, ... when files for stem
// already exist in dir.
func uniqueStem(dir, stem string) string {
	candidate := stem
	for n := 2; stemTaken(dir, candidate); n++ {
		candidate = fmt.Sprintf("%s-%d", stem, n)
	}
	return candidate
}

func stemTaken(dir, stem string) bool {
	for _, ext := range []string{".yaml", ".md"} {
		if _, err := os.Stat(filepath.Join(dir, stem+ext)); err == nil {
			return true
		}
	}
	return false
}

// LoadRecord reads a run record written by SaveResult.
func LoadRecord(path string) (*types.RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run record: %w", err)
	}
	var rec types.RunRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing run record %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}

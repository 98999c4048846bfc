// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/pkg/types"
)

// ExportYAML writes every recorded run, with state and stage log, to path as
// a YAML list ordered oldest first. It returns the number of runs written.
func (s *Store) ExportYAML(ctx context.Context, path string) (int, error) {
	summaries, err := s.List(ctx, ListOptions{Limit: -1})
	if err != nil {
		return 0, err
	}

	runs := make([]types.RunRecord, 0, len(summaries))
	for i := len(summaries) - 1; i >= 0; i-- {
		rec, err := s.Get(ctx, summaries[i].ID)
		if err != nil {
			return 0, err
		}
		runs = append(runs, *rec)
	}

	data, err := yaml.Marshal(runs)
	if err != nil {
		return 0, fmt.Errorf("marshaling YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return len(runs), nil
}

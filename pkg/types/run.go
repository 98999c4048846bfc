// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus is the terminal outcome of a pipeline run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// StageRecord is one entry of a run's stage log as persisted.
type StageRecord struct {
	Index      int    `json:"index" yaml:"index"`
	Name       string `json:"name" yaml:"name"`
	Status     string `json:"status" yaml:"status"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID          int64             `json:"id,omitempty" yaml:"id,omitempty"`
	Pipeline    string            `json:"pipeline" yaml:"pipeline"`
	Topic       string            `json:"topic" yaml:"topic"`
	Backend     string            `json:"backend" yaml:"backend"`
	Model       string            `json:"model" yaml:"model"`
	Status      RunStatus         `json:"status" yaml:"status"`
	FailedStage string            `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at" yaml:"started_at"`
	DurationMS  int64             `json:"duration_ms" yaml:"duration_ms"`
	State       map[string]string `json:"state" yaml:"state"`
	Stages      []StageRecord     `json:"stages" yaml:"stages"`
}

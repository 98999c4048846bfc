// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline chains named stages that each transform a shared,
// write-once key/value state through one completion call.
//
// A Pipeline is validated once at construction and is immutable afterwards,
// so independent runs may execute concurrently as long as the completion
// client is safe for concurrent use. Each run owns its State. Stages run
// strictly in sequence; the first failure aborts the run and is returned as a
// *StageFailedError together with the partial state. Cancellation takes
// effect only between stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/content-engine/internal/completion"
)

// DefaultTimeout bounds each completion call when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// Pipeline is an ordered, validated sequence of stages.
type Pipeline struct {
	name     string
	stages   []*Stage
	timeout  time.Duration
	progress io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithName sets the pipeline name used in logs and results.
func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

// WithTimeout sets the per-call completion timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithProgress writes one line per stage transition to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) { p.progress = w }
}

// New validates specs and binds each stage to client. No network call is
// made. A violated invariant yields an error matching ErrInvalidPipelineConfig.
func New(client completion.Client, specs []StageSpec, opts ...Option) (*Pipeline, error) {
	if client == nil {
		return nil, &ConfigError{Index: -1, Reason: "nil completion client"}
	}
	if err := Validate(specs); err != nil {
		return nil, err
	}

	p := &Pipeline{name: "pipeline", timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(p)
	}

	p.stages = make([]*Stage, len(specs))
	for i, spec := range specs {
		p.stages[i] = NewStage(spec, i, client, p.timeout)
	}
	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Specs returns a copy of the stage descriptors in order.
func (p *Pipeline) Specs() []StageSpec {
	out := make([]StageSpec, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Spec()
	}
	return out
}

// FinalKey returns the output key of the last stage.
func (p *Pipeline) FinalKey() string {
	return p.stages[len(p.stages)-1].Spec().Output
}

// NewRun returns a fresh run in the NotStarted state.
func (p *Pipeline) NewRun() *Run {
	return &Run{p: p, status: NotStarted, current: -1}
}

// Run executes a fresh run seeded with input. The returned Result is non-nil
// whenever at least the initial state was built, including on failure.
func (p *Pipeline) Run(ctx context.Context, input string) (*Result, error) {
	return p.NewRun().Execute(ctx, input)
}

// Resume executes a fresh run seeded with the state of an earlier run, which
// must contain InitialKey. Stages whose output is already present follow
// their ExistingPolicy: SkipExisting stages are skipped, RejectExisting
// stages fail.
func (p *Pipeline) Resume(ctx context.Context, prior map[string]string) (*Result, error) {
	if _, ok := prior[InitialKey]; !ok {
		return nil, fmt.Errorf("resume: %w %q", ErrMissingInputKey, InitialKey)
	}
	return p.NewRun().execute(ctx, prior)
}

func (p *Pipeline) progressf(format string, args ...any) {
	if p.progress == nil {
		return
	}
	fmt.Fprintf(p.progress, format, args...)
}

// IsConfigError reports whether err is a construction-time validation failure.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidPipelineConfig)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/content-engine/internal/completion"
)

// PromptFunc renders the prompt for a stage from its input value.
type PromptFunc func(input string) (string, error)

// ExistingPolicy decides what a stage does when its output key is already set.
type ExistingPolicy int

const (
	// RejectExisting fails the stage with ErrOutputExists.
	RejectExisting ExistingPolicy = iota
	// SkipExisting leaves the state untouched and makes no completion call.
	SkipExisting
)

func (p ExistingPolicy) String() string {
	switch p {
	case RejectExisting:
		return "reject"
	case SkipExisting:
		return "skip"
	default:
		return fmt.Sprintf("ExistingPolicy(%d)", int(p))
	}
}

// StageSpec describes one stage. It is fixed when the pipeline is built.
type StageSpec struct {
	Name        string
	Description string
	// Input is the state key the stage reads; InitialKey for the first stage.
	Input string
	// Output is the state key the stage writes.
	Output string
	// Model overrides the completion client's default model when non-empty.
	Model      string
	Prompt     PromptFunc
	OnExisting ExistingPolicy
}

// StageStatus is the outcome of one stage within a run.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
	StageNotRun    StageStatus = "not_run"
)

// Stage is a StageSpec bound to its position and to the completion client.
type Stage struct {
	spec    StageSpec
	index   int
	client  completion.Client
	timeout time.Duration
}

// NewStage binds spec to client. index identifies the stage in errors.
// A non-positive timeout means the call is bounded only by the client.
func NewStage(spec StageSpec, index int, client completion.Client, timeout time.Duration) *Stage {
	return &Stage{spec: spec, index: index, client: client, timeout: timeout}
}

// Name returns the stage name.
func (s *Stage) Name() string { return s.spec.Name }

// Index returns the stage position.
func (s *Stage) Index() int { return s.index }

// Spec returns the stage descriptor.
func (s *Stage) Spec() StageSpec { return s.spec }

// Run reads the input key, renders the prompt, makes exactly one completion
// call and writes the reply to the output key. Every failure is returned as a
// *StageFailedError; the output key is written only after a successful call.
//
// The completion call does not observe cancellation of ctx: once started it
// runs to completion or to the stage timeout.
func (s *Stage) Run(ctx context.Context, state *State) (StageStatus, error) {
	input, ok := state.Get(s.spec.Input)
	if !ok {
		return StageFailed, s.fail(&MissingInputError{Stage: s.spec.Name, Key: s.spec.Input})
	}

	if state.Has(s.spec.Output) {
		if s.spec.OnExisting == SkipExisting {
			return StageSkipped, nil
		}
		return StageFailed, s.fail(fmt.Errorf("%w: %q", ErrOutputExists, s.spec.Output))
	}

	prompt, err := s.spec.Prompt(input)
	if err != nil {
		return StageFailed, s.fail(fmt.Errorf("rendering prompt: %w", err))
	}

	callCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.Complete(callCtx, completion.Request{Prompt: prompt, Model: s.spec.Model})
	if err != nil {
		return StageFailed, s.fail(err)
	}

	if err := state.Set(s.spec.Output, resp.Text); err != nil {
		return StageFailed, s.fail(err)
	}
	return StageSucceeded, nil
}

func (s *Stage) fail(cause error) error {
	return &StageFailedError{Stage: s.spec.Name, Index: s.index, Cause: cause}
}

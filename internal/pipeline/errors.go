// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPipelineConfig is matched by every construction-time validation failure.
	ErrInvalidPipelineConfig = errors.New("invalid pipeline config")

	// ErrMissingInputKey means a stage's input key was absent from the state.
	// With a validated chain this indicates a programming error.
	ErrMissingInputKey = errors.New("missing input key")

	// ErrOutputExists is returned by a RejectExisting stage whose output key is already set.
	ErrOutputExists = errors.New("output key already set")

	// ErrKeyExists is returned by State.Set for a key that already has a value.
	ErrKeyExists = errors.New("state key already set")

	// ErrRunFinished is returned when Execute is called on a run in a terminal state.
	ErrRunFinished = errors.New("run already finished")

	// ErrRunInProgress is returned when Execute is called on a run that is executing.
	ErrRunInProgress = errors.New("run already in progress")
)

// ConfigError describes why a stage sequence was rejected.
// Index is -1 for errors about the sequence as a whole.
type ConfigError struct {
	Index  int
	Stage  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %s", ErrInvalidPipelineConfig, e.Reason)
	}
	if e.Stage == "" {
		return fmt.Sprintf("%v: stage %d: %s", ErrInvalidPipelineConfig, e.Index, e.Reason)
	}
	return fmt.Sprintf("%v: stage %d %q: %s", ErrInvalidPipelineConfig, e.Index, e.Stage, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidPipelineConfig }

// MissingInputError names the stage and the key it could not find.
type MissingInputError struct {
	Stage string
	Key   string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("stage %q: %v %q", e.Stage, ErrMissingInputKey, e.Key)
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInputKey }

// StageFailedError attributes a run failure to one stage. Cause is the
// underlying error: a completion error, a missing input, a prompt rendering
// failure, or the context error when the run was cancelled before the stage
// started.
type StageFailedError struct {
	Stage string
	Index int
	Cause error
}

func (e *StageFailedError) Error() string {
	return fmt.Sprintf("stage %q (#%d) failed: %v", e.Stage, e.Index, e.Cause)
}

func (e *StageFailedError) Unwrap() error { return e.Cause }

// FailedStage returns the name of the stage err is attributed to, if any.
func FailedStage(err error) (string, bool) {
	var sf *StageFailedError
	if errors.As(err, &sf) {
		return sf.Stage, true
	}
	return "", false
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	vlog "github.com/pdiddy/content-engine/internal/log"
)

// Status is the lifecycle state of a Run.
type Status int

const (
	NotStarted Status = iota
	Running
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == Completed || s == Failed
}

func isAllowedTransition(from, to Status) bool {
	switch from {
	case NotStarted:
		return to == Running
	case Running:
		return to == Completed || to == Failed
	default:
		return false
	}
}

// StageRecord logs one stage of a run.
type StageRecord struct {
	Index    int
	Name     string
	Status   StageStatus
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Result is what a run leaves behind: the state accumulated so far and the
// per-stage log. On failure State holds only the keys written before the
// failing stage.
type Result struct {
	Pipeline string
	Status   Status
	State    map[string]string
	Log      []StageRecord
	Started  time.Time
	Duration time.Duration
}

// Output returns the value at key in the final state.
func (r *Result) Output(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.State[key]
	return v, ok
}

// Run is a single execution of a Pipeline. It moves NotStarted →
// Running(stage) → Completed | Failed(stage) and cannot be executed again;
// start a fresh Run for another input.
type Run struct {
	p *Pipeline

	mu      sync.Mutex
	status  Status
	current int
	err     error
}

// Status returns the run's state and the index of the current (or failing)
// stage. The index is -1 before the first stage starts.
func (r *Run) Status() (Status, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.current
}

// Err returns the failure of a Failed run.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Run) transition(from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != from {
		if r.status.IsTerminal() {
			return ErrRunFinished
		}
		if r.status == Running {
			return ErrRunInProgress
		}
		return fmt.Errorf("invalid run transition: expected %s, got %s", from, r.status)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed run transition: %s -> %s", from, to)
	}
	r.status = to
	return nil
}

func (r *Run) enter(index int) {
	r.mu.Lock()
	r.current = index
	r.mu.Unlock()
}

// Execute runs every stage in order against a state seeded with input under
// InitialKey.
func (r *Run) Execute(ctx context.Context, input string) (*Result, error) {
	return r.execute(ctx, map[string]string{InitialKey: input})
}

// execute runs the stages against a state seeded with seed. Stages whose
// output is already present follow their ExistingPolicy.
func (r *Run) execute(ctx context.Context, seed map[string]string) (*Result, error) {
	if err := r.transition(NotStarted, Running); err != nil {
		return nil, err
	}

	p := r.p
	state := StateFrom(seed)
	res := &Result{
		Pipeline: p.name,
		Started:  time.Now(),
		Log:      make([]StageRecord, 0, len(p.stages)),
	}

	var runErr error
	for i, st := range p.stages {
		if runErr != nil {
			res.Log = append(res.Log, StageRecord{Index: i, Name: st.Name(), Status: StageNotRun})
			continue
		}

		if err := ctx.Err(); err != nil {
			runErr = &StageFailedError{Stage: st.Name(), Index: i, Cause: err}
			r.enter(i)
			res.Log = append(res.Log, StageRecord{Index: i, Name: st.Name(), Status: StageNotRun, Err: err})
			p.progressf("cancelled %s: %v\n", st.Name(), err)
			vlog.Warn("run cancelled", "pipeline", p.name, "stage", st.Name(), "index", i)
			continue
		}

		r.enter(i)
		p.progressf("running %s\n", st.Name())
		vlog.Debug("stage started", "pipeline", p.name, "stage", st.Name(), "index", i, "input", st.Spec().Input)

		start := time.Now()
		status, err := st.Run(ctx, state)
		rec := StageRecord{Index: i, Name: st.Name(), Status: status, Started: start, Duration: time.Since(start), Err: err}
		res.Log = append(res.Log, rec)

		switch {
		case err != nil:
			runErr = err
			p.progressf("failed  %s: %v\n", st.Name(), errors.Unwrap(err))
			vlog.Error("stage failed", "pipeline", p.name, "stage", st.Name(), "index", i, "err", err)
		case status == StageSkipped:
			p.progressf("skipped %s (%s already set)\n", st.Name(), st.Spec().Output)
			vlog.Info("stage skipped", "pipeline", p.name, "stage", st.Name(), "output", st.Spec().Output)
		default:
			p.progressf("done    %s (%s)\n", st.Name(), rec.Duration.Round(time.Millisecond))
			vlog.Info("stage done", "pipeline", p.name, "stage", st.Name(), "duration", rec.Duration)
		}
	}

	res.State = state.Snapshot()
	res.Duration = time.Since(res.Started)

	if runErr != nil {
		r.mu.Lock()
		r.err = runErr
		r.mu.Unlock()
		if err := r.transition(Running, Failed); err != nil {
			return nil, err
		}
		res.Status = Failed
		return res, runErr
	}

	if err := r.transition(Running, Completed); err != nil {
		return nil, err
	}
	res.Status = Completed
	return res, nil
}

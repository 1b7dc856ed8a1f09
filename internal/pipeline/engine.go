// Package pipeline contains the run state model and the engine that drives an
// ordered sequence of stage functions over it. Execution is strictly
// sequential per run; the engine performs no I/O of its own beyond stamping
// metadata timestamps.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// now is overridden in tests.
var now = time.Now

// StageFunc transforms the shared state in place, or fails the run.
type StageFunc func(ctx context.Context, st *State) error

// Stage pairs a stable name with its implementation. The name appears in
// failure messages and logs.
type Stage struct {
	Name string
	Run  StageFunc
}

// Outcome is the result of a branch predicate.
type Outcome int

const (
	// OutcomeContinue proceeds to the next stage in order.
	OutcomeContinue Outcome = iota
	// OutcomeSkip jumps past all remaining stages to the terminal.
	OutcomeSkip
)

// Status is the engine's execution state.
type Status int

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// branchPoint attaches a predicate after a named stage.
type branchPoint struct {
	after  string
	decide func(*State) Outcome
}

// Engine executes a fixed, named sequence of stages over one State,
// aborting on the first failure. An Engine runs once.
type Engine struct {
	name        string
	stages      []Stage
	branch      *branchPoint
	status      Status
	failedStage string
}

// New builds an engine for the given ordered stages.
func New(name string, stages []Stage) *Engine {
	return &Engine{name: name, stages: stages}
}

// WithBranch installs the single branch point: after the stage named after
// completes, decide inspects the state and may skip the remaining stages.
func (e *Engine) WithBranch(after string, decide func(*State) Outcome) *Engine {
	e.branch = &branchPoint{after: after, decide: decide}
	return e
}

// Status reports the engine's current execution state.
func (e *Engine) Status() Status {
	return e.status
}

// FailedStage returns the name of the stage that failed, or "" if none has.
func (e *Engine) FailedStage() string {
	return e.failedStage
}

// Run executes the stages in order. On a stage failure it records the error
// in the state's execution metadata, stops, and returns an error naming the
// stage; the partially populated state is left for the caller to inspect or
// persist. Completed and Failed are terminal.
func (e *Engine) Run(ctx context.Context, st *State) error {
	if e.status != StatusNotStarted {
		return fmt.Errorf("pipeline %s already ran (status %s)", e.name, e.status)
	}
	if err := e.validate(); err != nil {
		return err
	}

	e.status = StatusRunning
	if st.Meta.StartedAt.IsZero() {
		st.Meta.StartedAt = now()
	}

	log.Info().
		Str("pipeline", e.name).
		Str("run_id", st.Meta.RunID).
		Int("stages", len(e.stages)).
		Msg("Pipeline started")

	for i, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			return e.fail(st, stage.Name, fmt.Errorf("run interrupted: %w", err))
		}

		stageStart := now()
		log.Info().
			Str("pipeline", e.name).
			Str("stage", stage.Name).
			Int("index", i).
			Msg("Stage started")

		if err := stage.Run(ctx, st); err != nil {
			return e.fail(st, stage.Name, err)
		}

		log.Info().
			Str("pipeline", e.name).
			Str("stage", stage.Name).
			Dur("duration", now().Sub(stageStart)).
			Msg("Stage completed")

		if e.branch != nil && e.branch.after == stage.Name {
			if e.branch.decide(st) == OutcomeSkip {
				log.Info().
					Str("pipeline", e.name).
					Str("after_stage", stage.Name).
					Msg("Branch predicate chose skip; ending run early")
				break
			}
		}
	}

	st.Meta.CompletedAt = now()
	e.status = StatusCompleted

	log.Info().
		Str("pipeline", e.name).
		Str("run_id", st.Meta.RunID).
		Dur("duration", st.Meta.CompletedAt.Sub(st.Meta.StartedAt)).
		Msg("Pipeline completed")
	return nil
}

// validate catches wiring errors before any stage executes.
func (e *Engine) validate() error {
	if len(e.stages) == 0 {
		return fmt.Errorf("pipeline %s has no stages", e.name)
	}
	names := make(map[string]bool, len(e.stages))
	for _, s := range e.stages {
		if s.Name == "" || s.Run == nil {
			return fmt.Errorf("pipeline %s has an unnamed or empty stage", e.name)
		}
		if names[s.Name] {
			return fmt.Errorf("pipeline %s has duplicate stage %s", e.name, s.Name)
		}
		names[s.Name] = true
	}
	if e.branch != nil && !names[e.branch.after] {
		return fmt.Errorf("pipeline %s branch references unknown stage %s", e.name, e.branch.after)
	}
	return nil
}

func (e *Engine) fail(st *State, stageName string, err error) error {
	e.status = StatusFailed
	e.failedStage = stageName

	wrapped := fmt.Errorf("stage %s: %w", stageName, err)
	st.Meta.Errors = append(st.Meta.Errors, wrapped.Error())

	log.Error().
		Str("pipeline", e.name).
		Str("stage", stageName).
		Err(err).
		Msg("Pipeline failed")
	return wrapped
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func okStage(name string, trace *[]string) Stage {
	return Stage{Name: name, Run: func(ctx context.Context, st *State) error {
		*trace = append(*trace, name)
		return nil
	}}
}

func TestRunExecutesStagesInOrder(t *testing.T) {
	var trace []string
	e := New("test", []Stage{okStage("s1", &trace), okStage("s2", &trace), okStage("s3", &trace)})

	st := &State{}
	if err := e.Run(context.Background(), st); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"s1", "s2", "s3"}
	if fmt.Sprint(trace) != fmt.Sprint(want) {
		t.Errorf("trace = %v, want %v", trace, want)
	}
	if e.Status() != StatusCompleted {
		t.Errorf("Status = %v, want completed", e.Status())
	}
	if st.Meta.StartedAt.IsZero() || st.Meta.CompletedAt.IsZero() {
		t.Error("execution metadata timestamps not stamped")
	}
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	var trace []string
	boom := errors.New("model returned garbage")
	stages := []Stage{
		okStage("s1", &trace),
		{Name: "s2", Run: func(ctx context.Context, st *State) error { return boom }},
		okStage("s3", &trace),
	}
	e := New("test", stages)

	st := &State{}
	err := e.Run(context.Background(), st)
	if err == nil {
		t.Fatal("Run succeeded despite failing stage")
	}
	if !strings.Contains(err.Error(), "s2") {
		t.Errorf("error %q does not reference the failing stage s2", err)
	}
	if !errors.Is(err, boom) {
		t.Error("original stage error not wrapped")
	}

	for _, name := range trace {
		if name == "s3" {
			t.Error("s3 executed after s2 failed")
		}
	}
	if e.Status() != StatusFailed {
		t.Errorf("Status = %v, want failed", e.Status())
	}
	if e.FailedStage() != "s2" {
		t.Errorf("FailedStage = %q, want s2", e.FailedStage())
	}
	if len(st.Meta.Errors) != 1 || !strings.Contains(st.Meta.Errors[0], "s2") {
		t.Errorf("Meta.Errors = %v, want one entry referencing s2", st.Meta.Errors)
	}
}

func TestBranchSkipsOnLowMemeWorthiness(t *testing.T) {
	var trace []string
	e := New("test", []Stage{okStage("render", &trace), okStage("animate", &trace)}).
		WithBranch("render", func(st *State) Outcome {
			if st.ContentAnalysis != nil && st.ContentAnalysis.MemeWorthinessScore < 0.5 {
				return OutcomeSkip
			}
			return OutcomeContinue
		})

	st := &State{ContentAnalysis: &ContentAnalysis{MemeWorthinessScore: 0.3}}
	if err := e.Run(context.Background(), st); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, name := range trace {
		if name == "animate" {
			t.Error("animate executed despite skip outcome")
		}
	}
	if e.Status() != StatusCompleted {
		t.Errorf("Status = %v, want completed (skip is a normal terminal)", e.Status())
	}
}

func TestBranchContinuesOnHighMemeWorthiness(t *testing.T) {
	var trace []string
	e := New("test", []Stage{okStage("render", &trace), okStage("animate", &trace)}).
		WithBranch("render", func(st *State) Outcome {
			if st.ContentAnalysis.MemeWorthinessScore < 0.5 {
				return OutcomeSkip
			}
			return OutcomeContinue
		})

	st := &State{ContentAnalysis: &ContentAnalysis{MemeWorthinessScore: 0.9}}
	if err := e.Run(context.Background(), st); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(trace) != 2 || trace[1] != "animate" {
		t.Errorf("trace = %v, want [render animate]", trace)
	}
}

func TestBranchUnknownStageIsConfigError(t *testing.T) {
	var trace []string
	e := New("test", []Stage{okStage("s1", &trace)}).
		WithBranch("no-such-stage", func(st *State) Outcome { return OutcomeContinue })

	if err := e.Run(context.Background(), &State{}); err == nil {
		t.Error("expected configuration error for branch on unknown stage")
	}
	if len(trace) != 0 {
		t.Error("stages executed despite invalid wiring")
	}
}

func TestRunRefusesSecondInvocation(t *testing.T) {
	var trace []string
	e := New("test", []Stage{okStage("s1", &trace)})

	if err := e.Run(context.Background(), &State{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := e.Run(context.Background(), &State{}); err == nil {
		t.Error("second Run succeeded; Completed must be terminal")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	var trace []string
	ctx, cancel := context.WithCancel(context.Background())
	stages := []Stage{
		{Name: "s1", Run: func(ctx context.Context, st *State) error {
			trace = append(trace, "s1")
			cancel()
			return nil
		}},
		okStage("s2", &trace),
	}
	e := New("test", stages)

	err := e.Run(ctx, &State{})
	if err == nil {
		t.Fatal("Run succeeded despite cancelled context")
	}
	for _, name := range trace {
		if name == "s2" {
			t.Error("s2 executed after cancellation")
		}
	}
}

func TestMissingFieldError(t *testing.T) {
	err := MissingField("text_generation", "image_analysis", "template_image_analysis")

	var mfe *MissingFieldError
	if !errors.As(err, &mfe) {
		t.Fatal("MissingField did not return a *MissingFieldError")
	}
	for _, want := range []string{"text_generation", "image_analysis", "template_image_analysis"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

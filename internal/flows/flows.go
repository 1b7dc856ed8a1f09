// Package flows assembles the pipeline stages into the three runnable flows
// (text, meme, animation) and owns run persistence around the engine: run
// creation, seeding state from earlier flows, and flow-output files.
package flows

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/cache"
	"github.com/rektlabs/memeforge/internal/config"
	"github.com/rektlabs/memeforge/internal/llm"
	"github.com/rektlabs/memeforge/internal/pipeline"
	"github.com/rektlabs/memeforge/internal/runstore"
	"github.com/rektlabs/memeforge/internal/stages"
)

// Flow names, used for output files and metadata.
const (
	FlowText      = "text"
	FlowMeme      = "meme"
	FlowAnimation = "animation"
	FlowAll       = "all"
)

// MemeWorthinessThreshold gates animation: content scoring below it ships as
// a static meme.
const MemeWorthinessThreshold = 0.5

// Runner wires configuration, the model client, the cache and the run store
// into executable flows.
type Runner struct {
	cfg   *config.Config
	gen   llm.Generator
	store *runstore.Manager
	cache *cache.Cache
	rand  *rand.Rand
}

// NewRunner validates the configuration eagerly and builds the shared
// collaborators. A config problem means no flow ever starts.
func NewRunner(cfg *config.Config, gen llm.Generator) (*Runner, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}

	store, err := runstore.New(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	return &Runner{
		cfg:   cfg,
		gen:   gen,
		store: store,
		cache: c,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Store exposes the run store for CLI listing commands.
func (r *Runner) Store() *runstore.Manager {
	return r.store
}

// deps builds the stage dependency set for one run.
func (r *Runner) deps(dirs runstore.Dirs) stages.Deps {
	return stages.Deps{
		Gen:   r.gen,
		Cache: r.cache,
		Dirs:  dirs,
		Rand:  r.rand,
	}
}

// RunText executes stages 1-3 and persists text_output.json. An empty runID
// starts a new run; an existing one is reused for resumption.
func (r *Runner) RunText(ctx context.Context, runID string) (string, error) {
	runID, dirs, err := r.openRun(runID)
	if err != nil {
		return "", err
	}

	d := r.deps(dirs)
	st := r.newState(runID, FlowText)
	eng := pipeline.New(FlowText, []pipeline.Stage{
		stages.ContextIngestion(d),
		stages.TrendDetection(d),
		stages.ContentCuration(d),
	})

	runErr := eng.Run(ctx, st)
	if err := r.persist(runID, FlowText, st, eng); err != nil {
		return runID, err
	}
	return runID, runErr
}

// RunMeme executes stages 4-10. It requires a run that already has text flow
// output, which seeds the state.
func (r *Runner) RunMeme(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("meme flow needs an existing run: run the text flow first or pass its run ID")
	}
	st, dirs, err := r.seedFrom(runID, FlowText, FlowMeme)
	if err != nil {
		return runID, err
	}
	st.PreviousMemeAngles = r.previousAngles(runID)

	d := r.deps(dirs)
	eng := pipeline.New(FlowMeme, memeStages(d))

	runErr := eng.Run(ctx, st)
	if runErr == nil && st.ContentAnalysis != nil {
		r.recordAngle(runID, st.ContentAnalysis.MemeAngle)
	}
	if err := r.persist(runID, FlowMeme, st, eng); err != nil {
		return runID, err
	}
	return runID, runErr
}

// RunAnimation executes stage 11 over an existing run's meme output. The run
// ID is mandatory; the skip predicate is honored before the engine starts.
func (r *Runner) RunAnimation(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("animation flow requires an explicit run ID")
	}
	st, dirs, err := r.seedFrom(runID, FlowMeme, FlowAnimation)
	if err != nil {
		return runID, err
	}

	if outcome := r.animationBranch(st); outcome == pipeline.OutcomeSkip {
		log.Info().Str("run_id", runID).Msg("Animation skipped by branch predicate")
		return runID, nil
	}

	d := r.deps(dirs)
	eng := pipeline.New(FlowAnimation, []pipeline.Stage{stages.Animation(d)})

	runErr := eng.Run(ctx, st)
	if err := r.persist(runID, FlowAnimation, st, eng); err != nil {
		return runID, err
	}
	return runID, runErr
}

// RunAll drives every stage as one pipeline with the animation branch wired
// after rendering, then persists all flow outputs from the final state.
func (r *Runner) RunAll(ctx context.Context) (string, error) {
	runID, dirs, err := r.openRun("")
	if err != nil {
		return "", err
	}

	d := r.deps(dirs)
	all := []pipeline.Stage{
		stages.ContextIngestion(d),
		stages.TrendDetection(d),
		stages.ContentCuration(d),
	}
	all = append(all, memeStages(d)...)
	all = append(all, stages.Animation(d))

	st := r.newState(runID, FlowAll)
	st.PreviousMemeAngles = r.previousAngles(runID)
	eng := pipeline.New(FlowAll, all).
		WithBranch(stages.StageMemeRendering, r.animationBranch)

	runErr := eng.Run(ctx, st)
	if runErr == nil && st.ContentAnalysis != nil {
		r.recordAngle(runID, st.ContentAnalysis.MemeAngle)
	}

	// Persist per-flow outputs so later flows can still resume from them.
	if err := r.persist(runID, FlowText, st, eng); err != nil {
		return runID, err
	}
	if st.ContentAnalysis != nil {
		if err := r.persist(runID, FlowMeme, st, eng); err != nil {
			return runID, err
		}
	}
	if st.AnimatedMeme != nil {
		if err := r.persist(runID, FlowAnimation, st, eng); err != nil {
			return runID, err
		}
	}
	return runID, runErr
}

// animationBranch decides whether the animation stage runs: skipped when
// disabled by config or when the content is not meme-worthy enough.
func (r *Runner) animationBranch(st *pipeline.State) pipeline.Outcome {
	if st.Config.SkipAnimation {
		return pipeline.OutcomeSkip
	}
	if st.ContentAnalysis != nil && st.ContentAnalysis.MemeWorthinessScore < MemeWorthinessThreshold {
		return pipeline.OutcomeSkip
	}
	return pipeline.OutcomeContinue
}

func memeStages(d stages.Deps) []pipeline.Stage {
	return []pipeline.Stage{
		stages.SentimentAnalysis(d),
		stages.TemplateSelection(d),
		stages.ImageAnalysis(d),
		stages.BrandBlending(d),
		stages.TextGeneration(d),
		stages.TextSelection(d),
		stages.MemeRendering(d),
	}
}

// openRun resolves or creates the run and its directory layout.
func (r *Runner) openRun(runID string) (string, runstore.Dirs, error) {
	if runID == "" {
		runID = r.store.NewRunID()
	}
	dirs, err := r.store.CreateRun(runID)
	if err != nil {
		return "", runstore.Dirs{}, fmt.Errorf("failed to create run %s: %w", runID, err)
	}
	return runID, dirs, nil
}

func (r *Runner) newState(runID, flow string) *pipeline.State {
	return &pipeline.State{
		Config: r.cfg,
		Meta: pipeline.ExecutionMetadata{
			RunID: runID,
			Flow:  flow,
		},
	}
}

// seedFrom loads an earlier flow's persisted state into a fresh one for the
// next flow. A missing upstream output is an error naming the missing flow.
func (r *Runner) seedFrom(runID, fromFlow, flow string) (*pipeline.State, runstore.Dirs, error) {
	if !r.store.RunExists(runID) {
		return nil, runstore.Dirs{}, fmt.Errorf("run %s does not exist", runID)
	}

	st := r.newState(runID, flow)
	found, err := r.store.LoadFlowOutput(runID, fromFlow, st)
	if err != nil {
		return nil, runstore.Dirs{}, fmt.Errorf("failed to load %s output for run %s: %w", fromFlow, runID, err)
	}
	if !found {
		return nil, runstore.Dirs{}, fmt.Errorf("run %s has no %s flow output; run that flow first", runID, fromFlow)
	}

	// Loading overwrote the fresh metadata with the earlier flow's.
	st.Config = r.cfg
	st.Meta.RunID = runID
	st.Meta.Flow = flow
	st.Meta.CompletedAt = time.Time{}
	st.Meta.StartedAt = time.Time{}

	dirs, err := r.store.CreateRun(runID)
	if err != nil {
		return nil, runstore.Dirs{}, err
	}
	return st, dirs, nil
}

// persist writes the flow output and merges run metadata. Flow outputs are
// write-once: a later flow never overwrites an earlier flow's file because
// each flow writes only its own name.
func (r *Runner) persist(runID, flow string, st *pipeline.State, eng *pipeline.Engine) error {
	if err := r.store.SaveFlowOutput(runID, flow, st); err != nil {
		return fmt.Errorf("failed to persist %s output: %w", flow, err)
	}

	update := map[string]any{
		"run_id":    runID,
		"last_flow": flow,
	}
	update[flow+"_status"] = eng.Status().String()
	if eng.FailedStage() != "" {
		update[flow+"_failed_stage"] = eng.FailedStage()
	}
	if err := r.store.MergeRunMetadata(runID, update); err != nil {
		return fmt.Errorf("failed to merge run metadata: %w", err)
	}
	return nil
}

// previousAngles collects meme angles recorded by earlier runs so text
// generation can avoid repeating them. The current run is excluded.
func (r *Runner) previousAngles(currentRunID string) []string {
	runs, err := r.store.ListRuns()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list previous runs")
		return nil
	}

	var angles []string
	for _, id := range runs {
		if id == currentRunID {
			continue
		}
		meta, err := r.store.RunMetadata(id)
		if err != nil {
			continue
		}
		if angle, ok := meta["meme_angle"].(string); ok && angle != "" {
			angles = append(angles, angle)
		}
	}
	return angles
}

func (r *Runner) recordAngle(runID, angle string) {
	if angle == "" {
		return
	}
	if err := r.store.MergeRunMetadata(runID, map[string]any{"meme_angle": angle}); err != nil {
		log.Warn().Err(err).Msg("Failed to record meme angle")
	}
}

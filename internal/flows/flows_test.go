package flows

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rektlabs/memeforge/internal/config"
	"github.com/rektlabs/memeforge/internal/llm"
	"github.com/rektlabs/memeforge/internal/stages"
)

type scriptedGen struct {
	calls      map[string]int
	worthiness float64
}

func (g *scriptedGen) Generate(_ context.Context, req llm.Request) (string, error) {
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[req.Op]++

	switch req.Op {
	case stages.StageContextIngestion:
		return businessContextJSON, nil
	case stages.StageTrendDetection:
		return trendsJSON, nil
	case stages.StageContentCuration:
		return `{"post": "postmortem bingo is real", "character_count": 24}`, nil
	case stages.StageSentimentAnalysis:
		return fmt.Sprintf(analysisJSONTmpl, g.worthiness), nil
	case stages.StageImageAnalysis:
		return imageAnalysisJSON, nil
	case stages.StageTextGeneration:
		return optionsJSON(), nil
	}
	return "", fmt.Errorf("unexpected op %s", req.Op)
}

const businessContextJSON = `{
  "brand_identity": {"core_narrative": "n", "brand_pillars": ["p"], "unique_value_proposition": "u", "brand_personality_traits": ["t"], "brand_archetype": "a"},
  "communication_style": {"tone_descriptors": ["deadpan"], "voice_characteristics": "v", "humor_style": "dry", "example_phrases": ["ship it"], "language_patterns": "short"},
  "strategic_messaging": {"key_messages": ["k"], "messaging_frameworks": {}, "content_themes": ["c"]},
  "audience_intelligence": {"primary_audience": "engineers", "psychographics": "s", "expertise_level": "high", "engagement_preferences": "memes"},
  "brand_guardrails": {"dos": ["d"], "donts": [], "sensitive_topics": [], "competitor_mentions": "never"},
  "content_variation_seeds": {"perspectives": ["p"], "narrative_approaches": ["n"], "emotional_ranges": ["e"]}
}`

const trendsJSON = `{"trending_topics": [
  {"topic": "yaml fatigue", "domain": "devops", "description": "d", "reason": "r", "sentiment": "mixed", "relevance_score": 0.9, "virality_potential": 0.8, "meme_angles": ["config sprawl"]}
]}`

const analysisJSONTmpl = `{
  "dominant_emotion": "confusion",
  "humor_type": "deadpan",
  "meme_worthiness_score": %v,
  "meme_angle": "postmortem bingo",
  "visual_vibe": "office",
  "narrative_intent": "commiserate",
  "suggested_template_categories": ["reaction"]
}`

const imageAnalysisJSON = `{
  "image_description": "a dog in a burning room",
  "visual_elements": ["dog"],
  "emotional_context": "forced calm",
  "meme_format": "reaction",
  "text_placement_suitability": {"top": "good", "bottom": "good"},
  "suggested_narrative_structure": "setup then punchline",
  "humor_opportunities": ["denial"]
}`

func optionsJSON() string {
	var sb strings.Builder
	sb.WriteString(`{"options": [`)
	for i := 0; i < 10; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"top_text": "top %d", "bottom_text": "bottom %d", "virality_score": %v, "image_coherence_score": 0.6, "humor_pattern_used": %q, "character_counts": {"top": 5, "bottom": 8}}`,
			i, i, 0.5+float64(i)*0.03, stages.HumorPatterns[i%len(stages.HumorPatterns)])
	}
	sb.WriteString("]}")
	return sb.String()
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

// testConfig builds a valid config with on-disk fixtures for every flow.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg := &config.Config{
		BusinessDocsPath:  t.TempDir(),
		BrandIdentityPath: t.TempDir(),
		TemplatesPath:     t.TempDir(),
		OutputPath:        t.TempDir(),
		CacheDir:          filepath.Join(t.TempDir(), "cache"),
		Platforms:         []string{"twitter"},
		AnimationStyle:    "auto",
		Extra:             map[string]any{},
	}

	if err := os.WriteFile(filepath.Join(cfg.BusinessDocsPath, "brand.txt"), []byte("We build infra."), 0o644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(cfg.TemplatesPath, "reaction", "dog.png"), 400, 300)
	writePNG(t, filepath.Join(cfg.BrandIdentityPath, "logo.png"), 40, 40)
	brand := `{"brand_name": "rektlabs", "primary_color": "#FF6600", "logo_path": "logo.png"}`
	if err := os.WriteFile(filepath.Join(cfg.BrandIdentityPath, "brand_config.json"), []byte(brand), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestNewRunnerRejectsInvalidConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	cfg := &config.Config{
		BusinessDocsPath:  "/nonexistent/docs",
		BrandIdentityPath: "/nonexistent/brand",
		TemplatesPath:     "/nonexistent/templates",
		OutputPath:        t.TempDir(),
	}

	_, err := NewRunner(cfg, &scriptedGen{})
	if err == nil {
		t.Fatal("NewRunner error = nil, want aggregated validation failure")
	}
	for _, want := range []string{"business documents", "brand identity", "API key", "platforms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestRunTextCreatesRunAndPersists(t *testing.T) {
	cfg := testConfig(t)
	r, err := NewRunner(cfg, &scriptedGen{worthiness: 0.8})
	if err != nil {
		t.Fatalf("NewRunner error = %v", err)
	}

	runID, err := r.RunText(context.Background(), "")
	if err != nil {
		t.Fatalf("RunText error = %v", err)
	}
	if !strings.HasPrefix(runID, "run_") {
		t.Errorf("run ID = %q, want run_ prefix", runID)
	}

	runDir := filepath.Join(cfg.OutputPath, "runs", runID)
	for _, sub := range []string{"content", "memes", "video", "metadata"} {
		if info, err := os.Stat(filepath.Join(runDir, sub)); err != nil || !info.IsDir() {
			t.Errorf("run subdirectory %s missing", sub)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, "metadata", "text_output.json")); err != nil {
		t.Errorf("text output not persisted: %v", err)
	}

	meta, err := r.Store().RunMetadata(runID)
	if err != nil {
		t.Fatalf("RunMetadata error = %v", err)
	}
	if meta["text_status"] != "completed" {
		t.Errorf("text_status = %v, want completed", meta["text_status"])
	}
}

func TestRunMemeRequiresRunID(t *testing.T) {
	r, err := NewRunner(testConfig(t), &scriptedGen{worthiness: 0.8})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.RunMeme(context.Background(), ""); err == nil {
		t.Error("RunMeme(\"\") error = nil, want usage error")
	}
}

func TestRunMemeRequiresTextOutput(t *testing.T) {
	r, err := NewRunner(testConfig(t), &scriptedGen{worthiness: 0.8})
	if err != nil {
		t.Fatal(err)
	}
	runID := r.Store().NewRunID()
	if _, err := r.Store().CreateRun(runID); err != nil {
		t.Fatal(err)
	}
	_, err = r.RunMeme(context.Background(), runID)
	if err == nil || !strings.Contains(err.Error(), "no text flow output") {
		t.Errorf("error = %v, want missing text output", err)
	}
}

func TestRunAnimationRequiresExplicitRunID(t *testing.T) {
	r, err := NewRunner(testConfig(t), &scriptedGen{worthiness: 0.8})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.RunAnimation(context.Background(), ""); err == nil {
		t.Error("RunAnimation(\"\") error = nil, want usage error")
	}
}

func TestTextThenMemeThenAnimation(t *testing.T) {
	cfg := testConfig(t)
	gen := &scriptedGen{worthiness: 0.9}
	r, err := NewRunner(cfg, gen)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	runID, err := r.RunText(ctx, "")
	if err != nil {
		t.Fatalf("RunText error = %v", err)
	}
	if _, err := r.RunMeme(ctx, runID); err != nil {
		t.Fatalf("RunMeme error = %v", err)
	}
	if _, err := r.RunAnimation(ctx, runID); err != nil {
		t.Fatalf("RunAnimation error = %v", err)
	}

	runDir := filepath.Join(cfg.OutputPath, "runs", runID)
	for _, f := range []string{"text_output.json", "meme_output.json", "animation_output.json"} {
		if _, err := os.Stat(filepath.Join(runDir, "metadata", f)); err != nil {
			t.Errorf("%s not persisted: %v", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, "memes", "final_meme.png")); err != nil {
		t.Errorf("final meme not rendered: %v", err)
	}
}

func TestAnimationSkippedWhenContentNotWorthy(t *testing.T) {
	cfg := testConfig(t)
	r, err := NewRunner(cfg, &scriptedGen{worthiness: 0.3})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	runID, err := r.RunText(ctx, "")
	if err != nil {
		t.Fatalf("RunText error = %v", err)
	}
	if _, err := r.RunMeme(ctx, runID); err != nil {
		t.Fatalf("RunMeme error = %v", err)
	}
	if _, err := r.RunAnimation(ctx, runID); err != nil {
		t.Fatalf("RunAnimation error = %v", err)
	}

	animOut := filepath.Join(cfg.OutputPath, "runs", runID, "metadata", "animation_output.json")
	if _, err := os.Stat(animOut); !os.IsNotExist(err) {
		t.Error("animation output written despite low meme-worthiness")
	}
}

func TestAnimationSkippedByConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.SkipAnimation = true
	r, err := NewRunner(cfg, &scriptedGen{worthiness: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	runID, err := r.RunText(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.RunMeme(ctx, runID); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RunAnimation(ctx, runID); err != nil {
		t.Fatalf("RunAnimation error = %v", err)
	}

	animOut := filepath.Join(cfg.OutputPath, "runs", runID, "metadata", "animation_output.json")
	if _, err := os.Stat(animOut); !os.IsNotExist(err) {
		t.Error("animation output written despite skip_animation")
	}
}

func TestRunAllSingleRun(t *testing.T) {
	cfg := testConfig(t)
	gen := &scriptedGen{worthiness: 0.9}
	r, err := NewRunner(cfg, gen)
	if err != nil {
		t.Fatal(err)
	}

	runID, err := r.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll error = %v", err)
	}

	runDir := filepath.Join(cfg.OutputPath, "runs", runID)
	for _, f := range []string{"text_output.json", "meme_output.json", "animation_output.json"} {
		if _, err := os.Stat(filepath.Join(runDir, "metadata", f)); err != nil {
			t.Errorf("%s not persisted: %v", f, err)
		}
	}

	meta, err := r.Store().RunMetadata(runID)
	if err != nil {
		t.Fatal(err)
	}
	if meta["meme_angle"] != "postmortem bingo" {
		t.Errorf("meme_angle = %v, want recorded angle", meta["meme_angle"])
	}
}

func TestPreviousAnglesFeedLaterRuns(t *testing.T) {
	cfg := testConfig(t)
	gen := &scriptedGen{worthiness: 0.9}
	r, err := NewRunner(cfg, gen)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := r.RunAll(ctx); err != nil {
		t.Fatalf("first RunAll error = %v", err)
	}

	runID2, err := r.RunText(ctx, "")
	if err != nil {
		t.Fatalf("RunText error = %v", err)
	}
	if angles := r.previousAngles(runID2); len(angles) != 1 || angles[0] != "postmortem bingo" {
		t.Errorf("previous angles = %v, want the first run's angle", angles)
	}
}

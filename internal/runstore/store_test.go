package runstore

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestNewRunIDFormat(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	defer func() { now = time.Now }()
	now = func() time.Time { return time.Date(2026, 1, 13, 7, 0, 0, 0, time.UTC) }

	id := m.NewRunID()
	pattern := regexp.MustCompile(`^run_20260113_070000_[0-9a-f]{4}$`)
	if !pattern.MatchString(id) {
		t.Errorf("NewRunID = %q, want match for %s", id, pattern)
	}

	if other := m.NewRunID(); other == id {
		t.Error("two run IDs at the same instant collided")
	}
}

func TestCreateRunLayout(t *testing.T) {
	m, _ := New(t.TempDir())

	dirs, err := m.CreateRun("run_20260113_070000_ab12")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	for _, d := range []string{dirs.Content, dirs.Memes, dirs.Video, dirs.Metadata} {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", d)
		}
	}
	if !m.RunExists("run_20260113_070000_ab12") {
		t.Error("RunExists = false after CreateRun")
	}
	if m.RunExists("run_20990101_000000_dead") {
		t.Error("RunExists = true for unknown run")
	}
}

func TestFlowOutputRoundTrip(t *testing.T) {
	m, _ := New(t.TempDir())
	const runID = "run_20260113_070000_ab12"
	if _, err := m.CreateRun(runID); err != nil {
		t.Fatal(err)
	}

	type output struct {
		Topic string `json:"topic"`
		Score float64
	}

	if err := m.SaveFlowOutput(runID, "text", output{Topic: "gas fees", Score: 0.8}); err != nil {
		t.Fatalf("SaveFlowOutput: %v", err)
	}

	var got output
	found, err := m.LoadFlowOutput(runID, "text", &got)
	if err != nil {
		t.Fatalf("LoadFlowOutput: %v", err)
	}
	if !found {
		t.Fatal("LoadFlowOutput did not find saved output")
	}
	if got.Topic != "gas fees" {
		t.Errorf("Topic = %q, want gas fees", got.Topic)
	}

	// Distinct flows write distinct files; saving meme output leaves text intact.
	if err := m.SaveFlowOutput(runID, "meme", output{Topic: "meme"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(m.RunDir(runID), "metadata", "text_output.json")); err != nil {
		t.Errorf("text flow output disturbed by meme flow save: %v", err)
	}

	found, err = m.LoadFlowOutput(runID, "animation", &got)
	if err != nil {
		t.Fatalf("LoadFlowOutput(absent): %v", err)
	}
	if found {
		t.Error("LoadFlowOutput reported output for a flow that never ran")
	}
}

func TestMergeRunMetadata(t *testing.T) {
	m, _ := New(t.TempDir())
	const runID = "run_20260113_070000_ab12"

	if err := m.MergeRunMetadata(runID, map[string]any{"text_flow_completed": true}); err != nil {
		t.Fatalf("MergeRunMetadata: %v", err)
	}
	if err := m.MergeRunMetadata(runID, map[string]any{"meme_flow_completed": true}); err != nil {
		t.Fatalf("MergeRunMetadata: %v", err)
	}

	md, err := m.RunMetadata(runID)
	if err != nil {
		t.Fatalf("RunMetadata: %v", err)
	}
	if md["text_flow_completed"] != true {
		t.Error("earlier metadata key lost on merge")
	}
	if md["meme_flow_completed"] != true {
		t.Error("merged metadata key missing")
	}
}

func TestListRuns(t *testing.T) {
	m, _ := New(t.TempDir())
	for _, id := range []string{"run_20260113_070000_aa11", "run_20260114_080000_bb22"} {
		if _, err := m.CreateRun(id); err != nil {
			t.Fatal(err)
		}
	}
	// Non-run directories are ignored.
	if err := os.MkdirAll(filepath.Join(m.runsDir, "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}

	runs, err := m.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("ListRuns = %v, want 2 runs", runs)
	}
}

// Package runstore persists per-run state on disk so the text, meme, and
// animation flows can be invoked separately against one run identifier.
//
// Layout, under <output>/runs/<run_id>/:
//
//	content/   platform text artifacts
//	memes/     branded templates and rendered memes
//	video/     animated assets
//	metadata/  <flow>_output.json per flow
//	run_metadata.json (merged, never replaced wholesale)
//
// A later flow loads but never overwrites an earlier flow's output file; each
// flow owns exactly one file under metadata/.
package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// now is overridden in tests for deterministic run IDs.
var now = time.Now

// runPrefix starts every run directory name.
const runPrefix = "run_"

// Dirs holds the resolved paths of one run's fixed subdirectories.
type Dirs struct {
	Root     string
	Content  string
	Memes    string
	Video    string
	Metadata string
}

// Manager creates runs and reads/writes their persisted state.
type Manager struct {
	runsDir string
}

// New creates a Manager rooted at <outputDir>/runs.
func New(outputDir string) (*Manager, error) {
	runsDir := filepath.Join(outputDir, "runs")
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory %s: %w", runsDir, err)
	}
	return &Manager{runsDir: runsDir}, nil
}

// NewRunID generates a globally unique run identifier:
// run_YYYYMMDD_HHMMSS_<4-char random suffix>.
func (m *Manager) NewRunID() string {
	return fmt.Sprintf("%s%s_%s", runPrefix, now().Format("20060102_150405"), uuid.NewString()[:4])
}

// RunDir returns the directory for runID without creating it.
func (m *Manager) RunDir(runID string) string {
	return filepath.Join(m.runsDir, runID)
}

// RunExists reports whether a run directory exists for runID.
func (m *Manager) RunExists(runID string) bool {
	info, err := os.Stat(m.RunDir(runID))
	return err == nil && info.IsDir()
}

// CreateRun ensures the fixed subdirectory structure for runID exists and
// returns the resolved paths. Safe to call on an existing run.
func (m *Manager) CreateRun(runID string) (Dirs, error) {
	root := m.RunDir(runID)
	dirs := Dirs{
		Root:     root,
		Content:  filepath.Join(root, "content"),
		Memes:    filepath.Join(root, "memes"),
		Video:    filepath.Join(root, "video"),
		Metadata: filepath.Join(root, "metadata"),
	}
	for _, d := range []string{dirs.Content, dirs.Memes, dirs.Video, dirs.Metadata} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return Dirs{}, fmt.Errorf("failed to create run directory %s: %w", d, err)
		}
	}
	return dirs, nil
}

// SaveFlowOutput writes a flow's structured output to
// metadata/<flow>_output.json, replacing any previous output of that flow.
func (m *Manager) SaveFlowOutput(runID, flow string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s flow output: %w", flow, err)
	}

	path := m.flowOutputPath(runID, flow)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s flow output: %w", flow, err)
	}

	log.Debug().Str("run_id", runID).Str("flow", flow).Str("path", path).Msg("Saved flow output")
	return nil
}

// LoadFlowOutput reads a flow's persisted output into out. Returns false with
// a nil error when the flow has not produced output for this run.
func (m *Manager) LoadFlowOutput(runID, flow string, out any) (bool, error) {
	data, err := os.ReadFile(m.flowOutputPath(runID, flow))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s flow output: %w", flow, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s flow output: %w", flow, err)
	}
	return true, nil
}

// MergeRunMetadata merges the given keys into run_metadata.json, preserving
// keys written by earlier flows.
func (m *Manager) MergeRunMetadata(runID string, update map[string]any) error {
	root := m.RunDir(runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	path := filepath.Join(root, "run_metadata.json")

	merged := make(map[string]any)
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &merged); err != nil {
			log.Warn().Str("run_id", runID).Err(err).Msg("Replacing unreadable run metadata")
			merged = make(map[string]any)
		}
	}
	for k, v := range update {
		merged[k] = v
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}
	return nil
}

// RunMetadata loads run_metadata.json, or an empty map when absent.
func (m *Manager) RunMetadata(runID string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(m.RunDir(runID), "run_metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read run metadata: %w", err)
	}
	md := make(map[string]any)
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to decode run metadata: %w", err)
	}
	return md, nil
}

// ListRuns returns every run ID under the runs directory.
func (m *Manager) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(m.runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), runPrefix) {
			runs = append(runs, e.Name())
		}
	}
	return runs, nil
}

func (m *Manager) flowOutputPath(runID, flow string) string {
	return filepath.Join(m.RunDir(runID), "metadata", flow+"_output.json")
}

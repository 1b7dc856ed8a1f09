package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/pipeline"
)

// Animation records the animation request for the final meme. Actual video
// synthesis is not wired up yet; the stage passes the static image through
// as the animated asset and writes its metadata under the run's video
// directory so downstream consumers have a stable contract.
func Animation(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageAnimation, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.FinalMeme == nil {
			return pipeline.MissingField(StageAnimation, "final_meme", StageMemeRendering)
		}

		style := st.Config.AnimationStyle
		meta := map[string]string{
			"style":        style,
			"status":       "pass_through",
			"source_image": st.FinalMeme.FinalMemeImagePath,
		}

		metaPath := filepath.Join(d.Dirs.Video, "animation_metadata.json")
		if err := writeJSON(metaPath, meta); err != nil {
			return fmt.Errorf("failed to write animation metadata: %w", err)
		}

		log.Info().Str("style", style).Msg("Animation recorded (pass-through)")

		st.AnimatedMeme = &pipeline.AnimatedMeme{
			AnimatedMemeVideoPath: st.FinalMeme.FinalMemeImagePath,
			AnimationMetadata:     meta,
		}
		return nil
	}}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

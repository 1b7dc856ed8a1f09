package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/jsonutil"
	"github.com/rektlabs/memeforge/internal/llm"
	"github.com/rektlabs/memeforge/internal/pipeline"
)

// ImageAnalysis sends the chosen template image to the vision model and
// records its reading of the format, placement suitability and humor
// opportunities for the caption writer.
func ImageAnalysis(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageImageAnalysis, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.TemplateSelection == nil {
			return pipeline.MissingField(StageImageAnalysis, "template_selection", StageTemplateSelection)
		}
		path := st.TemplateSelection.TemplateImagePath

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template image: %w", err)
		}

		raw, err := d.Gen.Generate(ctx, llm.Request{
			Op:     StageImageAnalysis,
			System: imageAnalysisSystemPrompt,
			Prompt: "Analyze this meme template image.",
			Image: &llm.ImageData{
				MIMEType: imageMIMEType(path),
				Data:     data,
			},
		})
		if err != nil {
			return err
		}

		analysis, err := jsonutil.ParseJSON[pipeline.ImageAnalysis](raw)
		if err != nil {
			return fmt.Errorf("failed to parse image analysis response: %w", err)
		}
		if analysis.ImageDescription == "" {
			return fmt.Errorf("image analysis is missing a description")
		}

		log.Info().
			Str("template", filepath.Base(path)).
			Str("format", analysis.MemeFormat).
			Msg("Template image analyzed")

		st.ImageAnalysis = &analysis
		return nil
	}}
}

func imageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

package stages

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/imaging"
	"github.com/rektlabs/memeforge/internal/pipeline"
)

// MemeRendering composites the rank-1 caption onto the branded template,
// outlined and sized to fit the template's text zones, and writes the final
// image under the run's memes directory. Identical inputs produce an
// identical image.
func MemeRendering(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageMemeRendering, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.TextSelection == nil || len(st.TextSelection.TopOptions) == 0 {
			return pipeline.MissingField(StageMemeRendering, "text_selection", StageTextSelection)
		}
		if st.BrandedTemplate == nil {
			return pipeline.MissingField(StageMemeRendering, "branded_template", StageBrandBlending)
		}
		if st.TemplateSelection == nil {
			return pipeline.MissingField(StageMemeRendering, "template_selection", StageTemplateSelection)
		}

		chosen := st.TextSelection.TopOptions[0]
		img, err := imaging.Open(st.BrandedTemplate.BrandedTemplateImagePath)
		if err != nil {
			return fmt.Errorf("failed to open branded template: %w", err)
		}
		canvas := imaging.ToRGBA(img)

		zones := st.TemplateSelection.Metadata.TextZones
		if err := drawZone(canvas, zones["top"], chosen.TopText); err != nil {
			return fmt.Errorf("failed to draw top text: %w", err)
		}
		if err := drawZone(canvas, zones["bottom"], chosen.BottomText); err != nil {
			return fmt.Errorf("failed to draw bottom text: %w", err)
		}

		outPath := filepath.Join(d.Dirs.Memes, "final_meme.png")
		if err := imaging.SavePNG(outPath, canvas); err != nil {
			return err
		}

		log.Info().
			Str("path", outPath).
			Str("top_text", chosen.TopText).
			Str("bottom_text", chosen.BottomText).
			Msg("Final meme rendered")

		st.FinalMeme = &pipeline.FinalMeme{
			FinalMemeImagePath: outPath,
			RenderingMetadata: map[string]string{
				"template":      filepath.Base(st.TemplateSelection.TemplateImagePath),
				"top_text":      chosen.TopText,
				"bottom_text":   chosen.BottomText,
				"humor_pattern": chosen.HumorPattern,
				"ranking_score": fmt.Sprintf("%.3f", chosen.RankingScore),
			},
		}
		return nil
	}}
}

func drawZone(canvas *image.RGBA, zone pipeline.TextZone, text string) error {
	return imaging.DrawCaption(canvas, imaging.Zone{
		X:      zone.X,
		Y:      zone.Y,
		Width:  zone.Width,
		Height: zone.Height,
	}, text)
}

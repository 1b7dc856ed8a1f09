package stages

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/pipeline"
	"github.com/rektlabs/memeforge/internal/ranker"
)

// TextSelection ranks the candidate batch and keeps the top few, together
// with metadata describing how they were chosen.
func TextSelection(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageTextSelection, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.MemeText == nil {
			return pipeline.MissingField(StageTextSelection, "meme_text", StageTextGeneration)
		}
		if st.ContentAnalysis == nil {
			return pipeline.MissingField(StageTextSelection, "content_analysis", StageSentimentAnalysis)
		}

		top, err := ranker.Rank(st.MemeText.Options, st.ContentAnalysis)
		if err != nil {
			return err
		}

		log.Info().
			Int("considered", len(st.MemeText.Options)).
			Int("selected", len(top)).
			Float64("best_score", top[0].RankingScore).
			Str("best_pattern", top[0].HumorPattern).
			Msg("Caption candidates ranked")

		st.TextSelection = &pipeline.TextSelection{
			TopOptions: top,
			Metadata: pipeline.SelectionMetadata{
				TotalOptionsConsidered: len(st.MemeText.Options),
				Weighting: fmt.Sprintf("%.0f%% text alignment, %.0f%% image coherence",
					ranker.TextWeight*100, ranker.ImageWeight*100),
				DiversityBonusApplied: true,
			},
		}
		return nil
	}}
}

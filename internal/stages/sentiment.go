package stages

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/jsonutil"
	"github.com/rektlabs/memeforge/internal/llm"
	"github.com/rektlabs/memeforge/internal/pipeline"
)

// SentimentAnalysis reads the drafted content and topic and produces the
// ContentAnalysis record that steers template choice and the animation
// branch. The meme-worthiness score is clamped into [0,1].
func SentimentAnalysis(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageSentimentAnalysis, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.PlatformContent == nil {
			return pipeline.MissingField(StageSentimentAnalysis, "platform_content", StageContentCuration)
		}
		if st.TrendIntelligence == nil || st.TrendIntelligence.SelectedTopic == nil {
			return pipeline.MissingField(StageSentimentAnalysis, "trend_intelligence", StageTrendDetection)
		}

		raw, err := d.Gen.Generate(ctx, llm.Request{
			Op:     StageSentimentAnalysis,
			System: sentimentSystemPrompt,
			Prompt: buildSentimentPrompt(st.PlatformContent, st.TrendIntelligence.SelectedTopic),
		})
		if err != nil {
			return err
		}

		analysis, err := jsonutil.ParseJSON[pipeline.ContentAnalysis](raw)
		if err != nil {
			return fmt.Errorf("failed to parse content analysis response: %w", err)
		}
		if analysis.DominantEmotion == "" {
			return fmt.Errorf("content analysis is missing a dominant emotion")
		}
		analysis.MemeWorthinessScore = clamp01(analysis.MemeWorthinessScore)

		log.Info().
			Str("emotion", analysis.DominantEmotion).
			Str("humor_type", analysis.HumorType).
			Float64("meme_worthiness", analysis.MemeWorthinessScore).
			Msg("Content analyzed")

		st.ContentAnalysis = &analysis
		return nil
	}}
}

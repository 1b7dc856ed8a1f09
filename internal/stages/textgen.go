package stages

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/jsonutil"
	"github.com/rektlabs/memeforge/internal/llm"
	"github.com/rektlabs/memeforge/internal/pipeline"
)

// TextGeneration asks the model for the full candidate batch, one humor
// pattern assigned per option from the rotating set. Reported sub-scores are
// clamped into [0,1] and character counts recomputed; the last five
// previously used angles are passed for avoidance.
func TextGeneration(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageTextGeneration, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.ImageAnalysis == nil {
			return pipeline.MissingField(StageTextGeneration, "image_analysis", StageImageAnalysis)
		}
		if st.ContentAnalysis == nil {
			return pipeline.MissingField(StageTextGeneration, "content_analysis", StageSentimentAnalysis)
		}
		if st.BusinessContext == nil {
			return pipeline.MissingField(StageTextGeneration, "business_context", StageContextIngestion)
		}

		patterns := assignPatterns(TextOptionCount)
		raw, err := d.Gen.Generate(ctx, llm.Request{
			Op:     StageTextGeneration,
			System: textgenSystemPrompt,
			Prompt: buildTextGenPrompt(st, patterns),
		})
		if err != nil {
			return err
		}

		parsed, err := jsonutil.ParseJSON[pipeline.MemeText](raw)
		if err != nil {
			return fmt.Errorf("failed to parse caption options response: %w", err)
		}
		if len(parsed.Options) == 0 {
			return fmt.Errorf("model returned no caption options")
		}

		for i := range parsed.Options {
			opt := &parsed.Options[i]
			opt.ViralityScore = clamp01(opt.ViralityScore)
			opt.ImageCoherenceScore = clamp01(opt.ImageCoherenceScore)
			if opt.HumorPattern == "" {
				opt.HumorPattern = patterns[i%len(patterns)]
			}
			opt.CharacterCounts = pipeline.CharacterCounts{
				Top:    utf8.RuneCountInString(opt.TopText),
				Bottom: utf8.RuneCountInString(opt.BottomText),
			}
		}

		log.Info().Int("options", len(parsed.Options)).Msg("Caption candidates generated")
		st.MemeText = &parsed
		return nil
	}}
}

// assignPatterns rotates through HumorPatterns to cover n options.
func assignPatterns(n int) []string {
	patterns := make([]string, n)
	for i := range patterns {
		patterns[i] = HumorPatterns[i%len(HumorPatterns)]
	}
	return patterns
}

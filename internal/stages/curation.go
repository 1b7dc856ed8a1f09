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

// Twitter character limits by account tier.
const (
	TwitterCharLimit        = 280
	TwitterPremiumCharLimit = 4000
)

// ContentCuration drafts one post per enabled platform about the selected
// topic. The model's reported character count is recomputed; a twitter draft
// over its tier limit fails the stage.
func ContentCuration(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageContentCuration, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.BusinessContext == nil {
			return pipeline.MissingField(StageContentCuration, "business_context", StageContextIngestion)
		}
		if st.TrendIntelligence == nil || st.TrendIntelligence.SelectedTopic == nil {
			return pipeline.MissingField(StageContentCuration, "trend_intelligence", StageTrendDetection)
		}
		cfg := st.Config
		topic := st.TrendIntelligence.SelectedTopic

		content := &pipeline.PlatformContent{}
		for _, platform := range cfg.Platforms {
			post, err := draftPost(ctx, d, st, platform)
			if err != nil {
				return fmt.Errorf("failed to draft %s post: %w", platform, err)
			}
			switch platform {
			case "twitter":
				content.Twitter = post
			case "instagram":
				content.Instagram = post
			case "linkedin":
				content.LinkedIn = post
			}
			log.Info().
				Str("platform", platform).
				Int("characters", post.CharacterCount).
				Str("topic", topic.Topic).
				Msg("Platform post drafted")
		}

		st.PlatformContent = content
		return nil
	}}
}

func draftPost(ctx context.Context, d Deps, st *pipeline.State, platform string) (*pipeline.PlatformPost, error) {
	limit, accountType := platformLimit(platform, st.Config.TwitterPremium)

	raw, err := d.Gen.Generate(ctx, llm.Request{
		Op:     StageContentCuration,
		System: curationSystemPrompt,
		Prompt: buildCurationPrompt(st.BusinessContext, st.TrendIntelligence.SelectedTopic, platform, limit),
	})
	if err != nil {
		return nil, err
	}

	post, err := jsonutil.ParseJSON[pipeline.PlatformPost](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse post response: %w", err)
	}
	if post.Text == "" {
		return nil, fmt.Errorf("model returned an empty post")
	}

	// The model's self-reported count is untrusted.
	actual := utf8.RuneCountInString(post.Text)
	if post.CharacterCount != actual {
		log.Debug().
			Str("platform", platform).
			Int("reported", post.CharacterCount).
			Int("actual", actual).
			Msg("Correcting reported character count")
		post.CharacterCount = actual
	}
	if limit > 0 && actual > limit {
		return nil, fmt.Errorf("post is %d characters, over the %d limit for %s", actual, limit, platform)
	}
	post.AccountType = accountType
	return &post, nil
}

// platformLimit returns the enforced character limit (0 = unenforced) and the
// account tier label recorded on the post.
func platformLimit(platform string, twitterPremium bool) (int, string) {
	if platform != "twitter" {
		return 0, "standard"
	}
	if twitterPremium {
		return TwitterPremiumCharLimit, "premium"
	}
	return TwitterCharLimit, "standard"
}

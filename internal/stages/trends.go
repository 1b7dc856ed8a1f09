package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/jsonutil"
	"github.com/rektlabs/memeforge/internal/llm"
	"github.com/rektlabs/memeforge/internal/pipeline"
)

// trendCacheKey is shared across runs: trends go stale by time, not by input.
const trendCacheKey = "trend_intelligence"

// DefaultTrendCacheTTL is how long detected trends stay fresh.
const DefaultTrendCacheTTL = time.Hour

// TrendDetection asks the model for trending topics the brand can engage
// with and selects the one with the highest relevance score. Results are
// served from the timed cache unless stale or force_refresh_trends is set.
func TrendDetection(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageTrendDetection, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.BusinessContext == nil {
			return pipeline.MissingField(StageTrendDetection, "business_context", StageContextIngestion)
		}
		cfg := st.Config

		ttl := trendTTL(cfg.Extra)
		if !cfg.ForceRefreshTrends {
			var cached pipeline.TrendIntelligence
			if d.Cache.GetWithin(trendCacheKey, ttl, &cached) {
				// A stored entry missing its selection is as good as absent.
				if cached.SelectedTopic == nil || len(cached.TrendingTopics) == 0 {
					log.Warn().Msg("Cached trend intelligence is incomplete, refreshing")
				} else {
					log.Info().Str("topic", cached.SelectedTopic.Topic).Msg("Trend intelligence loaded from cache")
					st.TrendIntelligence = &cached
					return nil
				}
			}
		}

		raw, err := d.Gen.Generate(ctx, llm.Request{
			Op:     StageTrendDetection,
			System: trendsSystemPrompt,
			Prompt: buildTrendsPrompt(st.BusinessContext),
		})
		if err != nil {
			return err
		}

		parsed, err := jsonutil.ParseJSON[pipeline.TrendIntelligence](raw)
		if err != nil {
			return fmt.Errorf("failed to parse trend response: %w", err)
		}
		if len(parsed.TrendingTopics) == 0 {
			return fmt.Errorf("model returned no trending topics")
		}

		best := 0
		for i, t := range parsed.TrendingTopics {
			if t.RelevanceScore > parsed.TrendingTopics[best].RelevanceScore {
				best = i
			}
		}
		parsed.SelectedTopic = &parsed.TrendingTopics[best]

		log.Info().
			Int("topics", len(parsed.TrendingTopics)).
			Str("selected", parsed.SelectedTopic.Topic).
			Float64("relevance", parsed.SelectedTopic.RelevanceScore).
			Msg("Trend detected")

		if err := d.Cache.PutTimed(trendCacheKey, parsed); err != nil {
			log.Warn().Err(err).Msg("Failed to cache trend intelligence")
		}
		st.TrendIntelligence = &parsed
		return nil
	}}
}

// trendTTL reads a trend_cache_hours override, falling back to the default.
func trendTTL(extra map[string]any) time.Duration {
	switch v := extra["trend_cache_hours"].(type) {
	case int:
		return time.Duration(v) * time.Hour
	case float64:
		return time.Duration(float64(time.Hour) * v)
	}
	return DefaultTrendCacheTTL
}

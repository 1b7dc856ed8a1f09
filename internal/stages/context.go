package stages

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/cache"
	"github.com/rektlabs/memeforge/internal/docparse"
	"github.com/rektlabs/memeforge/internal/jsonutil"
	"github.com/rektlabs/memeforge/internal/llm"
	"github.com/rektlabs/memeforge/internal/pipeline"
)

// ContextIngestion scans the business documents directory, extracts the
// structured brand record via the model, and caches it keyed by a digest of
// the directory contents. Unchanged documents mean no model call on the next
// run unless force_refresh_context is set.
func ContextIngestion(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageContextIngestion, Run: func(ctx context.Context, st *pipeline.State) error {
		cfg := st.Config
		digest, err := cache.DirDigest(cfg.BusinessDocsPath)
		if err != nil {
			return fmt.Errorf("failed to digest business documents: %w", err)
		}
		key := "business_context_" + digest

		if !cfg.ForceRefreshContext {
			var cached pipeline.BusinessContext
			if d.Cache.Get(key, &cached) {
				log.Info().Str("digest", digest).Msg("Business context loaded from cache")
				st.BusinessContext = &cached
				return nil
			}
		}

		docsText, docCount, err := docparse.ParseDir(cfg.BusinessDocsPath)
		if err != nil {
			return fmt.Errorf("failed to parse business documents: %w", err)
		}
		log.Info().Int("documents", docCount).Msg("Business documents parsed")

		raw, err := d.Gen.Generate(ctx, llm.Request{
			Op:     StageContextIngestion,
			System: contextSystemPrompt,
			Prompt: buildContextPrompt(docsText, docCount),
		})
		if err != nil {
			return err
		}

		bc, err := jsonutil.ParseJSON[pipeline.BusinessContext](raw)
		if err != nil {
			return fmt.Errorf("failed to parse business context response: %w", err)
		}
		if len(bc.CommunicationStyle.ToneDescriptors) == 0 {
			return fmt.Errorf("extracted business context has no tone descriptors")
		}

		if err := d.Cache.Put(key, bc); err != nil {
			log.Warn().Err(err).Msg("Failed to cache business context")
		}
		st.BusinessContext = &bc
		return nil
	}}
}

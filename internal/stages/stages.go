// Package stages implements the pipeline stage functions: business context
// ingestion through meme rendering and animation. Each stage reads its
// upstream state fields, fails fast when a dependency is missing, and writes
// exactly one output record.
package stages

import (
	"math/rand"

	"github.com/rektlabs/memeforge/internal/cache"
	"github.com/rektlabs/memeforge/internal/llm"
	"github.com/rektlabs/memeforge/internal/runstore"
)

// Stage names as they appear in pipeline wiring, logs, and failure messages.
const (
	StageContextIngestion  = "context_ingestion"
	StageTrendDetection    = "trend_detection"
	StageContentCuration   = "content_curation"
	StageSentimentAnalysis = "sentiment_analysis"
	StageTemplateSelection = "template_selection"
	StageImageAnalysis     = "image_analysis"
	StageBrandBlending     = "brand_blending"
	StageTextGeneration    = "text_generation"
	StageTextSelection     = "text_selection"
	StageMemeRendering     = "meme_rendering"
	StageAnimation         = "animation"
)

// TextOptionCount is the fixed number of caption candidates requested from
// the generator.
const TextOptionCount = 10

// HumorPatterns is the rotating set assigned across generated candidates.
var HumorPatterns = []string{
	"wordplay",
	"subversion_of_expectations",
	"cultural_references",
	"absurdist",
	"self_deprecating",
	"hyperbole",
	"callback_humor",
	"ironic_contrast",
	"relatable_struggle",
	"triumphant_flex",
}

// Deps carries the collaborators shared by the stage functions. Rand feeds
// template fallback selection and is injected so tests can seed it.
type Deps struct {
	Gen   llm.Generator
	Cache *cache.Cache
	Dirs  runstore.Dirs
	Rand  *rand.Rand
}

// clamp01 forces a model-reported sub-score into [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

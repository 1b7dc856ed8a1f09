// Package ranker scores generated meme-text candidates and selects the top
// few. It is pure: same inputs in the same order always give the same result.
package ranker

import (
	"fmt"
	"sort"

	"github.com/rektlabs/memeforge/internal/pipeline"
)

// Scoring constants. The weights reward topical alignment over raw image fit;
// the diversity bonus nudges variety among near-tied options.
const (
	// TextWeight is the share of the final score from text-input alignment.
	TextWeight = 0.6
	// ImageWeight is the share from the candidate's image-coherence sub-score.
	ImageWeight = 0.4
	// AlignmentBonus is added when the candidate's humor pattern suits the
	// detected dominant emotion.
	AlignmentBonus = 0.15
	// DiversityBonus is added the first time each humor pattern appears,
	// in generation order.
	DiversityBonus = 0.05
	// TopK is the number of candidates returned.
	TopK = 3
)

// emotionHumorPatterns maps a dominant emotion to the humor patterns that
// play well with it.
var emotionHumorPatterns = map[string][]string{
	"joy":        {"triumphant_flex", "hyperbole", "relatable_struggle"},
	"surprise":   {"subversion_of_expectations", "absurdist"},
	"confidence": {"triumphant_flex", "hyperbole", "wordplay"},
	"triumph":    {"triumphant_flex", "callback_humor"},
	"confusion":  {"absurdist", "ironic_contrast", "relatable_struggle"},
	"anger":      {"ironic_contrast", "self_deprecating", "sarcastic"},
}

// alignmentScore computes how well one candidate matches the analyzed input:
// the candidate's own virality sub-score, plus AlignmentBonus when its humor
// pattern is allowed for the dominant emotion, clamped to 1.
func alignmentScore(opt pipeline.MemeTextOption, analysis *pipeline.ContentAnalysis) float64 {
	score := opt.ViralityScore

	if analysis != nil {
		for _, pattern := range emotionHumorPatterns[analysis.DominantEmotion] {
			if pattern == opt.HumorPattern {
				score += AlignmentBonus
				break
			}
		}
	}

	return clamp1(score)
}

// Rank scores every candidate and returns the TopK best, ordered by
// descending final score with ties broken by generation order. Each returned
// candidate is annotated with its RankingScore and TextAlignmentScore; the
// generator's sub-scores are untouched.
//
// The diversity bonus is order-dependent: candidates are processed in input
// order and only the first occurrence of each humor pattern is rewarded.
//
// An empty candidate list means upstream generation failed and is an error,
// never an empty result.
func Rank(options []pipeline.MemeTextOption, analysis *pipeline.ContentAnalysis) ([]pipeline.MemeTextOption, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("no meme text candidates to rank; text generation must run first")
	}

	scored := make([]pipeline.MemeTextOption, len(options))
	rewarded := make(map[string]bool)

	for i, opt := range options {
		alignment := alignmentScore(opt, analysis)
		score := TextWeight*alignment + ImageWeight*opt.ImageCoherenceScore

		if !rewarded[opt.HumorPattern] {
			score += DiversityBonus
			rewarded[opt.HumorPattern] = true
		}

		annotated := opt
		annotated.TextAlignmentScore = alignment
		annotated.RankingScore = clamp1(score)
		scored[i] = annotated
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RankingScore > scored[j].RankingScore
	})

	k := TopK
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func clamp1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

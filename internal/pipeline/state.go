package pipeline

import (
	"fmt"
	"time"

	"github.com/rektlabs/memeforge/internal/config"
)

// State is the record threaded through a pipeline run. Each stage owns the
// fields it writes; a field is written once and only read downstream. Stage
// outputs are pointers so "not produced yet" is distinguishable from empty.
type State struct {
	Config *config.Config `json:"-"`

	BusinessContext   *BusinessContext   `json:"business_context,omitempty"`
	TrendIntelligence *TrendIntelligence `json:"trend_intelligence,omitempty"`
	PlatformContent   *PlatformContent   `json:"platform_content,omitempty"`
	ContentAnalysis   *ContentAnalysis   `json:"content_analysis,omitempty"`
	TemplateSelection *TemplateSelection `json:"template_selection,omitempty"`
	ImageAnalysis     *ImageAnalysis     `json:"image_analysis,omitempty"`
	BrandedTemplate   *BrandedTemplate   `json:"branded_template,omitempty"`
	MemeText          *MemeText          `json:"meme_text,omitempty"`
	TextSelection     *TextSelection     `json:"text_selection,omitempty"`
	FinalMeme         *FinalMeme         `json:"final_meme,omitempty"`
	AnimatedMeme      *AnimatedMeme      `json:"animated_meme,omitempty"`

	// PreviousMemeAngles carries angles used by earlier runs so text
	// generation can avoid repeating them.
	PreviousMemeAngles []string `json:"previous_meme_angles,omitempty"`

	Meta ExecutionMetadata `json:"execution_metadata"`
}

// ExecutionMetadata tracks run identity and timing.
type ExecutionMetadata struct {
	RunID       string    `json:"execution_id"`
	Flow        string    `json:"flow,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	Errors      []string  `json:"errors"`
}

// MissingFieldError reports a stage invoked before its upstream dependency
// populated the field it reads. This is a wiring error, not a runtime
// condition to recover from.
type MissingFieldError struct {
	Stage    string
	Field    string
	Producer string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("stage %s requires %s, which the %s stage must populate first", e.Stage, e.Field, e.Producer)
}

// MissingField builds the standard precondition failure for a stage entry check.
func MissingField(stage, field, producer string) error {
	return &MissingFieldError{Stage: stage, Field: field, Producer: producer}
}

// --- Stage output records ---
// Field names and JSON tags mirror the persisted flow-output format.

// BusinessContext is the structured brand record extracted from documents.
type BusinessContext struct {
	BrandIdentity        BrandIdentity        `json:"brand_identity"`
	CommunicationStyle   CommunicationStyle   `json:"communication_style"`
	StrategicMessaging   StrategicMessaging   `json:"strategic_messaging"`
	AudienceIntelligence AudienceIntelligence `json:"audience_intelligence"`
	BrandGuardrails      BrandGuardrails      `json:"brand_guardrails"`
	VariationSeeds       VariationSeeds       `json:"content_variation_seeds"`
}

type BrandIdentity struct {
	CoreNarrative          string   `json:"core_narrative"`
	BrandPillars           []string `json:"brand_pillars"`
	UniqueValueProposition string   `json:"unique_value_proposition"`
	PersonalityTraits      []string `json:"brand_personality_traits"`
	Archetype              string   `json:"brand_archetype"`
}

type CommunicationStyle struct {
	ToneDescriptors      []string `json:"tone_descriptors"`
	VoiceCharacteristics string   `json:"voice_characteristics"`
	HumorStyle           string   `json:"humor_style"`
	ExamplePhrases       []string `json:"example_phrases"`
	LanguagePatterns     string   `json:"language_patterns"`
}

type StrategicMessaging struct {
	KeyMessages         []string          `json:"key_messages"`
	MessagingFrameworks map[string]string `json:"messaging_frameworks"`
	ContentThemes       []string          `json:"content_themes"`
}

type AudienceIntelligence struct {
	PrimaryAudience       string `json:"primary_audience"`
	Psychographics        string `json:"psychographics"`
	ExpertiseLevel        string `json:"expertise_level"`
	EngagementPreferences string `json:"engagement_preferences"`
}

type BrandGuardrails struct {
	Dos                []string `json:"dos"`
	Donts              []string `json:"donts"`
	SensitiveTopics    []string `json:"sensitive_topics"`
	CompetitorMentions string   `json:"competitor_mentions"`
}

type VariationSeeds struct {
	Perspectives        []string `json:"perspectives"`
	NarrativeApproaches []string `json:"narrative_approaches"`
	EmotionalRanges     []string `json:"emotional_ranges"`
}

// TrendingTopic is one detected trend candidate.
type TrendingTopic struct {
	Topic             string   `json:"topic"`
	Domain            string   `json:"domain"`
	ChainsAffected    []string `json:"chains_affected,omitempty"`
	Description       string   `json:"description"`
	Reason            string   `json:"reason"`
	Sentiment         string   `json:"sentiment"`
	RelevanceScore    float64  `json:"relevance_score"`
	ViralityPotential float64  `json:"virality_potential"`
	MemeAngles        []string `json:"meme_angles,omitempty"`
	TechnicalDepth    string   `json:"technical_depth,omitempty"`
	Source            string   `json:"source,omitempty"`
}

// TrendIntelligence is the trend stage output: all candidates plus the one
// selected by highest relevance score.
type TrendIntelligence struct {
	TrendingTopics []TrendingTopic `json:"trending_topics"`
	SelectedTopic  *TrendingTopic  `json:"selected_topic"`
}

// PlatformPost is one platform's drafted text.
type PlatformPost struct {
	Text           string   `json:"post"`
	Hashtags       []string `json:"hashtags,omitempty"`
	CharacterCount int      `json:"character_count"`
	AccountType    string   `json:"account_type,omitempty"`
}

// PlatformContent holds per-platform drafts; nil means the platform was not enabled.
type PlatformContent struct {
	Twitter   *PlatformPost `json:"twitter,omitempty"`
	Instagram *PlatformPost `json:"instagram,omitempty"`
	LinkedIn  *PlatformPost `json:"linkedin,omitempty"`
}

// ContentAnalysis is the sentiment/intent analysis of drafted content.
// Emotion, humor, and intent values come from small fixed enumerations.
type ContentAnalysis struct {
	DominantEmotion             string   `json:"dominant_emotion"`
	HumorType                   string   `json:"humor_type"`
	MemeWorthinessScore         float64  `json:"meme_worthiness_score"`
	MemeAngle                   string   `json:"meme_angle"`
	VisualVibe                  string   `json:"visual_vibe"`
	NarrativeIntent             string   `json:"narrative_intent"`
	SuggestedTemplateCategories []string `json:"suggested_template_categories"`
}

// TextZone is a band of the template reserved for caption text.
type TextZone struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TemplateMetadata describes the chosen template image.
type TemplateMetadata struct {
	Width     int                 `json:"width"`
	Height    int                 `json:"height"`
	TextZones map[string]TextZone `json:"text_zones"`
}

// TemplateSelection is the template stage output.
type TemplateSelection struct {
	TemplateImagePath string           `json:"template_image_path"`
	Category          string           `json:"category"`
	Metadata          TemplateMetadata `json:"template_metadata"`
}

// ImageAnalysis is the vision model's reading of the chosen template.
type ImageAnalysis struct {
	ImageDescription            string            `json:"image_description"`
	VisualElements              []string          `json:"visual_elements"`
	EmotionalContext            string            `json:"emotional_context"`
	MemeFormat                  string            `json:"meme_format"`
	TextPlacementSuitability    map[string]string `json:"text_placement_suitability"`
	SuggestedNarrativeStructure string            `json:"suggested_narrative_structure"`
	CulturalReferences          []string          `json:"cultural_references,omitempty"`
	HumorOpportunities          []string          `json:"humor_opportunities"`
}

// BrandedTemplate records the styled template and which modifications stuck.
type BrandedTemplate struct {
	BrandedTemplateImagePath string            `json:"branded_template_image_path"`
	ModificationsApplied     map[string]bool   `json:"modifications_applied"`
	PreviewMetadata          map[string]string `json:"preview_metadata,omitempty"`
}

// CharacterCounts holds per-line lengths of a candidate.
type CharacterCounts struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// MemeTextOption is one generated caption candidate. RankingScore and
// TextAlignmentScore are zero until the selection stage annotates them; the
// generator's own sub-scores are never altered.
type MemeTextOption struct {
	TopText             string          `json:"top_text"`
	BottomText          string          `json:"bottom_text"`
	ViralityScore       float64         `json:"virality_score"`
	ImageCoherenceScore float64         `json:"image_coherence_score"`
	HumorPattern        string          `json:"humor_pattern_used"`
	CharacterCounts     CharacterCounts `json:"character_counts"`

	RankingScore       float64 `json:"ranking_score,omitempty"`
	TextAlignmentScore float64 `json:"text_alignment_score,omitempty"`
}

// MemeText is the generation stage output: the full candidate batch.
type MemeText struct {
	Options []MemeTextOption `json:"options"`
}

// SelectionMetadata describes how the top candidates were chosen.
type SelectionMetadata struct {
	TotalOptionsConsidered int    `json:"total_options_considered"`
	Weighting              string `json:"weighting"`
	DiversityBonusApplied  bool   `json:"diversity_bonus_applied"`
}

// TextSelection is the ranking stage output: the ordered top candidates.
type TextSelection struct {
	TopOptions []MemeTextOption  `json:"top_3_options"`
	Metadata   SelectionMetadata `json:"selection_metadata"`
}

// FinalMeme is the rendering stage output.
type FinalMeme struct {
	FinalMemeImagePath string            `json:"final_meme_image_path"`
	RenderingMetadata  map[string]string `json:"rendering_metadata"`
}

// AnimatedMeme is the animation stage output.
type AnimatedMeme struct {
	AnimatedMemeVideoPath string            `json:"animated_meme_video_path"`
	AnimationMetadata     map[string]string `json:"animation_metadata"`
}

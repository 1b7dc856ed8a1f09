package stages

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/rektlabs/memeforge/internal/pipeline"
)

// System prompts are stored as text files under prompts/ and embedded at
// compile time.

//go:embed prompts/context-system.txt
var contextSystemPrompt string

//go:embed prompts/trends-system.txt
var trendsSystemPrompt string

//go:embed prompts/curation-system.txt
var curationSystemPrompt string

//go:embed prompts/sentiment-system.txt
var sentimentSystemPrompt string

//go:embed prompts/image-analysis-system.txt
var imageAnalysisSystemPrompt string

//go:embed prompts/textgen-system.txt
var textgenSystemPrompt string

// buildContextPrompt wraps the concatenated business documents for the
// extraction call.
func buildContextPrompt(docsText string, docCount int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract the brand intelligence record from these %d business documents.\n\n", docCount)
	sb.WriteString(docsText)
	return sb.String()
}

// buildTrendsPrompt summarizes the brand for trend detection.
func buildTrendsPrompt(bc *pipeline.BusinessContext) string {
	var sb strings.Builder
	sb.WriteString("## BRAND\n\n")
	fmt.Fprintf(&sb, "Core narrative: %s\n", bc.BrandIdentity.CoreNarrative)
	fmt.Fprintf(&sb, "Pillars: %s\n", strings.Join(bc.BrandIdentity.BrandPillars, "; "))
	fmt.Fprintf(&sb, "Audience: %s\n", bc.AudienceIntelligence.PrimaryAudience)
	fmt.Fprintf(&sb, "Expertise level: %s\n", bc.AudienceIntelligence.ExpertiseLevel)
	fmt.Fprintf(&sb, "Content themes: %s\n", strings.Join(bc.StrategicMessaging.ContentThemes, "; "))
	if len(bc.BrandGuardrails.SensitiveTopics) > 0 {
		fmt.Fprintf(&sb, "Never touch: %s\n", strings.Join(bc.BrandGuardrails.SensitiveTopics, "; "))
	}
	sb.WriteString("\nFind trending topics this brand should engage with.\n")
	return sb.String()
}

// buildCurationPrompt drafts one platform's post request.
func buildCurationPrompt(bc *pipeline.BusinessContext, topic *pipeline.TrendingTopic, platform string, charLimit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## PLATFORM\n\n%s (character limit: %d)\n\n", platform, charLimit)
	sb.WriteString("## TOPIC\n\n")
	fmt.Fprintf(&sb, "%s - %s\n", topic.Topic, topic.Description)
	fmt.Fprintf(&sb, "Why it is trending: %s\n\n", topic.Reason)
	sb.WriteString("## VOICE\n\n")
	fmt.Fprintf(&sb, "Tone: %s\n", strings.Join(bc.CommunicationStyle.ToneDescriptors, ", "))
	fmt.Fprintf(&sb, "Voice: %s\n", bc.CommunicationStyle.VoiceCharacteristics)
	fmt.Fprintf(&sb, "Humor style: %s\n", bc.CommunicationStyle.HumorStyle)
	if len(bc.CommunicationStyle.ExamplePhrases) > 0 {
		fmt.Fprintf(&sb, "Example phrases: %s\n", strings.Join(bc.CommunicationStyle.ExamplePhrases, " | "))
	}
	if len(bc.BrandGuardrails.Donts) > 0 {
		fmt.Fprintf(&sb, "\nDo not: %s\n", strings.Join(bc.BrandGuardrails.Donts, "; "))
	}
	return sb.String()
}

// buildSentimentPrompt combines the drafted posts and topic for analysis.
func buildSentimentPrompt(content *pipeline.PlatformContent, topic *pipeline.TrendingTopic) string {
	var sb strings.Builder
	sb.WriteString("## TOPIC\n\n")
	fmt.Fprintf(&sb, "%s - %s\n\n", topic.Topic, topic.Description)
	sb.WriteString("## DRAFTED CONTENT\n\n")
	posts := []struct {
		platform string
		post     *pipeline.PlatformPost
	}{
		{"twitter", content.Twitter},
		{"instagram", content.Instagram},
		{"linkedin", content.LinkedIn},
	}
	for _, p := range posts {
		if p.post != nil {
			fmt.Fprintf(&sb, "[%s]\n%s\n\n", p.platform, p.post.Text)
		}
	}
	sb.WriteString("Analyze this content for meme potential.\n")
	return sb.String()
}

// buildTextGenPrompt requests the candidate batch, with one humor pattern
// assigned per option and recent angles to avoid.
func buildTextGenPrompt(st *pipeline.State, patterns []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Produce exactly %d caption options.\n\n", len(patterns))

	sb.WriteString("## ASSIGNED HUMOR PATTERNS\n\n")
	for i, p := range patterns {
		fmt.Fprintf(&sb, "Option %d: %s\n", i+1, p)
	}

	ia := st.ImageAnalysis
	sb.WriteString("\n## TEMPLATE IMAGE\n\n")
	fmt.Fprintf(&sb, "Description: %s\n", ia.ImageDescription)
	fmt.Fprintf(&sb, "Format: %s\n", ia.MemeFormat)
	fmt.Fprintf(&sb, "Emotional context: %s\n", ia.EmotionalContext)
	fmt.Fprintf(&sb, "Narrative structure: %s\n", ia.SuggestedNarrativeStructure)
	if len(ia.HumorOpportunities) > 0 {
		fmt.Fprintf(&sb, "Humor opportunities: %s\n", strings.Join(ia.HumorOpportunities, "; "))
	}

	ca := st.ContentAnalysis
	sb.WriteString("\n## CONTENT ANGLE\n\n")
	fmt.Fprintf(&sb, "Meme angle: %s\n", ca.MemeAngle)
	fmt.Fprintf(&sb, "Dominant emotion: %s\n", ca.DominantEmotion)
	fmt.Fprintf(&sb, "Humor type: %s\n", ca.HumorType)

	bc := st.BusinessContext
	sb.WriteString("\n## VOICE\n\n")
	fmt.Fprintf(&sb, "Tone: %s\n", strings.Join(bc.CommunicationStyle.ToneDescriptors, ", "))
	fmt.Fprintf(&sb, "Humor style: %s\n", bc.CommunicationStyle.HumorStyle)

	if angles := recentAngles(st.PreviousMemeAngles, 5); len(angles) > 0 {
		sb.WriteString("\n## PREVIOUSLY USED ANGLES (avoid these)\n\n")
		for _, a := range angles {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
	}
	return sb.String()
}

// recentAngles returns the last n entries, newest last.
func recentAngles(angles []string, n int) []string {
	if len(angles) <= n {
		return angles
	}
	return angles[len(angles)-n:]
}

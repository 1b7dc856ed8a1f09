// Package llm wraps the Gemini API behind a small Generator interface so
// pipeline stages can be tested against a fake.
package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultModel is used when MEMEFORGE_MODEL is unset.
const DefaultModel = "gemini-2.5-flash"

// ModelName resolves the Gemini model from the MEMEFORGE_MODEL environment
// variable, falling back to DefaultModel.
func ModelName() string {
	if env := os.Getenv("MEMEFORGE_MODEL"); env != "" {
		return env
	}
	return DefaultModel
}

// ImageData is an inline image attached to a vision request.
type ImageData struct {
	MIMEType string
	Data     []byte
}

// Request is one model invocation. Op names the calling stage for logging.
// Image is nil for text-only requests.
type Request struct {
	Op     string
	System string
	Prompt string
	Image  *ImageData
}

// Generator produces model output for a request. Implementations must be
// safe for sequential reuse across stages.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Gemini is the production Generator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds a Gemini generator. The API key comes from GEMINI_API_KEY
// or GOOGLE_API_KEY.
func NewGemini(ctx context.Context) (*Gemini, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := ModelName()
	log.Debug().Str("model", model).Msg("Gemini client initialized")
	return &Gemini{client: client, model: model}, nil
}

// Generate sends the request to Gemini and returns the raw response text.
// When an image is attached it is sent inline ahead of the text prompt.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	var parts []*genai.Part
	if req.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MIMEType,
				Data:     req.Image.Data,
			},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})

	log.Debug().
		Str("op", req.Op).
		Str("model", g.model).
		Int("prompt_length", len(req.Prompt)).
		Bool("has_image", req.Image != nil).
		Msg("Starting Gemini API call")

	callStart := time.Now()
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	duration := time.Since(callStart)
	if err != nil {
		log.Error().Err(err).Str("op", req.Op).Dur("duration", duration).Msg("Gemini API call failed")
		return "", fmt.Errorf("failed to generate content for %s: %w", req.Op, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model for %s", req.Op)
	}

	log.Debug().
		Str("op", req.Op).
		Dur("duration", duration).
		Int("response_length", len(text)).
		Msg("Gemini API call complete")

	return text, nil
}

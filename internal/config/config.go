// Package config resolves pipeline configuration from the environment, an
// optional .env file, and a flat "key=value,key=value" override string.
// Validation is eager: a flow never starts with an invalid configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// ValidPlatforms are the social platforms content can be drafted for.
var ValidPlatforms = []string{"twitter", "instagram", "linkedin"}

// Config holds all pipeline settings. Overrides for keys the struct does not
// model are kept in Extra so stages can consult them without schema changes.
type Config struct {
	BusinessDocsPath  string
	BrandIdentityPath string
	TemplatesPath     string
	OutputPath        string
	CacheDir          string

	Platforms      []string
	TwitterPremium bool

	SkipAnimation  bool
	AnimationStyle string

	ForceRefreshContext bool
	ForceRefreshTrends  bool

	Extra map[string]any
}

// Load builds a Config from environment variables, loading a .env file first
// if one is present in the working directory.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env file")
	}

	return &Config{
		BusinessDocsPath:  envOr("BUSINESS_DOCS_PATH", "./business_documents"),
		BrandIdentityPath: envOr("BRAND_IDENTITY_PATH", "./brand_identity"),
		TemplatesPath:     envOr("MEME_TEMPLATES_PATH", "./meme_templates"),
		OutputPath:        envOr("OUTPUT_PATH", "./output"),
		CacheDir:          envOr("MEMEFORGE_CACHE_DIR", ".cache"),
		Platforms:         splitList(envOr("PLATFORMS", "twitter,instagram,linkedin")),
		TwitterPremium:    isTruthy(os.Getenv("TWITTER_PREMIUM")),
		SkipAnimation:     isTruthy(os.Getenv("SKIP_ANIMATION")),
		AnimationStyle:    envOr("ANIMATION_STYLE", "auto"),
		Extra:             make(map[string]any),
	}
}

// ApplyOverrides merges a flat override string into the config.
// Format: "key1=value1,key2=value2". Known keys are coerced to their typed
// fields; unknown keys are parsed to bool/int/float/string and kept in Extra.
func (c *Config) ApplyOverrides(overrides string) {
	if overrides == "" {
		return
	}
	if c.Extra == nil {
		c.Extra = make(map[string]any)
	}

	for _, pair := range strings.Split(overrides, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "business_documents_path":
			c.BusinessDocsPath = value
		case "brand_identity_path":
			c.BrandIdentityPath = value
		case "meme_templates_path":
			c.TemplatesPath = value
		case "output_path":
			c.OutputPath = value
		case "cache_dir":
			c.CacheDir = value
		case "platforms":
			c.Platforms = splitList(value)
		case "animation_style":
			c.AnimationStyle = value
		case "twitter_premium":
			c.TwitterPremium = isTruthy(value)
		case "skip_animation":
			c.SkipAnimation = isTruthy(value)
		case "force_refresh_context":
			c.ForceRefreshContext = isTruthy(value)
		case "force_refresh_trends":
			c.ForceRefreshTrends = isTruthy(value)
		default:
			c.Extra[key] = parseScalar(value)
		}
	}
}

// Validate checks the configuration eagerly and returns every problem found,
// as human-readable messages. An empty slice means the config is usable.
func (c *Config) Validate() []string {
	var errs []string

	required := []struct {
		path, what string
	}{
		{c.BusinessDocsPath, "business documents directory"},
		{c.BrandIdentityPath, "brand identity directory"},
		{c.TemplatesPath, "meme templates directory"},
	}
	for _, r := range required {
		if r.path == "" {
			errs = append(errs, fmt.Sprintf("%s path not configured", r.what))
			continue
		}
		if info, err := os.Stat(r.path); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Sprintf("%s does not exist: %s", r.what, r.path))
		}
	}

	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		errs = append(errs, "no model API key found (GEMINI_API_KEY or GOOGLE_API_KEY required)")
	}

	for _, p := range c.Platforms {
		if !isValidPlatform(p) {
			errs = append(errs, fmt.Sprintf("invalid platform: %s (must be one of %s)", p, strings.Join(ValidPlatforms, ", ")))
		}
	}
	if len(c.Platforms) == 0 {
		errs = append(errs, "no platforms configured")
	}

	return errs
}

func isValidPlatform(p string) bool {
	for _, v := range ValidPlatforms {
		if p == v {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// isTruthy recognizes true/yes/1 case-insensitively, per the override format.
func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// parseScalar coerces an override value: bool, then int, then float,
// falling back to the raw string.
func parseScalar(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

package stages

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/pipeline"
)

// Text zone geometry as fractions of the template dimensions: centered bands
// 90% wide and 15% tall, anchored at 10% (top) and 85% (bottom) heights.
const (
	zoneWidthFrac   = 0.90
	zoneHeightFrac  = 0.15
	topZoneYFrac    = 0.10
	bottomZoneYFrac = 0.85
)

var templateImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// TemplateSelection picks a meme template image. The templates directory
// holds one subdirectory per category. The first suggested category that
// actually has templates wins, honoring the analysis stage's priority order;
// when none match, a uniform-random category and template are drawn from the
// injected rand.
func TemplateSelection(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageTemplateSelection, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.ContentAnalysis == nil {
			return pipeline.MissingField(StageTemplateSelection, "content_analysis", StageSentimentAnalysis)
		}

		categories, err := listCategories(st.Config.TemplatesPath)
		if err != nil {
			return err
		}
		if len(categories) == 0 {
			return fmt.Errorf("no template categories found under %s", st.Config.TemplatesPath)
		}

		category, templates := matchCategory(categories, st.ContentAnalysis.SuggestedTemplateCategories)
		if category == "" {
			names := sortedKeys(categories)
			category = names[d.Rand.Intn(len(names))]
			templates = categories[category]
			log.Info().Str("category", category).Msg("No suggested category available; falling back to random")
		}

		templatePath := templates[d.Rand.Intn(len(templates))]
		width, height, err := imageDimensions(templatePath)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", templatePath, err)
		}

		log.Info().
			Str("category", category).
			Str("template", filepath.Base(templatePath)).
			Int("width", width).
			Int("height", height).
			Msg("Template selected")

		st.TemplateSelection = &pipeline.TemplateSelection{
			TemplateImagePath: templatePath,
			Category:          category,
			Metadata: pipeline.TemplateMetadata{
				Width:     width,
				Height:    height,
				TextZones: textZones(width, height),
			},
		}
		return nil
	}}
}

// listCategories maps each category subdirectory to its template image paths,
// in sorted order. Categories with no images are omitted.
func listCategories(root string) (map[string][]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	categories := make(map[string][]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			log.Warn().Err(err).Str("category", entry.Name()).Msg("Skipping unreadable category")
			continue
		}
		var templates []string
		for _, f := range files {
			if !f.IsDir() && templateImageExts[strings.ToLower(filepath.Ext(f.Name()))] {
				templates = append(templates, filepath.Join(dir, f.Name()))
			}
		}
		if len(templates) > 0 {
			sort.Strings(templates)
			categories[entry.Name()] = templates
		}
	}
	return categories, nil
}

// matchCategory returns the first suggested category with templates, or ""
// when none match.
func matchCategory(categories map[string][]string, suggested []string) (string, []string) {
	for _, want := range suggested {
		name := strings.ToLower(strings.TrimSpace(want))
		if templates, ok := categories[name]; ok {
			return name, templates
		}
	}
	return "", nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// textZones computes the centered top and bottom caption bands.
func textZones(width, height int) map[string]pipeline.TextZone {
	zoneW := int(float64(width) * zoneWidthFrac)
	zoneH := int(float64(height) * zoneHeightFrac)
	x := (width - zoneW) / 2

	return map[string]pipeline.TextZone{
		"top": {
			X:      x,
			Y:      int(float64(height) * topZoneYFrac),
			Width:  zoneW,
			Height: zoneH,
		},
		"bottom": {
			X:      x,
			Y:      int(float64(height) * bottomZoneYFrac),
			Width:  zoneW,
			Height: zoneH,
		},
	}
}

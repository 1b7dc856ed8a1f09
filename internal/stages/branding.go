package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/rektlabs/memeforge/internal/imaging"
	"github.com/rektlabs/memeforge/internal/pipeline"
)

// Brand styling parameters. The color shift stays subtle so the template
// remains recognizable.
const (
	brandColorShift    = 0.12
	brandLogoWidthFrac = 0.08
	brandLogoOpacity   = 0.70
	brandLogoMargin    = 12
	brandBorderPx      = 4
)

// brandConfig is the brand_identity/brand_config.json schema.
type brandConfig struct {
	BrandName      string `json:"brand_name,omitempty"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	LogoPath       string `json:"logo_path,omitempty"`
}

// BrandBlending applies brand styling to the selected template: a subtle
// color shift toward the primary color, a thin border, and a translucent
// logo watermark in the bottom-right corner. The styled image lands under
// the run's memes directory; each modification that could not apply is
// recorded as false rather than failing the stage.
func BrandBlending(d Deps) pipeline.Stage {
	return pipeline.Stage{Name: StageBrandBlending, Run: func(ctx context.Context, st *pipeline.State) error {
		if st.TemplateSelection == nil {
			return pipeline.MissingField(StageBrandBlending, "template_selection", StageTemplateSelection)
		}
		cfg := st.Config

		bc, err := loadBrandConfig(cfg.BrandIdentityPath)
		if err != nil {
			return err
		}

		img, err := imaging.Open(st.TemplateSelection.TemplateImagePath)
		if err != nil {
			return fmt.Errorf("failed to open template image: %w", err)
		}
		canvas := imaging.ToRGBA(img)

		applied := map[string]bool{
			"color_shift":    false,
			"border":         false,
			"logo_watermark": false,
		}

		primary, err := imaging.ParseHexColor(bc.PrimaryColor)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping color styling: bad primary color")
		} else {
			imaging.ShiftToward(canvas, primary, brandColorShift)
			applied["color_shift"] = true
			imaging.DrawBorder(canvas, primary, brandBorderPx)
			applied["border"] = true
		}

		if bc.LogoPath != "" {
			logoPath := bc.LogoPath
			if !filepath.IsAbs(logoPath) {
				logoPath = filepath.Join(cfg.BrandIdentityPath, logoPath)
			}
			logo, err := imaging.Open(logoPath)
			if err != nil {
				log.Warn().Err(err).Str("logo", logoPath).Msg("Skipping logo watermark")
			} else {
				imaging.OverlayLogo(canvas, logo, brandLogoWidthFrac, brandLogoOpacity, brandLogoMargin)
				applied["logo_watermark"] = true
			}
		}

		outPath := filepath.Join(d.Dirs.Memes, "branded_template.png")
		if err := imaging.SavePNG(outPath, canvas); err != nil {
			return err
		}

		log.Info().
			Str("path", outPath).
			Bool("color_shift", applied["color_shift"]).
			Bool("logo", applied["logo_watermark"]).
			Msg("Brand styling applied")

		st.BrandedTemplate = &pipeline.BrandedTemplate{
			BrandedTemplateImagePath: outPath,
			ModificationsApplied:     applied,
			PreviewMetadata: map[string]string{
				"brand_name":    bc.BrandName,
				"primary_color": bc.PrimaryColor,
			},
		}
		return nil
	}}
}

func loadBrandConfig(brandDir string) (*brandConfig, error) {
	path := filepath.Join(brandDir, "brand_config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read brand config %s: %w", path, err)
	}
	var bc brandConfig
	if err := json.Unmarshal(data, &bc); err != nil {
		return nil, fmt.Errorf("failed to parse brand config: %w", err)
	}
	return &bc, nil
}

package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Caption drawing limits. Sizes are in points at 72 DPI, so one point is one
// pixel.
const (
	maxCaptionSize = 72.0
	minCaptionSize = 14.0
	outlineOffset  = 2
)

var captionFont = mustParseFont(gobold.TTF)

func mustParseFont(ttf []byte) *opentype.Font {
	f, err := opentype.Parse(ttf)
	if err != nil {
		panic(fmt.Sprintf("imaging: bad embedded font: %v", err))
	}
	return f
}

// Zone is a pixel-space rectangle a caption must fit inside.
type Zone struct {
	X, Y, Width, Height int
}

// DrawCaption renders text centered inside zone in classic meme style: bold
// white uppercase with a black outline. The font size starts at
// maxCaptionSize and shrinks until the text fits the zone width, wrapping to
// multiple lines when the zone is tall enough. Empty text is a no-op.
func DrawCaption(dst *image.RGBA, zone Zone, text string) error {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	for size := maxCaptionSize; size >= minCaptionSize; size -= 2 {
		face, err := opentype.NewFace(captionFont, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return fmt.Errorf("failed to build font face: %w", err)
		}

		lines, ok := layoutLines(face, text, zone)
		if !ok {
			face.Close()
			continue
		}

		drawLines(dst, face, lines, zone)
		face.Close()
		return nil
	}

	// Even the minimum size does not fit; draw it anyway so the meme is
	// never silently missing its caption.
	face, err := opentype.NewFace(captionFont, &opentype.FaceOptions{
		Size:    minCaptionSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to build font face: %w", err)
	}
	defer face.Close()

	lines, _ := layoutLines(face, text, zone)
	if len(lines) == 0 {
		lines = []string{text}
	}
	drawLines(dst, face, lines, zone)
	return nil
}

// layoutLines greedily wraps text into lines that fit the zone width, and
// reports whether the wrapped block also fits the zone height.
func layoutLines(face font.Face, text string, zone Zone) ([]string, bool) {
	maxWidth := fixed.I(zone.Width)
	words := strings.Fields(text)

	var lines []string
	var current string
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if font.MeasureString(face, candidate) <= maxWidth {
			current = candidate
			continue
		}
		if current == "" {
			// Single word wider than the zone at this size.
			return nil, false
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return nil, false
	}

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	if len(lines)*lineHeight > zone.Height {
		return lines, false
	}
	return lines, true
}

// drawLines renders the wrapped block centered in the zone, each glyph drawn
// first as a black outline at the eight surrounding offsets, then in white.
func drawLines(dst *image.RGBA, face font.Face, lines []string, zone Zone) {
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	blockHeight := len(lines) * lineHeight

	top := zone.Y + (zone.Height-blockHeight)/2
	if top < zone.Y {
		top = zone.Y
	}

	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		x := zone.X + (zone.Width-width)/2
		y := top + i*lineHeight + metrics.Ascent.Ceil()

		for dx := -outlineOffset; dx <= outlineOffset; dx++ {
			for dy := -outlineOffset; dy <= outlineOffset; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				drawString(dst, face, line, x+dx, y+dy, color.Black)
			}
		}
		drawString(dst, face, line, x, y, color.White)
	}
}

func drawString(dst *image.RGBA, face font.Face, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// Package imaging handles loading, styling and saving meme images: codecs,
// resizing, brand color blending, logo watermarking and borders. Text drawing
// lives in text.go.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// Open decodes a PNG or JPEG image from disk.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// SavePNG writes img to path as PNG, creating parent directories as needed.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}

	log.Debug().Str("path", path).Msg("Image saved")
	return nil
}

// ToRGBA returns img as *image.RGBA, copying only when necessary.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// Resize scales img to width x height using Catmull-Rom interpolation.
func Resize(img image.Image, width, height int) *image.RGBA {
	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)
	return resized
}

// FitWithin returns dimensions scaled to fit inside maxDimension while
// preserving aspect ratio. Images already small enough are unchanged.
func FitWithin(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, int(float64(height) * float64(maxDimension) / float64(width))
	}
	return int(float64(width) * float64(maxDimension) / float64(height)), maxDimension
}

// ParseHexColor parses "#RRGGBB" or "RRGGBB" into an opaque color.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}, nil
}

// ShiftToward blends every pixel a fraction of the way toward target.
// amount is in [0,1]; brand styling uses a subtle 0.10-0.15.
func ShiftToward(img *image.RGBA, target color.RGBA, amount float64) {
	if amount <= 0 {
		return
	}
	if amount > 1 {
		amount = 1
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = blendChannel(img.Pix[i+0], target.R, amount)
			img.Pix[i+1] = blendChannel(img.Pix[i+1], target.G, amount)
			img.Pix[i+2] = blendChannel(img.Pix[i+2], target.B, amount)
		}
	}
}

func blendChannel(from, to uint8, amount float64) uint8 {
	v := float64(from) + (float64(to)-float64(from))*amount
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// DrawBorder draws a solid inset border of the given thickness in pixels.
func DrawBorder(img *image.RGBA, c color.RGBA, thickness int) {
	bounds := img.Bounds()
	if thickness <= 0 || bounds.Dx() < 2*thickness || bounds.Dy() < 2*thickness {
		return
	}
	edges := []image.Rectangle{
		image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+thickness),
		image.Rect(bounds.Min.X, bounds.Max.Y-thickness, bounds.Max.X, bounds.Max.Y),
		image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+thickness, bounds.Max.Y),
		image.Rect(bounds.Max.X-thickness, bounds.Min.Y, bounds.Max.X, bounds.Max.Y),
	}
	for _, edge := range edges {
		draw.Draw(img, edge, image.NewUniform(c), image.Point{}, draw.Src)
	}
}

// OverlayLogo composites the logo into the bottom-right corner of dst. The
// logo is scaled to widthFrac of the destination width and drawn with the
// given opacity.
func OverlayLogo(dst *image.RGBA, logo image.Image, widthFrac, opacity float64, margin int) {
	dstBounds := dst.Bounds()
	logoBounds := logo.Bounds()
	if logoBounds.Dx() == 0 || logoBounds.Dy() == 0 {
		return
	}

	targetW := int(float64(dstBounds.Dx()) * widthFrac)
	if targetW < 1 {
		targetW = 1
	}
	targetH := int(float64(logoBounds.Dy()) * float64(targetW) / float64(logoBounds.Dx()))
	if targetH < 1 {
		targetH = 1
	}
	scaled := Resize(logo, targetW, targetH)

	alpha := uint8(opacity * 255)
	mask := image.NewUniform(color.Alpha{A: alpha})

	pos := image.Rect(
		dstBounds.Max.X-targetW-margin,
		dstBounds.Max.Y-targetH-margin,
		dstBounds.Max.X-margin,
		dstBounds.Max.Y-margin,
	)
	draw.DrawMask(dst, pos, scaled, image.Point{}, mask, image.Point{}, draw.Over)
}

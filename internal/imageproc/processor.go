// Package imageproc implements the canonical display-asset transform for
// uploaded listing photos: decode with orientation correction, flatten
// transparency onto white, bounded proportional resize, portrait letterboxing
// to a target landscape aspect, and a text watermark anchored inside the photo
// area.
//
// Process is pure: the same input bytes and configuration always produce the
// same output image. Encoding to the stored JPEG is a separate step.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

// JPEGQuality is the encode quality for stored display assets.
const JPEGQuality = 85

// DefaultBound is the default limit for the longer image side, in pixels.
const DefaultBound = 1600

// DefaultAspect is the default target landscape aspect (16:9) used when
// letterboxing portrait images.
const DefaultAspect = 16.0 / 9.0

// DefaultPadColor is the letterbox fill, matching the site's light background.
var DefaultPadColor = color.NRGBA{R: 249, G: 247, B: 255, A: 255}

// =============================================================================
// Configuration
// =============================================================================

// Config controls the transform. Zero values fall back to the defaults above.
type Config struct {
	// Bound is the maximum length of the longer side after resize.
	Bound int

	// Aspect is the target landscape W/H ratio for letterboxing portraits.
	Aspect float64

	// PadColor fills the letterbox side panels.
	PadColor color.NRGBA

	// WatermarkText is overlaid near the top-left of the photo area.
	// Empty disables watermarking.
	WatermarkText string

	// FontPath optionally points at a TTF on disk. When empty, the embedded
	// Go Bold face is used.
	FontPath string
}

// Result is a fully processed image plus its final geometry.
type Result struct {
	Image image.Image

	// Width and Height are the final pixel dimensions.
	Width  int
	Height int

	// ContentLeft is the horizontal offset where real photo content begins
	// (non-zero only when letterbox padding was added).
	ContentLeft int
}

// =============================================================================
// Processor
// =============================================================================

// Processor applies the configured transform to raw uploaded bytes.
type Processor struct {
	bound    int
	aspect   float64
	padColor color.NRGBA
	text     string
	font     *truetype.Font
}

// New creates a Processor, loading the watermark font once up front.
func New(cfg Config) (*Processor, error) {
	if cfg.Bound <= 0 {
		cfg.Bound = DefaultBound
	}
	if cfg.Aspect <= 0 {
		cfg.Aspect = DefaultAspect
	}
	if cfg.PadColor.A == 0 {
		cfg.PadColor = DefaultPadColor
	}

	ttf := gobold.TTF
	if cfg.FontPath != "" {
		data, err := os.ReadFile(cfg.FontPath)
		if err != nil {
			return nil, fmt.Errorf("read watermark font: %w", err)
		}
		ttf = data
	}
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse watermark font: %w", err)
	}

	return &Processor{
		bound:    cfg.Bound,
		aspect:   cfg.Aspect,
		padColor: cfg.PadColor,
		text:     cfg.WatermarkText,
		font:     f,
	}, nil
}

// Process runs the full pipeline: decode+orient, flatten, resize, letterbox,
// watermark. A decode failure means the bytes are not a usable image.
func (p *Processor) Process(raw []byte) (*Result, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	flat := flattenToOpaque(img)
	resized := p.resizeLongest(flat)
	padded, left := p.letterbox(resized)

	var final image.Image = padded
	if p.text != "" {
		final = p.watermark(padded, left)
	}

	b := final.Bounds()
	return &Result{
		Image:       final,
		Width:       b.Dx(),
		Height:      b.Dy(),
		ContentLeft: left,
	}, nil
}

// EncodeJPEG writes the processed image as a size-optimized JPEG.
func (p *Processor) EncodeJPEG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
}

// =============================================================================
// Pipeline steps
// =============================================================================

// flattenToOpaque composites the image onto an opaque white background so
// transparency never leaks into the JPEG output.
func flattenToOpaque(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	white := image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	draw.Draw(out, out.Bounds(), white, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// resizeLongest scales the image down proportionally so the longer side
// equals the bound. Images already within the bound are returned unchanged;
// upscaling never happens.
func (p *Processor) resizeLongest(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= p.bound && h <= p.bound {
		return img
	}
	return imaging.Fit(img, p.bound, p.bound, imaging.Lanczos)
}

// letterbox pads portrait images left and right with the configured fill so
// they reach the target landscape aspect, centering the content horizontally.
// Square and landscape images (height <= width) are never padded. Returns the
// padded image and the horizontal offset where the photo content begins.
func (p *Processor) letterbox(img *image.NRGBA) (*image.NRGBA, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if h <= w {
		return img, 0
	}

	targetW := int(math.Ceil(float64(h) * p.aspect))
	if targetW <= w {
		return img, 0
	}

	canvas := imaging.New(targetW, h, p.padColor)
	x := (targetW - w) / 2
	return imaging.Paste(canvas, img, image.Pt(x, 0)), x
}

// watermark overlays the configured text near the top-left of the photo area,
// offset past the letterbox padding. A soft shadow is drawn first so the text
// stays legible on any background, then the semi-opaque text on top.
func (p *Processor) watermark(img *image.NRGBA, contentLeft int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	short := w
	if h < short {
		short = h
	}

	// Font size scales with the shorter side, with a legibility floor.
	size := short / 16
	if size < 14 {
		size = 14
	}
	pad := short / 80
	if pad < 12 {
		pad = 12
	}

	face := truetype.NewFace(p.font, &truetype.Options{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(face)

	x := float64(pad)
	if fx := float64(contentLeft + pad); fx > x {
		x = fx
	}
	y := float64(pad) + dc.FontHeight()

	dc.SetRGBA255(0, 0, 0, 120)
	dc.DrawString(p.text, x+1, y+1)
	dc.SetRGBA255(255, 255, 255, 185)
	dc.DrawString(p.text, x, y)

	// The base image is opaque, so compositing the overlay leaves the result
	// opaque as well.
	return dc.Image()
}

// =============================================================================
// Configuration parsing
// =============================================================================

// ParseAspect parses a "W:H" string into a landscape ratio. Malformed input
// falls back to 16:9; ratios below 1.0 are clamped to 1.0 so the target is
// never itself portrait.
func ParseAspect(s string) float64 {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return DefaultAspect
	}
	num, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	den, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || num <= 0 || den <= 0 {
		return DefaultAspect
	}
	ratio := num / den
	if ratio < 1.0 {
		return 1.0
	}
	return ratio
}

// ParseHexColor parses "#rrggbb" (or "rrggbb") into an opaque color.
// Malformed input returns the fallback.
func ParseHexColor(s string, fallback color.NRGBA) color.NRGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}
}

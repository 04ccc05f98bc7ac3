package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeJPEGBytes renders a solid image of the given size as JPEG bytes.
func encodeJPEGBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := imaging.New(w, h, c)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

// encodePNGBytes renders an NRGBA image as PNG bytes, preserving alpha.
func encodePNGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestProcessor(t *testing.T, cfg Config) *Processor {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestProcess_ResizesLargeLandscape(t *testing.T) {
	p := newTestProcessor(t, Config{})

	raw := encodeJPEGBytes(t, 3000, 2000, color.NRGBA{R: 120, G: 120, B: 120, A: 255})
	res, err := p.Process(raw)
	require.NoError(t, err)

	assert.Equal(t, 1600, res.Width)
	assert.Equal(t, 1066, res.Height)
	assert.Equal(t, 0, res.ContentLeft)
}

func TestProcess_NeverUpscales(t *testing.T) {
	p := newTestProcessor(t, Config{})

	raw := encodeJPEGBytes(t, 400, 300, color.NRGBA{R: 50, G: 80, B: 110, A: 255})
	res, err := p.Process(raw)
	require.NoError(t, err)

	assert.Equal(t, 400, res.Width)
	assert.Equal(t, 300, res.Height)
}

func TestProcess_LetterboxesPortrait(t *testing.T) {
	p := newTestProcessor(t, Config{})

	// 900x1350 fits within the bound, so only the letterbox step applies.
	// Target width = ceil(1350 * 16/9) = 2400, content centered at x=750.
	raw := encodeJPEGBytes(t, 900, 1350, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	res, err := p.Process(raw)
	require.NoError(t, err)

	assert.Equal(t, 2400, res.Width)
	assert.Equal(t, 1350, res.Height)
	assert.Equal(t, 750, res.ContentLeft)
}

func TestProcess_ResizesThenLetterboxesTallPortrait(t *testing.T) {
	p := newTestProcessor(t, Config{})

	// 1200x2400 resizes to 800x1600 first, then pads to ceil(1600*16/9)=2845.
	raw := encodeJPEGBytes(t, 1200, 2400, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	res, err := p.Process(raw)
	require.NoError(t, err)

	assert.Equal(t, 2845, res.Width)
	assert.Equal(t, 1600, res.Height)
	assert.Equal(t, (2845-800)/2, res.ContentLeft)
}

func TestProcess_SquareIsNeverPadded(t *testing.T) {
	p := newTestProcessor(t, Config{})

	raw := encodeJPEGBytes(t, 800, 800, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	res, err := p.Process(raw)
	require.NoError(t, err)

	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 800, res.Height)
	assert.Equal(t, 0, res.ContentLeft)
}

func TestProcess_PadColorFillsLetterbox(t *testing.T) {
	blue := color.NRGBA{R: 0, G: 0, B: 255, A: 255}
	p := newTestProcessor(t, Config{PadColor: blue})

	raw := encodeJPEGBytes(t, 600, 1200, color.NRGBA{R: 30, G: 30, B: 30, A: 255})
	res, err := p.Process(raw)
	require.NoError(t, err)
	require.Greater(t, res.ContentLeft, 0)

	// Bottom-left corner is pure padding, clear of the watermark area.
	got := color.NRGBAModel.Convert(res.Image.At(0, res.Height-1)).(color.NRGBA)
	assert.Equal(t, blue, got)
}

func TestProcess_FlattensTransparencyToWhite(t *testing.T) {
	p := newTestProcessor(t, Config{})

	src := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	// Fully transparent input must come out opaque white.
	res, err := p.Process(encodePNGBytes(t, src))
	require.NoError(t, err)

	got := color.NRGBAModel.Convert(res.Image.At(150, 80)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, got)
}

func TestProcess_WatermarkChangesPixels(t *testing.T) {
	plain := newTestProcessor(t, Config{})
	marked := newTestProcessor(t, Config{WatermarkText: "Student Palace"})

	raw := encodeJPEGBytes(t, 800, 600, color.NRGBA{R: 90, G: 90, B: 90, A: 255})

	base, err := plain.Process(raw)
	require.NoError(t, err)
	overlaid, err := marked.Process(raw)
	require.NoError(t, err)

	diff := false
	for y := 0; y < 80 && !diff; y++ {
		for x := 0; x < 400; x++ {
			b := color.NRGBAModel.Convert(base.Image.At(x, y))
			o := color.NRGBAModel.Convert(overlaid.Image.At(x, y))
			if b != o {
				diff = true
				break
			}
		}
	}
	assert.True(t, diff, "watermark should alter pixels near the top-left")
}

func TestProcess_WatermarkedPortraitGeometry(t *testing.T) {
	pad := color.NRGBA{R: 0xf9, G: 0xf7, B: 0xff, A: 255}
	p := newTestProcessor(t, Config{WatermarkText: "Student Palace", PadColor: pad})

	// 1200x1800 resizes to 1066x1600, then pads to ceil(1600*16/9)=2845 with
	// the content centered at x=889. The watermark sits inside the photo
	// area, so the padding stays untouched.
	raw := encodeJPEGBytes(t, 1200, 1800, color.NRGBA{R: 40, G: 40, B: 40, A: 255})
	res, err := p.Process(raw)
	require.NoError(t, err)

	assert.Equal(t, 2845, res.Width)
	assert.Equal(t, 1600, res.Height)
	assert.Equal(t, 889, res.ContentLeft)

	corners := []image.Point{
		{0, 0}, {0, res.Height - 1},
		{res.Width - 1, 0}, {res.Width - 1, res.Height - 1},
	}
	for _, pt := range corners {
		got := color.NRGBAModel.Convert(res.Image.At(pt.X, pt.Y)).(color.NRGBA)
		assert.Equal(t, pad, got, "padding at %v", pt)
	}

	center := color.NRGBAModel.Convert(res.Image.At(res.Width/2, res.Height/2)).(color.NRGBA)
	assert.NotEqual(t, pad, center, "photo content should not be pad color")
}

func TestProcess_RejectsInvalidBytes(t *testing.T) {
	p := newTestProcessor(t, Config{})

	_, err := p.Process([]byte("this is not an image"))
	assert.Error(t, err)
}

func TestEncodeJPEG_ProducesDecodableOutput(t *testing.T) {
	p := newTestProcessor(t, Config{})

	raw := encodeJPEGBytes(t, 300, 200, color.NRGBA{R: 10, G: 200, B: 40, A: 255})
	res, err := p.Process(raw)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.EncodeJPEG(&buf, res.Image))

	decoded, err := imaging.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 300, decoded.Bounds().Dx())
	assert.Equal(t, 200, decoded.Bounds().Dy())
}

func TestParseAspect(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"sixteen nine", "16:9", 16.0 / 9.0},
		{"four three", "4:3", 4.0 / 3.0},
		{"whitespace", " 16 : 9 ", 16.0 / 9.0},
		{"portrait ratio clamped", "9:16", 1.0},
		{"missing separator", "169", DefaultAspect},
		{"garbage", "a:b", DefaultAspect},
		{"zero denominator", "16:0", DefaultAspect},
		{"empty", "", DefaultAspect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseAspect(tt.in), 1e-9)
		})
	}
}

func TestParseHexColor(t *testing.T) {
	fallback := color.NRGBA{R: 1, G: 2, B: 3, A: 255}

	tests := []struct {
		name string
		in   string
		want color.NRGBA
	}{
		{"with hash", "#f9f7ff", color.NRGBA{R: 0xf9, G: 0xf7, B: 0xff, A: 255}},
		{"without hash", "ff0000", color.NRGBA{R: 255, A: 255}},
		{"too short", "#fff", fallback},
		{"not hex", "#zzzzzz", fallback},
		{"empty", "", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHexColor(tt.in, fallback))
		})
	}
}

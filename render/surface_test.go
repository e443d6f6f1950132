package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbanner/core"
	"xbanner/scene"
)

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	catalog, err := NewCatalog("")
	require.NoError(t, err)
	return NewSurface(catalog, NewResolver())
}

func decodePNG(t *testing.T, data []byte) *pngImage {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return &pngImage{img}
}

type pngImage struct{ img interface{ At(x, y int) color.Color } }

func (p *pngImage) rgba(x, y int) (r, g, b uint8) {
	r32, g32, b32, _ := p.img.At(x, y).RGBA()
	return uint8(r32 >> 8), uint8(g32 >> 8), uint8(b32 >> 8)
}

func TestRasterizeSolidBackground(t *testing.T) {
	s := newTestSurface(t)

	data, err := s.Rasterize(context.Background(), core.Solid{Color: "#ff0000"}, nil,
		scene.RasterOptions{Width: 40, Height: 20, Scale: 1, Format: "png"})
	require.NoError(t, err)

	img := decodePNG(t, data)
	r, g, b := img.rgba(5, 5)
	assert.Equal(t, uint8(0xff), r)
	assert.Equal(t, uint8(0x00), g)
	assert.Equal(t, uint8(0x00), b)
}

func TestRasterizeGradientBackground(t *testing.T) {
	s := newTestSurface(t)
	fill := core.Linear{
		Angle: 90, // left to right
		Stops: []core.Stop{
			{Color: "#000000", Position: 0},
			{Color: "#ffffff", Position: 100},
		},
	}

	data, err := s.Rasterize(context.Background(), fill, nil,
		scene.RasterOptions{Width: 100, Height: 50, Scale: 1, Format: "png"})
	require.NoError(t, err)

	img := decodePNG(t, data)
	leftR, _, _ := img.rgba(2, 25)
	rightR, _, _ := img.rgba(97, 25)
	assert.Less(t, leftR, uint8(40))
	assert.Greater(t, rightR, uint8(215))
}

func TestRasterizeDegenerateGradientPaintsWhite(t *testing.T) {
	s := newTestSurface(t)

	data, err := s.Rasterize(context.Background(), core.Linear{Angle: 45}, nil,
		scene.RasterOptions{Width: 10, Height: 10, Scale: 1, Format: "png"})
	require.NoError(t, err)

	img := decodePNG(t, data)
	r, g, b := img.rgba(5, 5)
	assert.Equal(t, uint8(0xff), r)
	assert.Equal(t, uint8(0xff), g)
	assert.Equal(t, uint8(0xff), b)
}

func TestRasterizeTextDarkensPixels(t *testing.T) {
	s := newTestSurface(t)
	text := &core.TextObject{
		ID:         "t",
		Text:       "XXXX",
		FontFamily: "go",
		FontSize:   30,
		FontWeight: "700",
		Fill:       "#000000",
		TextAlign:  "left",
		Left:       5,
		Top:        5,
		MaxWidth:   190,
	}

	data, err := s.Rasterize(context.Background(), core.Solid{Color: "#ffffff"},
		[]core.SceneObject{text},
		scene.RasterOptions{Width: 200, Height: 100, Scale: 1, Format: "png"})
	require.NoError(t, err)

	// Some pixel in the text area must be noticeably darker than the
	// background.
	img := decodePNG(t, data)
	darkest := uint8(0xff)
	for y := 0; y < 60; y++ {
		for x := 0; x < 120; x++ {
			if r, _, _ := img.rgba(x, y); r < darkest {
				darkest = r
			}
		}
	}
	assert.Less(t, darkest, uint8(128))
}

// solidPNG encodes a single-color image of the given size.
func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRasterizeDrawsImage(t *testing.T) {
	s := newTestSurface(t)

	// A solid blue source image placed at the origin.
	source := "data:image/png;base64," + base64.StdEncoding.EncodeToString(solidPNG(t, 10, 10, color.RGBA{B: 0xff, A: 0xff}))
	img := &core.ImageObject{
		ID: "i", Source: source,
		Left: 0, Top: 0, ScaleX: 1, ScaleY: 1, Width: 10, Height: 10,
	}

	out, err := s.Rasterize(context.Background(), core.Solid{Color: "#ffffff"},
		[]core.SceneObject{img},
		scene.RasterOptions{Width: 20, Height: 20, Scale: 1, Format: "png"})
	require.NoError(t, err)

	decoded := decodePNG(t, out)
	r, g, b := decoded.rgba(5, 5)
	assert.Equal(t, uint8(0x00), r)
	assert.Equal(t, uint8(0x00), g)
	assert.Equal(t, uint8(0xff), b)

	// Outside the image the background shows through.
	r, _, _ = decoded.rgba(15, 15)
	assert.Equal(t, uint8(0xff), r)
}

func TestRasterizeSkipsBrokenImage(t *testing.T) {
	s := newTestSurface(t)
	img := &core.ImageObject{ID: "i", Source: "/does/not/exist.png", ScaleX: 1, ScaleY: 1, Width: 10, Height: 10}

	out, err := s.Rasterize(context.Background(), core.Solid{Color: "#00ff00"},
		[]core.SceneObject{img},
		scene.RasterOptions{Width: 10, Height: 10, Scale: 1, Format: "png"})
	require.NoError(t, err)

	decoded := decodePNG(t, out)
	_, g, _ := decoded.rgba(5, 5)
	assert.Equal(t, uint8(0xff), g)
}

func TestRasterizeJPEG(t *testing.T) {
	s := newTestSurface(t)

	out, err := s.Rasterize(context.Background(), core.Solid{Color: "#ffffff"}, nil,
		scene.RasterOptions{Width: 10, Height: 10, Scale: 1, Format: "jpeg", Quality: 0.95})
	require.NoError(t, err)
	require.True(t, len(out) > 2)
	assert.Equal(t, []byte{0xff, 0xd8}, out[:2])
}

func TestRasterizeRejectsBadInput(t *testing.T) {
	s := newTestSurface(t)

	_, err := s.Rasterize(context.Background(), core.Solid{Color: "#ffffff"}, nil,
		scene.RasterOptions{Width: 0, Height: 10, Format: "png"})
	assert.Error(t, err)

	_, err = s.Rasterize(context.Background(), core.Solid{Color: "#ffffff"}, nil,
		scene.RasterOptions{Width: 10, Height: 10, Scale: 1, Format: "tiff"})
	assert.ErrorContains(t, err, "unsupported raster format")
}

func TestMeasureTextWraps(t *testing.T) {
	s := newTestSurface(t)
	o := &core.TextObject{
		ID:         "t",
		Text:       "a reasonably long sentence that cannot fit on a single narrow line",
		FontFamily: "go",
		FontSize:   20,
		FontWeight: "400",
		MaxWidth:   120,
	}

	bounds, err := s.MeasureText(context.Background(), o)
	require.NoError(t, err)
	assert.LessOrEqual(t, bounds.Width, 120.0)
	// Multiple wrapped lines, each contributing fontSize*1.2 of height.
	assert.Greater(t, bounds.Height, 20.0*lineSpacing*1.5)
}

func TestMeasureTextUsesDefaultMaxWidth(t *testing.T) {
	s := newTestSurface(t)
	o := &core.TextObject{ID: "t", Text: "short", FontFamily: "go", FontSize: 40}

	bounds, err := s.MeasureText(context.Background(), o)
	require.NoError(t, err)
	assert.Greater(t, bounds.Width, 0.0)
	assert.InDelta(t, 40*lineSpacing, bounds.Height, 0.001)
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}, parseHexColor("#1f2937"))
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, parseHexColor("#ffffff"))
	assert.Equal(t, color.Black, parseHexColor("red"))
	assert.Equal(t, color.Black, parseHexColor("#fff"))
	assert.Equal(t, color.Black, parseHexColor(""))
}

// Package render is the concrete rasterization surface: it paints a scene's
// background fill, text and images into a fogleman/gg context and encodes
// the result as PNG or JPEG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/jpeg"
	"image/png"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"

	"xbanner/core"
	"xbanner/gradient"
	"xbanner/scene"
)

// lineSpacing matches the canvas text line height used by the editor.
const lineSpacing = 1.2

// Surface implements scene.Surface on top of fogleman/gg.
type Surface struct {
	fonts  *Catalog
	images *Resolver
}

func NewSurface(fonts *Catalog, images *Resolver) *Surface {
	return &Surface{fonts: fonts, images: images}
}

// MeasureText computes the visual bounding box of a text object after word
// wrapping at its maximum width.
func (s *Surface) MeasureText(ctx context.Context, o *core.TextObject) (core.Bounds, error) {
	if err := ctx.Err(); err != nil {
		return core.Bounds{}, err
	}

	maxWidth := o.MaxWidth
	if maxWidth <= 0 {
		maxWidth = core.MaxTextWidth
	}

	dc := gg.NewContext(1, 1)
	dc.SetFontFace(s.fonts.Face(o.FontFamily, o.FontWeight, o.FontSize))

	var widest float64
	lines := dc.WordWrap(o.Text, maxWidth)
	for _, line := range lines {
		w, _ := dc.MeasureString(line)
		if w > widest {
			widest = w
		}
	}
	if widest > maxWidth {
		widest = maxWidth
	}
	return core.Bounds{
		Left:   o.Left,
		Top:    o.Top,
		Width:  widest,
		Height: float64(len(lines)) * o.FontSize * lineSpacing,
	}, nil
}

// Rasterize paints the background and every object back-to-front, then
// encodes the pixels. Images whose source cannot be resolved are skipped
// with a warning so one broken reference never blocks the whole render.
func (s *Surface) Rasterize(ctx context.Context, background core.Fill, objects []core.SceneObject, opts scene.RasterOptions) ([]byte, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", opts.Width, opts.Height)
	}
	scaleFactor := opts.Scale
	if scaleFactor <= 0 {
		scaleFactor = 1
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	s.paintBackground(dc, background, float64(opts.Width), float64(opts.Height))

	for _, obj := range objects {
		switch o := obj.(type) {
		case *core.TextObject:
			s.paintText(dc, o, scaleFactor)
		case *core.ImageObject:
			s.paintImage(ctx, dc, o, scaleFactor)
		}
	}
	return encode(dc, opts)
}

func (s *Surface) paintBackground(dc *gg.Context, fill core.Fill, w, h float64) {
	switch f := fill.(type) {
	case core.Linear:
		if f.Degenerate() {
			// Lenient gradient decoding can yield zero usable stops; a
			// blank banner beats a failed render.
			dc.SetRGB(1, 1, 1)
			dc.Clear()
			return
		}
		x1, y1, x2, y2 := gradient.Axis(f.Angle, w, h)
		grad := gg.NewLinearGradient(x1, y1, x2, y2)
		for _, stop := range f.Stops {
			grad.AddColorStop(float64(stop.Position)/100, parseHexColor(stop.Color))
		}
		dc.SetFillStyle(grad)
		dc.DrawRectangle(0, 0, w, h)
		dc.Fill()
	case core.Solid:
		dc.SetColor(parseHexColor(f.Color))
		dc.Clear()
	default:
		dc.SetRGB(1, 1, 1)
		dc.Clear()
	}
}

func (s *Surface) paintText(dc *gg.Context, o *core.TextObject, scaleFactor float64) {
	if o.Text == "" {
		return
	}
	maxWidth := o.MaxWidth
	if maxWidth <= 0 {
		maxWidth = core.MaxTextWidth
	}

	dc.SetFontFace(s.fonts.Face(o.FontFamily, o.FontWeight, o.FontSize*scaleFactor))
	dc.SetColor(parseHexColor(o.Fill))

	align := gg.AlignLeft
	switch o.TextAlign {
	case "center":
		align = gg.AlignCenter
	case "right":
		align = gg.AlignRight
	}
	dc.DrawStringWrapped(o.Text, o.Left*scaleFactor, o.Top*scaleFactor, 0, 0,
		maxWidth*scaleFactor, lineSpacing, align)
}

func (s *Surface) paintImage(ctx context.Context, dc *gg.Context, o *core.ImageObject, scaleFactor float64) {
	img, err := s.images.Resolve(ctx, o.Source)
	if err != nil {
		logrus.WithError(err).WithField("source", truncateSource(o.Source)).Warn("Skipping unresolvable image")
		return
	}
	dc.Push()
	dc.Translate(o.Left*scaleFactor, o.Top*scaleFactor)
	dc.Scale(o.ScaleX*scaleFactor, o.ScaleY*scaleFactor)
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

func encode(dc *gg.Context, opts scene.RasterOptions) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(opts.Format) {
	case "", "png":
		if err := png.Encode(&buf, dc.Image()); err != nil {
			return nil, err
		}
	case "jpeg", "jpg":
		quality := opts.Quality
		if quality <= 0 || quality > 1 {
			quality = 0.95
		}
		if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: int(quality*100 + 0.5)}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported raster format %q", opts.Format)
	}
	return buf.Bytes(), nil
}

// parseHexColor reads a #RRGGBB string. Anything else paints black, which
// is where an invalid color stored in a template finally becomes visible.
func parseHexColor(s string) color.Color {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.Black
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.Black
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func truncateSource(source string) string {
	if len(source) > 64 {
		return source[:64] + "..."
	}
	return source
}

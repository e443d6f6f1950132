// Package template projects editable scenes into persistable SavedTemplate
// records and reconstructs preview scenes from them at arbitrary sizes.
package template

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"xbanner/core"
	"xbanner/gradient"
	"xbanner/scene"
)

// ThumbnailScale is the raster multiplier used for template thumbnails.
const ThumbnailScale = 0.3

// Deps carries the capabilities a reconstructed preview scene needs.
type Deps struct {
	Surface scene.Surface
	Decoder scene.ImageDecoder
	Fonts   scene.FontProvider
}

// Project flattens a scene into a SavedTemplate. The projection is lossy:
// only text and image objects survive, grouped into their two buckets (each
// keeping relative order), and images whose source was never resolved are
// dropped. A fresh ID and now-timestamps are assigned; the thumbnail is a
// PNG data URL rasterized at ThumbnailScale.
func Project(ctx context.Context, s *scene.Scene, name, description string) (*core.SavedTemplate, error) {
	if s == nil {
		return nil, fmt.Errorf("nil scene")
	}

	now := time.Now().UnixMilli()
	tpl := &core.SavedTemplate{
		ID:          "template-" + ulid.Make().String(),
		Name:        name,
		Description: description,
		Background:  gradient.Encode(s.Background()),
		TextObjects: []core.TemplateText{},
		Images:      []core.TemplateImage{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, obj := range s.Objects() {
		switch o := obj.(type) {
		case *core.TextObject:
			tpl.TextObjects = append(tpl.TextObjects, core.TemplateText{
				Text:       o.Text,
				FontFamily: o.FontFamily,
				FontSize:   o.FontSize,
				FontWeight: o.FontWeight,
				Fill:       o.Fill,
				Left:       o.Left,
				Top:        o.Top,
				TextAlign:  o.TextAlign,
			})
		case *core.ImageObject:
			if o.Source == "" {
				// Added but never successfully decoded; must not persist.
				continue
			}
			tpl.Images = append(tpl.Images, core.TemplateImage{
				URL:    o.Source,
				Left:   o.Left,
				Top:    o.Top,
				ScaleX: o.ScaleX,
				ScaleY: o.ScaleY,
			})
		}
	}

	if thumb, err := s.ExportRaster(ctx, "png", 0.8, ThumbnailScale); err != nil {
		logrus.WithError(err).Warn("Thumbnail rasterization failed, saving template without one")
	} else {
		tpl.Thumbnail = "data:image/png;base64," + base64.StdEncoding.EncodeToString(thumb)
	}
	return tpl, nil
}

// Reconstruct builds a read-only preview scene approximating the template
// at the target size. Positions scale per axis, font sizes scale by the
// smaller axis factor, and image scales multiply by the matching axis
// factor. Text objects are rebuilt before images regardless of original
// interleaving; this mirrors the projection's documented z-order loss. The
// template itself is never mutated.
func Reconstruct(ctx context.Context, tpl *core.SavedTemplate, targetWidth, targetHeight float64, deps Deps) (*scene.Scene, error) {
	if tpl == nil {
		return nil, fmt.Errorf("nil template")
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, fmt.Errorf("invalid target size %gx%g", targetWidth, targetHeight)
	}

	scaleX := targetWidth / core.CanvasWidth
	scaleY := targetHeight / core.CanvasHeight
	fontScale := scaleX
	if scaleY < fontScale {
		fontScale = scaleY
	}

	s := scene.New(scene.Config{
		Surface:    deps.Surface,
		Decoder:    deps.Decoder,
		Fonts:      deps.Fonts,
		Width:      targetWidth,
		Height:     targetHeight,
		Background: gradient.Decode(tpl.Background),
	})

	for _, text := range tpl.TextObjects {
		if deps.Fonts != nil {
			if err := deps.Fonts.Ensure(ctx, text.FontFamily); err != nil {
				logrus.WithError(err).WithField("font", text.FontFamily).Warn("Font not ready for preview")
			}
		}
		s.Attach(&core.TextObject{
			Text:       text.Text,
			FontFamily: text.FontFamily,
			FontSize:   text.FontSize * fontScale,
			FontWeight: text.FontWeight,
			Fill:       text.Fill,
			TextAlign:  text.TextAlign,
			Left:       text.Left * scaleX,
			Top:        text.Top * scaleY,
			MaxWidth:   core.MaxTextWidth * scaleX,
		})
	}

	for _, img := range tpl.Images {
		if img.URL == "" {
			continue
		}
		width, height := 0, 0
		if deps.Decoder != nil {
			w, h, err := deps.Decoder.Decode(ctx, img.URL)
			if err != nil {
				logrus.WithError(err).Warn("Skipping preview image that failed to decode")
				continue
			}
			width, height = w, h
		}
		s.Attach(&core.ImageObject{
			Source: img.URL,
			Left:   img.Left * scaleX,
			Top:    img.Top * scaleY,
			ScaleX: img.ScaleX * scaleX,
			ScaleY: img.ScaleY * scaleY,
			Width:  width,
			Height: height,
		})
	}
	return s, nil
}

// Package scene holds the in-memory, editable model of one banner: an
// ordered object list, a background fill and a selection, with
// bounds-clamping and measurement caching on top of injected rasterization
// capabilities.
package scene

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"xbanner/core"
)

// Direction moves an object one step through the z-order.
type Direction int

const (
	Backward Direction = iota
	Forward
)

// Defaults for newly added objects, chosen so fresh content lands in a
// sensible spot on the 1500×500 banner.
const (
	defaultTextLeft = 100
	defaultTextTop  = 200
	defaultTextSize = 40
	defaultTextFill = "#1f2937"
	defaultFont     = "Inter"

	defaultImageLeft = 1000
	defaultImageTop  = 150
)

type (
	// Config wires a Scene to its capabilities. Width and Height default
	// to the fixed canvas contract; preview scenes built by template
	// reconstruction use the requested target size instead.
	Config struct {
		Surface Surface
		Decoder ImageDecoder
		Fonts   FontProvider

		Width      float64
		Height     float64
		Background core.Fill

		// Interactive enables selection tracking. Reconstructed preview
		// scenes are read-only and leave this off.
		Interactive bool

		// Seed adds the starter text object an editor session opens with.
		Seed bool
	}

	// Scene owns its objects exclusively; z-order is slice order, back to
	// front. All mutations go through its methods.
	Scene struct {
		mu          sync.Mutex
		width       float64
		height      float64
		background  core.Fill
		objects     []core.SceneObject
		selectedID  string
		closed      bool
		interactive bool

		surface Surface
		decoder ImageDecoder
		fonts   FontProvider

		// measured caches text wrap metrics keyed by object ID. Entries
		// are dropped whenever a font-affecting property changes so the
		// next measurement recomputes from scratch.
		measured map[string]core.Bounds
	}
)

// New builds a Scene from the given configuration.
func New(cfg Config) *Scene {
	s := &Scene{
		width:       cfg.Width,
		height:      cfg.Height,
		background:  cfg.Background,
		interactive: cfg.Interactive,
		surface:     cfg.Surface,
		decoder:     cfg.Decoder,
		fonts:       cfg.Fonts,
		measured:    make(map[string]core.Bounds),
	}
	if s.width <= 0 {
		s.width = core.CanvasWidth
	}
	if s.height <= 0 {
		s.height = core.CanvasHeight
	}
	if s.background == nil {
		s.background = core.Solid{Color: "#ffffff"}
	}
	if cfg.Seed {
		s.seed()
	}
	return s
}

// NewEditor builds the interactive scene an editor session starts with:
// white background plus one seed text object, already selected.
func NewEditor(surface Surface, decoder ImageDecoder, fonts FontProvider) *Scene {
	return New(Config{
		Surface:     surface,
		Decoder:     decoder,
		Fonts:       fonts,
		Interactive: true,
		Seed:        true,
	})
}

func (s *Scene) seed() {
	text := &core.TextObject{
		ID:         ulid.Make().String(),
		Text:       "I am #IndieDev",
		FontFamily: "Barrio",
		FontSize:   60,
		FontWeight: "bold",
		Fill:       defaultTextFill,
		TextAlign:  "center",
		Left:       s.width / 2,
		Top:        s.height / 2,
		MaxWidth:   core.MaxTextWidth,
	}
	s.objects = append(s.objects, text)
	if s.interactive {
		s.selectedID = text.ID
	}
	s.remeasure(context.Background(), text)
}

// AddText creates a text object with designer defaults, appends it topmost,
// selects it and returns its ID.
func (s *Scene) AddText(ctx context.Context, content string) string {
	s.ensureFont(ctx, defaultFont)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ""
	}

	text := &core.TextObject{
		ID:         ulid.Make().String(),
		Text:       content,
		FontFamily: defaultFont,
		FontSize:   defaultTextSize,
		FontWeight: "400",
		Fill:       defaultTextFill,
		TextAlign:  "left",
		Left:       defaultTextLeft,
		Top:        defaultTextTop,
		MaxWidth:   core.MaxTextWidth,
	}
	s.objects = append(s.objects, text)
	if s.interactive {
		s.selectedID = text.ID
	}
	s.remeasure(ctx, text)
	return text.ID
}

// AddImage resolves the source to its pixel dimensions, then places the
// image scaled down to fit the 300×180 footprint cap (never scaled up).
// On decode failure the scene is left unmodified and a DecodeError is
// returned. The post-decode completion re-checks that the scene has not
// been torn down in the meantime.
func (s *Scene) AddImage(ctx context.Context, source string) (string, error) {
	width, height, err := s.decoder.Decode(ctx, source)
	if err != nil {
		return "", &DecodeError{Source: source, Err: err}
	}
	if width <= 0 || height <= 0 {
		return "", &DecodeError{Source: source, Err: errEmptyImage}
	}

	scale := min3(core.MaxImageWidth/float64(width), core.MaxImageHeight/float64(height), 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSceneClosed
	}

	img := &core.ImageObject{
		ID:     ulid.Make().String(),
		Source: source,
		Left:   defaultImageLeft,
		Top:    defaultImageTop,
		ScaleX: scale,
		ScaleY: scale,
		Width:  width,
		Height: height,
	}
	s.objects = append(s.objects, img)
	if s.interactive {
		s.selectedID = img.ID
	}
	s.clamp(img)
	return img.ID, nil
}

// TextProps carries a partial text update; nil fields are left untouched.
type TextProps struct {
	Text       *string
	FontFamily *string
	FontSize   *float64
	FontWeight *string
	Fill       *string
	TextAlign  *string
	Left       *float64
	Top        *float64
}

func (p TextProps) fontAffecting() bool {
	return p.FontFamily != nil || p.FontSize != nil || p.FontWeight != nil || p.TextAlign != nil
}

// UpdateText applies the provided fields to a text object. Unknown IDs and
// non-text objects are silent no-ops. Any font-affecting change drops the
// cached wrap metrics, waits for the new font to be ready, then re-measures
// and re-clamps — a font change is never rendered with pre-change line-wrap
// metrics. The post-readiness pass re-checks that the object still exists.
func (s *Scene) UpdateText(ctx context.Context, id string, props TextProps) {
	s.mu.Lock()
	text, ok := s.lookupText(id)
	if !ok {
		s.mu.Unlock()
		return
	}

	if props.Text != nil {
		text.Text = *props.Text
	}
	if props.FontFamily != nil {
		text.FontFamily = *props.FontFamily
	}
	if props.FontSize != nil {
		text.FontSize = *props.FontSize
	}
	if props.FontWeight != nil {
		text.FontWeight = *props.FontWeight
	}
	if props.Fill != nil {
		text.Fill = *props.Fill
	}
	if props.TextAlign != nil {
		text.TextAlign = *props.TextAlign
	}
	if props.Left != nil {
		text.Left = *props.Left
	}
	if props.Top != nil {
		text.Top = *props.Top
	}

	// Re-derive the wrapping width whenever it is unset or exceeds the
	// margin-safe maximum.
	if text.MaxWidth <= 0 || text.MaxWidth > core.MaxTextWidth {
		text.MaxWidth = core.MaxTextWidth
	}

	family := text.FontFamily
	fontChanged := props.fontAffecting()
	if fontChanged {
		// Stale glyph metrics must never survive a font change.
		delete(s.measured, id)
	}
	s.mu.Unlock()

	if fontChanged {
		s.ensureFont(ctx, family)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The font wait above may have interleaved with other edits; only act
	// if the object is still alive.
	if text, ok := s.lookupText(id); ok {
		s.remeasure(ctx, text)
	}
}

// ImageProps carries a partial image update; nil fields are left untouched.
type ImageProps struct {
	Left   *float64
	Top    *float64
	ScaleX *float64
	ScaleY *float64
}

// UpdateImage applies the provided fields to an image object and re-clamps
// it. Unknown IDs and non-image objects are silent no-ops.
func (s *Scene) UpdateImage(id string, props ImageProps) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obj := range s.objects {
		img, ok := obj.(*core.ImageObject)
		if !ok || img.ID != id {
			continue
		}
		if props.Left != nil {
			img.Left = *props.Left
		}
		if props.Top != nil {
			img.Top = *props.Top
		}
		if props.ScaleX != nil {
			img.ScaleX = *props.ScaleX
		}
		if props.ScaleY != nil {
			img.ScaleY = *props.ScaleY
		}
		s.clamp(img)
		return
	}
}

// RemoveObject removes an object from the scene and clears the selection if
// it pointed at the removed object. Unknown IDs are a no-op.
func (s *Scene) RemoveObject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, obj := range s.objects {
		if obj.ObjectID() == id {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			delete(s.measured, id)
			if s.selectedID == id {
				s.selectedID = ""
			}
			return
		}
	}
}

// Reorder moves an object one position toward the front or back of the
// z-order. Already at either end is a no-op.
func (s *Scene) Reorder(id string, dir Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, obj := range s.objects {
		if obj.ObjectID() != id {
			continue
		}
		switch dir {
		case Forward:
			if i < len(s.objects)-1 {
				s.objects[i], s.objects[i+1] = s.objects[i+1], s.objects[i]
			}
		case Backward:
			if i > 0 {
				s.objects[i], s.objects[i-1] = s.objects[i-1], s.objects[i]
			}
		}
		return
	}
}

// SetSelection selects the object with the given ID, or clears the
// selection when id is empty. Selecting an unknown ID is rejected so the
// selection always references a live object.
func (s *Scene) SetSelection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.interactive {
		return
	}
	if id == "" {
		s.selectedID = ""
		return
	}
	for _, obj := range s.objects {
		if obj.ObjectID() == id {
			s.selectedID = id
			return
		}
	}
}

// SelectedID returns the current selection, or an empty string.
func (s *Scene) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Objects returns a snapshot of the object list, back to front.
func (s *Scene) Objects() []core.SceneObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SceneObject, len(s.objects))
	copy(out, s.objects)
	return out
}

// Object returns the object with the given ID, or nil.
func (s *Scene) Object(id string) core.SceneObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range s.objects {
		if obj.ObjectID() == id {
			return obj
		}
	}
	return nil
}

// Background returns the current background fill.
func (s *Scene) Background() core.Fill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.background
}

// SetBackground replaces the background fill.
func (s *Scene) SetBackground(f core.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f != nil {
		s.background = f
	}
}

// Size returns the scene's logical dimensions.
func (s *Scene) Size() (width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// CachedBounds returns the cached wrap metrics for a text object, if any.
func (s *Scene) CachedBounds(id string) (core.Bounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.measured[id]
	return b, ok
}

// Attach appends a pre-built object without selecting it, assigning an ID
// if the object has none. Template reconstruction uses this to rebuild
// preview scenes.
func (s *Scene) Attach(obj core.SceneObject) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || obj == nil {
		return ""
	}
	switch o := obj.(type) {
	case *core.TextObject:
		if o.ID == "" {
			o.ID = ulid.Make().String()
		}
	case *core.ImageObject:
		if o.ID == "" {
			o.ID = ulid.Make().String()
		}
	}
	s.objects = append(s.objects, obj)
	return obj.ObjectID()
}

// ExportRaster rasterizes the scene at scale× its logical size. Format is
// "png" (quality ignored) or "jpeg" (quality 0..1, default 0.95). All
// committed mutations are reflected; there is no pending async state once
// the mutating calls have returned.
func (s *Scene) ExportRaster(ctx context.Context, format string, quality, scale float64) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSceneClosed
	}
	background := s.background
	objects := make([]core.SceneObject, len(s.objects))
	copy(objects, s.objects)
	width, height := s.width, s.height
	s.mu.Unlock()

	if scale <= 0 {
		scale = 1
	}
	if quality <= 0 || quality > 1 {
		quality = 0.95
	}
	opts := RasterOptions{
		Width:   int(width*scale + 0.5),
		Height:  int(height*scale + 0.5),
		Scale:   scale,
		Format:  format,
		Quality: quality,
	}
	return s.surface.Rasterize(ctx, background, objects, opts)
}

// Close tears the scene down. Later async completions observe the closed
// state and leave it untouched.
func (s *Scene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.objects = nil
	s.selectedID = ""
	s.measured = make(map[string]core.Bounds)
}

// ensureFont blocks until the family is ready for measurement. Readiness
// failures are logged and tolerated; the original authoring UI applies the
// font anyway and lets rendering fall back.
func (s *Scene) ensureFont(ctx context.Context, family string) {
	if s.fonts == nil {
		return
	}
	if err := s.fonts.Ensure(ctx, family); err != nil {
		logrus.WithError(err).WithField("font", family).Warn("Font not ready, continuing anyway")
	}
}

// lookupText finds a live text object by ID. Caller holds the lock.
func (s *Scene) lookupText(id string) (*core.TextObject, bool) {
	for _, obj := range s.objects {
		if text, ok := obj.(*core.TextObject); ok && text.ID == id {
			return text, true
		}
	}
	return nil, false
}

// remeasure refreshes the wrap metrics for a text object and re-clamps it.
// Caller holds the lock.
func (s *Scene) remeasure(ctx context.Context, text *core.TextObject) {
	if s.surface == nil {
		return
	}
	bounds, err := s.surface.MeasureText(ctx, text)
	if err != nil {
		logrus.WithError(err).WithField("object_id", text.ID).Warn("Text measurement failed")
		return
	}
	s.measured[text.ID] = bounds
	s.clamp(text)
}

// clamp translates an object by the minimum delta needed to keep its visual
// bounding box inside the canvas margin, independently on each axis. It is
// a post-condition applied after geometry edits, and is idempotent. Caller
// holds the lock.
func (s *Scene) clamp(obj core.SceneObject) {
	var bounds core.Bounds
	switch o := obj.(type) {
	case *core.TextObject:
		b, ok := s.measured[o.ID]
		if !ok {
			return
		}
		// Keep measured size but track the current position.
		bounds = core.Bounds{Left: o.Left, Top: o.Top, Width: b.Width, Height: b.Height}
	case *core.ImageObject:
		bounds = core.Bounds{
			Left:   o.Left,
			Top:    o.Top,
			Width:  float64(o.Width) * o.ScaleX,
			Height: float64(o.Height) * o.ScaleY,
		}
	default:
		return
	}

	dx := clampAxis(bounds.Left, bounds.Width, s.width) - bounds.Left
	dy := clampAxis(bounds.Top, bounds.Height, s.height) - bounds.Top
	if dx == 0 && dy == 0 {
		return
	}

	switch o := obj.(type) {
	case *core.TextObject:
		o.Left += dx
		o.Top += dy
		if b, ok := s.measured[o.ID]; ok {
			b.Left = o.Left
			b.Top = o.Top
			s.measured[o.ID] = b
		}
	case *core.ImageObject:
		o.Left += dx
		o.Top += dy
	}
}

func clampAxis(pos, size, canvasDim float64) float64 {
	lo := core.ClampMargin
	hi := canvasDim - core.ClampMargin - size
	if hi < lo {
		hi = lo
	}
	if pos < lo {
		return lo
	}
	if pos > hi {
		return hi
	}
	return pos
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

var errEmptyImage = errors.New("image has no pixels")

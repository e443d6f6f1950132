package scene_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbanner/core"
	"xbanner/scene"
)

func ptr[T any](v T) *T { return &v }

// fakeSurface measures text with a deterministic, family-sensitive formula
// so cache staleness is observable, and records rasterization calls.
type fakeSurface struct {
	mu           sync.Mutex
	measureCalls int
	lastOpts     scene.RasterOptions
	rasterOut    []byte
}

func (f *fakeSurface) MeasureText(ctx context.Context, o *core.TextObject) (core.Bounds, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.measureCalls++
	// Width depends on the font family so stale metrics are detectable.
	width := float64(len(o.Text)*8 + len(o.FontFamily)*10)
	if o.MaxWidth > 0 && width > o.MaxWidth {
		width = o.MaxWidth
	}
	return core.Bounds{Left: o.Left, Top: o.Top, Width: width, Height: o.FontSize * 1.2}, nil
}

func (f *fakeSurface) Rasterize(ctx context.Context, background core.Fill, objects []core.SceneObject, opts scene.RasterOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	if f.rasterOut == nil {
		return []byte("raster"), nil
	}
	return f.rasterOut, nil
}

func (f *fakeSurface) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.measureCalls
}

type fakeDecoder struct {
	width, height int
	err           error
}

func (f fakeDecoder) Decode(ctx context.Context, source string) (int, int, error) {
	return f.width, f.height, f.err
}

type fakeFonts struct {
	mu      sync.Mutex
	ensured []string
}

func (f *fakeFonts) Ensure(ctx context.Context, family string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, family)
	return nil
}

func (f *fakeFonts) families() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ensured...)
}

func newTestScene(surface *fakeSurface, decoder fakeDecoder, fonts *fakeFonts) *scene.Scene {
	return scene.New(scene.Config{
		Surface:     surface,
		Decoder:     decoder,
		Fonts:       fonts,
		Interactive: true,
	})
}

func TestAddTextDefaultsAndSelection(t *testing.T) {
	surface := &fakeSurface{}
	s := newTestScene(surface, fakeDecoder{}, &fakeFonts{})

	id := s.AddText(context.Background(), "Hello")
	require.NotEmpty(t, id)
	assert.Equal(t, id, s.SelectedID())

	obj := s.Object(id)
	require.NotNil(t, obj)
	text, ok := obj.(*core.TextObject)
	require.True(t, ok)
	assert.Equal(t, "Hello", text.Text)
	assert.Equal(t, float64(core.MaxTextWidth), text.MaxWidth)
	assert.Equal(t, 100.0, text.Left)
	assert.Equal(t, 200.0, text.Top)
}

func TestEditorSeedsOneTextObject(t *testing.T) {
	s := scene.NewEditor(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	objects := s.Objects()
	require.Len(t, objects, 1)
	text, ok := objects[0].(*core.TextObject)
	require.True(t, ok)
	assert.Equal(t, text.ID, s.SelectedID())
	assert.NotEmpty(t, text.Text)
}

func TestAddImageScaleCap(t *testing.T) {
	s := newTestScene(&fakeSurface{}, fakeDecoder{width: 600, height: 600}, &fakeFonts{})

	id, err := s.AddImage(context.Background(), "photo.png")
	require.NoError(t, err)
	assert.Equal(t, id, s.SelectedID())

	img := s.Object(id).(*core.ImageObject)
	// 600x600 against the 300x180 cap scales by 0.3 on both axes.
	assert.InDelta(t, 0.3, img.ScaleX, 1e-9)
	assert.InDelta(t, 0.3, img.ScaleY, 1e-9)
	assert.Equal(t, 600, img.Width)
	assert.Equal(t, 600, img.Height)
}

func TestAddImageNeverUpscales(t *testing.T) {
	s := newTestScene(&fakeSurface{}, fakeDecoder{width: 100, height: 50}, &fakeFonts{})

	id, err := s.AddImage(context.Background(), "small.png")
	require.NoError(t, err)

	img := s.Object(id).(*core.ImageObject)
	assert.Equal(t, 1.0, img.ScaleX)
	assert.Equal(t, 1.0, img.ScaleY)
}

func TestAddImageDecodeFailureLeavesSceneUnmodified(t *testing.T) {
	boom := errors.New("boom")
	s := newTestScene(&fakeSurface{}, fakeDecoder{err: boom}, &fakeFonts{})
	before := len(s.Objects())

	_, err := s.AddImage(context.Background(), "broken.png")
	require.Error(t, err)

	var decodeErr *scene.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, s.Objects(), before)
	assert.Empty(t, s.SelectedID())
}

func TestAddImageAfterCloseIsRejected(t *testing.T) {
	s := newTestScene(&fakeSurface{}, fakeDecoder{width: 10, height: 10}, &fakeFonts{})
	s.Close()

	_, err := s.AddImage(context.Background(), "late.png")
	assert.ErrorIs(t, err, scene.ErrSceneClosed)
	assert.Empty(t, s.Objects())
}

func TestRemoveObjectClearsSelection(t *testing.T) {
	s := newTestScene(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	id := s.AddText(context.Background(), "bye")
	require.Equal(t, id, s.SelectedID())

	s.RemoveObject(id)
	assert.Empty(t, s.SelectedID())
	assert.Nil(t, s.Object(id))

	// Removing again is a harmless no-op.
	s.RemoveObject(id)
}

func TestSetSelectionUnknownIDIsRejected(t *testing.T) {
	s := newTestScene(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	id := s.AddText(context.Background(), "keep me selected")

	s.SetSelection("no-such-object")
	assert.Equal(t, id, s.SelectedID())

	s.SetSelection("")
	assert.Empty(t, s.SelectedID())
}

func TestReorderRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestScene(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	a := s.AddText(ctx, "a")
	b := s.AddText(ctx, "b")
	c := s.AddText(ctx, "c")

	order := func() []string {
		var ids []string
		for _, obj := range s.Objects() {
			ids = append(ids, obj.ObjectID())
		}
		return ids
	}
	require.Equal(t, []string{a, b, c}, order())

	s.Reorder(b, scene.Forward)
	assert.Equal(t, []string{a, c, b}, order())
	s.Reorder(b, scene.Backward)
	assert.Equal(t, []string{a, b, c}, order())

	// No-ops at either end.
	s.Reorder(c, scene.Forward)
	assert.Equal(t, []string{a, b, c}, order())
	s.Reorder(a, scene.Backward)
	assert.Equal(t, []string{a, b, c}, order())
}

func TestUpdateTextPartialProps(t *testing.T) {
	ctx := context.Background()
	s := newTestScene(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	id := s.AddText(ctx, "original")

	s.UpdateText(ctx, id, scene.TextProps{Fill: ptr("#ff0000")})

	text := s.Object(id).(*core.TextObject)
	assert.Equal(t, "#ff0000", text.Fill)
	assert.Equal(t, "original", text.Text)
	assert.Equal(t, "Inter", text.FontFamily)
}

func TestUpdateTextUnknownIDIsNoop(t *testing.T) {
	ctx := context.Background()
	surface := &fakeSurface{}
	s := newTestScene(surface, fakeDecoder{width: 10, height: 10}, &fakeFonts{})
	s.UpdateText(ctx, "ghost", scene.TextProps{Text: ptr("boo")})
	assert.Empty(t, s.Objects())

	// Text-only updates against an image are silently ignored too.
	imgID, err := s.AddImage(ctx, "img.png")
	require.NoError(t, err)
	s.UpdateText(ctx, imgID, scene.TextProps{Text: ptr("boo")})
	_, ok := s.Object(imgID).(*core.ImageObject)
	assert.True(t, ok)
}

func TestUpdateImagePartialPropsAndClamp(t *testing.T) {
	ctx := context.Background()
	s := newTestScene(&fakeSurface{}, fakeDecoder{width: 100, height: 100}, &fakeFonts{})
	id, err := s.AddImage(ctx, "logo.png")
	require.NoError(t, err)

	s.UpdateImage(id, scene.ImageProps{Left: ptr(50.0), ScaleX: ptr(0.5)})

	img := s.Object(id).(*core.ImageObject)
	assert.Equal(t, 50.0, img.Left)
	assert.InDelta(t, 0.5, img.ScaleX, 1e-9)
	assert.Equal(t, 1.0, img.ScaleY)

	// Dragging past the edge clamps back inside the margin.
	s.UpdateImage(id, scene.ImageProps{Left: ptr(5000.0), Top: ptr(-40.0)})
	img = s.Object(id).(*core.ImageObject)
	assert.LessOrEqual(t, img.Left+float64(img.Width)*img.ScaleX, core.CanvasWidth-core.ClampMargin)
	assert.Equal(t, core.ClampMargin, img.Top)

	// Unknown IDs and text targets are no-ops.
	s.UpdateImage("ghost", scene.ImageProps{Left: ptr(0.0)})
	textID := s.AddText(ctx, "not an image")
	s.UpdateImage(textID, scene.ImageProps{Left: ptr(999.0)})
	text := s.Object(textID).(*core.TextObject)
	assert.Equal(t, 100.0, text.Left)
}

func TestClampKeepsObjectInsideMargin(t *testing.T) {
	ctx := context.Background()
	s := newTestScene(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	id := s.AddText(ctx, "wandering text")

	s.UpdateText(ctx, id, scene.TextProps{Left: ptr(2000.0), Top: ptr(900.0)})

	text := s.Object(id).(*core.TextObject)
	bounds, ok := s.CachedBounds(id)
	require.True(t, ok)
	assert.GreaterOrEqual(t, text.Left, core.ClampMargin)
	assert.GreaterOrEqual(t, text.Top, core.ClampMargin)
	assert.LessOrEqual(t, text.Left+bounds.Width, core.CanvasWidth-core.ClampMargin)
	assert.LessOrEqual(t, text.Top+bounds.Height, core.CanvasHeight-core.ClampMargin)

	// Negative positions clamp to the near margin.
	s.UpdateText(ctx, id, scene.TextProps{Left: ptr(-300.0), Top: ptr(-50.0)})
	text = s.Object(id).(*core.TextObject)
	assert.Equal(t, core.ClampMargin, text.Left)
	assert.Equal(t, core.ClampMargin, text.Top)
}

func TestClampIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestScene(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	id := s.AddText(ctx, "stable")

	s.UpdateText(ctx, id, scene.TextProps{Left: ptr(5000.0)})
	text := s.Object(id).(*core.TextObject)
	left, top := text.Left, text.Top

	// A non-geometry update triggers another measure+clamp pass; an
	// already-in-bounds object must not move.
	s.UpdateText(ctx, id, scene.TextProps{Fill: ptr("#00ff00")})
	text = s.Object(id).(*core.TextObject)
	assert.Equal(t, left, text.Left)
	assert.Equal(t, top, text.Top)
}

func TestFontChangeInvalidatesWrapCache(t *testing.T) {
	ctx := context.Background()
	surface := &fakeSurface{}
	fonts := &fakeFonts{}
	s := newTestScene(surface, fakeDecoder{}, fonts)
	id := s.AddText(ctx, "measure me")

	before, ok := s.CachedBounds(id)
	require.True(t, ok)
	callsBefore := surface.calls()

	s.UpdateText(ctx, id, scene.TextProps{FontFamily: ptr("Barrio Extended")})

	after, ok := s.CachedBounds(id)
	require.True(t, ok)
	assert.Greater(t, surface.calls(), callsBefore, "font change must force a fresh measurement")
	assert.NotEqual(t, before.Width, after.Width, "metrics from the old family must not survive")
	assert.Contains(t, fonts.families(), "Barrio Extended", "measurement must wait for font readiness")
}

func TestFontSizeChangeRemeasures(t *testing.T) {
	ctx := context.Background()
	surface := &fakeSurface{}
	s := newTestScene(surface, fakeDecoder{}, &fakeFonts{})
	id := s.AddText(ctx, "resize me")

	before, _ := s.CachedBounds(id)
	s.UpdateText(ctx, id, scene.TextProps{FontSize: ptr(80.0)})
	after, _ := s.CachedBounds(id)
	assert.Greater(t, after.Height, before.Height)
}

func TestExportRasterOptions(t *testing.T) {
	surface := &fakeSurface{}
	s := newTestScene(surface, fakeDecoder{}, &fakeFonts{})

	out, err := s.ExportRaster(context.Background(), "jpeg", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("raster"), out)
	assert.Equal(t, 3000, surface.lastOpts.Width)
	assert.Equal(t, 1000, surface.lastOpts.Height)
	assert.Equal(t, 2.0, surface.lastOpts.Scale)
	assert.Equal(t, "jpeg", surface.lastOpts.Format)
	assert.InDelta(t, 0.95, surface.lastOpts.Quality, 1e-9)
}

func TestExportRasterAfterClose(t *testing.T) {
	s := newTestScene(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	s.Close()
	_, err := s.ExportRaster(context.Background(), "png", 0, 1)
	assert.ErrorIs(t, err, scene.ErrSceneClosed)
}

func TestSetBackground(t *testing.T) {
	s := newTestScene(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	assert.Equal(t, core.Solid{Color: "#ffffff"}, s.Background())

	fill := core.Linear{Angle: 90, Stops: []core.Stop{
		{Color: "#000000", Position: 0},
		{Color: "#ffffff", Position: 100},
	}}
	s.SetBackground(fill)
	assert.Equal(t, core.Fill(fill), s.Background())
}

func TestAttachDoesNotSelect(t *testing.T) {
	s := newTestScene(&fakeSurface{}, fakeDecoder{}, &fakeFonts{})
	id := s.Attach(&core.TextObject{Text: "preview only", FontSize: 8})
	require.NotEmpty(t, id)
	assert.Empty(t, s.SelectedID())
	require.Len(t, s.Objects(), 1)
}

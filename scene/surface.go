package scene

import (
	"context"
	"errors"
	"fmt"

	"xbanner/core"
)

type (
	// RasterOptions controls a rasterization pass. Width and Height are
	// the output pixel size; Scale maps object coordinates from the
	// scene's logical space into output pixels; Format is "png" or
	// "jpeg"; Quality applies to JPEG only, 0..1.
	RasterOptions struct {
		Width   int
		Height  int
		Scale   float64
		Format  string
		Quality float64
	}

	// Surface is the rasterization capability the scene issues commands
	// to. The concrete implementation lives in the render package; tests
	// swap in fakes so scene logic runs headless.
	Surface interface {
		// MeasureText returns the visual bounding box of a text object
		// after word wrapping at its MaxWidth.
		MeasureText(ctx context.Context, o *core.TextObject) (core.Bounds, error)

		// Rasterize paints the background and the objects back-to-front
		// and returns the encoded image.
		Rasterize(ctx context.Context, background core.Fill, objects []core.SceneObject, opts RasterOptions) ([]byte, error)
	}

	// ImageDecoder resolves an image source reference to its natural pixel
	// dimensions.
	ImageDecoder interface {
		Decode(ctx context.Context, source string) (width, height int, err error)
	}

	// FontProvider reports font readiness. Ensure returns once the family
	// is available for measurement; measurement is valid only after it
	// resolves.
	FontProvider interface {
		Ensure(ctx context.Context, family string) error
	}
)

// ErrSceneClosed is returned when an asynchronous completion lands on a
// scene that has already been torn down.
var ErrSceneClosed = errors.New("scene is closed")

// DecodeError wraps a failed image or font source resolution. It is scoped
// to the single add-object operation that triggered it; the scene itself
// stays valid.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

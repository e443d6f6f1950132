package core

const (
	// CanvasWidth and CanvasHeight are the only authoritative banner
	// resolution. Every preview surface is a scaled view of this space,
	// never an alternate "true" resolution.
	CanvasWidth  = 1500.0
	CanvasHeight = 500.0

	// ClampMargin keeps repositioned objects this many pixels inside the
	// canvas edge.
	ClampMargin = 20.0

	// MaxTextWidth caps text wrapping so text never extends into a 100px
	// margin on each side of the banner.
	MaxTextWidth = CanvasWidth - 200

	// MaxImageWidth and MaxImageHeight bound the footprint of a newly
	// placed image. The placement scale is chosen so the image fits this
	// box without upscaling.
	MaxImageWidth  = 300.0
	MaxImageHeight = 180.0
)

// Bounds is an axis-aligned box in canvas pixel space.
type Bounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Bounds) Right() float64 {
	return b.Left + b.Width
}

func (b Bounds) Bottom() float64 {
	return b.Top + b.Height
}

// Scale returns the bounds with every field multiplied by the per-axis
// factors.
func (b Bounds) Scale(sx, sy float64) Bounds {
	return Bounds{
		Left:   b.Left * sx,
		Top:    b.Top * sy,
		Width:  b.Width * sx,
		Height: b.Height * sy,
	}
}

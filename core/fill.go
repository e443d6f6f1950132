package core

type (
	// Fill is the paint applied to the banner background: either a solid
	// color or a multi-stop linear gradient.
	Fill interface {
		isFill()
	}

	// Solid is a single-color fill. Color is carried verbatim; an invalid
	// hex string is not rejected here and surfaces as a bad paint at render
	// time.
	Solid struct {
		Color string
	}

	// Stop is one color stop of a linear gradient. Position is a percentage
	// along the gradient axis, 0..100.
	Stop struct {
		Color    string
		Position int
	}

	// Linear is a CSS-style linear gradient. Angle is in degrees, measured
	// clockwise from vertical "up". Stops keep their authored order; they
	// are not required to be sorted by position.
	Linear struct {
		Angle int
		Stops []Stop
	}
)

func (Solid) isFill()  {}
func (Linear) isFill() {}

// Degenerate reports whether the gradient has too few stops to define a
// color transition. Lenient decoding can produce such gradients; the render
// surface falls back to a plain background for them.
func (l Linear) Degenerate() bool {
	return len(l.Stops) < 2
}

// Package gradient converts between the structured Fill types and the
// CSS-like background string stored in saved templates:
//
//	#RRGGBB
//	linear-gradient(<angle>deg, <#RRGGBB> <N>%, <#RRGGBB> <N>%, ...)
package gradient

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"xbanner/core"
)

const marker = "linear-gradient"

var (
	gradientRe = regexp.MustCompile(`linear-gradient\((\d+)deg,\s*(.+)\)`)
	stopRe     = regexp.MustCompile(`(#[0-9a-fA-F]{6})\s+(\d+)%`)
)

// Encode renders a Fill as its textual background form. Solid colors pass
// through unchanged; gradients emit their stops in stored order without
// re-sorting.
func Encode(f core.Fill) string {
	switch f := f.(type) {
	case core.Solid:
		return f.Color
	case core.Linear:
		parts := make([]string, 0, len(f.Stops))
		for _, s := range f.Stops {
			parts = append(parts, fmt.Sprintf("%s %d%%", s.Color, s.Position))
		}
		return fmt.Sprintf("linear-gradient(%ddeg, %s)", f.Angle, strings.Join(parts, ", "))
	}
	return ""
}

// Decode parses a background string. It never fails: anything that does not
// start with the linear-gradient marker is a Solid color taken verbatim,
// and within a gradient any stop that does not match the strict
// 6-hex-digit-color + integer-percent shape is silently skipped. A gradient
// with zero recognized stops decodes to a degenerate Linear; callers decide
// how to paint it (the render surface falls back to white).
func Decode(s string) core.Fill {
	if !strings.HasPrefix(s, marker) {
		return core.Solid{Color: s}
	}

	fill := core.Linear{}
	m := gradientRe.FindStringSubmatch(s)
	if m == nil {
		return fill
	}
	fill.Angle, _ = strconv.Atoi(m[1])

	for _, stop := range stopRe.FindAllStringSubmatch(m[2], -1) {
		position, _ := strconv.Atoi(stop[2])
		fill.Stops = append(fill.Stops, core.Stop{Color: stop[1], Position: position})
	}
	return fill
}

// Axis maps a CSS gradient angle onto the (x1,y1)-(x2,y2) gradient axis for
// a w×h surface. The angle is measured clockwise from vertical "up"; the
// endpoints are opposite points on the ellipse inscribed in the surface,
// centered at its middle. This reproduces CSS linear-gradient rendering at
// a given aspect ratio.
func Axis(angleDeg int, w, h float64) (x1, y1, x2, y2 float64) {
	rad := (float64(angleDeg) - 90) * math.Pi / 180
	cx, cy := w/2, h/2
	dx := math.Cos(rad) * w / 2
	dy := math.Sin(rad) * h / 2
	return cx - dx, cy - dy, cx + dx, cy + dy
}

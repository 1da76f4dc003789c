// Package placement describes where the artwork overlay sits on a mockup
// viewport: a normalized center point and a uniform scale factor.
package placement

import (
	"fmt"
	"math"

	"pocket-curator/pkg/geometry"
)

const (
	MinScale = 0.2
	MaxScale = 3.0

	// BaseWidth and BaseHeight are the overlay box at scale 1, as fractions of
	// the viewport width and height.
	BaseWidth  = 0.48
	BaseHeight = 0.32

	// WheelFactor converts a wheel deltaY into a scale change.
	WheelFactor = 0.001
)

// Placement is the center (normalized viewport coordinates) and scale of the
// overlay. The zero value is not valid; use Default.
type Placement struct {
	Center geometry.Point2D `json:"center"`
	Scale  float64          `json:"scale"`
}

// Default returns the placement a viewport starts with.
func Default() Placement {
	return Placement{Center: geometry.Point2D{X: 0.5, Y: 0.38}, Scale: 1.0}
}

// Clamp enforces the placement invariants: both center axes in [0, 1] and the
// scale in [MinScale, MaxScale]. NaN components fall back to Default.
func Clamp(p Placement) Placement {
	def := Default()
	if math.IsNaN(p.Center.X) {
		p.Center.X = def.Center.X
	}
	if math.IsNaN(p.Center.Y) {
		p.Center.Y = def.Center.Y
	}
	if math.IsNaN(p.Scale) {
		p.Scale = def.Scale
	}
	return Placement{
		Center: p.Center.Clamp01(),
		Scale:  ClampScale(p.Scale),
	}
}

// ClampScale limits s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	return geometry.Clamp(s, MinScale, MaxScale)
}

// WithCenter returns a clamped copy with the given center.
func (p Placement) WithCenter(c geometry.Point2D) Placement {
	p.Center = c
	return Clamp(p)
}

// WithScale returns a clamped copy with the given scale.
func (p Placement) WithScale(s float64) Placement {
	p.Scale = s
	return Clamp(p)
}

// Box returns the overlay rectangle in normalized viewport units. The box is
// not clamped and may extend past the viewport edges.
func (p Placement) Box() geometry.Rect {
	w := p.Scale * BaseWidth
	h := p.Scale * BaseHeight
	return geometry.Rect{
		X:      p.Center.X - w/2,
		Y:      p.Center.Y - h/2,
		Width:  w,
		Height: h,
	}
}

// Project re-projects the overlay box into a pixel frame of the given size.
// The same projection serves the on-screen viewport and the export canvas.
func (p Placement) Project(frame geometry.Size) geometry.Rect {
	return p.Box().ScaleBy(frame.Width, frame.Height)
}

// CenterIn returns the overlay center in pixels within a frame of the given size.
func (p Placement) CenterIn(frame geometry.Size) geometry.Point2D {
	return geometry.Point2D{X: p.Center.X * frame.Width, Y: p.Center.Y * frame.Height}
}

// Style holds percentage offsets equivalent to absolutely positioned CSS.
type Style struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CSS returns the overlay box as percentages of the viewport.
func (p Placement) CSS() Style {
	b := p.Box()
	return Style{Left: b.X * 100, Top: b.Y * 100, Width: b.Width * 100, Height: b.Height * 100}
}

func (p Placement) String() string {
	return fmt.Sprintf("center=(%.3f, %.3f) scale=%.3f", p.Center.X, p.Center.Y, p.Scale)
}

// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return floats.Distance([]float64{p.X, p.Y}, []float64{other.X, other.Y}, 2)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Clamp01 returns the point with both axes clamped to [0, 1].
func (p Point2D) Clamp01() Point2D {
	return Point2D{X: Clamp(p.X, 0, 1), Y: Clamp(p.Y, 0, 1)}
}

// Rect represents a rectangle with floating-point coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Contains returns true if the point is inside the rectangle.
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point2D {
	return Point2D{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// TopLeft returns the top-left corner.
func (r Rect) TopLeft() Point2D {
	return Point2D{X: r.X, Y: r.Y}
}

// BottomRight returns the bottom-right corner.
func (r Rect) BottomRight() Point2D {
	return Point2D{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Corners returns the four corners in the order top-left, top-right,
// bottom-left, bottom-right.
func (r Rect) Corners() [4]Point2D {
	return [4]Point2D{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X, Y: r.Y + r.Height},
		{X: r.X + r.Width, Y: r.Y + r.Height},
	}
}

// Size returns the rectangle dimensions.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// ScaleBy multiplies the horizontal components by sx and the vertical
// components by sy. Used to re-project normalized rectangles into pixels.
func (r Rect) ScaleBy(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, Width: r.Width * sx, Height: r.Height * sy}
}

// Translate returns the rectangle moved by the given offset.
func (r Rect) Translate(d Point2D) Rect {
	return Rect{X: r.X + d.X, Y: r.Y + d.Y, Width: r.Width, Height: r.Height}
}

// Contain returns the largest sub-rectangle of r that has the aspect ratio of
// content, centered on the axis that is not filled.
func (r Rect) Contain(content Size) Rect {
	if content.Width <= 0 || content.Height <= 0 || r.Width <= 0 || r.Height <= 0 {
		return Rect{X: r.X, Y: r.Y}
	}
	aspectSrc := content.Aspect()
	aspectDst := r.Width / r.Height

	if aspectSrc > aspectDst {
		// Content is relatively wider: fill width, center vertically
		h := r.Width / aspectSrc
		return Rect{X: r.X, Y: r.Y + (r.Height-h)/2, Width: r.Width, Height: h}
	}
	// Content is relatively taller (or equal): fill height, center horizontally
	w := r.Height * aspectSrc
	return Rect{X: r.X + (r.Width-w)/2, Y: r.Y, Width: w, Height: r.Height}
}

// ImageRect rounds the rectangle to the nearest integer pixel rectangle.
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)),
		int(math.Round(r.Y+r.Height)),
	)
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// SizeOf returns the pixel size of an image bounds rectangle.
func SizeOf(r image.Rectangle) Size {
	return Size{Width: float64(r.Dx()), Height: float64(r.Dy())}
}

// Aspect returns width divided by height, or 0 for an empty size.
func (s Size) Aspect() float64 {
	if s.Empty() {
		return 0
	}
	return s.Width / s.Height
}

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Clamp limits x to the range [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}


package canvas

import (
	"image"
	"image/color"
)

// drawDashedRect draws a dashed rectangle outline of the given thickness.
// dash is the length of each dash and gap in pixels.
func drawDashedRect(output *image.RGBA, r image.Rectangle, col color.RGBA, dash, thickness int) {
	if dash <= 0 {
		dash = 4
	}
	bounds := output.Bounds()
	set := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			output.SetRGBA(x, y, col)
		}
	}
	on := func(i int) bool {
		return (i/dash)%2 == 0
	}

	x1, y1, x2, y2 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	for t := 0; t < thickness; t++ {
		// Top and bottom edges
		for x := x1; x <= x2; x++ {
			if on(x - x1) {
				set(x, y1+t)
				set(x, y2-t)
			}
		}
		// Left and right edges
		for y := y1; y <= y2; y++ {
			if on(y - y1) {
				set(x1+t, y)
				set(x2-t, y)
			}
		}
	}
}

// drawCircle draws a filled circle with an outline ring of the given width.
func drawCircle(output *image.RGBA, cx, cy, r float64, fill, stroke color.RGBA, strokeWidth float64) {
	bounds := output.Bounds()

	// Integer bounds for iteration
	minX := int(cx - r - 1)
	maxX := int(cx + r + 1)
	minY := int(cy - r - 1)
	maxY := int(cy + r + 1)

	r2 := r * r
	inner := r - strokeWidth
	if inner < 0 {
		inner = 0
	}
	innerR2 := inner * inner

	for y := minY; y <= maxY; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := minX; x <= maxX; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			// Distance from pixel center squared
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			dist2 := dx*dx + dy*dy

			switch {
			case dist2 <= innerR2:
				output.SetRGBA(x, y, fill)
			case dist2 <= r2:
				output.SetRGBA(x, y, stroke)
			}
		}
	}
}

// Package colorutil provides shared color utilities for the mockup tool.
package colorutil

import (
	"image"
	"image/color"
	"sort"
)

// Common colors used by the viewport chrome.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	// Gold is the selection accent for borders and anchors.
	Gold = color.RGBA{R: 0xD2, G: 0xB8, B: 0x77, A: 255}
	// Ink is the dark panel background.
	Ink = color.RGBA{R: 0x1E, G: 0x1E, B: 0x1E, A: 255}
	// Danger is used for error status text.
	Danger = color.RGBA{R: 0xE5, G: 0x48, B: 0x4D, A: 255}
)

// WithAlpha returns c with its alpha replaced (non-premultiplied).
func WithAlpha(c color.Color, a uint8) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = a
	return n
}

// BorderColor estimates the background color of img from the median of its
// outermost pixel ring. Fully transparent pixels are ignored; if every
// border pixel is transparent the result is transparent.
func BorderColor(img image.Image) color.RGBA {
	b := img.Bounds()
	if b.Empty() {
		return color.RGBA{}
	}

	var rs, gs, bs []uint8
	sample := func(x, y int) {
		r, g, bl, a := img.At(x, y).RGBA()
		if a == 0 {
			return
		}
		rs = append(rs, uint8(r>>8))
		gs = append(gs, uint8(g>>8))
		bs = append(bs, uint8(bl>>8))
	}

	for x := b.Min.X; x < b.Max.X; x++ {
		sample(x, b.Min.Y)
		if b.Dy() > 1 {
			sample(x, b.Max.Y-1)
		}
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		sample(b.Min.X, y)
		if b.Dx() > 1 {
			sample(b.Max.X-1, y)
		}
	}

	if len(rs) == 0 {
		return color.RGBA{}
	}
	return color.RGBA{R: median(rs), G: median(gs), B: median(bs), A: 255}
}

func median(v []uint8) uint8 {
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
	return v[len(v)/2]
}

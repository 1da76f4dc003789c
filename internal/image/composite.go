package image

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"pocket-curator/pkg/geometry"

	"golang.org/x/image/draw"
)

// Scalers maps config names to x/image interpolators.
var Scalers = map[string]draw.Interpolator{
	"catmullrom":     draw.CatmullRom,
	"bilinear":       draw.BiLinear,
	"approxbilinear": draw.ApproxBiLinear,
	"nearest":        draw.NearestNeighbor,
}

// ScalerByName returns the named interpolator.
func ScalerByName(name string) (draw.Interpolator, error) {
	s, ok := Scalers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown scaler %q", name)
	}
	return s, nil
}

// Composite combines positioned layers into a single image.
type Composite struct {
	Width     int
	Height    int
	Layers    []*CompositeLayer
	BackColor color.Color
	Scaler    draw.Scaler
}

// CompositeLayer places an image into a destination rectangle in composite
// pixels. The rectangle may extend past the composite; drawing is clipped.
type CompositeLayer struct {
	Image image.Image
	Dst   geometry.Rect
}

// NewComposite creates a new Composite with the specified dimensions.
func NewComposite(width, height int) *Composite {
	return &Composite{
		Width:     width,
		Height:    height,
		BackColor: color.Transparent,
		Scaler:    draw.CatmullRom,
	}
}

// AddLayer adds a layer drawn into dst.
func (c *Composite) AddLayer(img image.Image, dst geometry.Rect) {
	c.Layers = append(c.Layers, &CompositeLayer{Image: img, Dst: dst})
}

// Render produces the final composited image.
func (c *Composite) Render() *image.RGBA {
	result := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))

	// Fill background
	draw.Draw(result, result.Bounds(), &image.Uniform{c.BackColor}, image.Point{}, draw.Src)

	for _, cl := range c.Layers {
		if cl == nil || cl.Image == nil {
			continue
		}
		c.compositeLayer(result, cl)
	}

	return result
}

// compositeLayer draws a single layer onto the result with Porter-Duff over.
func (c *Composite) compositeLayer(dst *image.RGBA, cl *CompositeLayer) {
	dr := cl.Dst.ImageRect()
	if dr.Empty() || !dr.Overlaps(dst.Bounds()) {
		return
	}
	src := cl.Image
	sr := src.Bounds()

	if dr.Dx() == sr.Dx() && dr.Dy() == sr.Dy() {
		draw.Draw(dst, dr, src, sr.Min, draw.Over)
		return
	}

	scaler := c.Scaler
	if scaler == nil {
		scaler = draw.CatmullRom
	}
	scaler.Scale(dst, dr, src, sr, draw.Over, nil)
}

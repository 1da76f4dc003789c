package canvas

import (
	"image"

	pcimage "pocket-curator/internal/image"
	"pocket-curator/internal/placement"
	"pocket-curator/pkg/colorutil"
	"pocket-curator/pkg/geometry"

	"golang.org/x/image/draw"
)

// Chrome sizes in screen pixels.
const (
	borderDash      = 6
	borderThickness = 2
	anchorStroke    = 2
)

// Scene is everything needed to paint one frame of the viewport.
type Scene struct {
	Background image.Image
	Overlay    image.Image
	Placement  placement.Placement
	// Frame is the viewport container in output pixels.
	Frame geometry.Rect
	// Selected draws the dashed selection border.
	Selected bool
	// Anchors are resize handle centers in output pixels.
	Anchors      []geometry.Point2D
	AnchorRadius float64
}

// FitFrame returns the largest rect of the given aspect (width/height)
// centered in a container of size.
func FitFrame(size geometry.Size, aspect float64) geometry.Rect {
	if aspect <= 0 {
		aspect = 1
	}
	return geometry.Rect{Width: size.Width, Height: size.Height}.Contain(geometry.Size{Width: aspect, Height: 1})
}

// Render paints the scene into a w x h image. The overlay is clipped to the
// frame and positioned exactly like the exported composite, scaled to the
// on-screen frame.
func Render(w, h int, s Scene) *image.RGBA {
	output := image.NewRGBA(image.Rect(0, 0, w, h))
	frame := s.Frame.ImageRect()
	if frame.Empty() {
		return output
	}

	fw, fh := frame.Dx(), frame.Dy()
	c := pcimage.NewComposite(fw, fh)
	c.BackColor = colorutil.White
	c.Scaler = draw.ApproxBiLinear
	if s.Background != nil {
		c.AddLayer(s.Background, geometry.Rect{Width: float64(fw), Height: float64(fh)})
	}
	if s.Overlay != nil {
		size := geometry.SizeOf(s.Overlay.Bounds())
		c.AddLayer(s.Overlay, pcimage.OverlayRect(geometry.NewSize(float64(fw), float64(fh)), size, s.Placement))
	}
	draw.Draw(output, frame, c.Render(), image.Point{}, draw.Src)

	if s.Selected {
		box := s.Placement.Project(s.Frame.Size()).Translate(s.Frame.TopLeft()).ImageRect()
		drawDashedRect(output, box, colorutil.Gold, borderDash, borderThickness)
	}
	for _, a := range s.Anchors {
		drawCircle(output, a.X, a.Y, s.AnchorRadius, colorutil.Gold, colorutil.White, anchorStroke)
	}
	return output
}

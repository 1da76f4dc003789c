package image

import (
	"errors"
	"fmt"
	"image"

	"pocket-curator/internal/placement"
	"pocket-curator/pkg/geometry"

	"golang.org/x/image/draw"
)

// ErrEmptyOutput is the cause of an ExportSerializationError when the encoder
// produced no bytes.
var ErrEmptyOutput = errors.New("encoder produced no data")

// ExportSerializationError reports that the composite could not be turned
// into an encoded image, or that doing so did not finish in time.
type ExportSerializationError struct {
	Err error
}

func (e *ExportSerializationError) Error() string {
	return fmt.Sprintf("failed to serialize composite: %v", e.Err)
}

func (e *ExportSerializationError) Unwrap() error {
	return e.Err
}

// Rasterizer flattens a background and an overlay placed on it into an
// encoded image.
type Rasterizer interface {
	Rasterize(background, overlay image.Image, p placement.Placement) ([]byte, error)
}

// OverlayRect returns where the overlay is drawn on a canvas of the given
// size: the placement box re-projected into canvas pixels, then shrunk to
// the overlay's aspect ratio and centered.
func OverlayRect(canvas geometry.Size, overlay geometry.Size, p placement.Placement) geometry.Rect {
	return p.Project(canvas).Contain(overlay)
}

// PNGRasterizer renders at the background's native resolution and encodes
// the result as PNG.
type PNGRasterizer struct {
	Scaler draw.Scaler
}

// NewPNGRasterizer creates a rasterizer using scaler for the overlay
// (CatmullRom when nil).
func NewPNGRasterizer(scaler draw.Scaler) *PNGRasterizer {
	if scaler == nil {
		scaler = draw.CatmullRom
	}
	return &PNGRasterizer{Scaler: scaler}
}

// Compose builds the composite image without encoding it.
func (r *PNGRasterizer) Compose(background, overlay image.Image, p placement.Placement) *image.RGBA {
	bb := background.Bounds()
	canvas := geometry.SizeOf(bb)

	c := NewComposite(bb.Dx(), bb.Dy())
	c.Scaler = r.Scaler
	c.AddLayer(background, geometry.Rect{Width: canvas.Width, Height: canvas.Height})
	c.AddLayer(overlay, OverlayRect(canvas, geometry.SizeOf(overlay.Bounds()), p))
	return c.Render()
}

// Rasterize implements Rasterizer.
func (r *PNGRasterizer) Rasterize(background, overlay image.Image, p placement.Placement) ([]byte, error) {
	if background == nil || overlay == nil {
		return nil, &ExportSerializationError{Err: fmt.Errorf("missing image")}
	}
	data, err := EncodePNG(r.Compose(background, overlay, placement.Clamp(p)))
	if err != nil {
		return nil, &ExportSerializationError{Err: err}
	}
	if len(data) == 0 {
		return nil, &ExportSerializationError{Err: ErrEmptyOutput}
	}
	return data, nil
}

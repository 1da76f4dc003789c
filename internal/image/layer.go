// Package image provides image loading, layer compositing and PNG export for
// merchandise mockups.
package image

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"pocket-curator/pkg/geometry"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Layer is a decoded image together with the bytes it was decoded from.
type Layer struct {
	Ref    string      // Path or URL the layer was loaded from
	Raw    []byte      // Original encoded bytes (nil for generated images)
	Format string      // Decoder name ("png", "jpeg", ...); "png" for generated images
	Image  image.Image // Decoded image data
}

// Decode decodes raw bytes into a Layer.
func Decode(ref string, raw []byte) (*Layer, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}
	return &Layer{Ref: ref, Raw: raw, Format: format, Image: img}, nil
}

// FromImage wraps an already decoded image in a Layer.
func FromImage(ref string, img image.Image) *Layer {
	return &Layer{Ref: ref, Format: "png", Image: img}
}

// Width returns the image width in pixels.
func (l *Layer) Width() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (l *Layer) Height() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dy()
}

// Size returns the image dimensions.
func (l *Layer) Size() geometry.Size {
	return geometry.Size{
		Width:  float64(l.Width()),
		Height: float64(l.Height()),
	}
}

// Bytes returns the layer's original encoded bytes, or a PNG encoding of the
// image when the layer was generated in memory.
func (l *Layer) Bytes() ([]byte, error) {
	if len(l.Raw) > 0 {
		return l.Raw, nil
	}
	if l.Image == nil {
		return nil, fmt.Errorf("layer %q has no image", l.Ref)
	}
	return EncodePNG(l.Image)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// SupportedFormats returns the list of supported image file extensions.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".tiff", ".tif", ".bmp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

package image

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocket-curator/internal/placement"
	"pocket-curator/pkg/geometry"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		r, g, b, a := c.RGBA()
		img.Pix[i] = uint8(r >> 8)
		img.Pix[i+1] = uint8(g >> 8)
		img.Pix[i+2] = uint8(b >> 8)
		img.Pix[i+3] = uint8(a >> 8)
	}
	return img
}

func makePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h, c)))
	return buf.Bytes()
}

func isBlue(c color.Color) bool {
	r, _, b, _ := c.RGBA()
	return b>>8 > 200 && r>>8 < 50
}

func isRed(c color.Color) bool {
	r, _, b, _ := c.RGBA()
	return r>>8 > 200 && b>>8 < 50
}

func TestOverlayRectSquareOnTallCanvas(t *testing.T) {
	p := placement.Placement{Center: geometry.Point2D{X: 0.5, Y: 0.5}, Scale: 1}
	r := OverlayRect(geometry.NewSize(800, 1000), geometry.NewSize(400, 400), p)

	assert.InDelta(t, 240.0, r.X, 1e-9, "32px inset inside the 384-wide box")
	assert.InDelta(t, 340.0, r.Y, 1e-9)
	assert.InDelta(t, 320.0, r.Width, 1e-9)
	assert.InDelta(t, 320.0, r.Height, 1e-9)
	assert.InDelta(t, 400.0, r.Center().X, 1e-9)
	assert.InDelta(t, 500.0, r.Center().Y, 1e-9)
}

func TestPNGRasterizerComposite(t *testing.T) {
	p := placement.Placement{Center: geometry.Point2D{X: 0.5, Y: 0.5}, Scale: 1}
	r := NewPNGRasterizer(nil)

	data, err := r.Rasterize(solid(800, 1000, red), solid(400, 400, blue), p)
	require.NoError(t, err)

	out, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 800, 1000), out.Bounds())

	assert.True(t, isBlue(out.At(400, 500)), "overlay center")
	assert.True(t, isBlue(out.At(245, 500)), "inside drawn rect")
	assert.True(t, isBlue(out.At(554, 500)))
	assert.True(t, isRed(out.At(235, 500)), "box padding left of the drawn rect")
	assert.True(t, isRed(out.At(565, 500)))
	assert.True(t, isRed(out.At(400, 335)))
	assert.True(t, isBlue(out.At(400, 345)))
	assert.True(t, isRed(out.At(10, 10)))
}

func TestPNGRasterizerClipsOffCanvas(t *testing.T) {
	p := placement.Placement{Center: geometry.Point2D{X: 0, Y: 0}, Scale: 3}
	img := NewPNGRasterizer(nil).Compose(solid(200, 100, red), solid(50, 50, blue), p)

	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())
	assert.True(t, isBlue(img.At(2, 2)))
	assert.True(t, isRed(img.At(190, 90)))
}

func TestPNGRasterizerMissingImage(t *testing.T) {
	_, err := NewPNGRasterizer(nil).Rasterize(nil, solid(1, 1, blue), placement.Default())
	var serr *ExportSerializationError
	assert.True(t, errors.As(err, &serr))
}

func TestCompositeTransparentOverlayKeepsBackground(t *testing.T) {
	c := NewComposite(10, 10)
	c.AddLayer(solid(10, 10, red), geometry.NewRect(0, 0, 10, 10))
	c.AddLayer(solid(5, 5, color.Transparent), geometry.NewRect(0, 0, 5, 5))
	out := c.Render()
	assert.True(t, isRed(out.At(2, 2)))
}

func TestScalerByName(t *testing.T) {
	for name := range Scalers {
		_, err := ScalerByName(name)
		assert.NoError(t, err)
	}
	_, err := ScalerByName("lanczos")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	layer, err := Decode("a.png", makePNG(t, 3, 2, red))
	require.NoError(t, err)
	assert.Equal(t, "png", layer.Format)
	assert.Equal(t, geometry.NewSize(3, 2), layer.Size())

	_, err = Decode("x", []byte("not an image"))
	assert.Error(t, err)
	_, err = Decode("x", nil)
	assert.Error(t, err)
}

func TestLayerBytes(t *testing.T) {
	raw := makePNG(t, 2, 2, red)
	layer, err := Decode("a.png", raw)
	require.NoError(t, err)
	b, err := layer.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, b, "original bytes are returned untouched")

	gen := FromImage("mem", solid(2, 2, blue))
	b, err = gen.Bytes()
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(b))
	assert.NoError(t, err)
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shirt.png"), makePNG(t, 4, 4, red), 0o644))

	l := FileLoader{Root: dir}
	layer, err := l.Load(context.Background(), "shirt.png")
	require.NoError(t, err)
	assert.Equal(t, 4, layer.Width())

	layer, err = l.Load(context.Background(), "file://"+filepath.Join(dir, "shirt.png"))
	require.NoError(t, err)
	assert.Equal(t, 4, layer.Height())

	_, err = l.Load(context.Background(), "missing.png")
	assert.Error(t, err)
}

func TestHTTPLoader(t *testing.T) {
	body := makePNG(t, 6, 3, blue)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/art.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		case "/garbage":
			_, _ = w.Write([]byte("<html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := MultiLoader{HTTP: HTTPLoader{Client: srv.Client()}}
	layer, err := l.Load(context.Background(), srv.URL+"/art.png")
	require.NoError(t, err)
	assert.Equal(t, 6, layer.Width())

	_, err = l.Load(context.Background(), srv.URL+"/nope.png")
	assert.ErrorContains(t, err, "404")

	_, err = l.Load(context.Background(), srv.URL+"/garbage")
	assert.Error(t, err)

	small := HTTPLoader{Client: srv.Client(), MaxBytes: 10}
	_, err = small.Load(context.Background(), srv.URL+"/art.png")
	assert.ErrorContains(t, err, "exceeds")
}

func TestLoadAsWrapsErrors(t *testing.T) {
	mem := NewMemoryLoader(nil)
	mem.Put(FromImage("bg", solid(2, 2, red)))

	layer, err := LoadAs(context.Background(), mem, RoleBackground, "bg")
	require.NoError(t, err)
	assert.Equal(t, "bg", layer.Ref)

	_, err = LoadAs(context.Background(), mem, RoleOverlay, "missing")
	var lerr *ImageLoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, RoleOverlay, lerr.Role)
	assert.Equal(t, "missing", lerr.Ref)

	_, err = LoadAs(context.Background(), mem, RoleOverlay, "")
	assert.True(t, errors.As(err, &lerr))
}

func TestIsSupportedFormat(t *testing.T) {
	assert.True(t, IsSupportedFormat("mug.PNG"))
	assert.True(t, IsSupportedFormat("art.webp"))
	assert.False(t, IsSupportedFormat("notes.txt"))
}

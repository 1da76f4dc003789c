package compositor

import (
	"bytes"
	"context"
	"errors"
	goimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pocket-curator/internal/bgremove"
	"pocket-curator/internal/gesture"
	"pocket-curator/internal/image"
	"pocket-curator/internal/placement"
	"pocket-curator/pkg/geometry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	red   = color.RGBA{R: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
)

func solid(w, h int, c color.RGBA) *goimage.RGBA {
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func encoded(t *testing.T, img goimage.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fixtures(t *testing.T) *image.MemoryLoader {
	t.Helper()
	mem := image.NewMemoryLoader(nil)
	bg, err := image.Decode("shirt.png", encoded(t, solid(800, 1000, red)))
	require.NoError(t, err)
	art, err := image.Decode("art.png", encoded(t, solid(400, 400, blue)))
	require.NoError(t, err)
	mem.Put(bg)
	mem.Put(art)
	return mem
}

func newViewport(t *testing.T, opts Options) *Viewport {
	t.Helper()
	if opts.Loader == nil {
		opts.Loader = fixtures(t)
	}
	if opts.Background == "" {
		opts.Background = "shirt.png"
	}
	if opts.Overlay == "" {
		opts.Overlay = "art.png"
	}
	v := NewViewport(opts)
	t.Cleanup(v.Unmount)
	return v
}

func processor(t *testing.T, fn bgremove.RemoverFunc) *bgremove.Processor {
	t.Helper()
	p, err := bgremove.NewProcessor(fn, bgremove.Options{})
	require.NoError(t, err)
	return p
}

func colorAt(img goimage.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

// blockingRasterizer waits for release before delegating.
type blockingRasterizer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingRasterizer() *blockingRasterizer {
	return &blockingRasterizer{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingRasterizer) Rasterize(bg, overlay goimage.Image, p placement.Placement) ([]byte, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return image.NewPNGRasterizer(nil).Rasterize(bg, overlay, p)
}

type rasterizerFunc func(bg, overlay goimage.Image, p placement.Placement) ([]byte, error)

func (f rasterizerFunc) Rasterize(bg, overlay goimage.Image, p placement.Placement) ([]byte, error) {
	return f(bg, overlay, p)
}

func TestNewViewportDefaults(t *testing.T) {
	a := newViewport(t, Options{})
	b := newViewport(t, Options{})

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, placement.Default(), a.Placement())
	assert.False(t, a.Busy())
	assert.True(t, a.Mounted())
}

func TestExportComposite(t *testing.T) {
	v := newViewport(t, Options{Title: "My  Cool\tArt"})
	v.Machine().SetPlacement(placement.Placement{Center: geometry.Point2D{X: 0.5, Y: 0.5}, Scale: 1})

	d, err := v.ExportComposite(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "My_Cool_Art_composite.png", d.Name)
	assert.Equal(t, "image/png", d.MIME)

	out, err := png.Decode(bytes.NewReader(d.Data))
	require.NoError(t, err)
	assert.Equal(t, goimage.Rect(0, 0, 800, 1000), out.Bounds(), "native background resolution")
	assert.Equal(t, blue, colorAt(out, 400, 500))
	assert.Equal(t, red, colorAt(out, 230, 500))
	assert.Equal(t, red, colorAt(out, 10, 10))
}

func TestExportCompositeUsesLatestPlacement(t *testing.T) {
	v := newViewport(t, Options{})
	m := v.Machine()
	m.SetFrame(geometry.NewRect(0, 0, 300, 400))

	// Drag the overlay to the top-left corner.
	m.PointerDownAt(geometry.Point2D{X: 150, Y: 152})
	m.Window().PointerMove(geometry.Point2D{X: -1000, Y: -1000})
	m.Window().PointerUp(geometry.Point2D{X: -1000, Y: -1000})
	require.Equal(t, geometry.Point2D{}, v.Placement().Center)

	d, err := v.ExportComposite(context.Background())
	require.NoError(t, err)
	out, err := png.Decode(bytes.NewReader(d.Data))
	require.NoError(t, err)
	assert.Equal(t, blue, colorAt(out, 2, 2), "overlay clipped at the corner")
	assert.Equal(t, red, colorAt(out, 400, 500))
}

func TestExportCompositeBusy(t *testing.T) {
	r := newBlockingRasterizer()
	v := newViewport(t, Options{Rasterizer: r})

	var (
		first    Download
		firstErr error
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = v.ExportComposite(context.Background())
	}()

	<-r.started
	assert.True(t, v.Busy())
	_, err := v.ExportComposite(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(r.release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.NotEmpty(t, first.Data)
	assert.False(t, v.Busy())

	// The guard is released afterwards.
	_, err = v.ExportComposite(context.Background())
	assert.NoError(t, err)
}

func TestExportCompositeTimeout(t *testing.T) {
	r := newBlockingRasterizer()
	defer close(r.release)
	v := newViewport(t, Options{Rasterizer: r, ExportTimeout: 20 * time.Millisecond})

	_, err := v.ExportComposite(context.Background())
	var serr *image.ExportSerializationError
	require.True(t, errors.As(err, &serr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, v.Busy())
	assert.Equal(t, err, v.Status().Err)
}

func TestExportCompositeRasterizerFailure(t *testing.T) {
	boom := errors.New("encoder exploded")
	v := newViewport(t, Options{Rasterizer: rasterizerFunc(func(bg, overlay goimage.Image, p placement.Placement) ([]byte, error) {
		return nil, boom
	})})

	_, err := v.ExportComposite(context.Background())
	var serr *image.ExportSerializationError
	require.True(t, errors.As(err, &serr))
	assert.ErrorIs(t, err, boom)
}

func TestExportCompositeEmptyOutput(t *testing.T) {
	v := newViewport(t, Options{Rasterizer: rasterizerFunc(func(bg, overlay goimage.Image, p placement.Placement) ([]byte, error) {
		return nil, nil
	})})

	_, err := v.ExportComposite(context.Background())
	assert.ErrorIs(t, err, image.ErrEmptyOutput)
}

func TestExportCompositeMissingBackground(t *testing.T) {
	v := newViewport(t, Options{Background: "nope.png"})

	_, err := v.ExportComposite(context.Background())
	var lerr *image.ImageLoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, image.RoleBackground, lerr.Role)
	assert.Equal(t, "nope.png", lerr.Ref)
}

func TestExportCompositeAfterUnmount(t *testing.T) {
	v := newViewport(t, Options{})
	v.Unmount()
	_, err := v.ExportComposite(context.Background())
	assert.ErrorIs(t, err, ErrUnmounted)
}

func TestUnmountDiscardsPendingExport(t *testing.T) {
	r := newBlockingRasterizer()
	defer close(r.release)
	v := newViewport(t, Options{Rasterizer: r})

	var statuses []Status
	var mu sync.Mutex
	v.OnStatus(func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})

	errc := make(chan error, 1)
	go func() {
		_, err := v.ExportComposite(context.Background())
		errc <- err
	}()
	<-r.started
	v.Unmount()

	assert.ErrorIs(t, <-errc, ErrUnmounted)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, statuses, 1, "no status is reported after unmount")
	assert.True(t, statuses[0].Exporting)
}

func TestUnmountRemovesWindowHandlers(t *testing.T) {
	v := newViewport(t, Options{})
	m := v.Machine()
	m.SetFrame(geometry.NewRect(0, 0, 300, 400))
	m.PointerDownAt(geometry.Point2D{X: 150, Y: 152})
	require.Greater(t, m.Window().Len(), 0)

	v.Unmount()
	assert.Equal(t, 0, m.Window().Len())
	assert.False(t, v.Mounted())
	v.Unmount()
}

func TestToggleBackgroundRemoval(t *testing.T) {
	var calls int
	proc := processor(t, func(ctx context.Context, img goimage.Image) (goimage.Image, error) {
		calls++
		return solid(400, 400, green), nil
	})
	v := newViewport(t, Options{Processor: proc, Title: "Sunset"})

	src, err := v.OverlaySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, blue, colorAt(src, 0, 0))

	require.NoError(t, v.ToggleBackgroundRemoval(context.Background()))
	assert.True(t, v.UseProcessed())
	assert.True(t, v.HasProcessed())
	src, err = v.OverlaySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, green, colorAt(src, 0, 0))

	d, err := v.ExportOverlayOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sunset_artwork.png", d.Name)
	out, err := png.Decode(bytes.NewReader(d.Data))
	require.NoError(t, err)
	assert.Equal(t, green, colorAt(out, 0, 0))

	require.NoError(t, v.ToggleBackgroundRemoval(context.Background()))
	assert.False(t, v.UseProcessed())
	src, err = v.OverlaySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, blue, colorAt(src, 0, 0))

	// Turning it back on reuses the processed variant.
	require.NoError(t, v.ToggleBackgroundRemoval(context.Background()))
	assert.True(t, v.UseProcessed())
	assert.Equal(t, 1, calls)
}

func TestToggleBackgroundRemovalFailureFallsBack(t *testing.T) {
	boom := errors.New("no model")
	proc := processor(t, func(ctx context.Context, img goimage.Image) (goimage.Image, error) {
		return nil, boom
	})
	v := newViewport(t, Options{Processor: proc})

	err := v.ToggleBackgroundRemoval(context.Background())
	assert.ErrorIs(t, err, bgremove.ErrProcessingUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.True(t, v.UseProcessed())
	assert.False(t, v.HasProcessed())
	assert.Equal(t, err, v.Status().Err)

	src, err := v.OverlaySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, blue, colorAt(src, 0, 0), "original is shown")

	d, err := v.ExportComposite(context.Background())
	require.NoError(t, err)
	out, err := png.Decode(bytes.NewReader(d.Data))
	require.NoError(t, err)
	assert.Equal(t, blue, colorAt(out, 400, 380))
}

func TestToggleWithoutProcessor(t *testing.T) {
	v := newViewport(t, Options{})
	err := v.ToggleBackgroundRemoval(context.Background())
	assert.ErrorIs(t, err, bgremove.ErrProcessingUnavailable)
}

func TestToggleBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	proc := processor(t, func(ctx context.Context, img goimage.Image) (goimage.Image, error) {
		close(started)
		<-release
		return solid(4, 4, green), nil
	})
	v := newViewport(t, Options{Processor: proc})

	errc := make(chan error, 1)
	go func() { errc <- v.ToggleBackgroundRemoval(context.Background()) }()
	<-started

	assert.True(t, v.Status().Processing)
	assert.ErrorIs(t, v.ToggleBackgroundRemoval(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, <-errc)
	assert.True(t, v.UseProcessed())
	assert.False(t, v.Status().Processing)
}

func TestUnmountDiscardsPendingProcessing(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	proc := processor(t, func(ctx context.Context, img goimage.Image) (goimage.Image, error) {
		close(started)
		<-release
		return solid(4, 4, green), nil
	})
	v := newViewport(t, Options{Processor: proc})

	errc := make(chan error, 1)
	go func() { errc <- v.ToggleBackgroundRemoval(context.Background()) }()
	<-started
	v.Unmount()

	assert.ErrorIs(t, <-errc, ErrUnmounted)
	assert.False(t, v.HasProcessed())
	assert.False(t, v.UseProcessed())

	close(release)
	assert.Eventually(t, func() bool {
		_, ok := proc.Cached("art.png")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestSetOverlayDropsProcessed(t *testing.T) {
	proc := processor(t, func(ctx context.Context, img goimage.Image) (goimage.Image, error) {
		return solid(4, 4, green), nil
	})
	v := newViewport(t, Options{Processor: proc})
	require.NoError(t, v.ToggleBackgroundRemoval(context.Background()))

	v.SetOverlay("other.png")
	assert.False(t, v.UseProcessed())
	assert.False(t, v.HasProcessed())
	assert.Equal(t, "other.png", v.Overlay())

	_, err := v.OverlaySource(context.Background())
	var lerr *image.ImageLoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, image.RoleOverlay, lerr.Role)
}

func TestSetBackgroundKeepsPlacement(t *testing.T) {
	v := newViewport(t, Options{})
	p := placement.Placement{Center: geometry.Point2D{X: 0.2, Y: 0.7}, Scale: 1.5}
	v.Machine().SetPlacement(p)

	v.SetBackground("mug.png")
	assert.Equal(t, "mug.png", v.Background())
	assert.Equal(t, p, v.Placement())
}

func TestExportOverlayOnlyOriginalBytes(t *testing.T) {
	mem := fixtures(t)
	v := newViewport(t, Options{Loader: mem, Title: " "})

	d, err := v.ExportOverlayOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Artwork_artwork.png", d.Name)

	layer, err := mem.Load(context.Background(), "art.png")
	require.NoError(t, err)
	assert.Equal(t, layer.Raw, d.Data)
}

func TestOnChangeForwarded(t *testing.T) {
	v := newViewport(t, Options{})
	var got []placement.Placement
	v.Machine().SetFrame(geometry.NewRect(0, 0, 300, 400))
	v.OnChange(func(p placement.Placement, _ gesture.State) {
		got = append(got, p)
	})
	v.Machine().SetPlacement(placement.Placement{Center: geometry.Point2D{X: 0.1, Y: 0.1}, Scale: 2})
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Scale)
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"Sunset":          "Sunset_x.png",
		"Blue  Moon Rise": "Blue_Moon_Rise_x.png",
		"  padded\n":      "padded_x.png",
		"":                "Artwork_x.png",
	}
	for title, want := range cases {
		assert.Equal(t, want, FileName(title, "x"), title)
	}
}

func TestDownloadSave(t *testing.T) {
	d := Download{Name: "a_composite.png", Data: []byte{1, 2, 3}}
	dir := filepath.Join(t.TempDir(), "nested")

	path, err := d.Save(dir)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, d.Data, data)

	var buf bytes.Buffer
	n, err := d.SaveTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = Download{Name: "empty.png"}.Save(dir)
	assert.Error(t, err)
}

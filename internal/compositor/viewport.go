// Package compositor ties one product mockup together: the overlay's gesture
// machine, the background and overlay sources, background removal and the
// exports built from them.
package compositor

import (
	"context"
	"errors"
	"fmt"
	goimage "image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"pocket-curator/internal/bgremove"
	"pocket-curator/internal/gesture"
	"pocket-curator/internal/image"
	"pocket-curator/internal/placement"
)

var (
	// ErrBusy is returned when an export or processing run is requested while
	// the same kind of operation is still pending. The request is dropped.
	ErrBusy = errors.New("operation already in progress")
	// ErrUnmounted is returned for work that finished after the viewport was
	// unmounted. Its result has been discarded.
	ErrUnmounted = errors.New("viewport unmounted")
)

// DefaultExportTimeout bounds a single export.
const DefaultExportTimeout = 30 * time.Second

// Status describes the viewport's pending work.
type Status struct {
	Processing   bool
	Exporting    bool
	UseProcessed bool
	HasProcessed bool
	// Err is the most recent failure, cleared when a new operation starts.
	Err error
}

// Busy reports whether any operation is pending.
func (s Status) Busy() bool {
	return s.Processing || s.Exporting
}

// Options configures a Viewport.
type Options struct {
	Title      string
	Background string
	Overlay    string

	Loader     image.Loader
	Rasterizer image.Rasterizer
	// Processor may be nil, in which case background removal is unavailable.
	Processor *bgremove.Processor

	ExportTimeout time.Duration
	// Anchors enables the desktop corner handles.
	Anchors bool
	Logger  *zap.Logger
}

// Viewport is one mockup instance. Gesture input is fed to Machine from the
// UI goroutine; exports and background removal may run on any goroutine.
type Viewport struct {
	id      string
	log     *zap.Logger
	machine *gesture.Machine

	loader        image.Loader
	rasterizer    image.Rasterizer
	processor     *bgremove.Processor
	exportTimeout time.Duration

	exportSem  *semaphore.Weighted
	processSem *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	title        string
	background   string
	overlay      string
	original     *image.Layer
	processed    goimage.Image
	useProcessed bool
	placement    placement.Placement
	status       Status
	onStatus     func(Status)
	onChange     gesture.ChangeFunc
}

// NewViewport creates a mounted viewport.
func NewViewport(opts Options) *Viewport {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loader := opts.Loader
	if loader == nil {
		loader = image.MultiLoader{}
	}
	rasterizer := opts.Rasterizer
	if rasterizer == nil {
		rasterizer = image.NewPNGRasterizer(nil)
	}
	timeout := opts.ExportTimeout
	if timeout <= 0 {
		timeout = DefaultExportTimeout
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewport{
		id:            id,
		log:           log.With(zap.String("viewport", id)),
		machine:       gesture.NewMachine(gesture.NewWindow(), gesture.Options{Anchors: opts.Anchors}),
		loader:        loader,
		rasterizer:    rasterizer,
		processor:     opts.Processor,
		exportTimeout: timeout,
		exportSem:     semaphore.NewWeighted(1),
		processSem:    semaphore.NewWeighted(1),
		ctx:           ctx,
		cancel:        cancel,
		title:         opts.Title,
		background:    opts.Background,
		overlay:       opts.Overlay,
		placement:     placement.Default(),
	}
	v.machine.OnChange(v.placementChanged)
	return v
}

// ID returns the viewport's unique identifier.
func (v *Viewport) ID() string {
	return v.id
}

// Machine returns the gesture machine driving the overlay. It must only be
// used from the UI goroutine.
func (v *Viewport) Machine() *gesture.Machine {
	return v.machine
}

// OnChange sets a callback invoked after every placement or state change.
func (v *Viewport) OnChange(fn gesture.ChangeFunc) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// OnStatus sets a callback invoked whenever the pending work or the last
// error changes. It may be called from any goroutine.
func (v *Viewport) OnStatus(fn func(Status)) {
	v.mu.Lock()
	v.onStatus = fn
	v.mu.Unlock()
}

func (v *Viewport) placementChanged(p placement.Placement, s gesture.State) {
	v.mu.Lock()
	v.placement = p
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn(p, s)
	}
}

// Placement returns a snapshot of the overlay placement. Safe from any
// goroutine.
func (v *Viewport) Placement() placement.Placement {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.placement
}

// Title returns the artwork title used for download names.
func (v *Viewport) Title() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.title
}

// SetTitle sets the artwork title.
func (v *Viewport) SetTitle(title string) {
	v.mu.Lock()
	v.title = title
	v.mu.Unlock()
}

// Background returns the background reference.
func (v *Viewport) Background() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.background
}

// SetBackground switches the merchandise image. The placement is kept.
func (v *Viewport) SetBackground(ref string) {
	v.mu.Lock()
	v.background = ref
	v.mu.Unlock()
}

// Overlay returns the original overlay reference.
func (v *Viewport) Overlay() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.overlay
}

// SetOverlay switches the artwork, dropping any processed variant.
func (v *Viewport) SetOverlay(ref string) {
	v.mu.Lock()
	if ref != v.overlay {
		v.overlay = ref
		v.original = nil
		v.processed = nil
		v.useProcessed = false
	}
	v.mu.Unlock()
	v.updateStatus(func(s *Status) {
		s.UseProcessed = false
		s.HasProcessed = false
	})
}

// UseProcessed reports whether the processed overlay is requested.
func (v *Viewport) UseProcessed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.useProcessed
}

// HasProcessed reports whether a processed overlay is available.
func (v *Viewport) HasProcessed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.processed != nil
}

// SetUseProcessed sets the flag directly. When no processed variant exists
// the overlay keeps rendering the original.
func (v *Viewport) SetUseProcessed(use bool) {
	v.mu.Lock()
	v.useProcessed = use
	v.mu.Unlock()
	v.updateStatus(func(s *Status) { s.UseProcessed = use })
}

// Status returns the current status.
func (v *Viewport) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Busy reports whether an export or processing run is pending.
func (v *Viewport) Busy() bool {
	return v.Status().Busy()
}

// Mounted reports whether Unmount has not been called.
func (v *Viewport) Mounted() bool {
	return v.ctx.Err() == nil
}

// Unmount tears the viewport down: any gesture session is ended, its window
// handlers removed, and results of pending operations are discarded.
func (v *Viewport) Unmount() {
	if !v.Mounted() {
		return
	}
	v.cancel()
	v.machine.Close()
	v.mu.Lock()
	v.onStatus = nil
	v.onChange = nil
	v.mu.Unlock()
	v.log.Debug("Viewport unmounted")
}

// BackgroundImage loads the merchandise image.
func (v *Viewport) BackgroundImage(ctx context.Context) (*image.Layer, error) {
	ctx, done := v.opContext(ctx)
	defer done()
	return image.LoadAs(ctx, v.loader, image.RoleBackground, v.Background())
}

// OverlaySource returns the image the overlay should render: the processed
// variant when requested and available, otherwise the original. It only
// fails when the original itself cannot be loaded.
func (v *Viewport) OverlaySource(ctx context.Context) (goimage.Image, error) {
	v.mu.Lock()
	if v.useProcessed && v.processed != nil {
		img := v.processed
		v.mu.Unlock()
		return img, nil
	}
	v.mu.Unlock()

	ctx, done := v.opContext(ctx)
	defer done()
	layer, err := v.originalLayer(ctx)
	if err != nil {
		return nil, err
	}
	return layer.Image, nil
}

// originalLayer loads the overlay, memoizing the decoded layer.
func (v *Viewport) originalLayer(ctx context.Context) (*image.Layer, error) {
	v.mu.Lock()
	ref, cached := v.overlay, v.original
	v.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	layer, err := image.LoadAs(ctx, v.loader, image.RoleOverlay, ref)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	if v.overlay == ref {
		v.original = layer
	}
	v.mu.Unlock()
	return layer, nil
}

// ToggleBackgroundRemoval flips between the original and the processed
// overlay. Turning it on processes the original first unless a processed
// variant already exists. If processing fails the flag is still set, the
// overlay keeps showing the original and the error wraps
// bgremove.ErrProcessingUnavailable.
func (v *Viewport) ToggleBackgroundRemoval(ctx context.Context) error {
	if !v.Mounted() {
		return ErrUnmounted
	}
	if v.UseProcessed() {
		v.SetUseProcessed(false)
		return nil
	}
	if !v.processSem.TryAcquire(1) {
		return ErrBusy
	}
	defer v.processSem.Release(1)

	if v.HasProcessed() {
		v.SetUseProcessed(true)
		return nil
	}

	ctx, done := v.opContext(ctx)
	defer done()

	v.updateStatus(func(s *Status) {
		s.Processing = true
		s.Err = nil
	})
	ref := v.Overlay()
	out, err := v.process(ctx, ref)

	if !v.Mounted() {
		v.log.Debug("Discarding background removal result", zap.String("ref", ref))
		return ErrUnmounted
	}

	v.mu.Lock()
	stale := v.overlay != ref
	if err == nil && !stale {
		v.processed = out
	}
	if !stale {
		v.useProcessed = true
	}
	has := v.processed != nil
	use := v.useProcessed
	v.mu.Unlock()

	v.updateStatus(func(s *Status) {
		s.Processing = false
		s.UseProcessed = use
		s.HasProcessed = has
		s.Err = err
	})
	if err != nil {
		v.log.Warn("Background removal unavailable, showing original", zap.String("ref", ref), zap.Error(err))
		return err
	}
	v.log.Info("Background removed", zap.String("ref", ref))
	return nil
}

func (v *Viewport) process(ctx context.Context, ref string) (goimage.Image, error) {
	if v.processor == nil {
		return nil, fmt.Errorf("%w: no processor configured", bgremove.ErrProcessingUnavailable)
	}
	if img, ok := v.processor.Cached(ref); ok {
		return img, nil
	}
	layer, err := v.originalLayer(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bgremove.ErrProcessingUnavailable, err)
	}
	return v.processor.Process(ctx, ref, layer.Image)
}

// opContext derives a context that is also cancelled on Unmount.
func (v *Viewport) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (v *Viewport) updateStatus(fn func(*Status)) {
	v.mu.Lock()
	fn(&v.status)
	s := v.status
	cb := v.onStatus
	v.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

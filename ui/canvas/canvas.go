// Package canvas provides the interactive mockup viewport widget.
package canvas

import (
	"context"
	"image"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"pocket-curator/internal/compositor"
	"pocket-curator/internal/gesture"
	"pocket-curator/internal/placement"
	"pocket-curator/pkg/geometry"
)

// wheelPixels converts fyne scroll deltas to browser-style wheel deltas.
const wheelPixels = 10

// MockupCanvas shows one viewport: the product photo with the artwork
// overlay, and routes pointer input to the viewport's gesture machine.
type MockupCanvas struct {
	widget.BaseWidget

	viewport *compositor.Viewport
	raster   *fynecanvas.Raster

	mu         sync.Mutex
	background image.Image
	overlay    image.Image
	aspect     float64
	view       view
	lastOutput *image.RGBA

	// input serializes gesture machine access from event and layout callbacks.
	input sync.Mutex

	// Interaction state
	touchMode bool
	pressed   bool
	lastPos   geometry.Point2D

	// Callbacks
	onError  func(err error)
	onChange gesture.ChangeFunc
}

// view is the machine state the raster draws, captured on the input side.
type view struct {
	placement    placement.Placement
	frame        geometry.Rect
	selected     bool
	anchors      []geometry.Point2D
	anchorRadius float64
}

// NewMockupCanvas creates a canvas for v. aspect is the product photo's
// width/height.
func NewMockupCanvas(v *compositor.Viewport, aspect float64) *MockupCanvas {
	mc := &MockupCanvas{
		viewport: v,
		aspect:   aspect,
	}

	// Create the raster for drawing
	mc.raster = fynecanvas.NewRaster(mc.draw)
	mc.raster.ScaleMode = fynecanvas.ImageScalePixels

	mc.capture()
	v.OnChange(func(p placement.Placement, s gesture.State) {
		mc.capture()
		mc.raster.Refresh()
		if mc.onChange != nil {
			mc.onChange(p, s)
		}
	})

	mc.ExtendBaseWidget(mc)
	return mc
}

// Viewport returns the viewport shown by the canvas.
func (mc *MockupCanvas) Viewport() *compositor.Viewport {
	return mc.viewport
}

// SetTouchMode routes drags through the touch gesture path instead of the
// mouse path. Used on mobile where there are no hover or anchor handles.
func (mc *MockupCanvas) SetTouchMode(touch bool) {
	mc.input.Lock()
	defer mc.input.Unlock()
	mc.touchMode = touch
	mc.viewport.Machine().SetAnchors(!touch)
}

// SetAspect changes the product aspect ratio and re-lays out the frame.
func (mc *MockupCanvas) SetAspect(aspect float64) {
	mc.mu.Lock()
	mc.aspect = aspect
	mc.mu.Unlock()
	mc.updateFrame(mc.Size())
	mc.Refresh()
}

// OnError sets a callback for load failures.
func (mc *MockupCanvas) OnError(callback func(err error)) {
	mc.onError = callback
}

// OnPlacementChanged sets a callback for placement and gesture state changes.
func (mc *MockupCanvas) OnPlacementChanged(callback gesture.ChangeFunc) {
	mc.onChange = callback
}

// Reload fetches the background and the current overlay source and redraws.
// It blocks; call it from a goroutine.
func (mc *MockupCanvas) Reload(ctx context.Context) error {
	bg, err := mc.viewport.BackgroundImage(ctx)
	if err != nil {
		mc.fail(err)
		return err
	}
	// No artwork chosen yet: show the bare product.
	var ov image.Image
	if mc.viewport.Overlay() != "" {
		ov, err = mc.viewport.OverlaySource(ctx)
		if err != nil {
			mc.fail(err)
			return err
		}
	}
	if !mc.viewport.Mounted() {
		return compositor.ErrUnmounted
	}

	mc.mu.Lock()
	mc.background = bg.Image
	mc.overlay = ov
	mc.mu.Unlock()
	mc.Refresh()
	return nil
}

// ReloadOverlay refreshes only the overlay source, after toggling
// background removal.
func (mc *MockupCanvas) ReloadOverlay(ctx context.Context) error {
	ov, err := mc.viewport.OverlaySource(ctx)
	if err != nil {
		mc.fail(err)
		return err
	}
	if !mc.viewport.Mounted() {
		return compositor.ErrUnmounted
	}
	mc.mu.Lock()
	mc.overlay = ov
	mc.mu.Unlock()
	mc.Refresh()
	return nil
}

func (mc *MockupCanvas) fail(err error) {
	if mc.onError != nil {
		mc.onError(err)
	}
}

// GetRenderedOutput returns the last rendered frame.
func (mc *MockupCanvas) GetRenderedOutput() *image.RGBA {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lastOutput
}

// Deselect clears the selection, as a press outside the viewport does.
func (mc *MockupCanvas) Deselect() {
	mc.input.Lock()
	defer mc.input.Unlock()
	mc.viewport.Machine().PointerDown(gesture.TargetOutside, geometry.Point2D{})
}

// DeselectFirst wraps a handler for a control outside the canvas so that
// pressing it deselects the overlay before fn runs.
func (mc *MockupCanvas) DeselectFirst(fn func()) func() {
	return func() {
		mc.Deselect()
		if fn != nil {
			fn()
		}
	}
}

// Refresh refreshes the canvas display.
func (mc *MockupCanvas) Refresh() {
	mc.raster.Refresh()
}

func (mc *MockupCanvas) updateFrame(size fyne.Size) {
	mc.mu.Lock()
	aspect := mc.aspect
	mc.mu.Unlock()
	frame := FitFrame(geometry.NewSize(float64(size.Width), float64(size.Height)), aspect)
	mc.input.Lock()
	mc.viewport.Machine().SetFrame(frame)
	mc.capture()
	mc.input.Unlock()
}

// capture copies the machine state into the view. It runs on the goroutine
// driving the machine: from input handlers, layout and change callbacks.
func (mc *MockupCanvas) capture() {
	m := mc.viewport.Machine()
	v := view{
		placement:    m.Placement(),
		frame:        m.Frame(),
		selected:     m.Selected(),
		anchors:      m.Anchors(),
		anchorRadius: m.AnchorRadius(),
	}
	mc.mu.Lock()
	mc.view = v
	mc.mu.Unlock()
}

func toPoint(p fyne.Position) geometry.Point2D {
	return geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// MouseDown implements desktop.Mouseable.
func (mc *MockupCanvas) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	mc.input.Lock()
	defer mc.input.Unlock()
	mc.press(toPoint(ev.Position))
}

// MouseUp implements desktop.Mouseable.
func (mc *MockupCanvas) MouseUp(ev *desktop.MouseEvent) {
	mc.input.Lock()
	defer mc.input.Unlock()
	mc.release(toPoint(ev.Position))
}

// Tapped implements fyne.Tappable. Touch screens deliver a tap without
// mouse events, so it selects or deselects like a press and release.
// Desktop taps already arrived as MouseDown and MouseUp.
func (mc *MockupCanvas) Tapped(ev *fyne.PointEvent) {
	mc.input.Lock()
	defer mc.input.Unlock()
	if !mc.touchMode || mc.pressed {
		return
	}
	pos := toPoint(ev.Position)
	mc.press(pos)
	mc.release(pos)
}

// Dragged implements fyne.Draggable. Platforms without mouse-down events
// start the gesture at the drag origin.
func (mc *MockupCanvas) Dragged(ev *fyne.DragEvent) {
	mc.input.Lock()
	defer mc.input.Unlock()
	pos := toPoint(ev.Position)
	if !mc.pressed {
		mc.press(pos.Sub(geometry.Point2D{X: float64(ev.Dragged.DX), Y: float64(ev.Dragged.DY)}))
	}
	mc.lastPos = pos
	w := mc.viewport.Machine().Window()
	if mc.touchMode {
		w.TouchMove([]geometry.Point2D{pos})
		return
	}
	w.PointerMove(pos)
}

// DragEnd implements fyne.Draggable.
func (mc *MockupCanvas) DragEnd() {
	mc.input.Lock()
	defer mc.input.Unlock()
	mc.release(mc.lastPos)
}

// Scrolled implements fyne.Scrollable. Scrolling up grows the overlay.
func (mc *MockupCanvas) Scrolled(ev *fyne.ScrollEvent) {
	mc.input.Lock()
	defer mc.input.Unlock()
	mc.viewport.Machine().Wheel(-float64(ev.Scrolled.DY) * wheelPixels)
}

func (mc *MockupCanvas) press(pos geometry.Point2D) {
	mc.pressed = true
	mc.lastPos = pos
	m := mc.viewport.Machine()
	if mc.touchMode {
		switch m.HitTest(pos) {
		case gesture.TargetOverlay, gesture.TargetAnchor:
			m.TouchStart([]geometry.Point2D{pos})
		default:
			m.PointerDownAt(pos)
		}
		mc.Refresh()
		return
	}
	m.PointerDownAt(pos)
	mc.Refresh()
}

func (mc *MockupCanvas) release(pos geometry.Point2D) {
	if !mc.pressed {
		return
	}
	mc.pressed = false
	w := mc.viewport.Machine().Window()
	if mc.touchMode {
		w.TouchEnd(nil)
	} else {
		w.PointerUp(pos)
	}
	mc.Refresh()
}

// draw is the raster drawing function. It runs on the render goroutine and
// only reads the captured view.
func (mc *MockupCanvas) draw(w, h int) image.Image {
	size := mc.Size()
	scale := 1.0
	if size.Width > 0 {
		scale = float64(w) / float64(size.Width)
	}

	mc.mu.Lock()
	v := mc.view
	scene := Scene{
		Background:   mc.background,
		Overlay:      mc.overlay,
		Placement:    v.placement,
		Frame:        geometry.NewRect(v.frame.X*scale, v.frame.Y*scale, v.frame.Width*scale, v.frame.Height*scale),
		Selected:     v.selected,
		AnchorRadius: v.anchorRadius * scale,
	}
	mc.mu.Unlock()
	for _, a := range v.anchors {
		scene.Anchors = append(scene.Anchors, a.Scale(scale))
	}

	output := Render(w, h, scene)

	mc.mu.Lock()
	mc.lastOutput = output
	mc.mu.Unlock()
	return output
}

// CreateRenderer implements fyne.Widget.
func (mc *MockupCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &mockupCanvasRenderer{canvas: mc}
}

type mockupCanvasRenderer struct {
	canvas *MockupCanvas
}

func (r *mockupCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
	r.canvas.updateFrame(size)
}

func (r *mockupCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(240, 320)
}

func (r *mockupCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *mockupCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *mockupCanvasRenderer) Destroy() {}

var (
	_ fyne.Widget       = (*MockupCanvas)(nil)
	_ fyne.Draggable    = (*MockupCanvas)(nil)
	_ fyne.Tappable     = (*MockupCanvas)(nil)
	_ fyne.Scrollable   = (*MockupCanvas)(nil)
	_ desktop.Mouseable = (*MockupCanvas)(nil)
)

// Package gesture turns pointer, wheel and touch input on a mockup viewport
// into placement updates for the artwork overlay.
//
// A Machine is owned by a single viewport and is driven from the UI event
// loop; it is not safe for concurrent use.
package gesture

import (
	"pocket-curator/internal/placement"
	"pocket-curator/pkg/geometry"
)

// State is the interaction state of a viewport.
type State int

const (
	Idle State = iota
	Selected
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Selected:
		return "Selected"
	case Dragging:
		return "Dragging"
	case Resizing:
		return "Resizing"
	default:
		return "Unknown"
	}
}

// Target is what a pointer-down landed on.
type Target int

const (
	TargetOutside  Target = iota // outside the viewport container
	TargetViewport               // inside the container, off the overlay
	TargetOverlay
	TargetAnchor // one of the four corner resize handles
)

func (t Target) String() string {
	switch t {
	case TargetOutside:
		return "Outside"
	case TargetViewport:
		return "Viewport"
	case TargetOverlay:
		return "Overlay"
	case TargetAnchor:
		return "Anchor"
	default:
		return "Unknown"
	}
}

// DefaultAnchorRadius is the anchor hit radius in screen pixels.
const DefaultAnchorRadius = 8.0

// Options configures a Machine.
type Options struct {
	// Anchors enables the corner resize handles (desktop pointers only).
	Anchors bool
	// AnchorRadius is the hit radius of each handle; 0 means DefaultAnchorRadius.
	AnchorRadius float64
}

// ChangeFunc is called after the placement or state changes.
type ChangeFunc func(p placement.Placement, s State)

// Machine holds the placement and selection of one overlay and the gesture
// session currently in progress.
type Machine struct {
	window       *Window
	frame        geometry.Rect
	placement    placement.Placement
	selected     bool
	active       session
	anchors      bool
	anchorRadius float64
	onChange     ChangeFunc
}

// NewMachine creates a machine in the Idle state with the default placement.
// Sessions subscribe to w for global moves and releases.
func NewMachine(w *Window, opts Options) *Machine {
	if w == nil {
		w = NewWindow()
	}
	radius := opts.AnchorRadius
	if radius <= 0 {
		radius = DefaultAnchorRadius
	}
	return &Machine{
		window:       w,
		placement:    placement.Default(),
		anchors:      opts.Anchors,
		anchorRadius: radius,
	}
}

// Window returns the dispatcher the machine's sessions subscribe to.
func (m *Machine) Window() *Window {
	return m.window
}

// OnChange sets the change callback.
func (m *Machine) OnChange(fn ChangeFunc) {
	m.onChange = fn
}

// SetFrame sets the viewport container's on-screen box. Gestures are ignored
// while the frame is empty.
func (m *Machine) SetFrame(r geometry.Rect) {
	m.frame = r
}

// Frame returns the viewport container's on-screen box.
func (m *Machine) Frame() geometry.Rect {
	return m.frame
}

// SetAnchors enables or disables the corner resize handles.
func (m *Machine) SetAnchors(enabled bool) {
	m.anchors = enabled
	m.notify()
}

// Placement returns the current placement.
func (m *Machine) Placement() placement.Placement {
	return m.placement
}

// SetPlacement replaces the placement, clamped.
func (m *Machine) SetPlacement(p placement.Placement) {
	m.apply(placement.Clamp(p))
}

// Reset ends any gesture, deselects and restores the default placement.
func (m *Machine) Reset() {
	m.stopSession()
	m.selected = false
	m.placement = placement.Default()
	m.notify()
}

// State returns the current interaction state.
func (m *Machine) State() State {
	if m.active != nil {
		return m.active.state()
	}
	if m.selected {
		return Selected
	}
	return Idle
}

// Selected reports whether the overlay is selected.
func (m *Machine) Selected() bool {
	return m.selected
}

// AnchorsVisible reports whether the resize handles are rendered.
func (m *Machine) AnchorsVisible() bool {
	return m.anchors && m.selected
}

// OverlayRect returns the overlay box in screen pixels.
func (m *Machine) OverlayRect() geometry.Rect {
	return m.placement.Project(m.frame.Size()).Translate(m.frame.TopLeft())
}

// Anchors returns the handle centers in screen pixels, or nil when hidden.
func (m *Machine) Anchors() []geometry.Point2D {
	if !m.AnchorsVisible() {
		return nil
	}
	c := m.OverlayRect().Corners()
	return c[:]
}

// AnchorRadius returns the hit radius of each handle.
func (m *Machine) AnchorRadius() float64 {
	return m.anchorRadius
}

// HitTest classifies a screen position.
func (m *Machine) HitTest(pos geometry.Point2D) Target {
	if !m.frame.Contains(pos) {
		return TargetOutside
	}
	for _, a := range m.Anchors() {
		if pos.Distance(a) <= m.anchorRadius {
			return TargetAnchor
		}
	}
	if m.OverlayRect().Contains(pos) {
		return TargetOverlay
	}
	return TargetViewport
}

// PointerDownAt hit-tests pos and handles the pointer-down.
func (m *Machine) PointerDownAt(pos geometry.Point2D) Target {
	t := m.HitTest(pos)
	m.PointerDown(t, pos)
	return t
}

// PointerDown handles a mouse pointer-down on target at screen position pos.
func (m *Machine) PointerDown(target Target, pos geometry.Point2D) {
	switch target {
	case TargetOutside:
		m.stopSession()
		if m.selected {
			m.selected = false
			m.notify()
		}
	case TargetOverlay:
		if !m.usable() {
			return
		}
		m.selected = true
		m.begin(newDragSession(m, pos))
	case TargetAnchor:
		if !m.usable() {
			return
		}
		if !m.AnchorsVisible() {
			if m.OverlayRect().Contains(pos) {
				m.PointerDown(TargetOverlay, pos)
			}
			return
		}
		m.begin(newResizeSession(m, pos))
	}
}

// Wheel applies a wheel-based resize. It only acts while the overlay is
// selected and reports whether the event was consumed.
func (m *Machine) Wheel(deltaY float64) bool {
	if !m.selected {
		return false
	}
	m.apply(m.placement.WithScale(m.placement.Scale - deltaY*placement.WheelFactor))
	return true
}

// TouchStart handles a touch-start on the overlay with all active touches.
func (m *Machine) TouchStart(touches []geometry.Point2D) {
	if len(touches) == 0 || !m.usable() {
		return
	}
	m.selected = true
	if ts, ok := m.active.(*touchSession); ok {
		ts.restart(touches)
		m.notify()
		return
	}
	m.begin(newTouchSession(m, touches))
}

// Close ends any gesture and drops the change callback. Used on unmount.
func (m *Machine) Close() {
	m.stopSession()
	m.onChange = nil
}

func (m *Machine) usable() bool {
	return !m.frame.Size().Empty()
}

func (m *Machine) begin(s session) {
	m.stopSession()
	m.active = s
	s.enter(m.window)
	m.notify()
}

func (m *Machine) endSession(s session) {
	if m.active != s {
		s.exit()
		return
	}
	m.stopSession()
	m.notify()
}

func (m *Machine) stopSession() {
	if m.active != nil {
		m.active.exit()
		m.active = nil
	}
}

func (m *Machine) apply(p placement.Placement) {
	if p == m.placement {
		return
	}
	m.placement = p
	m.notify()
}

func (m *Machine) notify() {
	if m.onChange != nil {
		m.onChange(m.placement, m.State())
	}
}

// normalize maps a screen position into normalized viewport coordinates.
func (m *Machine) normalize(pos geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{
		X: (pos.X - m.frame.X) / m.frame.Width,
		Y: (pos.Y - m.frame.Y) / m.frame.Height,
	}
}

func (m *Machine) centerOnScreen() geometry.Point2D {
	return m.placement.CenterIn(m.frame.Size()).Add(m.frame.TopLeft())
}

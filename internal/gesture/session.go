package gesture

import "pocket-curator/pkg/geometry"

// session is one active drag or resize gesture. It owns the window
// subscriptions it makes in enter and drops all of them in exit. Start state
// is captured once, so replaying the same pointer position yields the same
// placement.
type session interface {
	enter(w *Window)
	exit()
	state() State
}

type subscriptions struct {
	handles []Handle
}

func (s *subscriptions) hold(h ...Handle) {
	s.handles = append(s.handles, h...)
}

func (s *subscriptions) exit() {
	for _, h := range s.handles {
		h.Remove()
	}
	s.handles = nil
}

// dragSession translates the overlay rigidly with the pointer.
type dragSession struct {
	subscriptions
	m      *Machine
	offset geometry.Point2D // pointer minus center, normalized, at drag start
}

func newDragSession(m *Machine, pos geometry.Point2D) *dragSession {
	return &dragSession{
		m:      m,
		offset: m.normalize(pos).Sub(m.placement.Center),
	}
}

func (s *dragSession) enter(w *Window) {
	s.hold(
		w.OnPointerMove(s.move),
		w.OnPointerUp(func(geometry.Point2D) { s.m.endSession(s) }),
	)
}

func (s *dragSession) move(pos geometry.Point2D) {
	s.m.apply(s.m.placement.WithCenter(s.m.normalize(pos).Sub(s.offset)))
}

func (s *dragSession) state() State { return Dragging }

// resizeSession scales the overlay by the ratio of the pointer's distance
// from the overlay center to the distance at gesture start.
type resizeSession struct {
	subscriptions
	m          *Machine
	center     geometry.Point2D // overlay center in screen pixels, fixed for the gesture
	startDist  float64
	startScale float64
}

func newResizeSession(m *Machine, pos geometry.Point2D) *resizeSession {
	center := m.centerOnScreen()
	return &resizeSession{
		m:          m,
		center:     center,
		startDist:  pos.Distance(center),
		startScale: m.placement.Scale,
	}
}

func (s *resizeSession) enter(w *Window) {
	s.hold(
		w.OnPointerMove(s.move),
		w.OnPointerUp(func(geometry.Point2D) { s.m.endSession(s) }),
	)
}

func (s *resizeSession) move(pos geometry.Point2D) {
	if s.startDist == 0 {
		return
	}
	d := pos.Distance(s.center)
	s.m.apply(s.m.placement.WithScale(s.startScale * d / s.startDist))
}

func (s *resizeSession) state() State { return Resizing }

// touchSession handles both one-finger drag and two-finger pinch. Each new
// touch-start restarts the reference point so a second finger landing
// mid-drag begins a fresh pinch from the current scale.
type touchSession struct {
	subscriptions
	m           *Machine
	fingers     int
	startTouch  geometry.Point2D
	startCenter geometry.Point2D
	startScale  float64
	startDist   float64
}

func newTouchSession(m *Machine, touches []geometry.Point2D) *touchSession {
	s := &touchSession{m: m}
	s.restart(touches)
	return s
}

func (s *touchSession) restart(touches []geometry.Point2D) {
	s.fingers = len(touches)
	s.startCenter = s.m.placement.Center
	s.startScale = s.m.placement.Scale
	s.startDist = 0
	switch {
	case len(touches) == 1:
		s.startTouch = touches[0]
	case len(touches) >= 2:
		s.startDist = touches[0].Distance(touches[1])
	}
}

func (s *touchSession) enter(w *Window) {
	s.hold(
		w.OnTouchMove(s.move),
		w.OnTouchEnd(func([]geometry.Point2D) { s.m.endSession(s) }),
	)
}

func (s *touchSession) move(touches []geometry.Point2D) {
	switch {
	case len(touches) == 1 && s.fingers == 1:
		frame := s.m.frame
		d := touches[0].Sub(s.startTouch)
		c := geometry.Point2D{
			X: s.startCenter.X + d.X/frame.Width,
			Y: s.startCenter.Y + d.Y/frame.Height,
		}
		s.m.apply(s.m.placement.WithCenter(c))
	case len(touches) >= 2:
		dist := touches[0].Distance(touches[1])
		if s.startDist == 0 || dist == 0 {
			return
		}
		s.m.apply(s.m.placement.WithScale(s.startScale * dist / s.startDist))
	}
}

func (s *touchSession) state() State {
	if s.fingers >= 2 {
		return Resizing
	}
	return Dragging
}

package gesture

import "pocket-curator/pkg/geometry"

// PointerFunc receives a pointer position in screen coordinates.
type PointerFunc func(pos geometry.Point2D)

// TouchFunc receives the currently active touch points in screen coordinates.
type TouchFunc func(touches []geometry.Point2D)

type eventKind int

const (
	eventPointerMove eventKind = iota
	eventPointerUp
	eventTouchMove
	eventTouchEnd
)

type handler struct {
	id      uint32
	pointer PointerFunc
	touch   TouchFunc
}

// Window is the window-level event dispatcher a viewport's gesture sessions
// subscribe to while they are active. The host forwards every global move and
// release to it; only current subscribers see them.
type Window struct {
	pointerMove []handler
	pointerUp   []handler
	touchMove   []handler
	touchEnd    []handler
	nextID      uint32
}

// NewWindow creates an empty dispatcher.
func NewWindow() *Window {
	return &Window{}
}

// Handle removes a subscription made on a Window.
type Handle struct {
	id   uint32
	w    *Window
	kind eventKind
}

// Remove unregisters the handler. Removing twice is a no-op.
func (h Handle) Remove() {
	if h.w == nil {
		return
	}
	list := h.w.list(h.kind)
	for i := range *list {
		if (*list)[i].id == h.id {
			s := *list
			copy(s[i:], s[i+1:])
			s[len(s)-1] = handler{}
			*list = s[:len(s)-1]
			return
		}
	}
}

func (w *Window) list(kind eventKind) *[]handler {
	switch kind {
	case eventPointerMove:
		return &w.pointerMove
	case eventPointerUp:
		return &w.pointerUp
	case eventTouchMove:
		return &w.touchMove
	default:
		return &w.touchEnd
	}
}

func (w *Window) add(kind eventKind, h handler) Handle {
	w.nextID++
	h.id = w.nextID
	list := w.list(kind)
	*list = append(*list, h)
	return Handle{id: h.id, w: w, kind: kind}
}

// OnPointerMove subscribes fn to pointer moves.
func (w *Window) OnPointerMove(fn PointerFunc) Handle {
	return w.add(eventPointerMove, handler{pointer: fn})
}

// OnPointerUp subscribes fn to pointer releases.
func (w *Window) OnPointerUp(fn PointerFunc) Handle {
	return w.add(eventPointerUp, handler{pointer: fn})
}

// OnTouchMove subscribes fn to touch moves.
func (w *Window) OnTouchMove(fn TouchFunc) Handle {
	return w.add(eventTouchMove, handler{touch: fn})
}

// OnTouchEnd subscribes fn to touch ends. It receives the touches still down.
func (w *Window) OnTouchEnd(fn TouchFunc) Handle {
	return w.add(eventTouchEnd, handler{touch: fn})
}

// PointerMove dispatches a pointer move.
func (w *Window) PointerMove(pos geometry.Point2D) {
	for _, h := range snapshot(w.pointerMove) {
		h.pointer(pos)
	}
}

// PointerUp dispatches a pointer release.
func (w *Window) PointerUp(pos geometry.Point2D) {
	for _, h := range snapshot(w.pointerUp) {
		h.pointer(pos)
	}
}

// TouchMove dispatches a touch move.
func (w *Window) TouchMove(touches []geometry.Point2D) {
	for _, h := range snapshot(w.touchMove) {
		h.touch(touches)
	}
}

// TouchEnd dispatches a touch end with the touches that remain down.
func (w *Window) TouchEnd(remaining []geometry.Point2D) {
	for _, h := range snapshot(w.touchEnd) {
		h.touch(remaining)
	}
}

// Len returns the number of live subscriptions across all event kinds.
func (w *Window) Len() int {
	return len(w.pointerMove) + len(w.pointerUp) + len(w.touchMove) + len(w.touchEnd)
}

// Handlers may unsubscribe while being dispatched.
func snapshot(hs []handler) []handler {
	if len(hs) == 0 {
		return nil
	}
	out := make([]handler, len(hs))
	copy(out, hs)
	return out
}

package gesture

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocket-curator/internal/placement"
	"pocket-curator/pkg/geometry"
)

func pt(x, y float64) geometry.Point2D { return geometry.NewPoint2D(x, y) }

// newTestMachine returns a desktop machine whose viewport is a 400x400 box
// with its top-left corner at (100, 50).
func newTestMachine(t *testing.T) (*Machine, *Window) {
	t.Helper()
	w := NewWindow()
	m := NewMachine(w, Options{Anchors: true})
	m.SetFrame(geometry.NewRect(100, 50, 400, 400))
	return m, w
}

func TestInitialState(t *testing.T) {
	m, w := newTestMachine(t)
	assert.Equal(t, Idle, m.State())
	assert.False(t, m.Selected())
	assert.Equal(t, placement.Default(), m.Placement())
	assert.Nil(t, m.Anchors())
	assert.Equal(t, 0, w.Len())
}

func TestHitTest(t *testing.T) {
	m, _ := newTestMachine(t)
	// Default center (0.5, 0.38) -> (300, 202) on screen.
	assert.Equal(t, TargetOverlay, m.HitTest(pt(300, 202)))
	assert.Equal(t, TargetViewport, m.HitTest(pt(110, 440)))
	assert.Equal(t, TargetOutside, m.HitTest(pt(10, 10)))
	assert.Equal(t, TargetOutside, m.HitTest(pt(501, 200)))

	// Top-left corner of the overlay box is an anchor only once selected.
	corner := pt(204, 138)
	assert.Equal(t, TargetOverlay, m.HitTest(corner))
	m.PointerDownAt(pt(300, 202))
	w := m.Window()
	w.PointerUp(pt(300, 202))
	assert.Equal(t, TargetAnchor, m.HitTest(corner))
}

func TestDragMovesCenterRigidly(t *testing.T) {
	m, w := newTestMachine(t)

	// Grab the overlay 20px right of its center; the grab point must stay
	// under the pointer without snapping the center to it.
	m.PointerDown(TargetOverlay, pt(320, 202))
	assert.Equal(t, Dragging, m.State())
	assert.True(t, m.Selected())
	assert.Equal(t, 2, w.Len())

	w.PointerMove(pt(360, 242))
	p := m.Placement()
	assert.InDelta(t, 0.6, p.Center.X, 1e-9)
	assert.InDelta(t, 0.48, p.Center.Y, 1e-9)
	assert.Equal(t, 1.0, p.Scale)

	w.PointerUp(pt(360, 242))
	assert.Equal(t, Selected, m.State())
	assert.Equal(t, 0, w.Len(), "drag listeners must be removed on pointer-up")

	// Moves after release do nothing.
	w.PointerMove(pt(100, 50))
	assert.InDelta(t, 0.6, m.Placement().Center.X, 1e-9)
}

func TestDragRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		m, w := newTestMachine(t)
		start := m.Placement()
		p0 := pt(300+r.Float64()*10-5, 202+r.Float64()*10-5)
		p1 := pt(100+r.Float64()*400, 50+r.Float64()*400)

		m.PointerDown(TargetOverlay, p0)
		w.PointerMove(p1)
		w.PointerMove(p0)
		w.PointerUp(p0)

		got := m.Placement()
		assert.InDelta(t, start.Center.X, got.Center.X, 1e-9)
		assert.InDelta(t, start.Center.Y, got.Center.Y, 1e-9)
	}
}

func TestDragClampsCenter(t *testing.T) {
	m, w := newTestMachine(t)
	m.PointerDown(TargetOverlay, pt(300, 202))

	for _, p := range []geometry.Point2D{pt(-5000, -5000), pt(9000, 300), pt(300, 9000), pt(-1, 1e7)} {
		w.PointerMove(p)
		c := m.Placement().Center
		assert.GreaterOrEqual(t, c.X, 0.0)
		assert.LessOrEqual(t, c.X, 1.0)
		assert.GreaterOrEqual(t, c.Y, 0.0)
		assert.LessOrEqual(t, c.Y, 1.0)
	}
	w.PointerMove(pt(-5000, -5000))
	assert.Equal(t, pt(0, 0), m.Placement().Center)
}

func TestReplayIsIdempotent(t *testing.T) {
	m, w := newTestMachine(t)
	m.PointerDown(TargetOverlay, pt(300, 202))
	w.PointerMove(pt(350, 260))
	first := m.Placement()
	w.PointerMove(pt(350, 260))
	assert.Equal(t, first, m.Placement())
}

func TestAnchorResize(t *testing.T) {
	m, w := newTestMachine(t)
	m.PointerDownAt(pt(300, 202))
	w.PointerUp(pt(300, 202))
	require.Len(t, m.Anchors(), 4)

	// Top-left anchor sits at (204, 138), (-96, -64) from the center.
	target := m.PointerDownAt(pt(204, 138))
	require.Equal(t, TargetAnchor, target)
	assert.Equal(t, Resizing, m.State())

	w.PointerMove(pt(108, 74)) // twice as far from the center
	assert.InDelta(t, 2.0, m.Placement().Scale, 1e-9)
	assert.InDelta(t, 0.5, m.Placement().Center.X, 1e-9, "center does not move during resize")

	w.PointerMove(pt(300-96*10, 202-64*10))
	assert.Equal(t, placement.MaxScale, m.Placement().Scale)

	w.PointerMove(pt(299, 202))
	assert.Equal(t, placement.MinScale, m.Placement().Scale)

	w.PointerUp(pt(299, 202))
	assert.Equal(t, Selected, m.State())
	assert.Equal(t, 0, w.Len())
}

func TestAnchorIgnoredWithoutDesktopAnchors(t *testing.T) {
	w := NewWindow()
	m := NewMachine(w, Options{})
	m.SetFrame(geometry.NewRect(0, 0, 400, 400))
	m.PointerDown(TargetOverlay, pt(200, 152))
	w.PointerUp(pt(200, 152))

	assert.Nil(t, m.Anchors())
	assert.NotEqual(t, TargetAnchor, m.HitTest(pt(104, 88)))
}

func TestWheel(t *testing.T) {
	m, w := newTestMachine(t)

	assert.False(t, m.Wheel(100), "wheel is ignored while not selected")
	assert.Equal(t, 1.0, m.Placement().Scale)

	m.PointerDownAt(pt(300, 202))
	w.PointerUp(pt(300, 202))

	assert.True(t, m.Wheel(100))
	assert.InDelta(t, 0.9, m.Placement().Scale, 1e-9)
	assert.True(t, m.Wheel(-600))
	assert.InDelta(t, 1.5, m.Placement().Scale, 1e-9)

	m.Wheel(1e6)
	assert.Equal(t, placement.MinScale, m.Placement().Scale)
	m.Wheel(-1e6)
	assert.Equal(t, placement.MaxScale, m.Placement().Scale)
	assert.InDelta(t, 0.5, m.Placement().Center.X, 1e-9)
}

func TestScaleAlwaysInRange(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	m, w := newTestMachine(t)
	m.PointerDownAt(pt(300, 202))
	w.PointerUp(pt(300, 202))

	for i := 0; i < 500; i++ {
		switch r.Intn(3) {
		case 0:
			m.Wheel((r.Float64() - 0.5) * 1e5)
		case 1:
			m.TouchStart([]geometry.Point2D{pt(200, 200), pt(200+r.Float64()*50+1, 200)})
			w.TouchMove([]geometry.Point2D{pt(200, 200), pt(200+r.Float64()*5000, 200)})
			w.TouchEnd(nil)
		case 2:
			anchors := m.Anchors()
			if len(anchors) == 0 {
				continue
			}
			m.PointerDown(TargetAnchor, anchors[r.Intn(4)])
			w.PointerMove(pt(r.Float64()*5000-2500, r.Float64()*5000-2500))
			w.PointerUp(pt(0, 0))
		}
		s := m.Placement().Scale
		require.GreaterOrEqual(t, s, placement.MinScale)
		require.LessOrEqual(t, s, placement.MaxScale)
	}
}

func TestPinch(t *testing.T) {
	m, w := newTestMachine(t)

	m.TouchStart([]geometry.Point2D{pt(200, 200), pt(300, 200)})
	assert.Equal(t, Resizing, m.State())
	assert.True(t, m.Selected())

	w.TouchMove([]geometry.Point2D{pt(200, 200), pt(400, 200)})
	assert.InDelta(t, 2.0, m.Placement().Scale, 1e-9)

	w.TouchMove([]geometry.Point2D{pt(200, 200), pt(600, 200)})
	assert.Equal(t, placement.MaxScale, m.Placement().Scale)

	w.TouchEnd(nil)
	assert.Equal(t, Selected, m.State())
	assert.Equal(t, 0, w.Len())
}

func TestTouchDrag(t *testing.T) {
	w := NewWindow()
	m := NewMachine(w, Options{})
	m.SetFrame(geometry.NewRect(0, 0, 200, 100))

	m.TouchStart([]geometry.Point2D{pt(100, 38)})
	assert.Equal(t, Dragging, m.State())

	w.TouchMove([]geometry.Point2D{pt(120, 48)})
	c := m.Placement().Center
	assert.InDelta(t, 0.6, c.X, 1e-9)
	assert.InDelta(t, 0.48, c.Y, 1e-9)

	w.TouchMove([]geometry.Point2D{pt(5000, -5000)})
	assert.Equal(t, pt(1, 0), m.Placement().Center)
}

func TestSecondFingerRestartsReference(t *testing.T) {
	m, w := newTestMachine(t)

	m.TouchStart([]geometry.Point2D{pt(300, 202)})
	w.TouchMove([]geometry.Point2D{pt(340, 202)})
	moved := m.Placement().Center

	// Second finger lands 50px away: that distance is the new reference.
	m.TouchStart([]geometry.Point2D{pt(300, 200), pt(350, 200)})
	assert.Equal(t, Resizing, m.State())
	assert.Equal(t, 2, w.Len(), "restarting must not stack subscriptions")

	w.TouchMove([]geometry.Point2D{pt(300, 200), pt(375, 200)})
	assert.InDelta(t, 1.5, m.Placement().Scale, 1e-9)
	assert.Equal(t, moved, m.Placement().Center)
}

func TestPointerDownOutsideDeselects(t *testing.T) {
	m, w := newTestMachine(t)
	m.PointerDownAt(pt(300, 202))
	w.PointerUp(pt(300, 202))
	require.Equal(t, Selected, m.State())
	require.NotEmpty(t, m.Anchors())

	assert.Equal(t, TargetOutside, m.PointerDownAt(pt(5, 5)))
	assert.Equal(t, Idle, m.State())
	assert.Nil(t, m.Anchors())
	assert.False(t, m.Wheel(100))
}

func TestPointerDownInsideViewportKeepsSelection(t *testing.T) {
	m, w := newTestMachine(t)
	m.PointerDownAt(pt(300, 202))
	w.PointerUp(pt(300, 202))

	assert.Equal(t, TargetViewport, m.PointerDownAt(pt(110, 440)))
	assert.Equal(t, Selected, m.State())
}

func TestNewGestureReplacesPrevious(t *testing.T) {
	m, w := newTestMachine(t)
	m.PointerDown(TargetOverlay, pt(300, 202))
	m.TouchStart([]geometry.Point2D{pt(300, 202)})
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, Dragging, m.State())

	// The abandoned pointer session no longer reacts.
	w.PointerMove(pt(500, 400))
	assert.Equal(t, placement.Default().Center, m.Placement().Center)
}

func TestEmptyFrameIgnoresGestures(t *testing.T) {
	w := NewWindow()
	m := NewMachine(w, Options{Anchors: true})
	m.PointerDown(TargetOverlay, pt(10, 10))
	m.TouchStart([]geometry.Point2D{pt(10, 10)})
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, 0, w.Len())
}

func TestOnChangeAndClose(t *testing.T) {
	m, w := newTestMachine(t)
	var states []State
	m.OnChange(func(_ placement.Placement, s State) { states = append(states, s) })

	m.PointerDown(TargetOverlay, pt(300, 202))
	w.PointerMove(pt(310, 202))
	w.PointerUp(pt(310, 202))
	assert.Equal(t, []State{Dragging, Dragging, Selected}, states)

	m.PointerDown(TargetOverlay, pt(310, 202))
	m.Close()
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, Selected, m.State())
}

func TestResetRestoresDefault(t *testing.T) {
	m, w := newTestMachine(t)
	m.PointerDown(TargetOverlay, pt(300, 202))
	w.PointerMove(pt(400, 300))
	m.Reset()
	assert.Equal(t, placement.Default(), m.Placement())
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, 0, w.Len())
}

// Package panels provides side panels for the main window.
package panels

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"pocket-curator/internal/compositor"
	"pocket-curator/internal/gesture"
	"pocket-curator/internal/placement"
)

// PlacementSheet displays the overlay placement and allows typing exact
// values. Edits go through the gesture machine so they are clamped like
// any pointer change.
type PlacementSheet struct {
	viewport *compositor.Viewport
	box      *fyne.Container

	onUpdate func()

	centerXEntry *widget.Entry
	centerYEntry *widget.Entry
	scaleEntry   *widget.Entry

	stateLabel *widget.Label
	boxLabel   *widget.Label
}

// NewPlacementSheet creates a new placement panel for v. onUpdate is called
// after an edit has been applied.
func NewPlacementSheet(v *compositor.Viewport, onUpdate func()) *PlacementSheet {
	ps := &PlacementSheet{
		viewport: v,
		onUpdate: onUpdate,
	}
	ps.buildUI()
	ps.Update(v.Placement(), v.Machine().State())
	return ps
}

// Widget returns the panel widget for embedding.
func (ps *PlacementSheet) Widget() fyne.CanvasObject {
	return ps.box
}

func (ps *PlacementSheet) buildUI() {
	newEntry := func() *widget.Entry {
		e := widget.NewEntry()
		e.OnSubmitted = func(string) { ps.apply() }
		return e
	}

	ps.centerXEntry = newEntry()
	ps.centerYEntry = newEntry()
	ps.scaleEntry = newEntry()
	ps.stateLabel = widget.NewLabel("")
	ps.boxLabel = widget.NewLabel("")

	form := widget.NewForm(
		widget.NewFormItem("Center X:", ps.centerXEntry),
		widget.NewFormItem("Center Y:", ps.centerYEntry),
		widget.NewFormItem("Scale:", ps.scaleEntry),
	)

	ps.box = container.NewVBox(
		widget.NewCard("Placement", "", form),
		widget.NewCard("Overlay", "", container.NewVBox(ps.stateLabel, ps.boxLabel)),
		widget.NewButton("Apply", ps.apply),
		widget.NewButton("Reset", ps.reset),
	)
}

// Update shows p and s. Called by the canvas after every change.
func (ps *PlacementSheet) Update(p placement.Placement, s gesture.State) {
	ps.centerXEntry.SetText(fmt.Sprintf("%.3f", p.Center.X))
	ps.centerYEntry.SetText(fmt.Sprintf("%.3f", p.Center.Y))
	ps.scaleEntry.SetText(fmt.Sprintf("%.2f", p.Scale))
	ps.stateLabel.SetText(s.String())
	css := p.CSS()
	ps.boxLabel.SetText(fmt.Sprintf("%.1f%%, %.1f%%  %.1f%% x %.1f%%", css.Left, css.Top, css.Width, css.Height))
}

// apply parses the entries and moves the overlay. Unparseable fields keep
// their current value.
func (ps *PlacementSheet) apply() {
	p := ps.viewport.Placement()
	parseFloat(ps.centerXEntry.Text, &p.Center.X)
	parseFloat(ps.centerYEntry.Text, &p.Center.Y)
	parseFloat(ps.scaleEntry.Text, &p.Scale)

	m := ps.viewport.Machine()
	m.SetPlacement(p)
	ps.Update(ps.viewport.Placement(), m.State())
	if ps.onUpdate != nil {
		ps.onUpdate()
	}
}

func (ps *PlacementSheet) reset() {
	m := ps.viewport.Machine()
	m.Reset()
	ps.Update(ps.viewport.Placement(), m.State())
	if ps.onUpdate != nil {
		ps.onUpdate()
	}
}

func parseFloat(s string, target *float64) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*target = v
	}
}

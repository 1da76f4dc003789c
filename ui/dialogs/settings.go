// Package dialogs provides application dialogs.
package dialogs

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"pocket-curator/internal/config"
	pcimage "pocket-curator/internal/image"
	"pocket-curator/pkg/colorutil"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// SettingsDialog provides a property sheet for editing the settings file.
type SettingsDialog struct {
	cfg    config.Config
	window fyne.Window

	// Paths
	assetDirEntry  *widget.Entry
	catalogEntry   *widget.Entry
	exportDirEntry *widget.Entry
	watchCheck     *widget.Check

	// Timeouts
	exportTimeoutEntry  *widget.Entry
	processTimeoutEntry *widget.Entry
	httpTimeoutEntry    *widget.Entry

	// Rendering
	scalerSelect *widget.Select
	levelSelect  *widget.Select

	// Background removal
	toleranceEntry *widget.Entry
	kernelEntry    *widget.Entry
	cacheEntry     *widget.Entry

	// Backdrop swatches: the estimated backdrop and the tolerance band.
	sample         image.Image
	backdrop       color.RGBA
	swatchBackdrop *fynecanvas.Rectangle
	swatchMin      *fynecanvas.Rectangle
	swatchMax      *fynecanvas.Rectangle
	swatchLabel    *widget.Label

	// Callback
	onSave func(config.Config)
}

// NewSettingsDialog creates a new settings dialog editing a copy of cfg.
func NewSettingsDialog(cfg config.Config, window fyne.Window, onSave func(config.Config)) *SettingsDialog {
	return &SettingsDialog{
		cfg:    cfg,
		window: window,
		onSave: onSave,
	}
}

// Show displays the dialog.
func (d *SettingsDialog) Show() {
	content := d.createContent()

	dlg := dialog.NewCustomConfirm(
		"Settings",
		"Save",
		"Cancel",
		content,
		func(save bool) {
			if !save {
				return
			}
			cfg, err := d.applyChanges()
			if err != nil {
				dialog.ShowError(err, d.window)
				return
			}
			if d.onSave != nil {
				d.onSave(cfg)
			}
		},
		d.window,
	)
	dlg.Resize(fyne.NewSize(480, 640))
	dlg.Show()
}

// SetSample sets the artwork used to preview the removal backdrop. It may be
// called before or after Show.
func (d *SettingsDialog) SetSample(img image.Image) {
	d.sample = img
	if img != nil {
		d.backdrop = colorutil.BorderColor(img)
	}
	if d.swatchBackdrop != nil {
		d.updateSwatches()
	}
}

func (d *SettingsDialog) createContent() fyne.CanvasObject {
	// Paths section
	d.assetDirEntry = widget.NewEntry()
	d.assetDirEntry.SetText(d.cfg.AssetDir)
	d.catalogEntry = widget.NewEntry()
	d.catalogEntry.SetPlaceHolder("(built-in)")
	d.catalogEntry.SetText(d.cfg.Catalog)
	d.exportDirEntry = widget.NewEntry()
	d.exportDirEntry.SetText(d.cfg.ExportDir)
	d.watchCheck = widget.NewCheck("Reload catalog on change", nil)
	d.watchCheck.SetChecked(d.cfg.WatchCatalog)

	pathsForm := widget.NewForm(
		widget.NewFormItem("Product photos", d.assetDirEntry),
		widget.NewFormItem("Catalog file", d.catalogEntry),
		widget.NewFormItem("Export folder", d.exportDirEntry),
		widget.NewFormItem("", d.watchCheck),
	)

	// Timeouts section
	d.exportTimeoutEntry = widget.NewEntry()
	d.exportTimeoutEntry.SetText(d.cfg.ExportTimeout.String())
	d.processTimeoutEntry = widget.NewEntry()
	d.processTimeoutEntry.SetText(d.cfg.ProcessingTimeout.String())
	d.httpTimeoutEntry = widget.NewEntry()
	d.httpTimeoutEntry.SetText(d.cfg.HTTPTimeout.String())

	timeoutsForm := widget.NewForm(
		widget.NewFormItem("Export", d.exportTimeoutEntry),
		widget.NewFormItem("Background removal", d.processTimeoutEntry),
		widget.NewFormItem("Download", d.httpTimeoutEntry),
	)

	// Rendering section
	scalers := make([]string, 0, len(pcimage.Scalers))
	for name := range pcimage.Scalers {
		scalers = append(scalers, name)
	}
	sort.Strings(scalers)
	d.scalerSelect = widget.NewSelect(scalers, nil)
	d.scalerSelect.SetSelected(d.cfg.Scaler)
	d.levelSelect = widget.NewSelect(logLevels, nil)
	d.levelSelect.SetSelected(d.cfg.LogLevel)

	renderForm := widget.NewForm(
		widget.NewFormItem("Export scaler", d.scalerSelect),
		widget.NewFormItem("Log level", d.levelSelect),
	)

	// Background removal section
	d.toleranceEntry = widget.NewEntry()
	d.toleranceEntry.SetText(strconv.Itoa(d.cfg.Remover.Tolerance))
	d.kernelEntry = widget.NewEntry()
	d.kernelEntry.SetText(strconv.Itoa(d.cfg.Remover.Kernel))
	d.cacheEntry = widget.NewEntry()
	d.cacheEntry.SetText(strconv.Itoa(d.cfg.Remover.CacheSize))

	// Create color swatches
	newSwatch := func() *fynecanvas.Rectangle {
		r := fynecanvas.NewRectangle(color.RGBA{R: 128, G: 128, B: 128, A: 255})
		r.SetMinSize(fyne.NewSize(40, 24))
		return r
	}
	d.swatchBackdrop = newSwatch()
	d.swatchMin = newSwatch()
	d.swatchMax = newSwatch()
	d.swatchLabel = widget.NewLabel("")

	// Update swatches when the tolerance changes
	d.toleranceEntry.OnChanged = func(string) {
		d.updateSwatches()
	}
	d.updateSwatches()

	removalForm := container.NewVBox(
		widget.NewForm(
			widget.NewFormItem("Tolerance (0-255)", d.toleranceEntry),
			widget.NewFormItem("Cleanup kernel", d.kernelEntry),
			widget.NewFormItem("Cached results", d.cacheEntry),
		),
		container.NewHBox(
			widget.NewLabel("Backdrop:"),
			d.swatchBackdrop,
			widget.NewLabel("removes"),
			d.swatchMin,
			widget.NewLabel("to"),
			d.swatchMax,
		),
		d.swatchLabel,
	)

	// Assemble cards
	return container.NewVScroll(container.NewVBox(
		widget.NewCard("Files", "", pathsForm),
		widget.NewCard("Timeouts", "", timeoutsForm),
		widget.NewCard("Rendering", "", renderForm),
		widget.NewCard("Background Removal", "", removalForm),
	))
}

// applyChanges returns the edited settings. Unparseable fields keep their
// previous value; the result is validated as a whole.
func (d *SettingsDialog) applyChanges() (config.Config, error) {
	cfg := d.cfg

	// Files
	cfg.AssetDir = d.assetDirEntry.Text
	cfg.Catalog = d.catalogEntry.Text
	cfg.ExportDir = d.exportDirEntry.Text
	cfg.WatchCatalog = d.watchCheck.Checked

	// Timeouts
	parseDuration(d.exportTimeoutEntry.Text, &cfg.ExportTimeout)
	parseDuration(d.processTimeoutEntry.Text, &cfg.ProcessingTimeout)
	parseDuration(d.httpTimeoutEntry.Text, &cfg.HTTPTimeout)

	// Rendering
	if d.scalerSelect.Selected != "" {
		cfg.Scaler = d.scalerSelect.Selected
	}
	if d.levelSelect.Selected != "" {
		cfg.LogLevel = d.levelSelect.Selected
	}

	// Background removal
	parseInt(d.toleranceEntry.Text, &cfg.Remover.Tolerance)
	parseInt(d.kernelEntry.Text, &cfg.Remover.Kernel)
	parseInt(d.cacheEntry.Text, &cfg.Remover.CacheSize)

	if err := cfg.Validate(); err != nil {
		return d.cfg, fmt.Errorf("invalid settings: %w", err)
	}
	d.cfg = cfg
	return cfg, nil
}

// updateSwatches shows the backdrop estimate and the range of colors the
// tolerance treats as backdrop.
func (d *SettingsDialog) updateSwatches() {
	if d.sample == nil || d.backdrop.A == 0 {
		d.swatchLabel.SetText("Open an artwork with a solid backdrop to preview.")
		return
	}
	tol := d.cfg.Remover.Tolerance
	parseInt(d.toleranceEntry.Text, &tol)

	d.swatchBackdrop.FillColor = d.backdrop
	d.swatchMin.FillColor = shift(d.backdrop, -tol)
	d.swatchMax.FillColor = shift(d.backdrop, tol)
	d.swatchLabel.SetText(fmt.Sprintf("Backdrop #%02X%02X%02X", d.backdrop.R, d.backdrop.G, d.backdrop.B))

	// Force canvas refresh
	fynecanvas.Refresh(d.swatchBackdrop)
	fynecanvas.Refresh(d.swatchMin)
	fynecanvas.Refresh(d.swatchMax)
}

// shift moves every channel of c by delta, saturating at 0 and 255.
func shift(c color.RGBA, delta int) color.RGBA {
	ch := func(v uint8) uint8 {
		n := int(v) + delta
		if n < 0 {
			return 0
		}
		if n > 255 {
			return 255
		}
		return uint8(n)
	}
	return color.RGBA{R: ch(c.R), G: ch(c.G), B: ch(c.B), A: 255}
}

func parseInt(s string, target *int) {
	if v, err := strconv.Atoi(s); err == nil {
		*target = v
	}
}

func parseDuration(s string, target *time.Duration) {
	if v, err := time.ParseDuration(s); err == nil {
		*target = v
	}
}

// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"pocket-curator/internal/app"
	"pocket-curator/internal/bgremove"
	"pocket-curator/internal/compositor"
	"pocket-curator/internal/config"
	"pocket-curator/internal/image"
	"pocket-curator/internal/merch"
	"pocket-curator/internal/version"
	"pocket-curator/ui/canvas"
	"pocket-curator/ui/dialogs"
	"pocket-curator/ui/panels"
	"pocket-curator/ui/prefs"
)

const appTitle = "Pocket Curator"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	prefs *prefs.Prefs
	log   *zap.Logger

	viewport *compositor.Viewport
	canvas   *canvas.MockupCanvas
	sheet    *panels.PlacementSheet

	products  *widget.RadioGroup
	removeBtn *widget.Button
	artBtn    *widget.Button
	exportBtn *widget.Button
	progress  *widget.ProgressBarInfinite
	statusBar *widget.Label

	// Menu items that need state tracking
	anchorsItem *fyne.MenuItem
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  p,
		log:    state.Logger().Named("ui"),
	}

	if key := p.String(prefs.KeyProduct, ""); key != "" {
		if err := state.SelectProduct(key); err != nil {
			mw.log.Info("Saved product no longer in catalog", zap.String("product", key))
		}
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()

	win.SetOnClosed(func() {
		mw.viewport.Unmount()
		if err := mw.prefs.Save(); err != nil {
			mw.log.Warn("Failed to save preferences", zap.Error(err))
		}
	})
	win.Resize(fyne.NewSize(720, 860))
	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.viewport = mw.state.NewViewport(true)
	mw.canvas = canvas.NewMockupCanvas(mw.viewport, mw.state.Product().Aspect)
	if fyne.CurrentDevice().IsMobile() {
		mw.canvas.SetTouchMode(true)
	} else {
		mw.viewport.Machine().SetAnchors(mw.prefs.Bool(prefs.KeyAnchors, true))
	}
	mw.canvas.OnError(func(err error) {
		mw.showError(err)
	})
	mw.viewport.OnStatus(mw.onStatus)

	mw.sheet = panels.NewPlacementSheet(mw.viewport, mw.canvas.DeselectFirst(mw.canvas.Refresh))
	mw.canvas.OnPlacementChanged(mw.sheet.Update)

	// Create status bar
	mw.statusBar = widget.NewLabel("Ready")
	mw.progress = widget.NewProgressBarInfinite()
	mw.progress.Hide()

	toolbar := mw.createToolbar()
	productBar := mw.createProductBar()

	content := container.NewBorder(
		toolbar, // top
		container.NewVBox(productBar, container.NewBorder(nil, nil, nil, mw.progress, mw.statusBar)), // bottom
		nil, // left
		mw.sheet.Widget(), // right
		mw.canvas,         // center
	)
	mw.SetContent(content)
	mw.reload()
}

// createToolbar creates the artwork toolbar.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	// Presses outside the viewport deselect the overlay.
	outside := mw.canvas.DeselectFirst
	mw.removeBtn = widget.NewButton("Remove Background", outside(mw.onToggleBackground))
	mw.artBtn = widget.NewButton("Download Original", outside(mw.onExportArtwork))
	mw.exportBtn = widget.NewButton("Download Composite", outside(mw.onExportComposite))
	mw.exportBtn.Importance = widget.HighImportance

	return container.NewHBox(
		widget.NewButton("Open Artwork...", outside(mw.onOpenArtwork)),
		mw.removeBtn,
		mw.artBtn,
		mw.exportBtn,
	)
}

// createProductBar creates the merchandise selector.
func (mw *MainWindow) createProductBar() fyne.CanvasObject {
	mw.products = widget.NewRadioGroup(nil, func(label string) {
		mw.canvas.Deselect()
		for _, p := range mw.state.Catalog().Products {
			if p.Label == label {
				if err := mw.state.SelectProduct(p.Key); err != nil {
					mw.showError(err)
				}
				return
			}
		}
	})
	mw.products.Horizontal = true
	mw.products.Required = true
	mw.syncProducts()
	return container.NewCenter(mw.products)
}

func (mw *MainWindow) syncProducts() {
	c := mw.state.Catalog()
	labels := make([]string, len(c.Products))
	for i, p := range c.Products {
		labels[i] = p.Label
	}
	mw.products.Options = labels
	mw.products.SetSelected(mw.state.Product().Label)
	mw.products.Refresh()
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	// File menu
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Artwork...", mw.onOpenArtwork),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Download Composite...", mw.onExportComposite),
		fyne.NewMenuItem("Download Artwork...", mw.onExportArtwork),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Settings...", mw.onSettings),
	)

	// View menu
	mw.anchorsItem = fyne.NewMenuItem("Resize Handles", mw.onToggleAnchors)
	mw.anchorsItem.Checked = mw.prefs.Bool(prefs.KeyAnchors, true)

	viewMenu := fyne.NewMenu("View",
		mw.anchorsItem,
		fyne.NewMenuItem("Reset Placement", mw.onResetPlacement),
		fyne.NewMenuItem("Deselect", mw.canvas.Deselect),
	)

	// Help menu
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, helpMenu))
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventProductChanged, func(data interface{}) {
		p, ok := data.(merch.Product)
		if !ok {
			return
		}
		mw.prefs.SetString(prefs.KeyProduct, p.Key)
		mw.viewport.SetBackground(p.Src)
		mw.canvas.SetAspect(p.Aspect)
		if mw.products.Selected != p.Label {
			mw.products.SetSelected(p.Label)
		}
		mw.updateStatus("Showing " + p.Label)
		mw.reload()
	})

	mw.state.On(app.EventCatalogChanged, func(interface{}) {
		mw.syncProducts()
	})

	mw.state.On(app.EventArtworkChanged, func(interface{}) {
		ref, title := mw.state.Artwork()
		mw.viewport.SetOverlay(ref)
		mw.viewport.SetTitle(title)
		mw.SetTitle(appTitle + " - " + title)
		mw.reload()
	})

	mw.state.On(app.EventError, func(data interface{}) {
		if err, ok := data.(error); ok {
			mw.updateStatus("Catalog not reloaded: " + err.Error())
		}
	})
}

func (mw *MainWindow) reload() {
	go func() {
		if err := mw.canvas.Reload(context.Background()); err == nil {
			mw.syncButtons(mw.viewport.Status())
		}
	}()
}

// onStatus mirrors pending work into the toolbar and status bar.
func (mw *MainWindow) onStatus(s compositor.Status) {
	if s.Busy() {
		mw.progress.Show()
	} else {
		mw.progress.Hide()
	}
	switch {
	case s.Processing:
		mw.updateStatus("Removing background...")
	case s.Exporting:
		mw.updateStatus("Exporting composite...")
	case s.Err != nil:
		mw.updateStatus(describe(s.Err))
	}
	mw.syncButtons(s)
}

func (mw *MainWindow) syncButtons(s compositor.Status) {
	for _, b := range []*widget.Button{mw.removeBtn, mw.artBtn, mw.exportBtn} {
		if s.Busy() {
			b.Disable()
		} else {
			b.Enable()
		}
	}
	if s.UseProcessed {
		mw.removeBtn.SetText("Background Removed")
	} else {
		mw.removeBtn.SetText("Remove Background")
	}
	if s.UseProcessed && s.HasProcessed {
		mw.artBtn.SetText("Download BG Removed")
	} else {
		mw.artBtn.SetText("Download Original")
	}
}

// describe turns an operation error into a status line.
func describe(err error) string {
	var lerr *image.ImageLoadError
	var serr *image.ExportSerializationError
	switch {
	case errors.As(err, &lerr):
		return fmt.Sprintf("Could not load the %s image", lerr.Role)
	case errors.As(err, &serr):
		return "Could not create the composite image"
	case errors.Is(err, bgremove.ErrProcessingUnavailable):
		return "Background removal unavailable, showing the original"
	default:
		return err.Error()
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) showError(err error) {
	mw.updateStatus(describe(err))
	dialog.ShowError(err, mw.Window)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyExportDir, "")
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	listable, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyExportDir, filepath.Dir(filePath))
}

// Action handlers

func (mw *MainWindow) onOpenArtwork() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		mw.prefs.SetString(prefs.KeyArtwork, path)
		mw.state.SetArtwork(path, title)
	}, mw.Window)

	fd.SetFilter(storage.NewExtensionFileFilter(image.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onToggleBackground() {
	go func() {
		err := mw.viewport.ToggleBackgroundRemoval(context.Background())
		if errors.Is(err, compositor.ErrBusy) || errors.Is(err, compositor.ErrUnmounted) {
			return
		}
		// The overlay is redrawn either way: processed, or the original on failure.
		_ = mw.canvas.ReloadOverlay(context.Background())
		mw.syncButtons(mw.viewport.Status())
	}()
}

func (mw *MainWindow) onExportComposite() {
	go func() {
		d, err := mw.viewport.ExportComposite(context.Background())
		if errors.Is(err, compositor.ErrBusy) || errors.Is(err, compositor.ErrUnmounted) {
			return
		}
		if err != nil {
			mw.showError(err)
			return
		}
		mw.save(d)
	}()
}

func (mw *MainWindow) onExportArtwork() {
	go func() {
		d, err := mw.viewport.ExportOverlayOnly(context.Background())
		if errors.Is(err, compositor.ErrUnmounted) {
			return
		}
		if err != nil {
			mw.showError(err)
			return
		}
		mw.save(d)
	}()
}

// save asks where to write the download.
func (mw *MainWindow) save(d compositor.Download) {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		if _, err := d.SaveTo(writer); err != nil {
			mw.showError(fmt.Errorf("failed to save %s: %w", d.Name, err))
			return
		}
		mw.saveLastDir(writer.URI().Path())
		mw.updateStatus("Saved " + writer.URI().Name())
		mw.state.Emit(app.EventExported, d.Name)
	}, mw.Window)
	fd.SetFileName(d.Name)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onToggleAnchors() {
	enabled := !mw.anchorsItem.Checked
	mw.anchorsItem.Checked = enabled
	mw.prefs.SetBool(prefs.KeyAnchors, enabled)
	mw.viewport.Machine().SetAnchors(enabled)
	mw.MainMenu().Refresh()
}

func (mw *MainWindow) onResetPlacement() {
	mw.viewport.Machine().Reset()
	mw.canvas.Refresh()
}

func (mw *MainWindow) onSettings() {
	d := dialogs.NewSettingsDialog(mw.state.Config, mw.Window, func(cfg config.Config) {
		if err := mw.state.SaveConfig(cfg); err != nil {
			mw.showError(err)
			return
		}
		mw.updateStatus("Settings saved. Restart to apply.")
	})
	d.Show()
	go func() {
		if img, err := mw.viewport.OverlaySource(context.Background()); err == nil {
			d.SetSample(img)
		}
	}()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s %s\n\nPreview artwork on merchandise and export mockups.",
			appTitle, version.String()),
		mw.Window)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pocket-curator/internal/app"
	"pocket-curator/internal/bgremove"
	"pocket-curator/internal/compositor"
	"pocket-curator/internal/placement"
	"pocket-curator/pkg/geometry"
)

// Flags shared by the export commands.
var (
	artwork  string
	product  string
	title    string
	outDir   string
	centerX  float64
	centerY  float64
	scale    float64
	removeBg bool
)

// composeCmd renders the artwork onto a product photo.
var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Export the artwork composited onto a product photo",
	Long: `Renders the artwork at the given placement onto the product photo and
writes <title>_composite.png.

Example:
  mockup compose --artwork sunset.jpg --product white-mug --scale 1.4`,
	RunE: runCompose,
}

// overlayCmd exports the artwork by itself.
var overlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Export the artwork alone, optionally with its background removed",
	RunE:  runOverlay,
}

// removeBgCmd exports the artwork with the background removed.
var removeBgCmd = &cobra.Command{
	Use:   "removebg",
	Short: "Remove the artwork background and export it as PNG",
	Long: `Removes the backdrop around the artwork and writes
<title>_artwork.png. Fails when background removal is unavailable.`,
	RunE: runRemoveBg,
}

func init() {
	for _, cmd := range []*cobra.Command{composeCmd, overlayCmd, removeBgCmd} {
		cmd.Flags().StringVarP(&artwork, "artwork", "a", "", "Artwork image path or URL (required)")
		cmd.Flags().StringVarP(&title, "title", "t", "", "Artwork title used for file names (default: artwork file name)")
		cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: export_dir setting)")
		_ = cmd.MarkFlagRequired("artwork")
	}
	def := placement.Default()
	composeCmd.Flags().StringVarP(&product, "product", "p", "", "Product key (default: first catalog product)")
	composeCmd.Flags().Float64Var(&centerX, "center-x", def.Center.X, "Horizontal center of the artwork, 0..1")
	composeCmd.Flags().Float64Var(&centerY, "center-y", def.Center.Y, "Vertical center of the artwork, 0..1")
	composeCmd.Flags().Float64Var(&scale, "scale", def.Scale, "Artwork scale, 0.2..3")
	for _, cmd := range []*cobra.Command{composeCmd, overlayCmd} {
		cmd.Flags().BoolVar(&removeBg, "remove-bg", false, "Remove the artwork background first")
	}
}

// openViewport builds the state and a viewport for the flags.
func openViewport() (*app.State, *compositor.Viewport, error) {
	state, err := newState()
	if err != nil {
		return nil, nil, err
	}
	if product != "" {
		if err := state.SelectProduct(product); err != nil {
			state.Close()
			return nil, nil, fmt.Errorf("failed to select product %q: %w", product, err)
		}
	}
	t := title
	if t == "" {
		t = strings.TrimSuffix(filepath.Base(artwork), filepath.Ext(artwork))
	}
	state.SetArtwork(artwork, t)
	return state, state.NewViewport(false), nil
}

// removeBackground turns on background removal. When strict is false a
// failure falls back to the original artwork.
func removeBackground(ctx context.Context, v *compositor.Viewport, strict bool) error {
	err := v.ToggleBackgroundRemoval(ctx)
	if err == nil {
		return nil
	}
	if !strict && errors.Is(err, bgremove.ErrProcessingUnavailable) {
		logger.Warn("Background removal unavailable, using the original artwork", zap.Error(err))
		return nil
	}
	return err
}

func exportDir(state *app.State) string {
	if outDir != "" {
		return outDir
	}
	return state.Config.ExportDir
}

func save(cmd *cobra.Command, state *app.State, d compositor.Download) error {
	path, err := d.Save(exportDir(state))
	if err != nil {
		return err
	}
	logger.Info("Export written", zap.String("path", path), zap.Int("bytes", len(d.Data)))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	state.Emit(app.EventExported, path)
	return nil
}

func runCompose(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	state, v, err := openViewport()
	if err != nil {
		return err
	}
	defer state.Close()
	defer v.Unmount()

	v.Machine().SetPlacement(placement.Placement{
		Center: geometry.Point2D{X: centerX, Y: centerY},
		Scale:  scale,
	})
	logger.Debug("Placement", zap.Stringer("placement", v.Placement()))

	if removeBg {
		if err := removeBackground(ctx, v, false); err != nil {
			return err
		}
	}

	d, err := v.ExportComposite(ctx)
	if err != nil {
		return err
	}
	return save(cmd, state, d)
}

func runOverlay(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	state, v, err := openViewport()
	if err != nil {
		return err
	}
	defer state.Close()
	defer v.Unmount()

	if removeBg {
		if err := removeBackground(ctx, v, false); err != nil {
			return err
		}
	}
	d, err := v.ExportOverlayOnly(ctx)
	if err != nil {
		return err
	}
	return save(cmd, state, d)
}

func runRemoveBg(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	state, v, err := openViewport()
	if err != nil {
		return err
	}
	defer state.Close()
	defer v.Unmount()

	if err := removeBackground(ctx, v, true); err != nil {
		return err
	}
	d, err := v.ExportOverlayOnly(ctx)
	if err != nil {
		return err
	}
	return save(cmd, state, d)
}

package compositor

import (
	"context"
	"errors"
	"fmt"
	goimage "image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"pocket-curator/internal/image"
	"pocket-curator/internal/placement"
)

// DefaultTitle names downloads when the artwork has no title.
const DefaultTitle = "Artwork"

// Download is an encoded image ready to be saved.
type Download struct {
	Name string
	MIME string
	Data []byte
}

// Save writes the download into dir and returns the file path.
func (d Download) Save(dir string) (string, error) {
	if len(d.Data) == 0 {
		return "", fmt.Errorf("nothing to save")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, d.Name)
	if err := os.WriteFile(path, d.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", d.Name, err)
	}
	return path, nil
}

// SaveTo writes the encoded bytes to w.
func (d Download) SaveTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.Data)
	return int64(n), err
}

var whitespace = regexp.MustCompile(`\s+`)

// FileName builds a download name from the artwork title and a suffix.
func FileName(title, suffix string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	return whitespace.ReplaceAllString(title, "_") + "_" + suffix + ".png"
}

// ExportComposite flattens the background and the current overlay source at
// the background's native resolution. Only one export runs at a time; a
// call made while another is pending returns ErrBusy.
func (v *Viewport) ExportComposite(ctx context.Context) (Download, error) {
	if !v.Mounted() {
		return Download{}, ErrUnmounted
	}
	if !v.exportSem.TryAcquire(1) {
		v.log.Debug("Export already pending, ignoring request")
		return Download{}, ErrBusy
	}
	defer v.exportSem.Release(1)

	p := v.Placement()
	start := time.Now()

	ctx, done := v.opContext(ctx)
	defer done()
	ctx, cancel := context.WithTimeout(ctx, v.exportTimeout)
	defer cancel()

	v.updateStatus(func(s *Status) {
		s.Exporting = true
		s.Err = nil
	})

	data, err := v.composite(ctx, p)
	if !v.Mounted() {
		v.log.Debug("Discarding export result")
		return Download{}, ErrUnmounted
	}
	v.updateStatus(func(s *Status) {
		s.Exporting = false
		s.Err = err
	})
	if err != nil {
		v.log.Error("Composite export failed", zap.Error(err))
		return Download{}, err
	}

	d := Download{Name: FileName(v.Title(), "composite"), MIME: "image/png", Data: data}
	v.log.Info("Composite exported",
		zap.String("name", d.Name),
		zap.Int("bytes", len(data)),
		zap.Stringer("placement", p),
		zap.Duration("took", time.Since(start)))
	return d, nil
}

func (v *Viewport) composite(ctx context.Context, p placement.Placement) ([]byte, error) {
	bg, err := image.LoadAs(ctx, v.loader, image.RoleBackground, v.Background())
	if err != nil {
		return nil, err
	}
	overlay, err := v.OverlaySource(ctx)
	if err != nil {
		return nil, err
	}
	return v.rasterize(ctx, bg.Image, overlay, p)
}

// rasterize runs the rasterizer but stops waiting once ctx is done.
func (v *Viewport) rasterize(ctx context.Context, bg, overlay goimage.Image, p placement.Placement) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := v.rasterizer.Rasterize(bg, overlay, p)
		ch <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		if !v.Mounted() {
			return nil, ErrUnmounted
		}
		return nil, &image.ExportSerializationError{Err: ctx.Err()}
	case r := <-ch:
		if r.err != nil {
			var serr *image.ExportSerializationError
			if errors.As(r.err, &serr) {
				return nil, r.err
			}
			return nil, &image.ExportSerializationError{Err: r.err}
		}
		if len(r.data) == 0 {
			return nil, &image.ExportSerializationError{Err: image.ErrEmptyOutput}
		}
		return r.data, nil
	}
}

// ExportOverlayOnly returns the artwork alone: the processed variant encoded
// as PNG when background removal is on and available, otherwise the
// original bytes.
func (v *Viewport) ExportOverlayOnly(ctx context.Context) (Download, error) {
	if !v.Mounted() {
		return Download{}, ErrUnmounted
	}
	ctx, done := v.opContext(ctx)
	defer done()

	d := Download{Name: FileName(v.Title(), "artwork"), MIME: "image/png"}

	v.mu.Lock()
	processed := v.processed
	if !v.useProcessed {
		processed = nil
	}
	v.mu.Unlock()

	if processed != nil {
		data, err := image.EncodePNG(processed)
		if err != nil {
			return Download{}, &image.ExportSerializationError{Err: err}
		}
		d.Data = data
	} else {
		layer, err := v.originalLayer(ctx)
		if err != nil {
			return Download{}, err
		}
		data, err := layer.Bytes()
		if err != nil {
			return Download{}, &image.ExportSerializationError{Err: err}
		}
		d.Data = data
		if layer.Format != "" && layer.Format != "png" {
			d.MIME = "image/" + layer.Format
			d.Name = strings.TrimSuffix(d.Name, ".png") + "." + extension(layer.Format)
		}
	}

	if !v.Mounted() {
		return Download{}, ErrUnmounted
	}
	v.log.Info("Artwork exported",
		zap.String("name", d.Name),
		zap.Bool("processed", processed != nil),
		zap.Int("bytes", len(d.Data)))
	return d, nil
}

func extension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

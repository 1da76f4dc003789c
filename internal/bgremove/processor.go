// Package bgremove runs background removal for artwork overlays and caches
// the results per source image.
package bgremove

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrProcessingUnavailable is returned, wrapping the cause, whenever a
// processed image cannot be produced. Callers fall back to the original.
var ErrProcessingUnavailable = errors.New("background removal unavailable")

// Remover produces a copy of img whose background pixels are transparent.
type Remover interface {
	RemoveBackground(ctx context.Context, img image.Image) (image.Image, error)
}

// RemoverFunc adapts a function to the Remover interface.
type RemoverFunc func(ctx context.Context, img image.Image) (image.Image, error)

// RemoveBackground implements Remover.
func (f RemoverFunc) RemoveBackground(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

const (
	DefaultCacheSize = 32
	DefaultTimeout   = 30 * time.Second
)

// Options configures a Processor.
type Options struct {
	CacheSize int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Processor is shared by all viewports. Results are cached by source
// reference and concurrent requests for the same reference share one run.
type Processor struct {
	remover Remover
	cache   *lru.Cache[string, image.Image]
	group   singleflight.Group
	timeout time.Duration
	log     *zap.Logger
}

// NewProcessor creates a Processor around remover.
func NewProcessor(remover Remover, opts Options) (*Processor, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, image.Image](size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		remover: remover,
		cache:   cache,
		timeout: timeout,
		log:     log,
	}, nil
}

// Cached returns a previously processed image for ref.
func (p *Processor) Cached(ref string) (image.Image, bool) {
	return p.cache.Get(ref)
}

// Process returns src with its background removed. The wait is bounded by
// the processor timeout and by ctx; on any failure the returned error wraps
// ErrProcessingUnavailable.
func (p *Processor) Process(ctx context.Context, ref string, src image.Image) (image.Image, error) {
	if img, ok := p.cache.Get(ref); ok {
		return img, nil
	}
	if p.remover == nil {
		return nil, fmt.Errorf("%w: no remover configured", ErrProcessingUnavailable)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: no source image", ErrProcessingUnavailable)
	}

	wait, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	ch := p.group.DoChan(ref, func() (interface{}, error) {
		// Detached from any single caller so one caller giving up does not
		// fail the others waiting on the same ref.
		rctx, rcancel := context.WithTimeout(context.Background(), p.timeout)
		defer rcancel()

		out, err := p.remover.RemoveBackground(rctx, src)
		if err != nil {
			return nil, err
		}
		if out == nil || out.Bounds().Empty() {
			return nil, fmt.Errorf("remover returned no image")
		}
		p.cache.Add(ref, out)
		return out, nil
	})

	select {
	case <-wait.Done():
		p.log.Warn("Background removal abandoned",
			zap.String("ref", ref),
			zap.Duration("waited", time.Since(start)),
			zap.Error(wait.Err()))
		return nil, fmt.Errorf("%w: %w", ErrProcessingUnavailable, wait.Err())
	case res := <-ch:
		if res.Err != nil {
			p.log.Warn("Background removal failed", zap.String("ref", ref), zap.Error(res.Err))
			return nil, fmt.Errorf("%w: %w", ErrProcessingUnavailable, res.Err)
		}
		p.log.Debug("Background removed",
			zap.String("ref", ref),
			zap.Bool("shared", res.Shared),
			zap.Duration("took", time.Since(start)))
		return res.Val.(image.Image), nil
	}
}

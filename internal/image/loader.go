package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Role names which side of a composite an image plays.
type Role string

const (
	RoleBackground Role = "background"
	RoleOverlay    Role = "overlay"
)

// ImageLoadError reports that an image could not be fetched or decoded.
type ImageLoadError struct {
	Role Role
	Ref  string
	Err  error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("failed to load %s image %q: %v", e.Role, e.Ref, e.Err)
}

func (e *ImageLoadError) Unwrap() error {
	return e.Err
}

// Loader fetches and decodes an image reference.
type Loader interface {
	Load(ctx context.Context, ref string) (*Layer, error)
}

// LoadAs loads ref with l and wraps any failure in an ImageLoadError.
func LoadAs(ctx context.Context, l Loader, role Role, ref string) (*Layer, error) {
	if ref == "" {
		return nil, &ImageLoadError{Role: role, Ref: ref, Err: fmt.Errorf("no image reference")}
	}
	layer, err := l.Load(ctx, ref)
	if err != nil {
		return nil, &ImageLoadError{Role: role, Ref: ref, Err: err}
	}
	return layer, nil
}

// FileLoader loads images from the local filesystem. Relative paths are
// resolved against Root.
type FileLoader struct {
	Root string
}

// Load implements Loader.
func (f FileLoader) Load(ctx context.Context, ref string) (*Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(ref, "file://")
	if !filepath.IsAbs(path) && f.Root != "" {
		path = filepath.Join(f.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return Decode(ref, data)
}

// DefaultMaxBytes is the largest remote image HTTPLoader accepts.
const DefaultMaxBytes = 32 << 20

// HTTPLoader fetches images over HTTP(S).
type HTTPLoader struct {
	Client   *http.Client
	MaxBytes int64
}

// Load implements Loader.
func (h HTTPLoader) Load(ctx context.Context, ref string) (*Layer, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	limit := h.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	return Decode(ref, data)
}

// MultiLoader dispatches on the reference scheme: http and https go to HTTP,
// everything else to File.
type MultiLoader struct {
	File FileLoader
	HTTP HTTPLoader
}

// Load implements Loader.
func (m MultiLoader) Load(ctx context.Context, ref string) (*Layer, error) {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return m.HTTP.Load(ctx, ref)
	}
	return m.File.Load(ctx, ref)
}

// MemoryLoader serves already decoded layers, for bitmaps handed over by a
// host instead of a path or URL. Unknown refs are delegated to Next when set.
type MemoryLoader struct {
	mu     sync.RWMutex
	layers map[string]*Layer
	Next   Loader
}

// NewMemoryLoader creates an empty MemoryLoader.
func NewMemoryLoader(next Loader) *MemoryLoader {
	return &MemoryLoader{layers: make(map[string]*Layer), Next: next}
}

// Put registers a layer under its Ref.
func (m *MemoryLoader) Put(layer *Layer) {
	m.mu.Lock()
	m.layers[layer.Ref] = layer
	m.mu.Unlock()
}

// Load implements Loader.
func (m *MemoryLoader) Load(ctx context.Context, ref string) (*Layer, error) {
	m.mu.RLock()
	layer, ok := m.layers[ref]
	m.mu.RUnlock()
	if ok {
		return layer, nil
	}
	if m.Next != nil {
		return m.Next.Load(ctx, ref)
	}
	return nil, fmt.Errorf("unknown image %q", ref)
}

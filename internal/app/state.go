// Package app provides application lifecycle management, configuration, and events.
package app

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"pocket-curator/internal/bgremove"
	"pocket-curator/internal/bgremove/colorkey"
	"pocket-curator/internal/compositor"
	"pocket-curator/internal/config"
	"pocket-curator/internal/image"
	"pocket-curator/internal/merch"
)

// State holds the shared services and the current artwork/product selection.
// Viewports are created from it and share its loader and processor.
type State struct {
	mu sync.RWMutex

	Config config.Config
	// ConfigPath is where SaveConfig writes; empty disables saving.
	ConfigPath string

	log       *zap.Logger
	loader    *image.MemoryLoader
	processor *bgremove.Processor
	scaler    string
	watcher   *merch.Watcher

	catalog *merch.Catalog
	product string
	artwork string
	title   string

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventCatalogChanged EventType = iota
	EventProductChanged
	EventArtworkChanged
	EventExported
	EventError
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState builds the services described by cfg. A nil logger is replaced
// by a no-op logger.
func NewState(cfg config.Config, log *zap.Logger) (*State, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	catalog := merch.Default(cfg.AssetDir)
	if cfg.Catalog != "" {
		c, err := merch.Load(cfg.Catalog, cfg.AssetDir)
		if err != nil {
			return nil, err
		}
		catalog = c
	}

	remover := colorkey.New(cfg.Remover.Tolerance, cfg.Remover.Kernel)
	processor, err := bgremove.NewProcessor(remover, bgremove.Options{
		CacheSize: cfg.Remover.CacheSize,
		Timeout:   cfg.ProcessingTimeout,
		Logger:    log.Named("bgremove"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}

	loader := image.NewMemoryLoader(image.MultiLoader{
		File: image.FileLoader{Root: cfg.AssetDir},
		HTTP: image.HTTPLoader{
			Client:   &http.Client{Timeout: cfg.HTTPTimeout},
			MaxBytes: cfg.MaxImageBytes,
		},
	})

	return &State{
		Config:    cfg,
		log:       log,
		loader:    loader,
		processor: processor,
		scaler:    cfg.Scaler,
		catalog:   catalog,
		product:   catalog.Products[0].Key,
		listeners: make(map[EventType][]EventListener),
	}, nil
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Logger returns the application logger.
func (s *State) Logger() *zap.Logger {
	return s.log
}

// Loader returns the shared image loader. Decoded images handed over in
// memory can be registered with Put.
func (s *State) Loader() *image.MemoryLoader {
	return s.loader
}

// Processor returns the shared background-removal processor.
func (s *State) Processor() *bgremove.Processor {
	return s.processor
}

// Rasterizer returns the export rasterizer for the configured scaler.
func (s *State) Rasterizer() image.Rasterizer {
	scaler, err := image.ScalerByName(s.scaler)
	if err != nil {
		s.log.Warn("Unknown scaler, using default", zap.String("scaler", s.scaler))
		scaler = nil
	}
	return image.NewPNGRasterizer(scaler)
}

// Catalog returns the current product catalog.
func (s *State) Catalog() *merch.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// SetCatalog replaces the catalog. If the selected product is gone the
// first product is selected.
func (s *State) SetCatalog(c *merch.Catalog) {
	s.mu.Lock()
	s.catalog = c
	s.product = c.Find(s.product).Key
	s.mu.Unlock()
	s.Emit(EventCatalogChanged, c)
	s.Emit(EventProductChanged, s.Product())
}

// Product returns the selected product.
func (s *State) Product() merch.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog.Find(s.product)
}

// SelectProduct selects a product by key.
func (s *State) SelectProduct(key string) error {
	s.mu.Lock()
	p, err := s.catalog.Lookup(key)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	changed := s.product != key
	s.product = key
	s.mu.Unlock()

	if changed {
		s.log.Debug("Product selected", zap.String("product", key))
		s.Emit(EventProductChanged, p)
	}
	return nil
}

// Artwork returns the artwork reference and title.
func (s *State) Artwork() (ref, title string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artwork, s.title
}

// SetArtwork sets the artwork shown on the products.
func (s *State) SetArtwork(ref, title string) {
	s.mu.Lock()
	s.artwork = ref
	s.title = title
	s.mu.Unlock()
	s.log.Info("Artwork set", zap.String("ref", ref), zap.String("title", title))
	s.Emit(EventArtworkChanged, ref)
}

// NewViewport creates a viewport for the current artwork on the selected
// product.
func (s *State) NewViewport(anchors bool) *compositor.Viewport {
	ref, title := s.Artwork()
	return compositor.NewViewport(compositor.Options{
		Title:         title,
		Background:    s.Product().Src,
		Overlay:       ref,
		Loader:        s.loader,
		Rasterizer:    s.Rasterizer(),
		Processor:     s.processor,
		ExportTimeout: s.Config.ExportTimeout,
		Anchors:       anchors,
		Logger:        s.log.Named("compositor"),
	})
}

// WatchCatalog starts reloading the catalog file on change. It is a no-op
// when the built-in catalog is in use.
func (s *State) WatchCatalog() error {
	if s.Config.Catalog == "" {
		return nil
	}
	w, err := merch.NewWatcher(s.Config.Catalog, s.Config.AssetDir, s.log.Named("catalog"))
	if err != nil {
		return err
	}
	w.OnReload(func(c *merch.Catalog, err error) {
		if err != nil {
			s.Emit(EventError, err)
			return
		}
		s.SetCatalog(c)
	})
	if err := w.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	return nil
}

// SaveConfig writes cfg to ConfigPath. Changes to services take effect on
// the next start.
func (s *State) SaveConfig(cfg config.Config) error {
	if s.ConfigPath == "" {
		return fmt.Errorf("no settings file configured")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(s.ConfigPath, cfg); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	s.log.Info("Settings saved", zap.String("path", s.ConfigPath))
	return nil
}

// Close stops background work.
func (s *State) Close() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		w.Stop()
	}
	_ = s.log.Sync()
}

package merch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces the bursts of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a catalog file whenever it changes on disk.
type Watcher struct {
	path     string
	assetDir string
	debounce time.Duration
	log      *zap.Logger

	fsw      *fsnotify.Watcher
	onReload func(*Catalog, error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the catalog at path.
func NewWatcher(path, assetDir string, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	return &Watcher{
		path:     abs,
		assetDir: assetDir,
		debounce: DefaultDebounce,
		log:      log,
	}, nil
}

// OnReload sets the callback invoked with the reloaded catalog, or with the
// error if the new file is invalid. It is called from a background goroutine.
func (w *Watcher) OnReload(fn func(*Catalog, error)) {
	w.mu.Lock()
	w.onReload = fn
	w.mu.Unlock()
}

// SetDebounce changes the quiet period before a reload.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounce = d
	w.mu.Unlock()
}

// Start begins watching. The parent directory is watched so that editors
// replacing the file by rename are still seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.fsw = fsw
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(w.stopCh, w.doneCh, w.debounce)

	w.log.Info("Watching product catalog", zap.String("path", w.path))
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh, fsw := w.stopCh, w.doneCh, w.fsw
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := fsw.Close(); err != nil {
		w.log.Warn("Error closing catalog watcher", zap.Error(err))
	}
}

func (w *Watcher) run(stopCh, doneCh chan struct{}, debounce time.Duration) {
	defer close(doneCh)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("Catalog changed", zap.String("op", event.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("Catalog watcher error", zap.Error(err))

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path, w.assetDir)
	if err != nil {
		w.log.Warn("Catalog reload failed, keeping previous", zap.Error(err))
	} else {
		w.log.Info("Catalog reloaded", zap.Int("products", len(c.Products)))
	}

	w.mu.Lock()
	fn := w.onReload
	w.mu.Unlock()
	if fn != nil {
		fn(c, err)
	}
}

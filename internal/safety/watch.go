package safety

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 400 * time.Millisecond

// CatalogWatcher hot-reloads the gate when the risk catalog file changes on
// disk. Editors replace files with rename+create, so the parent directory is
// watched and events are filtered to the catalog path. Write bursts are
// debounced; a catalog that fails to parse or embed leaves the previous one
// in place.
type CatalogWatcher struct {
	path    string
	gate    *Gate
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewCatalogWatcher creates a watcher for the catalog file at path.
func NewCatalogWatcher(path string, gate *Gate, logger *zap.Logger) *CatalogWatcher {
	return &CatalogWatcher{
		path:   filepath.Clean(path),
		gate:   gate,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *CatalogWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching risk catalog", zap.String("path", w.path))
	go w.run(ctx)
	return nil
}

func (w *CatalogWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload(ctx)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("catalog watcher error", zap.Error(err))
			}
		}
	}
}

func (w *CatalogWatcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, func() {
		w.reload(ctx)
	})
}

func (w *CatalogWatcher) reload(ctx context.Context) {
	catalog, err := LoadCatalog(w.path)
	if err != nil {
		w.logger.Error("risk catalog reload failed, keeping previous catalog", zap.Error(err))
		return
	}
	if err := w.gate.Reload(ctx, catalog); err != nil {
		w.logger.Error("risk catalog re-embed failed, keeping previous catalog", zap.Error(err))
		return
	}
	w.logger.Info("risk catalog reloaded", zap.String("path", w.path))
}

// Stop stops the watcher and releases resources.
func (w *CatalogWatcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

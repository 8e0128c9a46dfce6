package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/vsh-labs/chancery/internal/model"
)

// Watcher keeps the current catalog loaded and hot-reloads it when the file
// changes. Readers get the catalog through an atomic pointer, so concurrent
// document evaluations always see one consistent, immutable snapshot; a
// failed reload keeps the previous snapshot in place.
type Watcher struct {
	path    string
	loader  *Loader
	current atomic.Pointer[model.Catalog]
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher loads the catalog once and prepares a filesystem watcher on its
// directory.
func NewWatcher(path string, loader *Loader, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	initial, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog watcher: %w", err)
	}

	w := &Watcher{path: path, loader: loader, fsw: fsw, logger: logger}
	w.current.Store(initial)
	return w, nil
}

// Catalog returns the current immutable catalog snapshot.
func (w *Watcher) Catalog() *model.Catalog {
	return w.current.Load()
}

// Start watches the catalog file until the context is cancelled. It returns
// after the initial Add fails or the context ends.
func (w *Watcher) Start(ctx context.Context) error {
	// Watch the directory rather than the file: editors replace files on
	// save, which drops a file-level watch.
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				w.reload()
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("catalog watcher error", "error", err)
			}
		}
	}()

	return nil
}

func (w *Watcher) reload() {
	updated, err := w.loader.Load(w.path)
	if err != nil {
		w.logger.Error("catalog reload failed, keeping previous version",
			"path", w.path, "error", err)
		return
	}
	w.current.Store(updated)
	w.logger.Info("catalog reloaded",
		"path", w.path,
		"version", updated.Version,
		"departments", len(updated.Departments))
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Package watcher reloads the catalog index when the catalog file changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"recommender/internal/catalog"
	"recommender/internal/matcher"
	"recommender/internal/metrics"
)

const defaultDebounce = 400 * time.Millisecond

// Installer receives freshly built indexes.
type Installer interface {
	Install(ix *matcher.Index)
}

// Watcher rebuilds and installs the catalog index after file changes.
type Watcher struct {
	path      string
	opts      catalog.Options
	installer Installer
	debounce  time.Duration
	logger    *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long the file must stay quiet before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for the catalog at path.
func New(path string, opts catalog.Options, installer Installer, options ...Option) *Watcher {
	w := &Watcher{
		path:      filepath.Clean(path),
		opts:      opts,
		installer: installer,
		debounce:  defaultDebounce,
		logger:    zap.NewNop(),
	}
	for _, o := range options {
		o(w)
	}
	return w
}

// Reload loads the catalog, builds a new index and installs it. On failure
// the installed index is left in place.
func (w *Watcher) Reload() error {
	items, err := catalog.Load(w.path, w.opts)
	if err == nil {
		var ix *matcher.Index
		ix, err = matcher.Build(items)
		if err == nil {
			w.installer.Install(ix)
			metrics.CatalogReloadsTotal.WithLabelValues("ok").Inc()
			return nil
		}
	}
	metrics.CatalogReloadsTotal.WithLabelValues("error").Inc()
	w.logger.Warn("Catalog reload failed, keeping current index", zap.String("path", w.path), zap.Error(err))
	return fmt.Errorf("reload %s: %w", w.path, err)
}

// Run watches the catalog directory until ctx is cancelled. Editors often
// replace files through rename, so the directory is watched rather than the file.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("Watching catalog", zap.String("path", w.path))
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			w.logger.Debug("Catalog event", zap.String("op", ev.Op.String()))
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { _ = w.Reload() })
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

package heart

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher triggers a heart when files under the watched roots change.
type Watcher struct {
	Heart    *Heart
	Debounce time.Duration
	// SkipDir prunes directories from the watch set. rel is relative to
	// the root being added.
	SkipDir func(name, rel string) bool
	Logger  *slog.Logger
}

// Watch runs a Watcher with default settings until ctx is done.
func Watch(ctx context.Context, h *Heart, roots []string, debounce time.Duration) error {
	w := &Watcher{Heart: h, Debounce: debounce, Logger: h.logger}
	return w.Run(ctx, roots)
}

// Run adds every directory under roots to an fsnotify watcher and calls
// Heart.Trigger once changes have been quiet for Debounce.
func (w *Watcher) Run(ctx context.Context, roots []string) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range roots {
		w.addTree(watcher, root, logger)
	}
	logger.Info("watching project roots", "roots", len(roots), "dirs", len(watcher.WatchList()))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Has(fsnotify.Create) {
				w.addTree(watcher, event.Name, logger)
			}
			logger.Debug("change observed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		case <-fire:
			fire = nil
			if !w.Heart.Trigger() {
				logger.Debug("beat already pending")
			}
		}
	}
}

// addTree watches path and its subdirectories. Non-directories are ignored.
func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string, logger *slog.Logger) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return nil
			}
			logger.Debug("skip unwatchable path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.SkipDir != nil {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && w.SkipDir(d.Name(), filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		if err := watcher.Add(path); err != nil {
			logger.Warn("watch failed", "path", path, "err", err)
		}
		return nil
	})
}

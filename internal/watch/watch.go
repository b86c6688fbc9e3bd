// Package watch re-runs an action whenever a report file is rewritten.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events a single save produces.
const DefaultDebounce = 200 * time.Millisecond

type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(path string) error
	logger   *zap.Logger
}

// New watches path and calls onChange after each write or create, once the
// file has been quiet for debounce. Errors from onChange are logged and do
// not stop the watcher.
func New(path string, debounce time.Duration, onChange func(path string) error, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{path: path, debounce: debounce, onChange: onChange, logger: logger}
}

// Run blocks until ctx is done. The parent directory is watched so the file
// may be replaced by rename or created after Run starts.
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
	w.logger.Info("watching", zap.String("path", w.path))

	base := filepath.Base(w.path)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			if err := w.onChange(w.path); err != nil {
				w.logger.Error("regenerate failed", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.logger.Info("regenerated", zap.String("path", w.path))
		}
	}
}

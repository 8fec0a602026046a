package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay coalesces the burst of events editors emit on save.
const settleDelay = 500 * time.Millisecond

// Watch reloads the catalog file at path whenever it changes and hands the
// new catalog to onChange. Parse failures are logged and the previous
// catalog stays in use. Watch returns once the watcher is installed; it
// stops when ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Catalog), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("catalog watcher: bad path %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("catalog watcher: watch %q: %w", filepath.Dir(absPath), err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if name, _ := filepath.Abs(event.Name); name != absPath {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(settleDelay, func() {
					c, err := Load(absPath)
					if err != nil {
						logger.Warn("catalog reload failed", "path", absPath, "error", err)
						return
					}
					logger.Info("catalog reloaded", "path", absPath, "modules", len(c.byID))
					onChange(c)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("catalog watcher error", "error", err)
			}
		}
	}()

	logger.Info("watching catalog", "path", absPath)
	return nil
}

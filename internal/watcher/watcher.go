package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/jvreeland/questlog/internal/logger"
)

type implWatcher struct {
	uploadDir string
	logger    logger.Logger
	watcher   *fsnotify.Watcher
	notify    chan struct{}
}

// Start watches the upload directory and signals Notify on new archives.
// The signal is a hint only: the poller still scans the directory itself, so
// a missed event costs at most one poll interval.
func (w *implWatcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "Upload watcher started. Monitoring: %s", w.uploadDir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Upload watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}

			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !isArchive(event.Name) {
				w.logger.Debug(ctx, "Ignoring non-archive file: %s", event.Name)
				continue
			}

			w.logger.Info(ctx, "New archive detected: %s", event.Name)
			select {
			case w.notify <- struct{}{}:
			default:
				// wake-up already pending
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error(ctx, "Watcher error: %v", err)
		}
	}
}

// Stop closes the file watcher
func (w *implWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *implWatcher) Notify() <-chan struct{} {
	return w.notify
}

func isArchive(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".zip"
}

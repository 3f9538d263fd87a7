package watcher

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/jvreeland/questlog/internal/logger"
)

// New creates a new Watcher instance monitoring uploadDir for archives
func New(uploadDir string, log logger.Logger) (Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(uploadDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	return &implWatcher{
		uploadDir: uploadDir,
		logger:    log,
		watcher:   watcher,
		notify:    make(chan struct{}, 1),
	}, nil
}

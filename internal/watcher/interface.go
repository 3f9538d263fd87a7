package watcher

import "context"

// Watcher defines the interface for upload directory monitoring
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
	// Notify fires when a new archive lands in the upload directory, so
	// the poller can wake up early instead of waiting out its interval.
	Notify() <-chan struct{}
}

package poller

import "context"

// Poller drives the session pipeline on a fixed interval
type Poller interface {
	// Run cycles the pipeline until ctx is cancelled or a cycle returns a
	// fatal error. The current cycle always finishes before Run returns.
	Run(ctx context.Context) error
}

package session

import "context"

// Pipeline advances every pending session through its remaining stages.
type Pipeline interface {
	// RunCycle discovers newly uploaded archives and runs each pending
	// session as far forward as it can go. A returned error means the
	// cycle hit a failure that processing must not paper over (the
	// transcription engine broke, or a recap delivery failed partway);
	// the caller is expected to stop.
	RunCycle(ctx context.Context) error
}

// RecapPoster delivers a finished recap to the announcement channel.
type RecapPoster interface {
	PostRecap(ctx context.Context, title, content string) error
}

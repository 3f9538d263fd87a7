package auditlog

import (
	"context"
	"time"
)

// ProviderCall is one attempted language-model call, success or failure.
type ProviderCall struct {
	Provider      string
	Model         string
	PromptTokens  int64
	ThoughtTokens int64
	OutputTokens  int64
	TotalTokens   int64
	Cost          string
	RequestedAt   time.Time
	Duration      time.Duration
	HTTPStatus    int
	FinishReason  string
	RequestJSON   string
	ResponseJSON  string
}

// Delivery is one webhook call: a thread starter or a message chunk.
type Delivery struct {
	MessageID    string
	ChannelID    string
	Author       string
	Content      string
	RequestedAt  time.Time
	Duration     time.Duration
	HTTPStatus   int
	RequestJSON  string
	ResponseJSON string
}

// Store is the process-wide audit log. Writes are append-only and best
// effort: implementations must never let a logging failure go unrecorded,
// and callers must never let one abort a pipeline stage.
type Store interface {
	RecordProviderCall(ctx context.Context, call ProviderCall) error
	RecordDelivery(ctx context.Context, d Delivery) error
	Close() error
}

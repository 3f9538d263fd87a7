package provider

import (
	"context"
	"errors"
	"time"
)

// Usage is the normalized token accounting shared by all providers.
// Thought tokens are reasoning tokens reported separately by providers that
// expose them; they are billed as output tokens.
type Usage struct {
	PromptTokens  int64
	ThoughtTokens int64
	OutputTokens  int64
	TotalTokens   int64
}

// Result is a successful summarization call.
type Result struct {
	Summary      string
	Usage        Usage
	Cost         string
	HTTPStatus   int
	FinishReason string
	Duration     time.Duration
	Provider     string
	Model        string
}

// ErrEmptySummary marks an HTTP-successful response from which no summary
// text could be extracted.
var ErrEmptySummary = errors.New("provider returned an empty summary")

// Provider is an interchangeable language-model backend. Summarize reads the
// transcript at transcriptPath, sends it with the instruction prompt, and
// returns the normalized result. Every attempt, success or failure, is
// written to the audit log before Summarize returns.
type Provider interface {
	Name() string
	Model() string
	Summarize(ctx context.Context, transcriptPath, prompt string) (*Result, error)
}

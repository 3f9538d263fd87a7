package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jvreeland/questlog/internal/auditlog"
	"github.com/jvreeland/questlog/internal/logger"
)

// Self-hosted backend speaking the OpenAI-compatible chat completions API
// that Ollama exposes. No auth; the transcript is pasted into the message
// body since local servers have no file or inline-document support.
type ollamaProvider struct {
	core
	baseURL string
}

const defaultOllamaURL = "http://ollama:11434"

func newOllama(store auditlog.Store, log logger.Logger, model, baseURL, inputCost, outputCost string, spaceSaver bool) *ollamaProvider {
	return &ollamaProvider{
		core:    newCore(store, log, model, inputCost, outputCost, spaceSaver),
		baseURL: normalizeOllamaURL(baseURL),
	}
}

func (o *ollamaProvider) Name() string  { return "ollama" }
func (o *ollamaProvider) Model() string { return o.model }

func normalizeOllamaURL(raw string) string {
	if raw == "" {
		raw = defaultOllamaURL
	}
	if !strings.HasPrefix(raw, "http") {
		raw = "http://" + raw
	}
	return strings.TrimRight(raw, "/")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *json.RawMessage `json:"error"`
}

func (o *ollamaProvider) Summarize(ctx context.Context, transcriptPath, prompt string) (*Result, error) {
	raw, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	combined := fmt.Sprintf("%s\n\n### %s\n%s", prompt, filepath.Base(transcriptPath), raw)
	payload := chatRequest{
		Model:    o.model,
		Messages: []chatMessage{{Role: "user", Content: combined}},
		Stream:   false,
	}
	wire, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	storedReq := string(wire)
	if o.spaceSaver {
		payload.Messages[0].Content = truncatedPlaceholder
		if b, err := json.Marshal(payload); err == nil {
			storedReq = string(b)
		}
	}

	req, err := jsonPost(ctx, o.baseURL+"/v1/chat/completions", wire)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	res, err := o.send(req)
	if err != nil {
		o.record(ctx, o.Name(), Usage{}, "", res, reasonTransportError, storedReq, err.Error())
		return nil, fmt.Errorf("ollama: %w", err)
	}

	var parsed chatResponse
	parseErr := json.Unmarshal(res.body, &parsed)

	var usage Usage
	var summary, finish string
	switch {
	case parseErr != nil:
		finish = reasonParseError
	case parsed.Error != nil || !statusOK(res.status):
		finish = reasonAPIError
	default:
		usage = Usage{
			PromptTokens: parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		}
		finish = "unknown"
		if len(parsed.Choices) > 0 {
			summary = parsed.Choices[0].Message.Content
			if parsed.Choices[0].FinishReason != "" {
				finish = parsed.Choices[0].FinishReason
			}
		}
	}

	o.record(ctx, o.Name(), usage, o.computeCost(ctx, usage), res, finish, storedReq, string(res.body))

	if !statusOK(res.status) || parsed.Error != nil {
		return nil, fmt.Errorf("ollama api error (HTTP %d): %s", res.status, res.body)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("ollama: parse response: %w", parseErr)
	}
	if summary == "" {
		return nil, fmt.Errorf("ollama: %w", ErrEmptySummary)
	}

	return &Result{
		Summary:      summary,
		Usage:        usage,
		Cost:         o.computeCost(ctx, usage),
		HTTPStatus:   res.status,
		FinishReason: finish,
		Duration:     res.duration,
		Provider:     o.Name(),
		Model:        o.model,
	}, nil
}

package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jvreeland/questlog/internal/auditlog"
	"github.com/jvreeland/questlog/internal/logger"
)

// Google Gemini backend.
// POST {base}/v1beta/models/{model}:streamGenerateContent?key={api_key}
// The transcript document rides inline as base64; the response is a JSON
// array of streamed chunks whose last element carries the usage metadata.
type googleProvider struct {
	core
	apiKey  string
	baseURL string
}

func newGoogle(store auditlog.Store, log logger.Logger, model, apiKey, inputCost, outputCost string, spaceSaver bool) *googleProvider {
	return &googleProvider{
		core:    newCore(store, log, model, inputCost, outputCost, spaceSaver),
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com",
	}
}

func (g *googleProvider) Name() string  { return "google" }
func (g *googleProvider) Model() string { return g.model }

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason"`
}

type geminiUsage struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int64 `json:"thoughtsTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

type geminiChunk struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata"`
	Error         *json.RawMessage  `json:"error"`
}

func (g *googleProvider) Summarize(ctx context.Context, transcriptPath, prompt string) (*Result, error) {
	raw, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	payload := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{
		{InlineData: &geminiInlineData{MimeType: "text/plain", Data: base64.StdEncoding.EncodeToString(raw)}},
		{Text: prompt},
	}}}}

	wire, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	storedReq := string(wire)
	if g.spaceSaver {
		payload.Contents[0].Parts[0].InlineData.Data = truncatedPlaceholder
		if b, err := json.Marshal(payload); err == nil {
			storedReq = string(b)
		}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := jsonPost(ctx, url, wire)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	res, err := g.send(req)
	if err != nil {
		g.record(ctx, g.Name(), Usage{}, "", res, reasonTransportError, storedReq, err.Error())
		return nil, fmt.Errorf("google: %w", err)
	}

	chunks, apiErr, parseErr := parseGeminiBody(res.body)

	var usage Usage
	var summary, finish string
	switch {
	case parseErr != nil:
		finish = reasonParseError
	case apiErr || !statusOK(res.status):
		finish = reasonAPIError
	default:
		usage, summary, finish = collectGeminiChunks(chunks)
	}

	storedRes := string(res.body)
	if g.spaceSaver && parseErr == nil {
		storedRes = truncateGeminiThoughts(chunks)
	}
	g.record(ctx, g.Name(), usage, g.computeCost(ctx, usage), res, finish, storedReq, storedRes)

	if !statusOK(res.status) || apiErr {
		return nil, fmt.Errorf("google api error (HTTP %d): %s", res.status, res.body)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("google: parse response: %w", parseErr)
	}
	if summary == "" {
		return nil, fmt.Errorf("google: %w", ErrEmptySummary)
	}

	return &Result{
		Summary:      summary,
		Usage:        usage,
		Cost:         g.computeCost(ctx, usage),
		HTTPStatus:   res.status,
		FinishReason: finish,
		Duration:     res.duration,
		Provider:     g.Name(),
		Model:        g.model,
	}, nil
}

// parseGeminiBody accepts either the streamed chunk array or a single error
// object. apiErr reports whether an error object was found.
func parseGeminiBody(body []byte) (chunks []geminiChunk, apiErr bool, err error) {
	if jerr := json.Unmarshal(body, &chunks); jerr == nil {
		for _, c := range chunks {
			if c.Error != nil {
				return chunks, true, nil
			}
		}
		return chunks, false, nil
	}

	var single geminiChunk
	if jerr := json.Unmarshal(body, &single); jerr != nil {
		return nil, false, jerr
	}
	return []geminiChunk{single}, single.Error != nil, nil
}

// collectGeminiChunks concatenates candidate text across stream chunks and
// reads usage and finish reason from the final chunk.
func collectGeminiChunks(chunks []geminiChunk) (Usage, string, string) {
	var usage Usage
	var summary string
	finish := "UNKNOWN"

	for _, c := range chunks {
		if len(c.Candidates) == 0 || c.Candidates[0].Content == nil {
			continue
		}
		for _, p := range c.Candidates[0].Content.Parts {
			if !p.Thought {
				summary += p.Text
			}
		}
	}

	if len(chunks) > 0 {
		last := chunks[len(chunks)-1]
		if last.UsageMetadata != nil {
			usage = Usage{
				PromptTokens:  last.UsageMetadata.PromptTokenCount,
				ThoughtTokens: last.UsageMetadata.ThoughtsTokenCount,
				OutputTokens:  last.UsageMetadata.CandidatesTokenCount,
				TotalTokens:   last.UsageMetadata.TotalTokenCount,
			}
		}
		if len(last.Candidates) > 0 && last.Candidates[0].FinishReason != "" {
			finish = last.Candidates[0].FinishReason
		}
	}

	return usage, summary, finish
}

// truncateGeminiThoughts replaces reasoning part text in the stored response
// so opaque thought streams do not bloat the audit log.
func truncateGeminiThoughts(chunks []geminiChunk) string {
	for ci := range chunks {
		for i := range chunks[ci].Candidates {
			content := chunks[ci].Candidates[i].Content
			if content == nil {
				continue
			}
			for pi := range content.Parts {
				if content.Parts[pi].Thought {
					content.Parts[pi].Text = truncatedPlaceholder
				}
			}
		}
	}
	b, err := json.Marshal(chunks)
	if err != nil {
		return ""
	}
	return string(b)
}

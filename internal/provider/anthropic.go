package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jvreeland/questlog/internal/auditlog"
	"github.com/jvreeland/questlog/internal/logger"
)

// Anthropic backend. The transcript is uploaded to the Files API first, then
// referenced as a document block in the messages call. Both hops share the
// versioned auth headers; the files beta header is required for uploads.
type anthropicProvider struct {
	core
	apiKey  string
	baseURL string
}

const (
	anthropicVersion   = "2023-06-01"
	anthropicFilesBeta = "files-api-2025-04-14"
	anthropicMaxTokens = 4096
)

func newAnthropic(store auditlog.Store, log logger.Logger, model, apiKey, inputCost, outputCost string, spaceSaver bool) *anthropicProvider {
	return &anthropicProvider{
		core:    newCore(store, log, model, inputCost, outputCost, spaceSaver),
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com",
	}
}

func (a *anthropicProvider) Name() string  { return "anthropic" }
func (a *anthropicProvider) Model() string { return a.model }

type anthropicSource struct {
	Type   string `json:"type"`
	FileID string `json:"file_id"`
}

type anthropicBlock struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	Thinking string           `json:"thinking,omitempty"`
	Source   *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
	Error *json.RawMessage `json:"error"`
}

func (a *anthropicProvider) headers(req *http.Request) {
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("anthropic-beta", anthropicFilesBeta)
}

func (a *anthropicProvider) Summarize(ctx context.Context, transcriptPath, prompt string) (*Result, error) {
	fileID, err := a.uploadTranscript(ctx, transcriptPath)
	if err != nil {
		return nil, err
	}

	payload := anthropicRequest{
		Model:     a.model,
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicBlock{
				{Type: "text", Text: prompt},
				{Type: "document", Source: &anthropicSource{Type: "file", FileID: fileID}},
			},
		}},
	}
	wire, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := jsonPost(ctx, a.baseURL+"/v1/messages", wire)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	a.headers(req)

	res, err := a.send(req)
	if err != nil {
		a.record(ctx, a.Name(), Usage{}, "", res, reasonTransportError, string(wire), err.Error())
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var parsed anthropicResponse
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
			PromptTokens: parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		}
		for _, block := range parsed.Content {
			if block.Type == "text" {
				summary += block.Text
			}
		}
		finish = parsed.StopReason
		if finish == "" {
			finish = "unknown"
		}
	}

	storedRes := string(res.body)
	if a.spaceSaver && parseErr == nil {
		storedRes = truncateAnthropicThinking(&parsed)
	}
	a.record(ctx, a.Name(), usage, a.computeCost(ctx, usage), res, finish, string(wire), storedRes)

	if !statusOK(res.status) || parsed.Error != nil {
		return nil, fmt.Errorf("anthropic api error (HTTP %d): %s", res.status, res.body)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("anthropic: parse response: %w", parseErr)
	}
	if summary == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrEmptySummary)
	}

	return &Result{
		Summary:      summary,
		Usage:        usage,
		Cost:         a.computeCost(ctx, usage),
		HTTPStatus:   res.status,
		FinishReason: finish,
		Duration:     res.duration,
		Provider:     a.Name(),
		Model:        a.model,
	}, nil
}

// uploadTranscript pushes the transcript to the Files API and returns the
// file id. Upload attempts are audited too: a failed upload is an API error
// for the whole call.
func (a *anthropicProvider) uploadTranscript(ctx context.Context, transcriptPath string) (string, error) {
	raw, err := os.ReadFile(transcriptPath)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(transcriptPath))
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := fw.Write(raw); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/files", &body)
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	a.headers(req)

	storedReq := fmt.Sprintf(`{"upload":%q}`, filepath.Base(transcriptPath))

	res, err := a.send(req)
	if err != nil {
		a.record(ctx, a.Name(), Usage{}, "", res, reasonTransportError, storedReq, err.Error())
		return "", fmt.Errorf("anthropic file upload: %w", err)
	}

	if res.status != http.StatusOK && res.status != http.StatusCreated {
		a.record(ctx, a.Name(), Usage{}, "", res, reasonAPIError, storedReq, string(res.body))
		return "", fmt.Errorf("anthropic file upload failed (HTTP %d): %s", res.status, res.body)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(res.body, &parsed); err != nil || parsed.ID == "" {
		a.record(ctx, a.Name(), Usage{}, "", res, reasonParseError, storedReq, string(res.body))
		return "", fmt.Errorf("anthropic file upload: no file id in response")
	}
	return parsed.ID, nil
}

// truncateAnthropicThinking blanks extended-thinking blocks in the stored
// response payload.
func truncateAnthropicThinking(parsed *anthropicResponse) string {
	for i := range parsed.Content {
		if parsed.Content[i].Type == "thinking" {
			parsed.Content[i].Thinking = truncatedPlaceholder
		}
	}
	b, err := json.Marshal(parsed)
	if err != nil {
		return ""
	}
	return string(b)
}

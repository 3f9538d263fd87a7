package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jvreeland/questlog/internal/auditlog"
	"github.com/jvreeland/questlog/internal/logger"
)

// OpenAI backend via the Responses API. The transcript rides inline as a
// base64 data URL; auth is a bearer token.
type openaiProvider struct {
	core
	apiKey  string
	baseURL string
}

func newOpenAI(store auditlog.Store, log logger.Logger, model, apiKey, inputCost, outputCost string, spaceSaver bool) *openaiProvider {
	return &openaiProvider{
		core:    newCore(store, log, model, inputCost, outputCost, spaceSaver),
		apiKey:  apiKey,
		baseURL: "https://api.openai.com",
	}
}

func (o *openaiProvider) Name() string  { return "openai" }
func (o *openaiProvider) Model() string { return o.model }

type openaiContent struct {
	Type     string `json:"type"`
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"`
	Text     string `json:"text,omitempty"`
}

type openaiInput struct {
	Role    string          `json:"role"`
	Content []openaiContent `json:"content"`
}

type openaiRequest struct {
	Model string        `json:"model"`
	Input []openaiInput `json:"input"`
}

type openaiResponse struct {
	OutputText string `json:"output_text"`
	Choices    []struct {
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

func (o *openaiProvider) Summarize(ctx context.Context, transcriptPath, prompt string) (*Result, error) {
	raw, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	fileData := "data:text/plain;base64," + base64.StdEncoding.EncodeToString(raw)
	payload := openaiRequest{
		Model: o.model,
		Input: []openaiInput{{
			Role: "user",
			Content: []openaiContent{
				{Type: "input_file", Filename: filepath.Base(transcriptPath), FileData: fileData},
				{Type: "input_text", Text: prompt},
			},
		}},
	}

	wire, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	storedReq := string(wire)
	if o.spaceSaver {
		payload.Input[0].Content[0].FileData = truncatedPlaceholder
		if b, err := json.Marshal(payload); err == nil {
			storedReq = string(b)
		}
	}

	req, err := jsonPost(ctx, o.baseURL+"/v1/responses", wire)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	res, err := o.send(req)
	if err != nil {
		o.record(ctx, o.Name(), Usage{}, "", res, reasonTransportError, storedReq, err.Error())
		return nil, fmt.Errorf("openai: %w", err)
	}

	var parsed openaiResponse
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
		summary = parsed.OutputText
		finish = "unknown"
		if len(parsed.Choices) > 0 {
			if summary == "" {
				summary = parsed.Choices[0].Message.Content
			}
			if parsed.Choices[0].FinishReason != "" {
				finish = parsed.Choices[0].FinishReason
			}
		}
	}

	storedRes := string(res.body)
	if o.spaceSaver {
		storedRes = truncateOpenAIReasoning(res.body)
	}
	o.record(ctx, o.Name(), usage, o.computeCost(ctx, usage), res, finish, storedReq, storedRes)

	if !statusOK(res.status) || parsed.Error != nil {
		return nil, fmt.Errorf("openai api error (HTTP %d): %s", res.status, res.body)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("openai: parse response: %w", parseErr)
	}
	if summary == "" {
		return nil, fmt.Errorf("openai: %w", ErrEmptySummary)
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

// truncateOpenAIReasoning blanks reasoning items in the Responses output
// array before the payload is stored. The body is returned unchanged when it
// does not match the expected shape.
func truncateOpenAIReasoning(body []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return string(body)
	}
	output, ok := doc["output"].([]any)
	if !ok {
		return string(body)
	}
	for _, item := range output {
		m, ok := item.(map[string]any)
		if !ok || m["type"] != "reasoning" {
			continue
		}
		for _, key := range []string{"summary", "content", "encrypted_content"} {
			if _, present := m[key]; present {
				m[key] = truncatedPlaceholder
			}
		}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return string(body)
	}
	return string(b)
}

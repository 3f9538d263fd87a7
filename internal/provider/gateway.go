package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jvreeland/questlog/internal/auditlog"
	"github.com/jvreeland/questlog/internal/cost"
	"github.com/jvreeland/questlog/internal/logger"
)

// Finish reasons for calls that never produced a parseable provider answer.
const (
	reasonTransportError = "TRANSPORT_ERROR"
	reasonAPIError       = "API_ERROR"
	reasonParseError     = "PARSE_ERROR"
)

const truncatedPlaceholder = "[TRUNCATED]"

// core carries the plumbing shared by all adapters: the HTTP client, the
// audit store, cost rates, and the space-saver flag.
type core struct {
	store      auditlog.Store
	log        logger.Logger
	client     *http.Client
	model      string
	inputCost  string
	outputCost string
	spaceSaver bool
}

func newCore(store auditlog.Store, log logger.Logger, model, inputCost, outputCost string, spaceSaver bool) core {
	return core{
		store:      store,
		log:        log,
		client:     &http.Client{},
		model:      model,
		inputCost:  inputCost,
		outputCost: outputCost,
		spaceSaver: spaceSaver,
	}
}

// callResult is the raw outcome of one HTTP exchange.
type callResult struct {
	status      int
	body        []byte
	requestedAt time.Time
	duration    time.Duration
}

// send performs one HTTP exchange, timing it from just before the network
// call to just after the body is read. A nil error with any status code means
// a response was obtained; the caller decides whether it is an API error.
func (c *core) send(req *http.Request) (*callResult, error) {
	res := &callResult{requestedAt: time.Now()}

	resp, err := c.client.Do(req)
	res.duration = time.Since(res.requestedAt)
	if err != nil {
		return res, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	res.status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	res.duration = time.Since(res.requestedAt)
	if err != nil {
		return res, fmt.Errorf("transport: read body: %w", err)
	}
	res.body = body
	return res, nil
}

func jsonPost(ctx context.Context, url string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// computeCost turns normalized usage into a display cost. A bad rate is a
// configuration problem worth a warning, not a failed call.
func (c *core) computeCost(ctx context.Context, usage Usage) string {
	s, err := cost.Calculate(usage.PromptTokens, usage.ThoughtTokens, usage.OutputTokens, c.inputCost, c.outputCost)
	if err != nil {
		c.log.Warn(ctx, "Cost calculation failed: %v", err)
		return ""
	}
	return s
}

// record writes one audit row. Audit failures are logged and swallowed: they
// must never abort the summarization stage.
func (c *core) record(ctx context.Context, provider string, usage Usage, costStr string, res *callResult, finishReason, requestJSON, responseJSON string) {
	call := auditlog.ProviderCall{
		Provider:      provider,
		Model:         c.model,
		PromptTokens:  usage.PromptTokens,
		ThoughtTokens: usage.ThoughtTokens,
		OutputTokens:  usage.OutputTokens,
		TotalTokens:   usage.TotalTokens,
		Cost:          costStr,
		RequestedAt:   res.requestedAt,
		Duration:      res.duration,
		HTTPStatus:    res.status,
		FinishReason:  finishReason,
		RequestJSON:   requestJSON,
		ResponseJSON:  responseJSON,
	}
	if err := c.store.RecordProviderCall(ctx, call); err != nil {
		c.log.Warn(ctx, "Audit log write failed for %s call: %v", provider, err)
	}
}

func statusOK(status int) bool {
	return status >= 200 && status < 300
}

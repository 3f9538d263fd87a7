package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jvreeland/questlog/internal/auditlog"
	"github.com/jvreeland/questlog/internal/logger"
)

// Discord's error code for a webhook that cannot create threads because the
// destination is not a forum channel.
const codeNotForumChannel = 220001

const posterAuthor = "questlog"

// Poster delivers a recap to a Discord webhook as a thread of rate-limited,
// size-bounded messages.
type Poster struct {
	webhookURL string
	limit      int
	pause      time.Duration
	client     *http.Client
	store      auditlog.Store
	log        logger.Logger
}

// New creates a Poster for one webhook destination.
func New(webhookURL string, messageLimit int, pause time.Duration, store auditlog.Store, log logger.Logger) *Poster {
	return &Poster{
		webhookURL: webhookURL,
		limit:      messageLimit,
		pause:      pause,
		client:     &http.Client{},
		store:      store,
		log:        log,
	}
}

type webhookPayload struct {
	Content    string `json:"content"`
	ThreadName string `json:"thread_name,omitempty"`
}

type webhookResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Code      int    `json:"code"`
}

// PostRecap creates a recap thread (falling back to the bare channel when the
// destination is not forum-capable) and posts the content paragraph by
// paragraph. Any transport failure or unexpected status aborts delivery for
// this cycle.
func (p *Poster) PostRecap(ctx context.Context, title, content string) error {
	threadID, err := p.createThread(ctx, title)
	if err != nil {
		return err
	}

	dest := p.webhookURL
	if threadID != "" {
		dest = p.webhookURL + "?thread_id=" + threadID
	}

	messages := SplitMessage(content, p.limit)
	p.log.Info(ctx, "Delivering recap %q: %d messages", title, len(messages))

	for i, msg := range messages {
		if i > 0 || threadID != "" {
			p.sleep(ctx)
		}
		res, err := p.post(ctx, dest, webhookPayload{Content: msg}, threadID)
		if err != nil {
			return fmt.Errorf("post chunk %d/%d: %w", i+1, len(messages), err)
		}
		if !statusOK(res.status) {
			return fmt.Errorf("post chunk %d/%d: webhook returned HTTP %d: %s",
				i+1, len(messages), res.status, res.body)
		}
	}

	return nil
}

// createThread posts the starter message. It returns an empty thread id when
// the destination turned out not to be a forum channel, which redirects the
// rest of the delivery to the base webhook.
func (p *Poster) createThread(ctx context.Context, title string) (string, error) {
	payload := webhookPayload{
		Content:    "# " + title,
		ThreadName: title,
	}

	res, err := p.post(ctx, p.webhookURL+"?wait=true", payload, "")
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	if statusOK(res.status) {
		var parsed webhookResponse
		if err := json.Unmarshal(res.body, &parsed); err == nil && parsed.ID != "" {
			return parsed.ID, nil
		}
		// 204 or an unexpected body: deliver to the base webhook.
		return "", nil
	}

	var parsed webhookResponse
	if err := json.Unmarshal(res.body, &parsed); err == nil && parsed.Code == codeNotForumChannel {
		p.log.Warn(ctx, "Webhook channel is not a forum, posting recap without a thread")
		return "", nil
	}

	return "", fmt.Errorf("create thread: webhook returned HTTP %d: %s", res.status, res.body)
}

type postResult struct {
	status int
	body   []byte
}

// post sends one webhook call and audits it regardless of outcome.
func (p *Poster) post(ctx context.Context, url string, payload webhookPayload, threadID string) (*postResult, error) {
	wire, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(wire))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	requestedAt := time.Now()
	resp, err := p.client.Do(req)
	duration := time.Since(requestedAt)

	entry := auditlog.Delivery{
		ChannelID:   threadID,
		Author:      posterAuthor,
		Content:     payload.Content,
		RequestedAt: requestedAt,
		Duration:    duration,
		RequestJSON: string(wire),
	}

	if err != nil {
		entry.ResponseJSON = err.Error()
		p.audit(ctx, entry)
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	entry.Duration = time.Since(requestedAt)
	entry.HTTPStatus = resp.StatusCode
	entry.ResponseJSON = string(body)

	var parsed webhookResponse
	if json.Unmarshal(body, &parsed) == nil {
		entry.MessageID = parsed.ID
		if entry.ChannelID == "" {
			entry.ChannelID = parsed.ChannelID
		}
	}

	p.audit(ctx, entry)

	if readErr != nil {
		return nil, fmt.Errorf("transport: read body: %w", readErr)
	}
	return &postResult{status: resp.StatusCode, body: body}, nil
}

func (p *Poster) audit(ctx context.Context, entry auditlog.Delivery) {
	if err := p.store.RecordDelivery(ctx, entry); err != nil {
		p.log.Warn(ctx, "Audit log write failed for delivery: %v", err)
	}
}

// sleep pauses between sends to stay under the webhook rate limit,
// returning early on shutdown.
func (p *Poster) sleep(ctx context.Context) {
	select {
	case <-time.After(p.pause):
	case <-ctx.Done():
	}
}

func statusOK(status int) bool {
	return status >= 200 && status < 300
}

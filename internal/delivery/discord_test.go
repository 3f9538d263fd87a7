package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jvreeland/questlog/internal/auditlog"
	"github.com/jvreeland/questlog/internal/logger"
)

type fakeStore struct {
	deliveries []auditlog.Delivery
}

func (f *fakeStore) RecordProviderCall(ctx context.Context, call auditlog.ProviderCall) error {
	return nil
}

func (f *fakeStore) RecordDelivery(ctx context.Context, d auditlog.Delivery) error {
	f.deliveries = append(f.deliveries, d)
	return nil
}

func (f *fakeStore) Close() error { return nil }

type recordedPost struct {
	threadID string
	payload  webhookPayload
}

func TestPostRecapThreaded(t *testing.T) {
	var posts []recordedPost
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		json.NewDecoder(r.Body).Decode(&payload)
		posts = append(posts, recordedPost{
			threadID: r.URL.Query().Get("thread_id"),
			payload:  payload,
		})
		if payload.ThreadName != "" {
			w.Write([]byte(`{"id":"111222333","channel_id":"444"}`))
			return
		}
		w.Write([]byte(`{"id":"999"}`))
	}))
	defer server.Close()

	store := &fakeStore{}
	p := New(server.URL, 2000, time.Millisecond, store, logger.New("error"))

	content := "## March 14, 2026 Session Recap\n\nThe party survived."
	if err := p.PostRecap(context.Background(), "March 14, 2026 Session Recap", content); err != nil {
		t.Fatalf("PostRecap() error = %v", err)
	}

	if len(posts) != 3 {
		t.Fatalf("got %d posts, want 3 (starter + 2 paragraphs)", len(posts))
	}
	starter := posts[0]
	if starter.payload.ThreadName != "March 14, 2026 Session Recap" {
		t.Errorf("starter thread_name = %q", starter.payload.ThreadName)
	}
	if !strings.HasPrefix(starter.payload.Content, "# ") {
		t.Errorf("starter content = %q", starter.payload.Content)
	}
	for _, chunk := range posts[1:] {
		if chunk.threadID != "111222333" {
			t.Errorf("chunk thread_id = %q, want 111222333", chunk.threadID)
		}
	}

	if len(store.deliveries) != 3 {
		t.Errorf("audited %d posts, want 3", len(store.deliveries))
	}
	if store.deliveries[0].MessageID != "111222333" {
		t.Errorf("starter message id = %q", store.deliveries[0].MessageID)
	}
}

func TestPostRecapNonForumFallback(t *testing.T) {
	var chunkThreadIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		json.NewDecoder(r.Body).Decode(&payload)
		if payload.ThreadName != "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"Webhooks can only create threads in forum channels","code":220001}`))
			return
		}
		chunkThreadIDs = append(chunkThreadIDs, r.URL.Query().Get("thread_id"))
		w.Write([]byte(`{"id":"42"}`))
	}))
	defer server.Close()

	p := New(server.URL, 2000, time.Millisecond, &fakeStore{}, logger.New("error"))

	err := p.PostRecap(context.Background(), "Recap", "one\n\ntwo")
	if err != nil {
		t.Fatalf("PostRecap() error = %v (non-forum must fall back, not abort)", err)
	}
	if len(chunkThreadIDs) != 2 {
		t.Fatalf("got %d chunk posts, want 2", len(chunkThreadIDs))
	}
	for _, id := range chunkThreadIDs {
		if id != "" {
			t.Errorf("chunk posted with thread_id %q, want base webhook", id)
		}
	}
}

func TestPostRecapOtherThreadErrorAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid Webhook Token","code":50027}`))
	}))
	defer server.Close()

	p := New(server.URL, 2000, time.Millisecond, &fakeStore{}, logger.New("error"))

	if err := p.PostRecap(context.Background(), "Recap", "body"); err == nil {
		t.Fatal("expected error for non-forum-related thread failure")
	}
}

func TestPostRecapChunkFailureAborts(t *testing.T) {
	var posts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		if posts == 1 {
			w.Write([]byte(`{"id":"1"}`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer server.Close()

	store := &fakeStore{}
	p := New(server.URL, 2000, time.Millisecond, store, logger.New("error"))

	err := p.PostRecap(context.Background(), "Recap", "one\n\ntwo\n\nthree")
	if err == nil {
		t.Fatal("expected error when a chunk post fails")
	}
	if posts != 2 {
		t.Errorf("made %d posts, want 2 (no posts after the failure)", posts)
	}
	// The failed post is still audited.
	last := store.deliveries[len(store.deliveries)-1]
	if last.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("last audited status = %d, want 429", last.HTTPStatus)
	}
}

package auditlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordProviderCall(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	call := ProviderCall{
		Provider:      "google",
		Model:         "gemini-2.5-flash",
		PromptTokens:  1000,
		ThoughtTokens: 50,
		OutputTokens:  2000,
		TotalTokens:   3050,
		Cost:          "$0.000675",
		RequestedAt:   time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC),
		Duration:      12345 * time.Millisecond,
		HTTPStatus:    200,
		FinishReason:  "STOP",
		RequestJSON:   `{"contents":[]}`,
		ResponseJSON:  `[{"candidates":[]}]`,
	}
	if err := store.RecordProviderCall(ctx, call); err != nil {
		t.Fatalf("RecordProviderCall() error = %v", err)
	}

	db := store.(*sqliteStore).db
	var model, cost, reason string
	var epoch, durationMS int64
	err := db.QueryRow(
		"SELECT model, cost, finish_reason, epoch, duration_ms FROM llm_log_google",
	).Scan(&model, &cost, &reason, &epoch, &durationMS)
	if err != nil {
		t.Fatalf("query row: %v", err)
	}
	if model != "gemini-2.5-flash" || cost != "$0.000675" || reason != "STOP" {
		t.Errorf("row = (%q, %q, %q)", model, cost, reason)
	}
	if epoch != call.RequestedAt.Unix() {
		t.Errorf("epoch = %d, want %d", epoch, call.RequestedAt.Unix())
	}
	if durationMS != 12345 {
		t.Errorf("duration_ms = %d, want 12345", durationMS)
	}
}

func TestRecordProviderCallPerProviderTables(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for provider := range providerTables {
		call := ProviderCall{Provider: provider, Model: "m", RequestedAt: time.Now()}
		if err := store.RecordProviderCall(ctx, call); err != nil {
			t.Errorf("RecordProviderCall(%s) error = %v", provider, err)
		}
	}

	db := store.(*sqliteStore).db
	for provider, table := range providerTables {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 1 {
			t.Errorf("%s has %d rows, want 1", provider, n)
		}
	}
}

func TestRecordProviderCallUnknownProvider(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.RecordProviderCall(ctx, ProviderCall{Provider: "mystery", RequestedAt: time.Now()}); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	// The failure itself must land in the diagnostic table.
	db := store.(*sqliteStore).db
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM diagnostic_log").Scan(&n); err != nil {
		t.Fatalf("count diagnostics: %v", err)
	}
	if n != 1 {
		t.Errorf("diagnostic_log has %d rows, want 1", n)
	}
}

func TestRecordDelivery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	d := Delivery{
		MessageID:    "123456789",
		ChannelID:    "987654321",
		Author:       "questlog",
		Content:      "# March 14, 2026 Session Recap",
		RequestedAt:  time.Now(),
		Duration:     200 * time.Millisecond,
		HTTPStatus:   200,
		RequestJSON:  `{"content":"..."}`,
		ResponseJSON: `{"id":"123456789"}`,
	}
	if err := store.RecordDelivery(ctx, d); err != nil {
		t.Fatalf("RecordDelivery() error = %v", err)
	}

	db := store.(*sqliteStore).db
	var messageID, channelID string
	var status int
	err := db.QueryRow("SELECT message_id, channel_id, http_status FROM delivery_log").
		Scan(&messageID, &channelID, &status)
	if err != nil {
		t.Fatalf("query row: %v", err)
	}
	if messageID != "123456789" || channelID != "987654321" || status != 200 {
		t.Errorf("row = (%q, %q, %d)", messageID, channelID, status)
	}
}

package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Providers with a dedicated audit table. Table names are derived from this
// list, never from caller input.
var providerTables = map[string]string{
	"google":    "llm_log_google",
	"anthropic": "llm_log_anthropic",
	"openai":    "llm_log_openai",
	"ollama":    "llm_log_ollama",
}

const providerColumns = `
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    model         TEXT NOT NULL,
    prompt_tokens INTEGER NOT NULL DEFAULT 0,
    thought_tokens INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    total_tokens  INTEGER NOT NULL DEFAULT 0,
    cost          TEXT NOT NULL DEFAULT '',
    requested_at  TEXT NOT NULL,
    epoch         INTEGER NOT NULL,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    http_status   INTEGER NOT NULL DEFAULT 0,
    finish_reason TEXT NOT NULL DEFAULT '',
    request_json  TEXT NOT NULL DEFAULT '',
    response_json TEXT NOT NULL DEFAULT ''
`

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS delivery_log (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id    TEXT NOT NULL DEFAULT '',
    channel_id    TEXT NOT NULL DEFAULT '',
    author        TEXT NOT NULL DEFAULT '',
    content       TEXT NOT NULL DEFAULT '',
    requested_at  TEXT NOT NULL,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    http_status   INTEGER NOT NULL DEFAULT 0,
    request_json  TEXT NOT NULL DEFAULT '',
    response_json TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS diagnostic_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    logged_at  TEXT NOT NULL,
    statement  TEXT NOT NULL,
    error_text TEXT NOT NULL
);
`

type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database with WAL journaling.
// It is opened once per process lifetime and accessed serially.
func Open(path string) (Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	for _, table := range providerTables {
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, providerColumns)
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) RecordProviderCall(ctx context.Context, call ProviderCall) error {
	table, ok := providerTables[call.Provider]
	if !ok {
		err := fmt.Errorf("unknown provider %q", call.Provider)
		s.recordDiagnostic(ctx, "RecordProviderCall", err)
		return err
	}

	stmt := fmt.Sprintf(`INSERT INTO %s
        (model, prompt_tokens, thought_tokens, output_tokens, total_tokens,
         cost, requested_at, epoch, duration_ms, http_status, finish_reason,
         request_json, response_json)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)

	_, err := s.db.ExecContext(ctx, stmt,
		call.Model, call.PromptTokens, call.ThoughtTokens, call.OutputTokens,
		call.TotalTokens, call.Cost,
		call.RequestedAt.UTC().Format("2006-01-02 15:04:05"),
		call.RequestedAt.Unix(),
		call.Duration.Milliseconds(), call.HTTPStatus, call.FinishReason,
		call.RequestJSON, call.ResponseJSON)
	if err != nil {
		s.recordDiagnostic(ctx, stmt, err)
		return fmt.Errorf("record provider call: %w", err)
	}
	return nil
}

func (s *sqliteStore) RecordDelivery(ctx context.Context, d Delivery) error {
	const stmt = `INSERT INTO delivery_log
        (message_id, channel_id, author, content, requested_at, duration_ms,
         http_status, request_json, response_json)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, stmt,
		d.MessageID, d.ChannelID, d.Author, d.Content,
		d.RequestedAt.UTC().Format("2006-01-02 15:04:05"),
		d.Duration.Milliseconds(), d.HTTPStatus,
		d.RequestJSON, d.ResponseJSON)
	if err != nil {
		s.recordDiagnostic(ctx, stmt, err)
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// recordDiagnostic captures a failed audit write. Best effort: if even this
// insert fails there is nothing left to do but drop it.
func (s *sqliteStore) recordDiagnostic(ctx context.Context, statement string, cause error) {
	s.db.ExecContext(ctx,
		"INSERT INTO diagnostic_log (logged_at, statement, error_text) VALUES (datetime('now'), ?, ?)",
		statement, cause.Error())
}

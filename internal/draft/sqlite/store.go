// Package sqlite provides an embedded SQLite backend for form drafts.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/draft"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store persists drafts in a local SQLite file.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and ensures the drafts table exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create drafts table: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get loads a draft by key.
func (s *Store) Get(ctx context.Context, key string) (draft.Entry, bool, error) {
	var payload []byte
	var writtenAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT answers_json, written_at FROM form_drafts WHERE draft_key = ?`,
		key,
	).Scan(&payload, &writtenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return draft.Entry{}, false, nil
		}
		return draft.Entry{}, false, fmt.Errorf("get draft: %w", err)
	}

	entry := draft.Entry{WrittenAt: time.UnixMilli(writtenAt).UTC()}
	if err := json.Unmarshal(payload, &entry.Answers); err != nil {
		return draft.Entry{}, false, fmt.Errorf("decode draft: %w", err)
	}
	return entry, true, nil
}

// Set upserts a draft.
func (s *Store) Set(ctx context.Context, key string, entry draft.Entry) error {
	payload, err := json.Marshal(entry.Answers)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO form_drafts (draft_key, answers_json, written_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(draft_key) DO UPDATE SET
		    answers_json = excluded.answers_json,
		    written_at = excluded.written_at`,
		key, payload, entry.WrittenAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

// Clear deletes a draft by key.
func (s *Store) Clear(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM form_drafts WHERE draft_key = ?`, key); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

var _ draft.Store = (*Store)(nil)

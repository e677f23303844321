package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a ConversationStore backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and applies the
// schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection so the schema survives across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			transcript TEXT NOT NULL,
			summary TEXT NOT NULL,
			participants TEXT NOT NULL,
			platform TEXT NOT NULL,
			message_type TEXT NOT NULL,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			privacy_level TEXT NOT NULL,
			approved INTEGER NOT NULL DEFAULT 0,
			tags TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) StoreConversation(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return "", fmt.Errorf("marshal participants: %w", err)
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations
			(conversation_id, transcript, summary, participants, platform, message_type,
			 duration_seconds, privacy_level, approved, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Transcript, e.Summary, string(participants), e.Platform, e.MessageType,
		e.Metadata.DurationSeconds, e.PrivacyLevel, boolToInt(e.Approved), string(tags), e.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	return e.ID, nil
}

// Conversation loads a stored entry by id.
func (s *SQLiteStore) Conversation(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, transcript, summary, participants, platform, message_type,
		        duration_seconds, privacy_level, approved, tags, created_at
		 FROM conversations WHERE conversation_id = ?`, id)

	var e Entry
	var participants, tags string
	var approved int
	if err := row.Scan(&e.ID, &e.Transcript, &e.Summary, &participants, &e.Platform,
		&e.MessageType, &e.Metadata.DurationSeconds, &e.PrivacyLevel, &approved, &tags, &e.CreatedAt); err != nil {
		return Entry{}, fmt.Errorf("load conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(participants), &e.Participants); err != nil {
		return Entry{}, fmt.Errorf("decode participants: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return Entry{}, fmt.Errorf("decode tags: %w", err)
	}
	e.Approved = approved != 0
	return e, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

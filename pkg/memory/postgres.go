package memory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is a ConversationStore backed by Postgres via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, runs pending migrations, and returns a
// ready store.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// runMigrations applies the embedded goose migrations over the database/sql
// pgx driver. Goose wants a *sql.DB, so a short-lived connection is used.
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open postgres for migrations: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) StoreConversation(ctx context.Context, e Entry) (string, error) {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversations
			(conversation_id, transcript, summary, participants, platform, message_type,
			 duration_seconds, privacy_level, approved, tags, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Transcript, e.Summary, participants, e.Platform, e.MessageType,
		e.Metadata.DurationSeconds, e.PrivacyLevel, e.Approved, tags, e.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	return e.ID, nil
}

// Conversation loads a stored entry by id.
func (s *PostgresStore) Conversation(ctx context.Context, id string) (Entry, error) {
	var e Entry
	var participants, tags []byte
	err := s.pool.QueryRow(ctx,
		`SELECT conversation_id, transcript, summary, participants, platform, message_type,
		        duration_seconds, privacy_level, approved, tags, created_at
		 FROM conversations WHERE conversation_id = $1`, id).
		Scan(&e.ID, &e.Transcript, &e.Summary, &participants, &e.Platform, &e.MessageType,
			&e.Metadata.DurationSeconds, &e.PrivacyLevel, &e.Approved, &tags, &e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("load conversation: %w", err)
	}
	if err := json.Unmarshal(participants, &e.Participants); err != nil {
		return Entry{}, fmt.Errorf("decode participants: %w", err)
	}
	if err := json.Unmarshal(tags, &e.Tags); err != nil {
		return Entry{}, fmt.Errorf("decode tags: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

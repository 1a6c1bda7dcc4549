package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aurelabs/aura-core/internal/config"
	_ "modernc.org/sqlite"
)

// Entry is one recorded chat message.
type Entry struct {
	ID        string
	Sender    string
	Text      string
	Voice     bool
	CreatedAt time.Time
}

// Store keeps chat transcripts in SQLite. The default memory mode is
// session-scoped: nothing survives a restart.
type Store struct {
	db    *sql.DB
	cfg   config.ChatLogConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.ChatLogConfig, log *slog.Logger) (*Store, error) {
	var dsn string
	switch cfg.Mode {
	case "memory":
		dsn = "file:aura-chat?mode=memory&cache=shared"
	case "file":
		dir := filepath.Dir(cfg.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported chat_log mode %q", cfg.Mode)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    sender TEXT NOT NULL,
    text TEXT NOT NULL,
    voice INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created ON messages(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes one message into the session's transcript.
func (s *Store) Append(ctx context.Context, sessionID string, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock().UTC()
	}
	voice := 0
	if entry.Voice {
		voice = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(id, session_id, sender, text, voice, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		entry.ID, sessionID, entry.Sender, entry.Text, voice,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// List retrieves up to limit messages for a session in append order.
func (s *Store) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, text, voice, created_at
		 FROM messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var voice int
		var created string
		if err := rows.Scan(&e.ID, &e.Sender, &e.Text, &voice, &created); err != nil {
			return nil, err
		}
		e.Voice = voice != 0
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteSession drops a session's whole transcript.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	return err
}

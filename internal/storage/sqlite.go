// Package storage keeps the client's local state in a SQLite file: the
// signed-in session restored at start-up and the conversation list shown to
// signed-out users.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/buker/chatlib/internal/api"
)

const sessionKey = "session"

// Session is the persisted sign-in state.
type Session struct {
	Token string   `json:"token,omitempty"`
	User  api.User `json:"user"`
}

// Store is a SQLite-backed local store.
type Store struct {
	db *sql.DB
}

// DSNForFile builds a DSN for path with WAL journaling and a busy timeout.
func DSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("storage: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "storage: create directory")
		}
	}
	dsn, err := DSNForFile(path)
	if err != nil {
		return nil, err
	}
	return OpenDSN(dsn)
}

// OpenDSN opens a database from a raw go-sqlite3 DSN.
func OpenDSN(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("storage: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS guest_conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			last_message TEXT NOT NULL DEFAULT '',
			update_time TEXT NOT NULL DEFAULT '',
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS guest_conversations_by_updated ON guest_conversations(updated_at_ms DESC);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "storage: migrate")
		}
	}
	return nil
}

// SaveSession persists the sign-in state, replacing any previous one.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "storage: encode session")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv(key, value, updated_at_ms) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at_ms = excluded.updated_at_ms
	`, sessionKey, string(raw), time.Now().UnixMilli())
	return errors.Wrap(err, "storage: save session")
}

// LoadSession returns the persisted sign-in state. ok is false when none is
// stored. A corrupt entry is discarded and reported as absent.
func (s *Store) LoadSession(ctx context.Context) (sess Session, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, sessionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, errors.Wrap(err, "storage: load session")
	}
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		if clearErr := s.ClearSession(ctx); clearErr != nil {
			return Session{}, false, clearErr
		}
		return Session{}, false, nil
	}
	return sess, true, nil
}

// ClearSession removes the persisted sign-in state.
func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, sessionKey)
	return errors.Wrap(err, "storage: clear session")
}

// SaveGuestConversation inserts or updates a locally kept conversation.
func (s *Store) SaveGuestConversation(ctx context.Context, c api.ConversationSummary) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("storage: empty conversation id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guest_conversations(id, title, last_message, update_time, updated_at_ms)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			last_message = excluded.last_message,
			update_time = excluded.update_time,
			updated_at_ms = excluded.updated_at_ms
	`, c.ID, c.Title, c.LastMessage, c.UpdateTime, updatedAtMs(c))
	return errors.Wrap(err, "storage: save guest conversation")
}

// GuestConversations lists locally kept conversations, most recent first.
func (s *Store) GuestConversations(ctx context.Context) ([]api.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, last_message, update_time
		FROM guest_conversations
		ORDER BY updated_at_ms DESC, id ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "storage: query guest conversations")
	}
	defer func() { _ = rows.Close() }()

	var out []api.ConversationSummary
	for rows.Next() {
		var c api.ConversationSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.LastMessage, &c.UpdateTime); err != nil {
			return nil, errors.Wrap(err, "storage: scan guest conversation")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "storage: iterate guest conversations")
	}
	return out, nil
}

// DeleteGuestConversation removes a locally kept conversation.
func (s *Store) DeleteGuestConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM guest_conversations WHERE id = ?`, id)
	return errors.Wrap(err, "storage: delete guest conversation")
}

func updatedAtMs(c api.ConversationSummary) int64 {
	if t := c.Updated(); !t.IsZero() {
		return t.UnixMilli()
	}
	return 0
}

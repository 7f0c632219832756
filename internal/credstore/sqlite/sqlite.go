package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/richsynapse/synapsehub-client/internal/credstore"
)

// Store implements credstore.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite session store at the supplied path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credential directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS user_session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	token TEXT NOT NULL,
	user_id INTEGER NOT NULL DEFAULT 0,
	username TEXT NOT NULL DEFAULT '',
	avatar TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored session, if present.
func (s *Store) Load(ctx context.Context) (*credstore.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT token, user_id, username, avatar, updated_at FROM user_session WHERE id = 1`)
	var sess credstore.Session
	var updatedAt time.Time
	if err := row.Scan(&sess.Token, &sess.User.ID, &sess.User.Username, &sess.User.Avatar, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sess.UpdatedAt = updatedAt
	return &sess, nil
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, sess credstore.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO user_session(id, token, user_id, username, avatar, updated_at) VALUES(1, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET token = excluded.token, user_id = excluded.user_id,
	username = excluded.username, avatar = excluded.avatar, updated_at = excluded.updated_at`,
		sess.Token, sess.User.ID, sess.User.Username, sess.User.Avatar, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

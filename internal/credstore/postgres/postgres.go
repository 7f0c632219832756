package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/richsynapse/synapsehub-client/internal/credstore"
)

// Store implements credstore.Store backed by Postgres. Each profile name owns
// one row, so several hosts can share a database.
type Store struct {
	db      *sql.DB
	profile string
}

// New opens a Postgres-backed session store using the provided DSN.
func New(dsn, profile string) (*Store, error) {
	if profile == "" {
		profile = "default"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	s := &Store{db: db, profile: profile}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS user_sessions (
	profile TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	user_id BIGINT NOT NULL DEFAULT 0,
	username TEXT NOT NULL DEFAULT '',
	avatar TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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

func (s *Store) Load(ctx context.Context) (*credstore.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT token, user_id, username, avatar, updated_at FROM user_sessions WHERE profile = $1`, s.profile)
	var sess credstore.Session
	var updatedAt time.Time
	if err := row.Scan(&sess.Token, &sess.User.ID, &sess.User.Username, &sess.User.Avatar, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sess.UpdatedAt = updatedAt.UTC()
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, sess credstore.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO user_sessions(profile, token, user_id, username, avatar, updated_at) VALUES($1, $2, $3, $4, $5, $6)
ON CONFLICT (profile) DO UPDATE SET token = EXCLUDED.token, user_id = EXCLUDED.user_id,
	username = EXCLUDED.username, avatar = EXCLUDED.avatar, updated_at = EXCLUDED.updated_at`,
		s.profile, sess.Token, sess.User.ID, sess.User.Username, sess.User.Avatar, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE profile = $1`, s.profile); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

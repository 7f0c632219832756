// Package credstore persists the logged-in user session that accompanies
// stream handshakes.
package credstore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

// User is the profile cached alongside the token.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Session is the persisted login state.
type Session struct {
	Token     string
	User      User
	UpdatedAt time.Time
}

// Store persists at most one session across SQLite/Postgres/memory backends.
type Store interface {
	// Load returns nil, nil when nobody is logged in.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
	Close() error
}

// ErrEmptyToken is returned when saving a session without a token.
var ErrEmptyToken = errors.New("credstore: token required")

// Validate checks a session before it is written.
func (s Session) Validate() error {
	if strings.TrimSpace(s.Token) == "" {
		return ErrEmptyToken
	}
	return nil
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	session *Session
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *Memory) Save(_ context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// CookieSource turns the stored token into the cookie sent with stream
// handshakes. No session means no cookie.
type CookieSource struct {
	Store Store
	Name  string
}

// Cookies implements stream.CredentialSource.
func (c CookieSource) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	s, err := c.Store.Load(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	name := c.Name
	if name == "" {
		name = "satoken"
	}
	return []*http.Cookie{{Name: name, Value: s.Token}}, nil
}

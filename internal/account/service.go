// Package account keeps the local login state in step with the backend.
package account

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/richsynapse/synapsehub-client/internal/client"
	"github.com/richsynapse/synapsehub-client/internal/credstore"
)

// API defines the contract Service expects from the REST client.
type API interface {
	Register(ctx context.Context, req client.RegisterRequest) (int64, error)
	Login(ctx context.Context, account, password string) (client.LoginUser, string, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (client.LoginUser, error)
}

// ErrNotLoggedIn is returned when no session is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// Service combines the REST client and the credential store.
type Service struct {
	api    API
	store  credstore.Store
	cookie string
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a Service. cookieName defaults to "satoken".
func NewService(api API, store credstore.Store, cookieName string, logger *zap.Logger) *Service {
	if cookieName == "" {
		cookieName = client.DefaultTokenCookie
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:    api,
		store:  store,
		cookie: cookieName,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Named("account"),
	}
}

// Register creates an account without logging in.
func (s *Service) Register(ctx context.Context, req client.RegisterRequest) (int64, error) {
	id, err := s.api.Register(ctx, req)
	if err != nil {
		s.logger.Warn("register failed", zap.String("account", req.UserAccount), zap.Error(err))
		return 0, err
	}
	s.logger.Info("registered", zap.Int64("user_id", id))
	return id, nil
}

// Login authenticates and persists the resulting session.
func (s *Service) Login(ctx context.Context, account, password string) (credstore.Session, error) {
	user, token, err := s.api.Login(ctx, account, password)
	if err != nil {
		s.logger.Warn("login failed", zap.String("account", account), zap.Error(err))
		return credstore.Session{}, err
	}
	sess := credstore.Session{Token: token, User: toUser(user), UpdatedAt: s.now()}
	if err := s.store.Save(ctx, sess); err != nil {
		return credstore.Session{}, err
	}
	s.logger.Info("logged in", zap.Int64("user_id", user.ID), zap.String("username", user.UserName))
	return sess, nil
}

// Logout clears the stored session. A failed remote logout is logged and the
// local session is still cleared.
func (s *Service) Logout(ctx context.Context) error {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if err := s.api.Logout(ctx, sess.Token); err != nil {
		s.logger.Warn("remote logout failed", zap.Error(err))
	}
	return s.store.Clear(ctx)
}

// Whoami returns the stored session. With refresh set the user is fetched
// again; an expired token clears the session.
func (s *Service) Whoami(ctx context.Context, refresh bool) (credstore.Session, error) {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return credstore.Session{}, err
	}
	if sess == nil {
		return credstore.Session{}, ErrNotLoggedIn
	}
	if !refresh {
		return *sess, nil
	}
	user, err := s.api.CurrentUser(ctx, sess.Token)
	if err != nil {
		if client.IsNotLoggedIn(err) {
			s.logger.Info("stored token expired")
			if clearErr := s.store.Clear(ctx); clearErr != nil {
				return credstore.Session{}, clearErr
			}
			return credstore.Session{}, ErrNotLoggedIn
		}
		return credstore.Session{}, err
	}
	sess.User = toUser(user)
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, *sess); err != nil {
		return credstore.Session{}, err
	}
	return *sess, nil
}

// Cookies implements stream.CredentialSource.
func (s *Service) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return credstore.CookieSource{Store: s.store, Name: s.cookie}.Cookies(ctx)
}

func toUser(u client.LoginUser) credstore.User {
	return credstore.User{ID: u.ID, Username: u.UserName, Avatar: u.UserAvatar}
}

// Package client wraps the SynapseHub REST endpoints that sit beside the
// streaming channel: registration, login, logout and the current user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/richsynapse/synapsehub-client/internal/version"
)

// HTTPClient abstracts the Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTimeout bounds every plain request.
const DefaultTimeout = 60 * time.Second

// DefaultTokenCookie carries the login token.
const DefaultTokenCookie = "satoken"

// Backend envelope codes.
const (
	CodeOK       = 0
	CodeNotLogin = 40100
)

// Options configures an APIClient.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	TokenCookie string
	HTTPClient  HTTPClient
	Logger      *zap.Logger
}

// APIClient talks to the backend through fixed base address and timeout.
type APIClient struct {
	baseURL     string
	httpClient  HTTPClient
	tokenCookie string
	logger      *zap.Logger
}

// New constructs a client for the provided base URL.
func New(opts Options) (*APIClient, error) {
	parsed, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("invalid base URL %q: must be absolute", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.TokenCookie == "" {
		opts.TokenCookie = DefaultTokenCookie
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &APIClient{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  opts.HTTPClient,
		tokenCookie: opts.TokenCookie,
		logger:      opts.Logger.Named("api"),
	}, nil
}

// BaseURL returns the normalised base address.
func (c *APIClient) BaseURL() string { return c.baseURL }

// APIError is a non-zero backend code or an unexpected HTTP status.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("synapsehub error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("synapsehub error: status %d", e.Status)
}

// IsNotLoggedIn reports whether err says the token is missing or expired.
func IsNotLoggedIn(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Code == CodeNotLogin || apiErr.Status == http.StatusUnauthorized)
}

// LoginUser is the desensitised user returned by the backend.
type LoginUser struct {
	ID         int64  `json:"id"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
	UserRole   string `json:"userRole"`
}

// RegisterRequest mirrors the registration payload.
type RegisterRequest struct {
	UserAccount   string `json:"userAccount"`
	UserPassword  string `json:"userPassword"`
	CheckPassword string `json:"checkPassword"`
}

type loginRequest struct {
	UserAccount  string `json:"userAccount"`
	UserPassword string `json:"userPassword"`
}

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Validation errors returned before any request is sent.
var (
	ErrBlankField       = errors.New("account and password are required")
	ErrAccountTooShort  = errors.New("account must be at least 4 characters")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrNoToken          = errors.New("login response carried no token cookie")
	ErrEmptyMessage     = errors.New("message is required")
)

func checkCredentials(account, password string) error {
	if strings.TrimSpace(account) == "" || strings.TrimSpace(password) == "" {
		return ErrBlankField
	}
	if utf8.RuneCountInString(account) < 4 {
		return ErrAccountTooShort
	}
	if utf8.RuneCountInString(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}

// Validate applies the same rules the backend enforces on registration.
func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.CheckPassword) == "" {
		return ErrBlankField
	}
	if err := checkCredentials(r.UserAccount, r.UserPassword); err != nil {
		return err
	}
	if r.UserPassword != r.CheckPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// Register creates an account and returns its id.
func (c *APIClient) Register(ctx context.Context, req RegisterRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	var id int64
	if _, err := c.doJSON(ctx, http.MethodPost, "/user/register", "", req, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Login authenticates and returns the user plus the token cookie value.
func (c *APIClient) Login(ctx context.Context, account, password string) (LoginUser, string, error) {
	if err := checkCredentials(account, password); err != nil {
		return LoginUser{}, "", err
	}
	var user LoginUser
	resp, err := c.doJSON(ctx, http.MethodPost, "/user/login", "", loginRequest{UserAccount: account, UserPassword: password}, &user)
	if err != nil {
		return LoginUser{}, "", err
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == c.tokenCookie && ck.Value != "" {
			c.logger.Debug("logged in", zap.Int64("user_id", user.ID))
			return user, ck.Value, nil
		}
	}
	return LoginUser{}, "", ErrNoToken
}

// Logout invalidates the token server-side.
func (c *APIClient) Logout(ctx context.Context, token string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/user/logout", token, nil, nil)
	return err
}

// CurrentUser resolves the user owning token.
func (c *APIClient) CurrentUser(ctx context.Context, token string) (LoginUser, error) {
	var user LoginUser
	if _, err := c.doJSON(ctx, http.MethodGet, "/user/get/login", token, nil, &user); err != nil {
		return LoginUser{}, err
	}
	return user, nil
}

// ChatSync asks the interview assistant for a complete answer in one
// plain-text response instead of a stream.
func (c *APIClient) ChatSync(ctx context.Context, token, message, chatID string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	query := url.Values{"message": {message}}
	if chatID != "" {
		query.Set("chatId", chatID)
	}
	const path = "/doChat/sync"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", version.UserAgent())
	if token != "" {
		req.AddCookie(&http.Cookie{Name: c.tokenCookie, Value: token})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("request", zap.String("method", http.MethodGet), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("GET %s: read body: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env envelope
		if json.Unmarshal(data, &env) == nil && env.Code != CodeOK {
			apiErr.Code, apiErr.Message = env.Code, env.Message
		}
		return "", apiErr
	}
	return string(data), nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path, token string, payload, out any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: c.tokenCookie, Value: token})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("request", zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env envelope
		if json.Unmarshal(data, &env) == nil && env.Code != CodeOK {
			apiErr.Code, apiErr.Message = env.Code, env.Message
		}
		return nil, apiErr
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s %s: decode envelope: %w", method, path, err)
	}
	if env.Code != CodeOK {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return resp, nil
}

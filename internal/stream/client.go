package stream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// CredentialSource supplies the cookies that accompany a handshake. It is
// read-only from the stream's point of view; login and logout live elsewhere.
type CredentialSource interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// ValidationMode controls the blank-message check.
type ValidationMode string

const (
	// ValidatePreflight rejects a blank message before any connection is made.
	ValidatePreflight ValidationMode = "preflight"
	// ValidateOnOpen connects first and closes the connection as soon as the
	// handshake completes if the message is blank. The request still reaches
	// the server; kept for compatibility with backends that expect it.
	ValidateOnOpen ValidationMode = "on_open"
	// ValidateOff performs no check.
	ValidateOff ValidationMode = "off"
)

// ParseValidationMode maps a configuration value onto a ValidationMode.
func ParseValidationMode(v string) (ValidationMode, error) {
	switch ValidationMode(strings.ToLower(strings.TrimSpace(v))) {
	case "", ValidatePreflight:
		return ValidatePreflight, nil
	case ValidateOnOpen:
		return ValidateOnOpen, nil
	case ValidateOff:
		return ValidateOff, nil
	default:
		return "", fmt.Errorf("unknown validation mode %q", v)
	}
}

// Config holds everything a Client needs. Zero values pick query encoding,
// preflight validation and the HTTP transport.
type Config struct {
	BaseAddress     string
	WithCredentials bool
	Encoding        Encoding
	Validation      ValidationMode
	Credentials     CredentialSource
	Transport       Transport
	Logger          *zap.Logger
}

// EventHandler receives every event of a session, in delivery order.
type EventHandler func(Event)

// ErrorHandler receives at most one *SessionError per session.
type ErrorHandler func(error)

// Client opens streaming chat sessions against one backend.
type Client struct {
	cfg       Config
	transport Transport
	logger    *zap.Logger
	seq       atomic.Uint64
}

// NewClient validates cfg and fills defaults.
func NewClient(cfg Config) (*Client, error) {
	if _, err := (Request{path: "/"}).Target(cfg.BaseAddress, EncodingForm); err != nil {
		return nil, err
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingQuery
	}
	if cfg.Validation == "" {
		cfg.Validation = ValidatePreflight
	}
	transport := cfg.Transport
	if transport == nil {
		transport = NewHTTPTransport(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, transport: transport, logger: logger.Named("stream")}, nil
}

// BaseAddress returns the address streams are opened against.
func (c *Client) BaseAddress() string { return c.cfg.BaseAddress }

// Open starts a session and returns without waiting for the handshake.
// Callbacks run on the session's own goroutine, one at a time. A returned
// error means the request itself is malformed; every other failure goes to
// onError. With preflight validation a blank message invokes onError before
// Open returns and the session comes back already closed.
func (c *Client) Open(ctx context.Context, req Request, onEvent EventHandler, onError ErrorHandler) (*Session, error) {
	if req.path == "" {
		return nil, fmt.Errorf("stream: request not initialised")
	}
	target, err := req.Target(c.cfg.BaseAddress, c.cfg.Encoding)
	if err != nil {
		return nil, err
	}
	httpReq, err := c.newHTTPRequest(target, req)
	if err != nil {
		return nil, err
	}

	id := c.seq.Add(1)
	s := newSession(ctx, sessionParams{
		id:             id,
		req:            req,
		httpReq:        httpReq,
		transport:      c.transport,
		credentials:    c.credentials(),
		validateOnOpen: c.cfg.Validation == ValidateOnOpen,
		onEvent:        onEvent,
		onError:        onError,
		logger:         c.logger.With(zap.Uint64("session", id), zap.String("path", req.path)),
	})

	if c.cfg.Validation == ValidatePreflight && blankMessage(req) {
		s.logger.Debug("rejecting blank message before connect")
		s.abort(validationErr(ErrBlankMessage))
		return s, nil
	}

	s.logger.Debug("opening stream", zap.String("encoding", string(c.cfg.Encoding)))
	go s.run()
	return s, nil
}

func (c *Client) credentials() CredentialSource {
	if !c.cfg.WithCredentials {
		return nil
	}
	return c.cfg.Credentials
}

func (c *Client) newHTTPRequest(target string, req Request) (*http.Request, error) {
	if c.cfg.Encoding == EncodingForm {
		httpReq, err := http.NewRequest(http.MethodPost, target, strings.NewReader(EncodeParams(req.params)))
		if err != nil {
			return nil, fmt.Errorf("stream: build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return httpReq, nil
	}
	httpReq, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("stream: build request: %w", err)
	}
	return httpReq, nil
}

func blankMessage(req Request) bool {
	msg, ok := req.Param(MessageParam)
	return !ok || strings.TrimSpace(msg) == ""
}

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is the lifecycle position of a session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

type sessionParams struct {
	id             uint64
	req            Request
	httpReq        *http.Request
	transport      Transport
	credentials    CredentialSource
	validateOnOpen bool
	onEvent        EventHandler
	onError        ErrorHandler
	logger         *zap.Logger
}

// Session owns one push connection. Close is the only way to stop it early.
type Session struct {
	sessionParams

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
	conn  Conn

	received atomic.Int64
	done     chan struct{}
}

func newSession(parent context.Context, p sessionParams) *Session {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		sessionParams: p,
		ctx:           ctx,
		cancel:        cancel,
		state:         StateConnecting,
		done:          make(chan struct{}),
	}
}

// ID identifies the session within its client.
func (s *Session) ID() uint64 { return s.id }

// Request returns the request the session was opened with.
func (s *Session) Request() Request { return s.req }

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Received counts the data chunks dispatched so far. Callers use it to tell
// a failed handshake (zero) from a stream dropped mid-way.
func (s *Session) Received() int64 { return s.received.Load() }

// Done is closed once no callback can run any more.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close moves the session to Closed and releases the connection. Calling it
// again, or after the session ended on its own, does nothing. Close never
// triggers a callback; an event already being dispatched on another goroutine
// may still complete, so wait on Done when that matters.
func (s *Session) Close() {
	if conn, ok := s.transition(); ok {
		s.logger.Debug("stream closed by caller")
		s.release(conn)
	}
}

// transition performs the single terminal transition. It returns the
// connection to release and whether this call won.
func (s *Session) transition() (Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, false
	}
	s.state = StateClosed
	conn := s.conn
	s.conn = nil
	return conn, true
}

func (s *Session) release(conn Conn) {
	s.cancel()
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debug("close connection", zap.Error(err))
		}
	}
}

// abort ends a session that never started its goroutine.
func (s *Session) abort(err *SessionError) {
	s.fail(err)
	close(s.done)
}

// fail reports err unless the session is already closed.
func (s *Session) fail(err *SessionError) {
	conn, ok := s.transition()
	if !ok {
		return
	}
	s.release(conn)
	s.logger.Debug("stream failed", zap.Stringer("kind", err.Kind), zap.Error(err.Err), zap.Int64("received", s.Received()))
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer s.cancel()

	if err := s.attachCredentials(); err != nil {
		s.fail(transportErr(err))
		return
	}

	conn, err := s.transport.Connect(s.ctx, s.httpReq)
	if err != nil {
		if s.ctx.Err() != nil {
			s.Close()
			return
		}
		s.fail(transportErr(err))
		return
	}
	if !s.opened(conn) {
		_ = conn.Close()
		return
	}
	stop := context.AfterFunc(s.ctx, s.Close)
	defer stop()
	s.logger.Debug("stream open")

	if s.validateOnOpen && blankMessage(s.req) {
		s.fail(validationErr(ErrBlankMessage))
		return
	}

	for {
		payload, err := conn.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrStreamTruncated
			}
			s.fail(transportErr(err))
			return
		}
		ev := Classify(payload)
		if !s.dispatch(ev) {
			return
		}
		if ev.IsSentinel() {
			if conn, ok := s.transition(); ok {
				s.logger.Debug("stream finished", zap.Int64("received", s.Received()))
				s.release(conn)
			}
			return
		}
	}
}

func (s *Session) opened(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateOpen
	s.conn = conn
	return true
}

func (s *Session) dispatch(ev Event) bool {
	if s.State() != StateOpen {
		return false
	}
	if ev.Kind == KindData {
		s.received.Add(1)
	}
	if s.onEvent != nil {
		s.onEvent(ev)
	}
	return true
}

func (s *Session) attachCredentials() error {
	if s.credentials == nil {
		return nil
	}
	cookies, err := s.credentials.Cookies(s.ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	for _, c := range cookies {
		s.httpReq.AddCookie(c)
	}
	return nil
}

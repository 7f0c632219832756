package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
)

var errConnClosed = errors.New("use of closed connection")

type step struct {
	payload string
	err     error
}

type fakeConn struct {
	steps     chan step
	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{steps: make(chan step, 64), closed: make(chan struct{})}
}

func (c *fakeConn) send(payloads ...string) {
	for _, p := range payloads {
		c.steps <- step{payload: p}
	}
}

func (c *fakeConn) drop(err error) { c.steps <- step{err: err} }

func (c *fakeConn) end() { c.steps <- step{err: io.EOF} }

func (c *fakeConn) Next() (string, error) {
	select {
	case <-c.closed:
		return "", errConnClosed
	default:
	}
	select {
	case st := <-c.steps:
		return st.payload, st.err
	case <-c.closed:
		return "", errConnClosed
	}
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeTransport hands out one scripted connection per endpoint path.
type fakeTransport struct {
	mu         sync.Mutex
	conns      map[string]*fakeConn
	requests   []*http.Request
	connectErr error
	connected  chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{conns: map[string]*fakeConn{}, connected: make(chan string, 16)}
}

func (t *fakeTransport) conn(path string) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[path]
	if !ok {
		c = newFakeConn()
		t.conns[path] = c
	}
	return c
}

func (t *fakeTransport) Connect(ctx context.Context, req *http.Request) (Conn, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	err := t.connectErr
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	path := req.URL.Path
	c := t.conn(path)
	t.connected <- path
	return c, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

func (t *fakeTransport) lastRequest() *http.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return nil
	}
	return t.requests[len(t.requests)-1]
}

// recorder captures callbacks in order.
type recorder struct {
	mu     sync.Mutex
	events []Event
	errs   []error
	trace  []string
}

func (r *recorder) onEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.trace = append(r.trace, "event:"+ev.Kind.String())
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.trace = append(r.trace, "error")
}

func (r *recorder) snapshot() ([]Event, []error, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...), append([]error(nil), r.errs...), append([]string(nil), r.trace...)
}

type staticCookies []*http.Cookie

func (s staticCookies) Cookies(context.Context) ([]*http.Cookie, error) { return s, nil }

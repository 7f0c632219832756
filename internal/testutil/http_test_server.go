// Package testutil holds helpers shared by HTTP-level tests.
package testutil

import (
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/richsynapse/synapsehub-client/internal/mockbackend"
)

// IPv4Server is an HTTP server bound to the IPv4 loopback interface.
type IPv4Server struct {
	URL       string
	listener  net.Listener
	server    *http.Server
	transport *http.Transport
	client    *http.Client
}

// NewIPv4Server starts an HTTP server bound to the IPv4 loopback interface.
// The server is shut down when the test finishes.
func NewIPv4Server(t *testing.T, handler http.Handler) *IPv4Server {
	t.Helper()
	if handler == nil {
		handler = http.NewServeMux()
	}
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: tcp4 loopback unavailable (%v)", err)
	}
	transport := &http.Transport{}
	s := &IPv4Server{
		URL:       "http://" + l.Addr().String(),
		listener:  l,
		server:    &http.Server{Handler: handler},
		transport: transport,
		client:    &http.Client{Transport: transport},
	}
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("IPv4Server serve error: %v", err)
		}
	}()
	t.Cleanup(s.Close)
	return s
}

// Client returns an HTTP client configured for the server.
func (s *IPv4Server) Client() *http.Client {
	return s.client
}

// Close shuts down the underlying server and frees resources. It is safe to
// call more than once.
func (s *IPv4Server) Close() {
	s.transport.CloseIdleConnections()
	_ = s.server.Close()
}

// Backend pairs a running mock backend with its API base address.
type Backend struct {
	*mockbackend.Backend
	Server  *IPv4Server
	BaseURL string
}

// NewBackend starts the mock SynapseHub backend for the duration of the test.
func NewBackend(t *testing.T, opts ...mockbackend.Option) *Backend {
	t.Helper()
	b := mockbackend.New(opts...)
	srv := NewIPv4Server(t, b.Handler())
	return &Backend{Backend: b, Server: srv, BaseURL: srv.URL + "/api"}
}

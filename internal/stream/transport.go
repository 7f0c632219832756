package stream

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/richsynapse/synapsehub-client/internal/version"
)

// Conn is one open push connection.
type Conn interface {
	// Next blocks until the next payload arrives. io.EOF means the server
	// ended the body.
	Next() (string, error)
	// Close releases the connection and unblocks a pending Next.
	Close() error
}

// Transport opens push connections. The handshake completes when Connect
// returns a Conn.
type Transport interface {
	Connect(ctx context.Context, req *http.Request) (Conn, error)
}

// HTTPClient abstracts the Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTransport speaks Server-Sent Events over net/http.
type HTTPTransport struct {
	client HTTPClient
}

// NewHTTPTransport builds a transport. The default client has no timeout
// because streams stay open until the sentinel or an explicit close.
func NewHTTPTransport(client HTTPClient) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

// Connect performs the handshake and checks that the server answered with an
// event stream.
func (t *HTTPTransport) Connect(ctx context.Context, req *http.Request) (Conn, error) {
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", version.UserAgent())
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("connect: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "text/event-stream" {
			resp.Body.Close()
			return nil, fmt.Errorf("connect: unexpected content type %q", ct)
		}
	}
	return &sseConn{body: resp.Body, dec: newSSEDecoder(resp.Body)}, nil
}

type sseConn struct {
	body io.ReadCloser
	dec  *sseDecoder

	once sync.Once
	err  error
}

func (c *sseConn) Next() (string, error) {
	return c.dec.Next()
}

func (c *sseConn) Close() error {
	c.once.Do(func() {
		c.err = c.body.Close()
	})
	return c.err
}

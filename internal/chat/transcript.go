package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/richsynapse/synapsehub-client/internal/stream"
)

// ErrInterrupted means the session closed before the sentinel and without a
// reported error, i.e. the caller closed it.
var ErrInterrupted = errors.New("chat: stream closed before completion")

// Transcript accumulates the chunks of one session. Its OnEvent and OnError
// methods are meant to be passed straight to Open.
type Transcript struct {
	// Tee, when set, receives each chunk as it arrives.
	Tee func(chunk string)

	mu       sync.Mutex
	text     strings.Builder
	chunks   int
	complete bool
	err      error
}

// OnEvent records data chunks and marks the transcript complete on the sentinel.
func (t *Transcript) OnEvent(ev stream.Event) {
	if ev.IsSentinel() {
		t.mu.Lock()
		t.complete = true
		t.mu.Unlock()
		return
	}
	t.mu.Lock()
	t.text.WriteString(ev.Data)
	t.chunks++
	t.mu.Unlock()
	if t.Tee != nil {
		t.Tee(ev.Data)
	}
}

// OnError records the terminal error.
func (t *Transcript) OnError(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

// Text returns the concatenated chunks received so far.
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

// Chunks returns the number of data chunks received.
func (t *Transcript) Chunks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chunks
}

// Complete reports whether the sentinel arrived.
func (t *Transcript) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.complete
}

// Err returns the error reported by the session, if any.
func (t *Transcript) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until sess is done. Cancelling ctx closes the session. The
// result is nil after the sentinel, the session error if one was reported,
// and ErrInterrupted otherwise.
func (t *Transcript) Wait(ctx context.Context, sess *stream.Session) error {
	select {
	case <-sess.Done():
	case <-ctx.Done():
		sess.Close()
		<-sess.Done()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.err != nil:
		return t.err
	case t.complete:
		return nil
	default:
		return ErrInterrupted
	}
}

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink is a log destination that can be flushed and closed.
type Sink interface {
	io.WriteCloser
	Sync() error
}

const (
	// DefaultMaxBytes caps a single segment before same-day rollover.
	DefaultMaxBytes = 64 << 20
	// DefaultRetention is how many segments are kept on disk.
	DefaultRetention = 14

	dayLayout = "2006-01-02"
)

// RotatingWriter appends to dated segments of one logical log file.
//
// logs/synapse.log is written as logs/synapse-2026-10-15.log, then
// logs/synapse-2026-10-15-2.log once MaxBytes is reached, and a new series
// starts every UTC day. logs/synapse.log itself is a symlink to the live
// segment where the filesystem allows it. Segments beyond the retention
// count are removed oldest first whenever a new one is opened.
type RotatingWriter struct {
	path     string
	stem     string
	ext      string
	maxBytes int64
	keep     int
	now      func() time.Time

	mu      sync.Mutex
	day     string
	seq     int
	file    *os.File
	written int64
}

// RotateOption customises a RotatingWriter.
type RotateOption func(*RotatingWriter)

// WithRetention keeps at most n segments; n <= 0 keeps all of them.
func WithRetention(n int) RotateOption {
	return func(w *RotatingWriter) { w.keep = n }
}

func withClock(now func() time.Time) RotateOption {
	return func(w *RotatingWriter) { w.now = now }
}

// NewRotatingWriter opens the current segment for path. A path of "-"
// yields a sink that discards everything.
func NewRotatingWriter(path string, maxBytes int64, opts ...RotateOption) (Sink, error) {
	path = strings.TrimSpace(path)
	if path == "-" {
		return nopSink{w: io.Discard}, nil
	}
	if path == "" {
		return nil, fmt.Errorf("log path required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	ext := filepath.Ext(path)
	w := &RotatingWriter{
		path:     path,
		stem:     strings.TrimSuffix(filepath.Base(path), ext),
		ext:      ext,
		maxBytes: maxBytes,
		keep:     DefaultRetention,
		now:      time.Now,
	}
	if w.ext == "" {
		w.ext = ".log"
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := os.MkdirAll(w.dir(), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.roll(0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.roll(int64(len(p))); err != nil {
		return 0, err
	}
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// Sync flushes the live segment.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) dir() string {
	if d := filepath.Dir(w.path); d != "" {
		return d
	}
	return "."
}

func (w *RotatingWriter) segmentName(day string, seq int) string {
	if seq > 1 {
		return fmt.Sprintf("%s-%s-%d%s", w.stem, day, seq, w.ext)
	}
	return fmt.Sprintf("%s-%s%s", w.stem, day, w.ext)
}

// roll opens a new segment when the day changed or incoming bytes would
// push the live one past maxBytes. Callers hold mu.
func (w *RotatingWriter) roll(incoming int64) error {
	today := w.now().UTC().Format(dayLayout)
	switch {
	case w.file == nil && w.day == today:
		// reopened after Close on the same day
	case w.file == nil || w.day != today:
		w.day, w.seq = today, 1
	case w.written+incoming > w.maxBytes && w.written > 0:
		w.seq++
	default:
		return nil
	}
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}

	target := filepath.Join(w.dir(), w.segmentName(w.day, w.seq))
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.written = 0
	if st, err := f.Stat(); err == nil {
		w.written = st.Size()
	}
	w.file = f
	w.link(target)
	w.prune()
	return nil
}

// link points the logical path at the live segment. Failure is ignored; the
// segments are the source of truth.
func (w *RotatingWriter) link(target string) {
	if info, err := os.Lstat(w.path); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return
		}
		if dest, err := os.Readlink(w.path); err == nil && dest == target {
			return
		}
		_ = os.Remove(w.path)
	}
	_ = os.Symlink(target, w.path)
}

type segment struct {
	name string
	day  string
	seq  int
}

// segments lists this writer's files in chronological order.
func (w *RotatingWriter) segments() []segment {
	entries, err := os.ReadDir(w.dir())
	if err != nil {
		return nil
	}
	prefix := w.stem + "-"
	var out []segment
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, w.ext) {
			continue
		}
		rest := strings.TrimSuffix(strings.TrimPrefix(name, prefix), w.ext)
		if len(rest) < len(dayLayout) {
			continue
		}
		day := rest[:len(dayLayout)]
		if _, err := time.Parse(dayLayout, day); err != nil {
			continue
		}
		seq := 1
		if tail := rest[len(dayLayout):]; tail != "" {
			n, err := strconv.Atoi(strings.TrimPrefix(tail, "-"))
			if err != nil || !strings.HasPrefix(tail, "-") {
				continue
			}
			seq = n
		}
		out = append(out, segment{name: name, day: day, seq: seq})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].day != out[j].day {
			return out[i].day < out[j].day
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func (w *RotatingWriter) prune() {
	if w.keep <= 0 {
		return
	}
	segs := w.segments()
	for len(segs) > w.keep {
		_ = os.Remove(filepath.Join(w.dir(), segs[0].name))
		segs = segs[1:]
	}
}

type nopSink struct{ w io.Writer }

func (n nopSink) Write(p []byte) (int, error) { return n.w.Write(p) }
func (n nopSink) Sync() error                 { return nil }
func (n nopSink) Close() error                { return nil }

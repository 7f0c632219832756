package stream

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Encoding selects how request parameters reach the backend.
type Encoding string

const (
	// EncodingQuery sends parameters in the URL query of a GET request.
	EncodingQuery Encoding = "query"
	// EncodingForm sends parameters as a form body of a POST request.
	EncodingForm Encoding = "form"
)

// ParseEncoding maps a configuration value onto an Encoding.
func ParseEncoding(v string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(v))) {
	case "", EncodingQuery:
		return EncodingQuery, nil
	case EncodingForm:
		return EncodingForm, nil
	default:
		return "", fmt.Errorf("unknown parameter encoding %q", v)
	}
}

// MessageParam is the parameter carrying user-authored text.
const MessageParam = "message"

// Request describes one stream: the endpoint path and its parameters.
// A Request is immutable once built.
type Request struct {
	path   string
	params map[string]string
}

// NewRequest copies params so later changes by the caller do not leak into the session.
func NewRequest(path string, params map[string]string) (Request, error) {
	if strings.TrimSpace(path) == "" {
		return Request{}, errors.New("stream: endpoint path required")
	}
	copied := make(map[string]string, len(params))
	for k, v := range params {
		if k == "" {
			return Request{}, errors.New("stream: empty parameter key")
		}
		copied[k] = v
	}
	return Request{path: path, params: copied}, nil
}

// Path returns the server-relative endpoint path.
func (r Request) Path() string { return r.path }

// Param returns a single parameter value.
func (r Request) Param(key string) (string, bool) {
	v, ok := r.params[key]
	return v, ok
}

// Params returns a copy of the parameter set.
func (r Request) Params() map[string]string {
	out := make(map[string]string, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

// EncodeParams renders the parameters as key=value pairs joined with '&'.
// Keys and values are percent-encoded the way encodeURIComponent does it,
// so a space becomes %20 rather than '+'. Keys are sorted.
func EncodeParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escapeComponent(k))
		b.WriteByte('=')
		b.WriteString(escapeComponent(params[k]))
	}
	return b.String()
}

func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Target joins base address, endpoint path and, for EncodingQuery, the encoded
// parameters. The base address must be absolute.
func (r Request) Target(base string, enc Encoding) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("stream: invalid base address: %w", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return "", fmt.Errorf("stream: base address %q is not absolute", base)
	}
	target := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(r.path, "/")
	if enc == EncodingQuery && len(r.params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + EncodeParams(r.params)
	}
	if _, err := url.Parse(target); err != nil {
		return "", fmt.Errorf("stream: invalid target: %w", err)
	}
	return target, nil
}

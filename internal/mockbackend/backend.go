// Package mockbackend is an in-process stand-in for the SynapseHub API. It
// serves the streaming chat endpoints and the user routes so the client can
// be exercised end to end without the real service.
package mockbackend

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Response codes used by the backend envelope.
const (
	CodeOK          = 0
	CodeParamsError = 40000
	CodeNotLogin    = 40100
	CodeSystemError = 50000
)

// TokenCookie is the cookie carrying the login token.
const TokenCookie = "satoken"

// Reply produces the chunks streamed back for a message.
type Reply func(message string) []string

// StreamCall records one request against a streaming endpoint.
type StreamCall struct {
	Method string
	Path   string
	Params map[string]string
	Token  string
}

type account struct {
	id       int64
	name     string
	password string
	role     string
}

// Backend holds the in-memory state of the fake service.
type Backend struct {
	router chi.Router

	mu           sync.Mutex
	accounts     map[string]*account
	tokens       map[string]*account
	nextID       int64
	calls        []StreamCall
	chatReply    Reply
	agentReply   Reply
	requireLogin bool
	dropAfter    int
	chunkDelay   time.Duration
}

// Option customises a Backend.
type Option func(*Backend)

// WithChatReply overrides the chunks of the interview chat endpoint.
func WithChatReply(r Reply) Option { return func(b *Backend) { b.chatReply = r } }

// WithAgentReply overrides the chunks of the agent endpoint.
func WithAgentReply(r Reply) Option { return func(b *Backend) { b.agentReply = r } }

// WithLoginRequired rejects streams without a valid token cookie.
func WithLoginRequired() Option { return func(b *Backend) { b.requireLogin = true } }

// WithDropAfter cuts every stream after n chunks without sending the sentinel.
func WithDropAfter(n int) Option { return func(b *Backend) { b.dropAfter = n } }

// WithChunkDelay pauses between chunks.
func WithChunkDelay(d time.Duration) Option { return func(b *Backend) { b.chunkDelay = d } }

// New builds a Backend with all routes mounted under /api.
func New(opts ...Option) *Backend {
	b := &Backend{
		accounts:   map[string]*account{},
		tokens:     map[string]*account{},
		nextID:     1,
		chatReply:  EchoReply,
		agentReply: StepsReply,
		dropAfter:  -1,
	}
	for _, opt := range opts {
		opt(b)
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Route("/doChat", func(r chi.Router) {
			r.Get("/sync", b.handleSync)
			r.Get("/stream", b.streamHandler(func() Reply { return b.chatReply }))
			r.Post("/stream", b.streamHandler(func() Reply { return b.chatReply }))
			r.Get("/manus/stream", b.streamHandler(func() Reply { return b.agentReply }))
			r.Post("/manus/stream", b.streamHandler(func() Reply { return b.agentReply }))
		})
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", b.handleRegister)
			r.Post("/login", b.handleLogin)
			r.Post("/logout", b.handleLogout)
			r.Get("/get/login", b.handleCurrentUser)
		})
	})
	b.router = r
	return b
}

// Handler exposes the router.
func (b *Backend) Handler() http.Handler { return b.router }

// Calls returns the streaming requests seen so far.
func (b *Backend) Calls() []StreamCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]StreamCall(nil), b.calls...)
}

// AddUser seeds an account and returns its id.
func (b *Backend) AddUser(name, password string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(name, password)
}

func (b *Backend) addUserLocked(name, password string) int64 {
	id := b.nextID
	b.nextID++
	b.accounts[name] = &account{id: id, name: name, password: password, role: "user"}
	return id
}

// EchoReply streams the message back word by word.
func EchoReply(message string) []string {
	words := strings.Fields(message)
	out := make([]string, 0, len(words)+1)
	out = append(out, "You said: ")
	for i, w := range words {
		// leading spaces would be eaten by SSE framing, so pad on the right
		if i < len(words)-1 {
			w += " "
		}
		out = append(out, w)
	}
	return out
}

// StepsReply imitates the planning agent's step reports.
func StepsReply(message string) []string {
	return []string{
		fmt.Sprintf("Step 1: analysing %q", message),
		"Step 2: executing tools",
		"Step 3: task finished",
	}
}

func (b *Backend) streamHandler(reply func() Reply) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		params := map[string]string{}
		for k := range r.Form {
			params[k] = r.Form.Get(k)
		}
		token := tokenFrom(r)
		b.mu.Lock()
		b.calls = append(b.calls, StreamCall{Method: r.Method, Path: r.URL.Path, Params: params, Token: token})
		_, loggedIn := b.tokens[token]
		chunks := reply()(params["message"])
		dropAfter := b.dropAfter
		delay := b.chunkDelay
		b.mu.Unlock()

		if b.requireLogin && !loggedIn {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for i, chunk := range chunks {
			if dropAfter >= 0 && i >= dropAfter {
				return
			}
			writeEvent(w, chunk)
			flusher.Flush()
			if delay > 0 {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(delay):
				}
			}
		}
		if dropAfter >= 0 && len(chunks) >= dropAfter {
			return
		}
		writeEvent(w, "[DONE]")
		flusher.Flush()
	}
}

// writeEvent frames a payload the way the Spring backend does: one data line
// per payload line, no space after the colon.
func writeEvent(w http.ResponseWriter, payload string) {
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(w, "data:%s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func (b *Backend) handleSync(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	fmt.Fprint(w, strings.Join(b.chatReply(r.URL.Query().Get("message")), ""))
}

type envelope struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

type loginUser struct {
	ID         int64  `json:"id"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
	UserRole   string `json:"userRole"`
}

func writeJSON(w http.ResponseWriter, code int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{Code: code, Data: data, Message: message})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserAccount   string `json:"userAccount"`
		UserPassword  string `json:"userPassword"`
		CheckPassword string `json:"checkPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, CodeParamsError, nil, "invalid body")
		return
	}
	if req.UserPassword != req.CheckPassword {
		writeJSON(w, CodeParamsError, nil, "passwords differ")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[req.UserAccount]; exists {
		writeJSON(w, CodeParamsError, nil, "account exists")
		return
	}
	writeJSON(w, CodeOK, b.addUserLocked(req.UserAccount, req.UserPassword), "ok")
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserAccount  string `json:"userAccount"`
		UserPassword string `json:"userPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, CodeParamsError, nil, "invalid body")
		return
	}
	b.mu.Lock()
	acct, ok := b.accounts[req.UserAccount]
	if !ok || acct.password != req.UserPassword {
		b.mu.Unlock()
		writeJSON(w, CodeParamsError, nil, "user does not exist or password is wrong")
		return
	}
	token := newToken()
	b.tokens[token] = acct
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: TokenCookie, Value: token, Path: "/", HttpOnly: true})
	writeJSON(w, CodeOK, toLoginUser(acct), "ok")
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := tokenFrom(r)
	b.mu.Lock()
	_, ok := b.tokens[token]
	delete(b.tokens, token)
	b.mu.Unlock()
	if !ok {
		writeJSON(w, CodeNotLogin, nil, "not logged in")
		return
	}
	writeJSON(w, CodeOK, true, "ok")
}

func (b *Backend) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	acct, ok := b.tokens[tokenFrom(r)]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, CodeNotLogin, nil, "not logged in")
		return
	}
	writeJSON(w, CodeOK, toLoginUser(acct), "ok")
}

func toLoginUser(a *account) loginUser {
	return loginUser{ID: a.id, UserName: a.name, UserAvatar: "https://example.invalid/avatar.png", UserRole: a.role}
}

func tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func newToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

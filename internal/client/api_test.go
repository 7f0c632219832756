package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richsynapse/synapsehub-client/internal/testutil"
)

type stubHTTPClient struct {
	handler func(*http.Request) (*http.Response, error)
}

func (s *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return s.handler(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: make(http.Header)}
}

func TestRegisterSendsPayload(t *testing.T) {
	stub := &stubHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || req.URL.Path != "/api/user/register" {
			t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		body, _ := io.ReadAll(req.Body)
		assert.JSONEq(t, `{"userAccount":"alice","userPassword":"password1","checkPassword":"password1"}`, string(body))
		return jsonResponse(http.StatusOK, `{"code":0,"data":17,"message":"ok"}`), nil
	}}
	c, err := New(Options{BaseURL: "http://example.com/api/", HTTPClient: stub})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api", c.BaseURL())

	id, err := c.Register(context.Background(), RegisterRequest{UserAccount: "alice", UserPassword: "password1", CheckPassword: "password1"})
	require.NoError(t, err)
	assert.Equal(t, int64(17), id)
}

func TestRegisterPrechecks(t *testing.T) {
	stub := &stubHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		t.Fatalf("request sent despite failed precheck: %s", req.URL)
		return nil, nil
	}}
	c, err := New(Options{BaseURL: "http://example.com/api", HTTPClient: stub})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"blank", RegisterRequest{UserAccount: "", UserPassword: "password1", CheckPassword: "password1"}, ErrBlankField},
		{"blank_check", RegisterRequest{UserAccount: "alice", UserPassword: "password1"}, ErrBlankField},
		{"short_account", RegisterRequest{UserAccount: "abc", UserPassword: "password1", CheckPassword: "password1"}, ErrAccountTooShort},
		{"short_password", RegisterRequest{UserAccount: "alice", UserPassword: "pass", CheckPassword: "pass"}, ErrPasswordTooShort},
		{"mismatch", RegisterRequest{UserAccount: "alice", UserPassword: "password1", CheckPassword: "password2"}, ErrPasswordMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Register(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEnvelopeErrorBecomesAPIError(t *testing.T) {
	stub := &stubHTTPClient{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"code":40100,"data":null,"message":"not logged in"}`), nil
	}}
	c, err := New(Options{BaseURL: "http://example.com/api", HTTPClient: stub})
	require.NoError(t, err)

	_, err = c.CurrentUser(context.Background(), "stale")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeNotLogin, apiErr.Code)
	assert.True(t, IsNotLoggedIn(err))
	assert.Contains(t, err.Error(), "not logged in")
}

func TestHTTPStatusErrorWithoutEnvelope(t *testing.T) {
	stub := &stubHTTPClient{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, `upstream down`), nil
	}}
	c, err := New(Options{BaseURL: "http://example.com/api", HTTPClient: stub})
	require.NoError(t, err)

	err = c.Logout(context.Background(), "tok")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "synapsehub error: status 502", err.Error())
}

func TestLoginWithoutCookieFails(t *testing.T) {
	stub := &stubHTTPClient{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"code":0,"data":{"id":1,"userName":"alice"},"message":"ok"}`), nil
	}}
	c, err := New(Options{BaseURL: "http://example.com/api", HTTPClient: stub})
	require.NoError(t, err)
	_, _, err = c.Login(context.Background(), "alice", "password1")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestNewRejectsRelativeBase(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"})
	assert.Error(t, err)
}

func TestAccountFlowAgainstBackend(t *testing.T) {
	backend := testutil.NewBackend(t)
	c, err := New(Options{BaseURL: backend.BaseURL, HTTPClient: backend.Server.Client(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	ctx := context.Background()

	id, err := c.Register(ctx, RegisterRequest{UserAccount: "alice", UserPassword: "password1", CheckPassword: "password1"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = c.Register(ctx, RegisterRequest{UserAccount: "alice", UserPassword: "password1", CheckPassword: "password1"})
	assert.Error(t, err, "duplicate account")

	_, _, err = c.Login(ctx, "alice", "wrongpass1")
	assert.Error(t, err)

	user, token, err := c.Login(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice", user.UserName)
	require.NotEmpty(t, token)

	me, err := c.CurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user, me)

	require.NoError(t, c.Logout(ctx, token))
	_, err = c.CurrentUser(ctx, token)
	assert.True(t, IsNotLoggedIn(err))
}

func TestChatSyncSendsQuery(t *testing.T) {
	stub := &stubHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/api/doChat/sync", req.URL.Path)
		assert.Equal(t, "a&b=c", req.URL.Query().Get("message"))
		assert.Equal(t, "chat-1", req.URL.Query().Get("chatId"))
		cookie, err := req.Cookie(DefaultTokenCookie)
		require.NoError(t, err)
		assert.Equal(t, "tok", cookie.Value)
		return jsonResponse(http.StatusOK, "plain answer"), nil
	}}
	c, err := New(Options{BaseURL: "http://example.com/api", HTTPClient: stub})
	require.NoError(t, err)

	reply, err := c.ChatSync(context.Background(), "tok", "a&b=c", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "plain answer", reply)
}

func TestChatSyncRejectsBlankMessage(t *testing.T) {
	stub := &stubHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		t.Fatalf("request sent for blank message: %s", req.URL)
		return nil, nil
	}}
	c, err := New(Options{BaseURL: "http://example.com/api", HTTPClient: stub})
	require.NoError(t, err)

	_, err = c.ChatSync(context.Background(), "", "  ", "chat-1")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatSyncStatusError(t *testing.T) {
	stub := &stubHTTPClient{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"code":40100,"message":"not login"}`), nil
	}}
	c, err := New(Options{BaseURL: "http://example.com/api", HTTPClient: stub})
	require.NoError(t, err)

	_, err = c.ChatSync(context.Background(), "", "hi", "")
	require.Error(t, err)
	assert.True(t, IsNotLoggedIn(err))
}

func TestChatSyncAgainstBackend(t *testing.T) {
	backend := testutil.NewBackend(t)
	c, err := New(Options{BaseURL: backend.BaseURL, HTTPClient: backend.Server.Client()})
	require.NoError(t, err)

	reply, err := c.ChatSync(context.Background(), "", "tell me more", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "You said: tell me more", reply)
}

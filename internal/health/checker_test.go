package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richsynapse/synapsehub-client/internal/credstore/sqlite"
	"github.com/richsynapse/synapsehub-client/internal/testutil"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.DB()
}

func TestAllHealthy(t *testing.T) {
	backend := testutil.NewBackend(t)
	c := New(Config{
		CredentialDB: openDB(t),
		BaseURL:      backend.BaseURL,
		HTTPClient:   backend.Server.Client(),
		MaxDBLatency: time.Second,
	})
	report := c.Check(context.Background())
	require.Len(t, report.Components, 2)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "backend", report.Components[0].Name)
	assert.Equal(t, "credential_store", report.Components[1].Name)
	assert.Equal(t, "Reachable (HTTP 200)", report.Components[0].Message)
}

func TestClosedDatabaseIsUnhealthy(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.Close())

	report := New(Config{CredentialDB: db}).Check(context.Background())
	require.Len(t, report.Components, 1)
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "Database unreachable", report.Components[0].Message)
	assert.NotEmpty(t, report.Components[0].Error)
}

type statusClient struct {
	status int
	err    error
}

func (s statusClient) Do(*http.Request) (*http.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{StatusCode: s.status, Body: http.NoBody, Header: make(http.Header)}, nil
}

func TestBackendStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		client statusClient
		want   Status
	}{
		{"ok", statusClient{status: http.StatusOK}, StatusHealthy},
		{"not_found", statusClient{status: http.StatusNotFound}, StatusDegraded},
		{"server_error", statusClient{status: http.StatusBadGateway}, StatusUnhealthy},
		{"refused", statusClient{err: errors.New("connection refused")}, StatusUnhealthy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := New(Config{BaseURL: "http://backend.test/api", HTTPClient: tc.client}).Check(context.Background())
			require.Len(t, report.Components, 1)
			assert.Equal(t, tc.want, report.Components[0].Status)
			assert.Equal(t, tc.want, report.Status)
		})
	}
}

func TestNothingConfigured(t *testing.T) {
	report := New(Config{}).Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Empty(t, report.Components)
}

type slowClient struct{ delay time.Duration }

func (s slowClient) Do(req *http.Request) (*http.Response, error) {
	time.Sleep(s.delay)
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: make(http.Header)}, nil
}

func TestReportLatencyEncodedInMilliseconds(t *testing.T) {
	report := New(Config{BaseURL: "http://backend.test/api", HTTPClient: slowClient{delay: 25 * time.Millisecond}}).Check(context.Background())
	require.Len(t, report.Components, 1)

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	var decoded struct {
		Components []map[string]any `json:"components"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Components, 1)
	assert.Equal(t, "backend", decoded.Components[0]["name"])

	ms, ok := decoded.Components[0]["latency_ms"].(float64)
	require.True(t, ok, "latency_ms missing: %s", raw)
	assert.GreaterOrEqual(t, ms, 25.0)
	assert.Less(t, ms, 10000.0)
	assert.InDelta(t, float64(report.Components[0].Latency)/float64(time.Millisecond), ms, 0.001)
}

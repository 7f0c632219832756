// Package health runs the diagnostics behind `synapse doctor`.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ProbePath is requested on the backend. It answers without a login.
const ProbePath = "/user/get/login"

// CheckResult holds the result of a health check.
type CheckResult struct {
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"-"`
	LatencyMS float64       `json:"latency_ms"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

// observe records d in both the Go and the JSON form.
func (r *CheckResult) observe(d time.Duration) {
	r.Latency = d
	r.LatencyMS = float64(d) / float64(time.Millisecond)
}

// Component represents a checked dependency.
type Component struct {
	Name string `json:"name"`
	Type string `json:"type"` // database or http
	CheckResult
}

// Report is the overall outcome.
type Report struct {
	Status     Status      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components"`
}

// HTTPClient abstracts the Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds checker configuration.
type Config struct {
	CredentialDB *sql.DB
	BaseURL      string
	HTTPClient   HTTPClient

	DBTimeout   time.Duration
	HTTPTimeout time.Duration
	// Latencies above these mark a reachable component as degraded.
	MaxDBLatency   time.Duration
	MaxHTTPLatency time.Duration
}

// Checker performs health checks on the client's dependencies.
type Checker struct {
	cfg Config
}

// New creates a new health checker.
func New(cfg Config) *Checker {
	if cfg.DBTimeout == 0 {
		cfg.DBTimeout = 2 * time.Second
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if cfg.MaxDBLatency == 0 {
		cfg.MaxDBLatency = 100 * time.Millisecond
	}
	if cfg.MaxHTTPLatency == 0 {
		cfg.MaxHTTPLatency = 2 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Checker{cfg: cfg}
}

// Check runs all configured checks concurrently.
func (c *Checker) Check(ctx context.Context) Report {
	var checks []func(context.Context) Component
	if c.cfg.CredentialDB != nil {
		checks = append(checks, func(ctx context.Context) Component {
			return c.checkDatabase(ctx, "credential_store", c.cfg.CredentialDB)
		})
	}
	if c.cfg.BaseURL != "" {
		checks = append(checks, func(ctx context.Context) Component {
			return c.checkBackend(ctx, "backend", c.cfg.BaseURL)
		})
	}

	components := make([]Component, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			components[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })
	return summarize(components)
}

func (c *Checker) checkDatabase(ctx context.Context, name string, db *sql.DB) Component {
	comp := Component{Name: name, Type: "database", CheckResult: CheckResult{Timestamp: time.Now()}}

	dbCtx, cancel := context.WithTimeout(ctx, c.cfg.DBTimeout)
	defer cancel()

	start := time.Now()
	err := db.PingContext(dbCtx)
	comp.observe(time.Since(start))
	if err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
		comp.Message = "Database unreachable"
		return comp
	}
	if comp.Latency > c.cfg.MaxDBLatency {
		comp.Status = StatusDegraded
		comp.Message = fmt.Sprintf("High latency: %v", comp.Latency)
		return comp
	}
	comp.Status = StatusHealthy
	comp.Message = "Connected"
	return comp
}

func (c *Checker) checkBackend(ctx context.Context, name, baseURL string) Component {
	comp := Component{Name: name, Type: "http", CheckResult: CheckResult{Timestamp: time.Now()}}

	httpCtx, cancel := context.WithTimeout(ctx, c.cfg.HTTPTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(httpCtx, http.MethodGet, strings.TrimRight(baseURL, "/")+ProbePath, nil)
	if err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
		return comp
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	comp.observe(time.Since(start))
	if err != nil {
		comp.Status = StatusUnhealthy
		comp.Error = err.Error()
		comp.Message = "Endpoint unreachable"
		return comp
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		comp.Status = StatusUnhealthy
	case resp.StatusCode >= 400, comp.Latency > c.cfg.MaxHTTPLatency:
		comp.Status = StatusDegraded
	default:
		comp.Status = StatusHealthy
	}
	comp.Message = fmt.Sprintf("Reachable (HTTP %d)", resp.StatusCode)
	return comp
}

// summarize picks the worst component status.
func summarize(components []Component) Report {
	overall := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return Report{Status: overall, Timestamp: time.Now(), Components: components}
}

// Package health runs dependency probes for the long-running binaries. A
// Checker holds named checks (the engine, the reply cache, the dead-letter
// database) and runs them in parallel into one Report, served on the
// liveness and readiness endpoints.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check probes a single dependency.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Pinger is anything that can prove it is reachable: the engine client,
// the redis client, a *sql.DB wrapped with PingFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker holds registered checks and runs them concurrently.
type Checker struct {
	mu       sync.RWMutex
	checks   map[string]Check
	critical map[string]bool
	timeout  time.Duration
	logger   *slog.Logger
}

// NewChecker creates an empty Checker whose readiness probe gives up after
// timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:   make(map[string]Check),
		critical: make(map[string]bool),
		timeout:  timeout,
		logger:   slog.Default().With("component", "health"),
	}
}

// Register adds a named check. A failing critical check takes the whole
// report down; any other failing check only degrades it.
func (c *Checker) Register(name string, check Check, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
	c.critical[name] = critical
}

// RegisterPinger registers a check that calls p.Ping.
func (c *Checker) RegisterPinger(name string, p Pinger, critical bool) {
	c.Register(name, PingCheck(p), critical)
}

// PingCheck turns a Pinger into a Check.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := p.Ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Run executes all checks concurrently. The overall status is down if a
// critical check is down, degraded if any other check is not up, and up
// otherwise.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	critical := make(map[string]bool, len(c.critical))
	for name, check := range c.checks {
		checks[name] = check
		critical[name] = c.critical[name]
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			result := check(ctx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			report.Components[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	for name, comp := range report.Components {
		if comp.Status == StatusUp {
			continue
		}
		c.logger.Warn("dependency unhealthy", "check", name, "status", comp.Status, "message", comp.Message)
		if critical[name] && comp.Status == StatusDown {
			report.Status = StatusDown
		} else if report.Status == StatusUp {
			report.Status = StatusDegraded
		}
	}
	return report
}

// LiveHandler answers liveness probes; the process being able to answer is
// the whole check.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes with the full report. Degraded is
// still ready.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

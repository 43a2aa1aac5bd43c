package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/resilience"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 20

// HTTPConfig configures the built-in transport. Zero values fall back to
// defaults: no auth, no timeout beyond ctx, three attempts and no breaker.
type HTTPConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	Retry    resilience.Backoff
	Breaker  *resilience.Breaker
	Client   *http.Client
}

// HTTP is a Transport over net/http against a single base URL.
type HTTP struct {
	base    string
	cfg     HTTPConfig
	client  *http.Client
	breaker *resilience.Breaker
	logger  *slog.Logger
}

// serverStatus carries a retryable 5xx response out of an attempt so the
// retry loop can see it; the response itself is still returned to the
// caller once attempts run out.
type serverStatus struct {
	status int
	body   []byte
}

func (s *serverStatus) Error() string { return fmt.Sprintf("engine answered %d", s.status) }

// NewHTTP creates an HTTP transport.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: transport url is empty", clienterrors.ErrInvalidInput)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	cfg.Retry.Retryable = retryableAttempt
	return &HTTP{
		base:    strings.TrimRight(cfg.URL, "/"),
		cfg:     cfg,
		client:  client,
		breaker: cfg.Breaker,
		logger:  slog.Default().With("component", "transport", "url", cfg.URL),
	}, nil
}

// Send implements Transport.
func (t *HTTP) Send(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, error) {
	var (
		status int
		resp   []byte
	)
	retry := t.cfg.Retry
	if !replaySafe(method, path) {
		retry.Retryable = notSent
	}
	err := retry.Do(ctx, method+" "+path, func(int) error {
		var attemptErr error
		status, resp, attemptErr = t.guarded(ctx, method, path, body, contentType)
		return attemptErr
	})

	var ss *serverStatus
	if errors.As(err, &ss) {
		return ss.status, ss.body, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return status, resp, nil
}

func (t *HTTP) guarded(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, error) {
	if t.breaker == nil {
		return t.attempt(ctx, method, path, body, contentType)
	}
	var (
		status int
		resp   []byte
	)
	err := t.breaker.Do(func() error {
		var attemptErr error
		status, resp, attemptErr = t.attempt(ctx, method, path, body, contentType)
		return attemptErr
	})
	return status, resp, err
}

func (t *HTTP) attempt(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, error) {
	var status int
	var resp []byte
	err := resilience.Bounded(ctx, t.cfg.Timeout, func(ctx context.Context) error {
		var err error
		status, resp, err = t.roundTrip(ctx, method, path, body, contentType)
		return err
	})
	if errors.Is(err, resilience.ErrAttemptTimeout) {
		return 0, nil, &clienterrors.TransportError{Err: err}
	}
	if err != nil {
		return 0, nil, err
	}
	if status >= 500 && status != http.StatusNotImplemented {
		return status, resp, &serverStatus{status: status, body: resp}
	}
	return status, resp, nil
}

func (t *HTTP) roundTrip(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: building request: %v", clienterrors.ErrInvalidInput, err)
	}
	if len(body) > 0 && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if t.cfg.Username != "" {
		req.SetBasicAuth(t.cfg.Username, t.cfg.Password)
	}

	res, err := t.client.Do(req)
	if err != nil {
		return 0, nil, &clienterrors.TransportError{Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, &clienterrors.TransportError{Status: res.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}
	t.logger.Debug("engine exchange", "method", method, "path", path, "status", res.StatusCode, "bytes", len(data))
	return res.StatusCode, data, nil
}

func retryableAttempt(err error) bool {
	var ss *serverStatus
	if errors.As(err, &ss) {
		return true
	}
	return Retryable(err)
}

// replaySafe reports whether repeating a request that may already have
// reached the engine cannot change the outcome. A POST that indexes with an
// engine-assigned id, a bulk call or a scripted update can apply twice.
func replaySafe(method, path string) bool {
	if method != http.MethodPost {
		return true
	}
	path, _, _ = strings.Cut(path, "?")
	switch path[strings.LastIndexByte(path, '/')+1:] {
	case "_search", "_count", "_refresh":
		return true
	}
	return false
}

// notSent reports whether err happened before the request left the
// client, the only failure after which a non-idempotent call is retried.
func notSent(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial" && retryableAttempt(err)
}

// NewBreaker creates the engine circuit breaker. Only failures that say
// something about engine availability count against it, and state changes
// are published to m when it is non-nil.
func NewBreaker(name string, threshold int, cooldown time.Duration, m *metrics.Metrics) *resilience.Breaker {
	cfg := resilience.BreakerConfig{
		Threshold: threshold,
		Cooldown:  cooldown,
		Counts:    retryableAttempt,
	}
	if m != nil {
		gauge := m.CircuitBreakerState.WithLabelValues(name)
		gauge.Set(float64(resilience.StateClosed))
		cfg.OnChange = func(to resilience.State) { gauge.Set(float64(to)) }
	}
	return resilience.NewBreaker(name, cfg)
}

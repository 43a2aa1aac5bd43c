// Package transport sends encoded requests to the engine and returns the
// raw status and body. It knows nothing about replies or engine errors;
// classification happens in package dispatch.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/config"
	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/resilience"
)

// Transport performs one HTTP exchange. A non-nil error means no usable
// response was received; any status, including 5xx, is returned with a nil
// error.
type Transport interface {
	Send(ctx context.Context, method, path string, body []byte, contentType string) (status int, respBody []byte, err error)
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, error)

func (f Func) Send(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, error) {
	return f(ctx, method, path, body, contentType)
}

// New builds the transport selected by engine.driver.
func New(cfg *config.Config, m *metrics.Metrics) (Transport, error) {
	switch cfg.Engine.Driver {
	case "", "http":
		return NewHTTP(HTTPConfig{
			URL:      cfg.Engine.URLs[0],
			Username: cfg.Engine.Username,
			Password: cfg.Engine.Password,
			Timeout:  cfg.Transport.Timeout,
			Retry: resilience.Backoff{
				Attempts: cfg.Transport.MaxAttempts,
				Initial:  cfg.Transport.InitialBackoff,
				Max:      cfg.Transport.MaxBackoff,
			},
			Breaker: NewBreaker("engine", cfg.Transport.FailureThreshold, cfg.Transport.ResetTimeout, m),
		})
	case "elastic":
		return NewElastic(ElasticConfig{
			Addresses:  cfg.Engine.URLs,
			Username:   cfg.Engine.Username,
			Password:   cfg.Engine.Password,
			MaxRetries: cfg.Transport.MaxAttempts - 1,
		})
	default:
		return nil, fmt.Errorf("unknown engine driver %q", cfg.Engine.Driver)
	}
}

// Retryable reports whether a failed exchange is worth repeating:
// connection failures and 5xx answers other than 501. Cancellation and an
// open circuit are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var te *clienterrors.TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return true
}

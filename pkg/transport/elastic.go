package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
)

// ElasticConfig configures the adapter over the official client. Node
// selection, retries on 502/503/504 and connection failures are left to the
// official client's transport.
type ElasticConfig struct {
	Addresses  []string
	Username   string
	Password   string
	APIKey     string
	MaxRetries int
	// Transport overrides the HTTP round tripper, mostly for tests.
	Transport http.RoundTripper
}

// Elastic is a Transport backed by go-elasticsearch's Perform.
type Elastic struct {
	es     *elasticsearch.Client
	logger *slog.Logger
}

// NewElastic creates the adapter.
func NewElastic(cfg ElasticConfig) (*Elastic, error) {
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		APIKey:     cfg.APIKey,
		MaxRetries: cfg.MaxRetries,
		Transport:  cfg.Transport,
	}
	if cfg.MaxRetries <= 0 {
		esCfg.DisableRetry = true
	}
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &Elastic{
		es:     es,
		logger: slog.Default().With("component", "transport", "driver", "elastic"),
	}, nil
}

// Send implements Transport.
func (e *Elastic) Send(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: building request: %v", clienterrors.ErrInvalidInput, err)
	}
	if len(body) > 0 && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := e.es.Perform(req)
	if err != nil {
		return 0, nil, &clienterrors.TransportError{Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, &clienterrors.TransportError{Status: res.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}
	e.logger.Debug("engine exchange", "method", method, "path", path, "status", res.StatusCode, "bytes", len(data))
	return res.StatusCode, data, nil
}

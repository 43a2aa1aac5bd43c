// Package client is the entry point for talking to the engine. A Client
// encodes a request, sends it through a Transport and dispatches the
// response into the request's reply type or a typed error.
//
//	c := client.New(tr)
//	got, err := client.Expect[reply.Get](ctx, c, request.NewGetDocument("books", "book", "1"))
//
// A Client is safe for concurrent use. It holds no per-request state.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulk"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/cache"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/dispatch"
	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/request"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/tracing"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/transport"
)

// Client issues requests against one engine.
type Client struct {
	transport transport.Transport
	ser       *serializer.Serializer
	cache     *cache.Cache
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithSerializer sets the serializer used for request payloads.
func WithSerializer(s *serializer.Serializer) Option {
	return func(c *Client) { c.ser = s }
}

// WithCache serves read-only requests through a reply cache.
func WithCache(rc *cache.Cache) Option {
	return func(c *Client) { c.cache = rc }
}

// WithMetrics records request and bulk metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client over t.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		ser:       serializer.Default,
		logger:    slog.Default().With("component", "client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quest sends req and returns its decoded reply, a pointer of the type
// req.NewReply produces.
func (c *Client) Quest(ctx context.Context, req request.Request) (reply.Reply, error) {
	target := req.NewReply()
	if err := c.Do(ctx, req, target); err != nil {
		return nil, err
	}
	return target, nil
}

// Expect sends req and returns its reply as *R. It fails with a schema
// mismatch, before anything is sent, when req does not reply with R.
func Expect[R any](ctx context.Context, c *Client, req request.Request) (*R, error) {
	target, ok := req.NewReply().(*R)
	if !ok {
		return nil, &clienterrors.SchemaMismatchError{
			Target: fmt.Sprintf("%T", (*R)(nil)),
			Err:    fmt.Errorf("%T replies with %T", req, req.NewReply()),
		}
	}
	if err := c.Do(ctx, req, target); err != nil {
		return nil, err
	}
	return target, nil
}

// Do sends req and decodes the response into target, which may be any
// pointer the reply body fits, or nil to discard it.
//
// Failures are typed: local encoding problems return the serializer's
// errors or ErrInvalidInput; an engine-reported error returns
// *errors.EngineError; anything else returns *errors.TransportError.
func (c *Client) Do(ctx context.Context, req request.Request, target reply.Reply) error {
	body, contentType, err := c.encode(req)
	if err != nil {
		return err
	}

	method, path := req.Method(), req.Path()
	ctx, span := tracing.Child(ctx, method+" "+path)
	defer span.End()
	log := logger.FromContext(ctx).With("component", "client", "method", method, "path", path)

	start := time.Now()
	if c.metrics != nil {
		c.metrics.RequestsInFlight.Inc()
		defer c.metrics.RequestsInFlight.Dec()
	}

	status, respBody, hit, err := c.exchange(ctx, req, body, contentType)
	if err != nil {
		var te *clienterrors.TransportError
		if !errors.As(err, &te) {
			err = &clienterrors.TransportError{Err: err}
		}
	} else {
		err = dispatch.Dispatch(status, respBody, target, acceptFunc(req))
	}

	outcome := outcomeOf(err)
	elapsed := time.Since(start)
	span.SetAttr("status", status)
	span.SetAttr("outcome", string(outcome))
	if hit {
		span.SetAttr("cache", "hit")
	}
	if err != nil {
		span.SetError(err)
	}
	c.record(method, outcome, elapsed, target)

	switch outcome {
	case dispatch.OutcomeTransport:
		log.Warn("engine request failed", "status", status, "error", err, "elapsed", elapsed)
	case dispatch.OutcomeEngine:
		log.Debug("engine rejected request", "status", status, "error", err)
	default:
		log.Debug("engine request done", "status", status, "elapsed", elapsed, "cache_hit", hit)
	}
	return err
}

// Bulk sends actions as one bulk request.
func (c *Client) Bulk(ctx context.Context, actions ...bulkable.Action) (*reply.Bulk, error) {
	return Expect[reply.Bulk](ctx, c, bulk.NewRequest(actions...))
}

// Ping reports whether the engine answers at its root.
func (c *Client) Ping(ctx context.Context) error {
	ex, err := Expect[reply.Exists](ctx, c, request.Ping{})
	if err != nil {
		return err
	}
	if !ex.Exists {
		return &clienterrors.TransportError{Status: ex.Status, Err: fmt.Errorf("engine ping answered %d", ex.Status)}
	}
	return nil
}

func (c *Client) encode(req request.Request) ([]byte, string, error) {
	if raw, ok := req.(request.RawPayload); ok {
		return raw.RawBody()
	}
	payload, ok := req.Payload()
	if !ok {
		return nil, "", nil
	}
	body, err := c.ser.Encode(payload)
	if err != nil {
		return nil, "", err
	}
	return body, request.ContentTypeJSON, nil
}

// exchange sends the request, through the cache for read-only requests.
// Successful writes invalidate the entries they may have made stale.
func (c *Client) exchange(ctx context.Context, req request.Request, body []byte, contentType string) (int, []byte, bool, error) {
	method, path := req.Method(), req.Path()
	if c.cache == nil {
		status, resp, err := c.transport.Send(ctx, method, path, body, contentType)
		return status, resp, false, err
	}

	if request.IsReadOnly(req) {
		accept := acceptFunc(req)
		e, hit, err := c.cache.Fetch(ctx, c.cache.Key(method, path, body), func() (cache.Entry, bool, error) {
			status, resp, err := c.transport.Send(ctx, method, path, body, contentType)
			if err != nil {
				return cache.Entry{}, false, err
			}
			store := dispatch.Classify(status, resp, accept) == dispatch.OutcomeSuccess
			return cache.Entry{Status: status, Body: resp}, store, nil
		})
		return e.Status, e.Body, hit, err
	}

	status, resp, err := c.transport.Send(ctx, method, path, body, contentType)
	if err == nil {
		if invErr := c.cache.Invalidate(ctx, path); invErr != nil {
			c.logger.Error("cache invalidation failed", "path", path, "error", invErr)
		}
	}
	return status, resp, false, err
}

func (c *Client) record(method string, outcome dispatch.Outcome, elapsed time.Duration, target reply.Reply) {
	if c.metrics == nil {
		return
	}
	c.metrics.RequestsTotal.WithLabelValues(method, string(outcome)).Inc()
	c.metrics.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())

	b, ok := target.(*reply.Bulk)
	if !ok || outcome != dispatch.OutcomeSuccess {
		return
	}
	c.metrics.BulkBatchSize.Observe(float64(len(b.Items)))
	for i := range b.Items {
		result := "ok"
		if b.Items[i].Failed() {
			result = "failed"
		}
		c.metrics.BulkActionsTotal.WithLabelValues(b.Items[i].Verb, result).Inc()
	}
}

func acceptFunc(req request.Request) dispatch.AcceptFunc {
	if sa, ok := req.(request.StatusAccepter); ok {
		return sa.AcceptStatus
	}
	return nil
}

func outcomeOf(err error) dispatch.Outcome {
	switch {
	case err == nil:
		return dispatch.OutcomeSuccess
	case errors.Is(err, clienterrors.ErrEngine):
		return dispatch.OutcomeEngine
	default:
		return dispatch.OutcomeTransport
	}
}

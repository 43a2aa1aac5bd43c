// Package feeder drains the action queue into the engine. Messages are
// decoded into bulkable actions and grouped into batches that are flushed
// as one bulk request when the batch is full or the flush interval passes.
// Offsets are committed only after the batch carrying them is flushed and
// its rejected actions are safely in the dead-letter store, so a crash
// replays actions rather than losing them.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulk"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/client"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/config"
	clienterrors "github.com/Adithya-Monish-Kumar-K/searchclient/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/tracing"
)

const (
	fetchBackoff = 500 * time.Millisecond
	finalFlush   = 10 * time.Second
)

// Source is the queue the feeder reads. *kafka.Consumer implements it.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// DeadLetters receives actions the engine rejected.
// *postgres.DeadLetterStore implements it.
type DeadLetters interface {
	Record(ctx context.Context, letters []postgres.DeadLetter) error
}

// Stats counts what the feeder has done since it started.
type Stats struct {
	Batches     int64
	Sent        int64
	Rejected    int64
	Undecodable int64
}

// Feeder moves actions from a Source into the engine.
type Feeder struct {
	client  *client.Client
	source  Source
	dead    DeadLetters
	cfg     config.FeederConfig
	metrics *metrics.Metrics
	tracer  *tracing.Tracer
	logger  *slog.Logger
	now     func() time.Time

	batches     atomic.Int64
	sent        atomic.Int64
	rejected    atomic.Int64
	undecodable atomic.Int64
}

// Option configures a Feeder.
type Option func(*Feeder)

// WithTracer opens a root span per batch, so each bulk call is traced.
func WithTracer(t *tracing.Tracer) Option {
	return func(f *Feeder) { f.tracer = t }
}

// New creates a Feeder. dead and m may be nil; without a dead-letter store
// rejected actions are only logged.
func New(c *client.Client, src Source, dead DeadLetters, cfg config.FeederConfig, m *metrics.Metrics, opts ...Option) *Feeder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	f := &Feeder{
		client:  c,
		source:  src,
		dead:    dead,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "feeder"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Stats returns the feeder's counters.
func (f *Feeder) Stats() Stats {
	return Stats{
		Batches:     f.batches.Load(),
		Sent:        f.sent.Load(),
		Rejected:    f.rejected.Load(),
		Undecodable: f.undecodable.Load(),
	}
}

// Run feeds until ctx is cancelled, then flushes what it holds and returns
// nil. It returns an error when a batch can neither be delivered nor
// dead-lettered; nothing from that batch is committed.
func (f *Feeder) Run(ctx context.Context) error {
	f.logger.Info("feeder started", "batch_size", f.cfg.BatchSize, "flush_interval", f.cfg.FlushInterval)
	msgs := make(chan kafka.Message, f.cfg.BatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.fetch(gctx, msgs) })
	g.Go(func() error { return f.batch(gctx, msgs) })
	err := g.Wait()

	st := f.Stats()
	f.logger.Info("feeder stopped", "batches", st.Batches, "sent", st.Sent, "rejected", st.Rejected, "error", err)
	return err
}

func (f *Feeder) fetch(ctx context.Context, out chan<- kafka.Message) error {
	defer close(out)
	for {
		msg, err := f.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.logger.Error("failed to fetch message", "error", err)
			select {
			case <-time.After(fetchBackoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// pending is the batch being assembled. msgs holds every message the batch
// accounts for, including undecodable ones, so they are committed together.
type pending struct {
	actions []bulkable.Action
	msgs    []kafka.Message
}

func (p *pending) reset() {
	p.actions = p.actions[:0]
	p.msgs = p.msgs[:0]
}

func (f *Feeder) batch(ctx context.Context, in <-chan kafka.Message) error {
	ticker := time.NewTicker(f.cfg.FlushInterval)
	defer ticker.Stop()

	p := &pending{
		actions: make([]bulkable.Action, 0, f.cfg.BatchSize),
		msgs:    make([]kafka.Message, 0, f.cfg.BatchSize),
	}
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlush)
				defer cancel()
				return f.flush(flushCtx, p)
			}
			f.add(p, msg)
			if len(p.actions) >= f.cfg.BatchSize {
				if err := f.flush(ctx, p); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := f.flush(ctx, p); err != nil {
				return err
			}
		}
	}
}

func (f *Feeder) add(p *pending, msg kafka.Message) {
	p.msgs = append(p.msgs, msg)
	a, err := kafka.Decode(msg)
	if err != nil {
		f.undecodable.Add(1)
		f.logger.Error("dropping undecodable action", "key", string(msg.Key), "error", err)
		return
	}
	p.actions = append(p.actions, a)
}

func (f *Feeder) flush(ctx context.Context, p *pending) error {
	if len(p.msgs) == 0 {
		return nil
	}
	if len(p.actions) > 0 {
		if err := f.deliver(ctx, p.actions); err != nil {
			return err
		}
	}
	if err := f.source.Commit(ctx, p.msgs...); err != nil {
		return err
	}
	p.reset()
	return nil
}

// deliver sends one bulk request and dead-letters what the engine
// rejected. An engine error for the whole request rejects every action.
func (f *Feeder) deliver(ctx context.Context, actions []bulkable.Action) (err error) {
	ctx, span := f.tracer.Start(ctx, "feed batch")
	span.SetAttr("actions", len(actions))
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.End()
	}()

	req := bulk.NewRequest(actions...)
	req.Refresh = f.cfg.Refresh

	start := f.now()
	res, err := client.Expect[reply.Bulk](ctx, f.client, req)
	f.batches.Add(1)

	var ee *clienterrors.EngineError
	switch {
	case errors.As(err, &ee):
		f.logger.Error("engine rejected bulk request", "actions", len(actions), "error", err)
		failures := make([]reply.BulkFailure, len(actions))
		for i, a := range actions {
			m := a.Meta()
			failures[i] = reply.BulkFailure{Position: i, Item: reply.BulkItem{
				Verb:   string(a.Verb()),
				Index:  m.Index,
				ID:     m.ID,
				Status: ee.Status,
				Error:  &reply.ErrorBody{Type: ee.Type, Reason: ee.Reason},
			}}
		}
		return f.reject(ctx, actions, failures)
	case err != nil:
		return fmt.Errorf("delivering batch of %d actions: %w", len(actions), err)
	}

	failures := res.Failures()
	f.sent.Add(int64(len(actions) - len(failures)))
	f.logger.Debug("batch delivered", "actions", len(actions), "rejected", len(failures), "elapsed", f.now().Sub(start))
	return f.reject(ctx, actions, failures)
}

func (f *Feeder) reject(ctx context.Context, actions []bulkable.Action, failures []reply.BulkFailure) error {
	if len(failures) == 0 {
		return nil
	}
	f.rejected.Add(int64(len(failures)))
	at := f.now()
	letters := make([]postgres.DeadLetter, 0, len(failures))
	for _, fl := range failures {
		if fl.Position >= len(actions) {
			continue
		}
		f.logger.Warn("action rejected",
			"kind", actions[fl.Position].Kind(),
			"index", fl.Item.Index,
			"id", fl.Item.ID,
			"status", fl.Item.Status,
			"error", errorType(fl.Item),
		)
		dl, err := postgres.NewDeadLetter(actions[fl.Position], fl.Item, at)
		if err != nil {
			return err
		}
		letters = append(letters, dl)
	}
	if f.dead == nil {
		return nil
	}
	if err := f.dead.Record(ctx, letters); err != nil {
		return fmt.Errorf("recording %d dead letters: %w", len(letters), err)
	}
	if f.metrics != nil {
		f.metrics.DeadLettersTotal.Add(float64(len(letters)))
	}
	return nil
}

func errorType(item reply.BulkItem) string {
	if item.Error == nil {
		return ""
	}
	return item.Error.Type
}

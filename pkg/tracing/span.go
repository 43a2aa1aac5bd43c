// Package tracing times engine work as a tree of spans carried in the
// context. A Tracer opens root spans (the feeder opens one per batch) and
// every client call under them opens a child. When a sampled root ends,
// the whole tree is written through slog.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	mrand "math/rand/v2"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/logger"
)

type contextKey struct{}

// Tracer decides which root spans are logged.
type Tracer struct {
	enabled bool
	rate    float64
	sample  func() float64
	logger  *slog.Logger
}

// New creates a Tracer from the tracing section. A disabled tracer still
// hands out spans so callers need no nil checks; it just never logs them.
func New(cfg config.TracingConfig) *Tracer {
	return &Tracer{
		enabled: cfg.Enabled,
		rate:    cfg.SampleRate,
		sample:  mrand.Float64,
		logger:  slog.Default().With("component", "tracing"),
	}
}

// Span is one timed operation.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration
	Attrs    map[string]any
	Err      error

	tracer   *Tracer
	root     bool
	sampled  bool
	mu       sync.Mutex
	children []*Span
}

// NewTraceID returns a random 16-byte hex trace id.
func NewTraceID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Start opens a root span under a fresh trace id. The returned context
// carries the span, and the trace id for logger.FromContext.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{
		Name:    name,
		TraceID: NewTraceID(),
		Start:   time.Now(),
		Attrs:   make(map[string]any),
		tracer:  t,
		root:    true,
		sampled: t.sampled(),
	}
	ctx = logger.WithTraceID(ctx, s.TraceID)
	return context.WithValue(ctx, contextKey{}, s), s
}

func (t *Tracer) sampled() bool {
	if t == nil || !t.enabled || t.rate <= 0 {
		return false
	}
	return t.rate >= 1 || t.sample() < t.rate
}

// Child opens a span under the one in ctx. Without a parent the span is
// detached: it is timed but never logged.
func Child(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{
		Name:  name,
		Start: time.Now(),
		Attrs: make(map[string]any),
	}
	if parent := FromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// FromContext returns the innermost span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

// End fixes the span's duration. Ending a sampled root logs its tree.
func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.mu.Unlock()
	if s.root && s.sampled {
		s.Walk(func(depth int, sp *Span) { s.tracer.log(depth, sp) })
	}
}

// Sampled reports whether the span's trace will be logged.
func (s *Span) Sampled() bool { return s.sampled }

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

func (s *Span) SetError(err error) {
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

// Children returns the spans opened directly under s.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Walk visits s and its descendants depth first.
func (s *Span) Walk(fn func(depth int, s *Span)) {
	s.walk(0, fn)
}

func (s *Span) walk(depth int, fn func(int, *Span)) {
	fn(depth, s)
	for _, c := range s.Children() {
		c.walk(depth+1, fn)
	}
}

func (t *Tracer) log(depth int, s *Span) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"depth", depth,
		"duration_ms", s.Duration.Milliseconds(),
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	s.mu.Unlock()
	t.logger.Info("span", attrs...)
}

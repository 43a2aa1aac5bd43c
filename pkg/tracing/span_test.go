package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/logger"
)

func captureTracer(t *testing.T, cfg config.TracingConfig) (*Tracer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	tr := New(cfg)
	tr.logger = slog.New(slog.NewTextHandler(&buf, nil))
	return tr, &buf
}

func TestChildSpansJoinTrace(t *testing.T) {
	tr, buf := captureTracer(t, config.TracingConfig{Enabled: true, SampleRate: 1})
	ctx, root := tr.Start(context.Background(), "feed batch")
	require.Len(t, root.TraceID, 32)
	require.True(t, root.Sampled())

	cctx, child := Child(ctx, "POST /_bulk")
	_, grandchild := Child(cctx, "cache")
	child.SetAttr("actions", 3)
	child.SetError(errors.New("boom"))
	grandchild.End()
	child.End()
	root.End()

	require.Len(t, root.Children(), 1)
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.TraceID, grandchild.TraceID)
	assert.Equal(t, 3, child.Attrs["actions"])
	assert.Same(t, root, FromContext(ctx))

	var depths []int
	root.Walk(func(depth int, _ *Span) { depths = append(depths, depth) })
	assert.Equal(t, []int{0, 1, 2}, depths)

	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "trace_id="+root.TraceID)
}

func TestRootCarriesTraceIDForLogging(t *testing.T) {
	tr := New(config.TracingConfig{})
	ctx, root := tr.Start(context.Background(), "op")

	var buf bytes.Buffer
	logger.SetupWriter(&buf, "info", "text")
	t.Cleanup(func() { logger.Setup("info", "text") })
	logger.FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "trace_id="+root.TraceID)
}

func TestSampling(t *testing.T) {
	tr, buf := captureTracer(t, config.TracingConfig{Enabled: true, SampleRate: 0.5})
	tr.sample = func() float64 { return 0.7 }
	_, s := tr.Start(context.Background(), "dropped")
	assert.False(t, s.Sampled())
	s.End()
	assert.Empty(t, buf.String())

	tr.sample = func() float64 { return 0.2 }
	_, s = tr.Start(context.Background(), "kept")
	assert.True(t, s.Sampled())

	disabled, _ := captureTracer(t, config.TracingConfig{Enabled: false, SampleRate: 1})
	_, s = disabled.Start(context.Background(), "off")
	assert.False(t, s.Sampled())

	var nilTracer *Tracer
	assert.False(t, nilTracer.sampled())
}

func TestDetachedChildSpan(t *testing.T) {
	ctx, span := Child(context.Background(), "orphan")
	span.End()
	assert.Empty(t, span.TraceID)
	assert.Same(t, span, FromContext(ctx))
}

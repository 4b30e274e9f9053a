package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/matzehuels/framegraph/pkg/observability"
)

var (
	_ observability.EvalHooks  = (*Hooks)(nil)
	_ observability.StoreHooks = (*Hooks)(nil)
)

func newRecorder(t *testing.T) (*Hooks, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return New(tp), rec
}

func TestPassSpanParentsNodeSpans(t *testing.T) {
	h, rec := newRecorder(t)
	ctx := context.Background()

	h.OnPassStart(ctx, "p1", "viewer")
	h.OnNodeEvaluated(ctx, "p1", "n1", "solid", 2*time.Millisecond, nil)
	h.OnNodeEvaluated(ctx, "p1", "n2", "blur", time.Millisecond, errors.New("boom"))
	h.OnPassComplete(ctx, "p1", "viewer", 2, 5*time.Millisecond, errors.New("boom"))

	spans := rec.Ended()
	require.Len(t, spans, 3)

	pass := spans[2]
	assert.Equal(t, "eval.pass", pass.Name())
	assert.Equal(t, codes.Error, pass.Status().Code)
	for _, s := range spans[:2] {
		assert.Equal(t, "eval.node", s.Name())
		assert.Equal(t, pass.SpanContext().SpanID(), s.Parent().SpanID())
	}
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestPassCompleteWithoutStartIsIgnored(t *testing.T) {
	h, rec := newRecorder(t)
	h.OnPassComplete(context.Background(), "unknown", "x", 0, 0, nil)
	assert.Empty(t, rec.Ended())
}

func TestStoreSpan(t *testing.T) {
	h, rec := newRecorder(t)
	h.OnStoreOp(context.Background(), "redis", "save", time.Millisecond, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "store.save", spans[0].Name())
	assert.True(t, spans[0].EndTime().Sub(spans[0].StartTime()) >= time.Millisecond)
}

func TestNewProviderWithoutEndpoint(t *testing.T) {
	tp, err := NewProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := New(nil).tracer.Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().IsValid(), "global provider should be the SDK provider")
	span.End()
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), sampler(0.25).Description())
}

// Package otel emits framegraph hook events as OpenTelemetry spans.
//
// Each evaluation pass becomes one span; node computations and store
// operations are recorded as child spans backdated by their measured
// duration.
package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for framegraph spans.
const TracerName = "github.com/matzehuels/framegraph"

// Hooks implements the eval and store hooks by emitting spans.
type Hooks struct {
	tracer trace.Tracer

	mu     sync.Mutex
	passes map[string]trace.Span
}

// New returns hooks that use tp. A nil tp uses the global provider.
func New(tp trace.TracerProvider) *Hooks {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Hooks{
		tracer: tp.Tracer(TracerName),
		passes: make(map[string]trace.Span),
	}
}

func (h *Hooks) OnPassStart(ctx context.Context, passID, target string) {
	_, span := h.tracer.Start(ctx, "eval.pass",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("framegraph.pass.id", passID),
			attribute.String("framegraph.pass.target", target),
		),
	)
	h.mu.Lock()
	h.passes[passID] = span
	h.mu.Unlock()
}

func (h *Hooks) OnNodeEvaluated(ctx context.Context, passID, nodeID, nodeType string, d time.Duration, err error) {
	parent := ctx
	h.mu.Lock()
	if span, ok := h.passes[passID]; ok {
		parent = trace.ContextWithSpan(ctx, span)
	}
	h.mu.Unlock()

	end := time.Now()
	_, span := h.tracer.Start(parent, "eval.node",
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(
			attribute.String("framegraph.node.id", nodeID),
			attribute.String("framegraph.node.type", nodeType),
		),
	)
	recordError(span, err)
	span.End(trace.WithTimestamp(end))
}

func (h *Hooks) OnPassComplete(_ context.Context, passID, _ string, nodes int, d time.Duration, err error) {
	h.mu.Lock()
	span, ok := h.passes[passID]
	delete(h.passes, passID)
	h.mu.Unlock()
	if !ok {
		return
	}
	span.SetAttributes(
		attribute.Int("framegraph.pass.nodes", nodes),
		attribute.Int64("framegraph.pass.duration_ms", d.Milliseconds()),
	)
	recordError(span, err)
	span.End()
}

func (h *Hooks) OnStoreOp(ctx context.Context, backend, op string, d time.Duration, err error) {
	end := time.Now()
	_, span := h.tracer.Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(attribute.String("framegraph.store.backend", backend)),
	)
	recordError(span, err)
	span.End(trace.WithTimestamp(end))
}

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

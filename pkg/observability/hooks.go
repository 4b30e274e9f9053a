// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about graph mutations, evaluation passes and project storage.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Backends live in subpackages: [prom] exports Prometheus metrics and
// [otel] emits OpenTelemetry spans. [Multi] fans events out to several
// implementations.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetEvalHooks(prom.NewEvalHooks(reg))
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Eval().OnPassStart(ctx, passID, target)
//	// ... evaluate ...
//	observability.Eval().OnPassComplete(ctx, passID, target, nodes, duration, err)
//
// [prom]: github.com/matzehuels/framegraph/pkg/observability/prom
// [otel]: github.com/matzehuels/framegraph/pkg/observability/otel
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Graph Hooks
// =============================================================================

// GraphHooks receives events from structural graph mutations.
type GraphHooks interface {
	// OnMutation records a mutation ("add_node", "connect", ...) and its outcome.
	OnMutation(ctx context.Context, op string, err error)
}

// =============================================================================
// Eval Hooks
// =============================================================================

// EvalHooks receives events from evaluation passes.
type EvalHooks interface {
	// OnPassStart records the start of a pass targeting the given node.
	OnPassStart(ctx context.Context, passID, target string)

	// OnNodeEvaluated records one node computation within a pass.
	OnNodeEvaluated(ctx context.Context, passID, nodeID, nodeType string, duration time.Duration, err error)

	// OnPassComplete records the end of a pass and how many nodes it computed.
	OnPassComplete(ctx context.Context, passID, target string, nodes int, duration time.Duration, err error)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from project store operations.
type StoreHooks interface {
	// OnStoreOp records a store operation ("load", "save", "delete", "list").
	OnStoreOp(ctx context.Context, backend, op string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopGraphHooks is a no-op implementation of GraphHooks.
type NoopGraphHooks struct{}

func (NoopGraphHooks) OnMutation(context.Context, string, error) {}

// NoopEvalHooks is a no-op implementation of EvalHooks.
type NoopEvalHooks struct{}

func (NoopEvalHooks) OnPassStart(context.Context, string, string) {}
func (NoopEvalHooks) OnNodeEvaluated(context.Context, string, string, string, time.Duration, error) {
}
func (NoopEvalHooks) OnPassComplete(context.Context, string, string, int, time.Duration, error) {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnStoreOp(context.Context, string, string, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	graphHooks GraphHooks = NoopGraphHooks{}
	evalHooks  EvalHooks  = NoopEvalHooks{}
	storeHooks StoreHooks = NoopStoreHooks{}
	hooksMu    sync.RWMutex
)

// SetGraphHooks registers custom graph hooks.
// This should be called once at application startup before any graph operations.
func SetGraphHooks(h GraphHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		graphHooks = h
	}
}

// SetEvalHooks registers custom evaluation hooks.
// This should be called once at application startup before any evaluation.
func SetEvalHooks(h EvalHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		evalHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
// This should be called once at application startup before any store operations.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// Graph returns the registered graph hooks.
func Graph() GraphHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return graphHooks
}

// Eval returns the registered evaluation hooks.
func Eval() EvalHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return evalHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	graphHooks = NoopGraphHooks{}
	evalHooks = NoopEvalHooks{}
	storeHooks = NoopStoreHooks{}
}

// =============================================================================
// Fan-out
// =============================================================================

// Multi fans events out to several backends. Nil members are skipped.
type Multi struct {
	GraphHooks []GraphHooks
	EvalHooks  []EvalHooks
	StoreHooks []StoreHooks
}

func (m Multi) OnMutation(ctx context.Context, op string, err error) {
	for _, h := range m.GraphHooks {
		if h != nil {
			h.OnMutation(ctx, op, err)
		}
	}
}

func (m Multi) OnPassStart(ctx context.Context, passID, target string) {
	for _, h := range m.EvalHooks {
		if h != nil {
			h.OnPassStart(ctx, passID, target)
		}
	}
}

func (m Multi) OnNodeEvaluated(ctx context.Context, passID, nodeID, nodeType string, d time.Duration, err error) {
	for _, h := range m.EvalHooks {
		if h != nil {
			h.OnNodeEvaluated(ctx, passID, nodeID, nodeType, d, err)
		}
	}
}

func (m Multi) OnPassComplete(ctx context.Context, passID, target string, nodes int, d time.Duration, err error) {
	for _, h := range m.EvalHooks {
		if h != nil {
			h.OnPassComplete(ctx, passID, target, nodes, d, err)
		}
	}
}

func (m Multi) OnStoreOp(ctx context.Context, backend, op string, d time.Duration, err error) {
	for _, h := range m.StoreHooks {
		if h != nil {
			h.OnStoreOp(ctx, backend, op, d, err)
		}
	}
}

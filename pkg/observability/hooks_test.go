package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Graph hooks
	g := NoopGraphHooks{}
	g.OnMutation(ctx, "connect", nil)

	// Eval hooks
	e := NoopEvalHooks{}
	e.OnPassStart(ctx, "pass-1", "viewer")
	e.OnNodeEvaluated(ctx, "pass-1", "n1", "solid", time.Millisecond, nil)
	e.OnPassComplete(ctx, "pass-1", "viewer", 2, time.Second, nil)

	// Store hooks
	s := NoopStoreHooks{}
	s.OnStoreOp(ctx, "file", "save", time.Millisecond, nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Graph().(NoopGraphHooks); !ok {
		t.Error("Graph() should return NoopGraphHooks by default")
	}
	if _, ok := Eval().(NoopEvalHooks); !ok {
		t.Error("Eval() should return NoopEvalHooks by default")
	}
	if _, ok := Store().(NoopStoreHooks); !ok {
		t.Error("Store() should return NoopStoreHooks by default")
	}

	customGraph := &testGraphHooks{}
	SetGraphHooks(customGraph)
	if Graph() != customGraph {
		t.Error("SetGraphHooks should set custom hooks")
	}

	customEval := &testEvalHooks{}
	SetEvalHooks(customEval)
	if Eval() != customEval {
		t.Error("SetEvalHooks should set custom hooks")
	}

	customStore := &testStoreHooks{}
	SetStoreHooks(customStore)
	if Store() != customStore {
		t.Error("SetStoreHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Eval().(NoopEvalHooks); !ok {
		t.Error("Reset() should restore NoopEvalHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testEvalHooks{}
	SetEvalHooks(custom)

	// Setting nil should be ignored
	SetEvalHooks(nil)

	if Eval() != custom {
		t.Error("SetEvalHooks(nil) should be ignored")
	}
}

func TestMultiFansOut(t *testing.T) {
	ctx := context.Background()
	a, b := &testEvalHooks{}, &testEvalHooks{}
	sg := &testGraphHooks{}
	ss := &testStoreHooks{}
	m := Multi{
		GraphHooks: []GraphHooks{sg, nil},
		EvalHooks:  []EvalHooks{a, nil, b},
		StoreHooks: []StoreHooks{ss},
	}

	m.OnPassStart(ctx, "p", "t")
	m.OnNodeEvaluated(ctx, "p", "n", "blur", time.Millisecond, errors.New("boom"))
	m.OnPassComplete(ctx, "p", "t", 1, time.Millisecond, nil)
	m.OnMutation(ctx, "add_node", nil)
	m.OnStoreOp(ctx, "redis", "load", time.Millisecond, nil)

	for i, h := range []*testEvalHooks{a, b} {
		if h.starts != 1 || h.nodes != 1 || h.completes != 1 {
			t.Errorf("hooks[%d] = %+v, want one of each event", i, *h)
		}
	}
	if sg.mutations != 1 {
		t.Errorf("graph mutations = %d, want 1", sg.mutations)
	}
	if ss.ops != 1 {
		t.Errorf("store ops = %d, want 1", ss.ops)
	}
}

// Test implementations
type testGraphHooks struct {
	NoopGraphHooks
	mutations int
}

func (h *testGraphHooks) OnMutation(context.Context, string, error) { h.mutations++ }

type testEvalHooks struct {
	NoopEvalHooks
	starts, nodes, completes int
}

func (h *testEvalHooks) OnPassStart(context.Context, string, string) { h.starts++ }
func (h *testEvalHooks) OnNodeEvaluated(context.Context, string, string, string, time.Duration, error) {
	h.nodes++
}
func (h *testEvalHooks) OnPassComplete(context.Context, string, string, int, time.Duration, error) {
	h.completes++
}

type testStoreHooks struct {
	NoopStoreHooks
	ops int
}

func (h *testStoreHooks) OnStoreOp(context.Context, string, string, time.Duration, error) { h.ops++ }

package eval

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/graph"
	"github.com/matzehuels/framegraph/pkg/node"
	"github.com/matzehuels/framegraph/pkg/nodes"
)

// counter is a scalar generator that counts its computations.
func counter(t *testing.T, calls *atomic.Int64, v float64) *node.Node {
	t.Helper()
	n, err := node.New("counter", node.KindGenerator, nil,
		[]node.PortSpec{{Name: "out", Type: node.TypeScalar}},
		node.EvaluatorFunc(func(context.Context, node.Inputs) (node.Outputs, error) {
			calls.Add(1)
			return node.Outputs{"out": node.Scalar(v)}, nil
		}))
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// adder sums its two scalar inputs; b defaults to 1.
func adder(t *testing.T, calls *atomic.Int64) *node.Node {
	t.Helper()
	n, err := node.New("add", node.KindFilter,
		[]node.PortSpec{
			{Name: "a", Type: node.TypeScalar},
			{Name: "b", Type: node.TypeScalar, Default: node.Scalar(1)},
		},
		[]node.PortSpec{{Name: "out", Type: node.TypeScalar}},
		node.EvaluatorFunc(func(_ context.Context, in node.Inputs) (node.Outputs, error) {
			if calls != nil {
				calls.Add(1)
			}
			a, err := in.Scalar("a")
			if err != nil {
				return nil, err
			}
			b, err := in.Scalar("b")
			if err != nil {
				return nil, err
			}
			return node.Outputs{"out": node.Scalar(a + b)}, nil
		}))
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func custom(t *testing.T, typ string, inputs []node.PortSpec, fn node.EvaluatorFunc) *node.Node {
	t.Helper()
	n, err := node.New(typ, node.KindFilter, inputs,
		[]node.PortSpec{{Name: "out", Type: node.TypeScalar}}, fn)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func add(t *testing.T, g *graph.Graph, n *node.Node) string {
	t.Helper()
	id, err := g.AddNode(n)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func connect(t *testing.T, g *graph.Graph, from string, fromPort int, to string, toPort int) {
	t.Helper()
	if err := g.ConnectEdge(graph.PortRef{Node: from, Port: fromPort}, graph.PortRef{Node: to, Port: toPort}); err != nil {
		t.Fatalf("ConnectEdge: %v", err)
	}
}

func scalar(t *testing.T, res *Result) float64 {
	t.Helper()
	f, ok := res.Value.Scalar()
	if !ok {
		t.Fatalf("result %v is not a scalar", res.Value)
	}
	return f
}

func TestDiamondEvaluatesSharedUpstreamOnce(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(map[bool]string{false: "sequential", true: "parallel"}[parallel], func(t *testing.T) {
			var aCalls, addCalls atomic.Int64
			g := graph.New()
			a := add(t, g, counter(t, &aCalls, 2))
			b := add(t, g, adder(t, &addCalls))
			c := add(t, g, adder(t, &addCalls))
			d := add(t, g, adder(t, &addCalls))
			connect(t, g, a, 0, b, 0)
			connect(t, g, a, 0, c, 0)
			connect(t, g, b, 0, d, 0)
			connect(t, g, c, 0, d, 1)

			res, err := New(Options{Parallel: parallel}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: d})
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			// b = c = 2+1, d = b+c
			if got := scalar(t, res); got != 6 {
				t.Errorf("value = %v, want 6", got)
			}
			if n := aCalls.Load(); n != 1 {
				t.Errorf("A computed %d times, want 1", n)
			}
			if n := addCalls.Load(); n != 3 {
				t.Errorf("adders computed %d times, want 3", n)
			}
			if res.Stats.Nodes != 4 {
				t.Errorf("Stats.Nodes = %d, want 4", res.Stats.Nodes)
			}
			if len(res.Outputs) != 4 {
				t.Errorf("len(Outputs) = %d, want 4", len(res.Outputs))
			}
		})
	}
}

func TestEvaluatesOnlyUpstream(t *testing.T) {
	var calls atomic.Int64
	g := graph.New()
	a := add(t, g, counter(t, &calls, 1))
	add(t, g, counter(t, &calls, 5)) // unrelated
	b := add(t, g, adder(t, nil))
	connect(t, g, a, 0, b, 0)

	res, err := New(Options{}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: b})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("counters computed %d times, want 1", calls.Load())
	}
	if res.Stats.Nodes != 2 {
		t.Errorf("Stats.Nodes = %d, want 2", res.Stats.Nodes)
	}
}

func TestPassesDoNotShareMemo(t *testing.T) {
	var calls atomic.Int64
	g := graph.New()
	a := add(t, g, counter(t, &calls, 1))
	ev := New(Options{})
	snap := g.Snapshot()
	for range 3 {
		if _, err := ev.Evaluate(context.Background(), snap, graph.PortRef{Node: a}); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("computed %d times over 3 passes, want 3", calls.Load())
	}
}

func TestInputResolutionOrder(t *testing.T) {
	var calls atomic.Int64
	g := graph.New()
	src := add(t, g, counter(t, &calls, 10))
	sum := add(t, g, adder(t, nil))
	ev := New(Options{})
	target := graph.PortRef{Node: sum}

	// a unset with no default
	_, err := ev.Evaluate(context.Background(), g.Snapshot(), target)
	if !fgerrors.Is(err, fgerrors.ErrCodeUnconnectedInput) {
		t.Fatalf("err = %v, want UNCONNECTED_INPUT", err)
	}

	// literal a, default b
	if err := g.SetLiteral(graph.PortRef{Node: sum, Port: 0}, node.Scalar(3)); err != nil {
		t.Fatal(err)
	}
	res, err := ev.Evaluate(context.Background(), g.Snapshot(), target)
	if err != nil {
		t.Fatal(err)
	}
	if got := scalar(t, res); got != 4 {
		t.Errorf("literal+default = %v, want 4", got)
	}

	// edge wins over default on b
	connect(t, g, src, 0, sum, 1)
	res, err = ev.Evaluate(context.Background(), g.Snapshot(), target)
	if err != nil {
		t.Fatal(err)
	}
	if got := scalar(t, res); got != 13 {
		t.Errorf("literal+edge = %v, want 13", got)
	}
}

func TestOptionalInputOmitted(t *testing.T) {
	g := graph.New()
	id := add(t, g, custom(t, "opt", []node.PortSpec{{Name: "x", Type: node.TypeScalar, Optional: true}},
		func(_ context.Context, in node.Inputs) (node.Outputs, error) {
			if in.Has("x") {
				return node.Outputs{"out": node.Scalar(1)}, nil
			}
			return node.Outputs{"out": node.Scalar(0)}, nil
		}))
	res, err := New(Options{}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: id})
	if err != nil {
		t.Fatal(err)
	}
	if got := scalar(t, res); got != 0 {
		t.Errorf("value = %v, want 0", got)
	}
}

func TestFailurePropagatesFromOrigin(t *testing.T) {
	boom := errors.New("boom")
	var downstream atomic.Int64
	g := graph.New()
	bad := add(t, g, custom(t, "bad", nil, func(context.Context, node.Inputs) (node.Outputs, error) {
		return nil, boom
	}))
	mid := add(t, g, adder(t, &downstream))
	top := add(t, g, adder(t, &downstream))
	connect(t, g, bad, 0, mid, 0)
	connect(t, g, mid, 0, top, 0)

	_, err := New(Options{}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: top})
	var evalErr *fgerrors.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("err = %v, want *EvaluationError", err)
	}
	if evalErr.NodeID != bad {
		t.Errorf("NodeID = %s, want failing node %s", evalErr.NodeID, bad)
	}
	if evalErr.Type != "bad" {
		t.Errorf("Type = %q, want %q", evalErr.Type, "bad")
	}
	if !errors.Is(err, boom) {
		t.Error("cause should be preserved")
	}
	if downstream.Load() != 0 {
		t.Errorf("downstream computed %d times after failure, want 0", downstream.Load())
	}
}

func TestPanicBecomesEvaluationError(t *testing.T) {
	g := graph.New()
	id := add(t, g, custom(t, "panicky", nil, func(context.Context, node.Inputs) (node.Outputs, error) {
		panic("kaboom")
	}))
	_, err := New(Options{}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: id})
	if fgerrors.FailedNode(err) != id {
		t.Errorf("FailedNode = %q, want %q", fgerrors.FailedNode(err), id)
	}
	if !fgerrors.Is(err, fgerrors.ErrCodeInternal) {
		t.Errorf("err = %v, want INTERNAL_ERROR cause", err)
	}
}

func TestMissingOutputIsError(t *testing.T) {
	g := graph.New()
	id := add(t, g, custom(t, "lazy", nil, func(context.Context, node.Inputs) (node.Outputs, error) {
		return node.Outputs{}, nil
	}))
	_, err := New(Options{}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: id})
	if !fgerrors.Is(err, fgerrors.ErrCodeEvaluation) || !fgerrors.Is(err, fgerrors.ErrCodeInternal) {
		t.Errorf("err = %v, want EVALUATION wrapping INTERNAL_ERROR", err)
	}
}

func TestUnknownTarget(t *testing.T) {
	var calls atomic.Int64
	g := graph.New()
	id := add(t, g, counter(t, &calls, 1))
	ev := New(Options{})

	tests := []struct {
		name   string
		target graph.PortRef
	}{
		{"unknown node", graph.PortRef{Node: "nope"}},
		{"unknown port", graph.PortRef{Node: id, Port: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ev.Evaluate(context.Background(), g.Snapshot(), tt.target)
			if fgerrors.GetCode(err) != fgerrors.ErrCodeLookup {
				t.Errorf("err = %v, want LOOKUP", err)
			}
		})
	}
}

func TestCancellation(t *testing.T) {
	t.Run("before pass", func(t *testing.T) {
		var calls atomic.Int64
		g := graph.New()
		id := add(t, g, counter(t, &calls, 1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(Options{}).Evaluate(ctx, g.Snapshot(), graph.PortRef{Node: id})
		if !fgerrors.Is(err, fgerrors.ErrCodeCanceled) {
			t.Errorf("err = %v, want CANCELED", err)
		}
		if calls.Load() != 0 {
			t.Error("node computed after cancellation")
		}
	})

	t.Run("during node", func(t *testing.T) {
		g := graph.New()
		started := make(chan struct{})
		id := add(t, g, custom(t, "slow", nil, func(ctx context.Context, _ node.Inputs) (node.Outputs, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}))
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			cancel()
		}()
		_, err := New(Options{}).Evaluate(ctx, g.Snapshot(), graph.PortRef{Node: id})
		if !fgerrors.Is(err, fgerrors.ErrCodeCanceled) {
			t.Errorf("err = %v, want CANCELED", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Error("cause should be context.Canceled")
		}
	})
}

func TestParallelResolvesBranchesConcurrently(t *testing.T) {
	var entered sync.WaitGroup
	entered.Add(2)
	all := make(chan struct{})
	go func() {
		entered.Wait()
		close(all)
	}()
	rendezvous := func(ctx context.Context, _ node.Inputs) (node.Outputs, error) {
		entered.Done()
		select {
		case <-all:
			return node.Outputs{"out": node.Scalar(1)}, nil
		case <-time.After(5 * time.Second):
			return nil, errors.New("sibling branch never started")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g := graph.New()
	l := add(t, g, custom(t, "left", nil, rendezvous))
	r := add(t, g, custom(t, "right", nil, rendezvous))
	sum := add(t, g, adder(t, nil))
	connect(t, g, l, 0, sum, 0)
	connect(t, g, r, 0, sum, 1)

	res, err := New(Options{Parallel: true}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: sum})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := scalar(t, res); got != 2 {
		t.Errorf("value = %v, want 2", got)
	}
	if !res.Stats.Parallel {
		t.Error("Stats.Parallel should be set")
	}
}

func TestParallelFirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	g := graph.New()
	bad := add(t, g, custom(t, "bad", nil, func(context.Context, node.Inputs) (node.Outputs, error) {
		return nil, boom
	}))
	slow := add(t, g, custom(t, "slow", nil, func(ctx context.Context, _ node.Inputs) (node.Outputs, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	sum := add(t, g, adder(t, nil))
	connect(t, g, bad, 0, sum, 0)
	connect(t, g, slow, 0, sum, 1)

	_, err := New(Options{Parallel: true}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: sum})
	if fgerrors.FailedNode(err) != bad {
		t.Errorf("err = %v, want failure attributed to %s", err, bad)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestParallelSharedNodeReportsOriginalFailure(t *testing.T) {
	scalars := func(names ...string) []node.PortSpec {
		specs := make([]node.PortSpec, len(names))
		for i, name := range names {
			specs[i] = node.PortSpec{Name: name, Type: node.TypeScalar}
		}
		return specs
	}
	waitForCancel := func(ctx context.Context, _ node.Inputs) (node.Outputs, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	sum := func(context.Context, node.Inputs) (node.Outputs, error) {
		return node.Outputs{"out": node.Scalar(0)}, nil
	}

	// top(q, p) where p(x, f, slow) and q(x) share x. f fails while x is
	// still being computed under p's branch and q waits on x's memo slot.
	for i := 0; i < 50; i++ {
		g := graph.New()
		x := add(t, g, custom(t, "x", nil, waitForCancel))
		f := add(t, g, custom(t, "f", nil, func(context.Context, node.Inputs) (node.Outputs, error) {
			time.Sleep(5 * time.Millisecond)
			return nil, errors.New("decode failed")
		}))
		slow := add(t, g, custom(t, "slow", nil, waitForCancel))
		p := add(t, g, custom(t, "p", scalars("x", "f", "slow"), sum))
		q := add(t, g, custom(t, "q", scalars("x"), sum))
		top := add(t, g, custom(t, "top", scalars("q", "p"), sum))
		connect(t, g, x, 0, p, 0)
		connect(t, g, f, 0, p, 1)
		connect(t, g, slow, 0, p, 2)
		connect(t, g, x, 0, q, 0)
		connect(t, g, q, 0, top, 0)
		connect(t, g, p, 0, top, 1)

		_, err := New(Options{Parallel: true}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: top})
		if fgerrors.Is(err, fgerrors.ErrCodeCanceled) {
			t.Fatalf("run %d: err = %v, want the failure of f rather than CANCELED", i, err)
		}
		if got := fgerrors.FailedNode(err); got != f {
			t.Fatalf("run %d: FailedNode = %q, want %q (err %v)", i, got, f, err)
		}
	}
}

func TestCallerCancellationStillReportsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := graph.New()
	block := add(t, g, custom(t, "block", nil, func(ctx context.Context, _ node.Inputs) (node.Outputs, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	other := add(t, g, counter(t, new(atomic.Int64), 1))
	sum := add(t, g, adder(t, nil))
	connect(t, g, block, 0, sum, 0)
	connect(t, g, other, 0, sum, 1)

	_, err := New(Options{Parallel: true}).Evaluate(ctx, g.Snapshot(), graph.PortRef{Node: sum})
	if !fgerrors.Is(err, fgerrors.ErrCodeCanceled) {
		t.Fatalf("err = %v, want CANCELED", err)
	}
	if fgerrors.FailedNode(err) != "" {
		t.Errorf("a canceled pass should not name a failed node, got %q", fgerrors.FailedNode(err))
	}
}

func TestSnapshotIsolatesPass(t *testing.T) {
	g := graph.New()
	sum := add(t, g, adder(t, nil))
	in := graph.PortRef{Node: sum, Port: 0}
	if err := g.SetLiteral(in, node.Scalar(1)); err != nil {
		t.Fatal(err)
	}
	snap := g.Snapshot()
	if err := g.SetLiteral(in, node.Scalar(100)); err != nil {
		t.Fatal(err)
	}

	res, err := New(Options{}).Evaluate(context.Background(), snap, graph.PortRef{Node: sum})
	if err != nil {
		t.Fatal(err)
	}
	if got := scalar(t, res); got != 2 {
		t.Errorf("old snapshot value = %v, want 2", got)
	}
}

func TestSolidToViewerScenario(t *testing.T) {
	reg := nodes.Default()
	g := graph.New()

	s, err := reg.Create(nodes.TypeSolid)
	if err != nil {
		t.Fatal(err)
	}
	v, err := reg.Create(nodes.TypeViewer)
	if err != nil {
		t.Fatal(err)
	}
	sid := add(t, g, s)
	vid := add(t, g, v)

	red := color.NRGBA{R: 255, A: 255}
	for port, val := range map[int]node.Value{0: node.Color(red), 1: node.Scalar(8), 2: node.Scalar(4)} {
		if err := g.SetLiteral(graph.PortRef{Node: sid, Port: port}, val); err != nil {
			t.Fatal(err)
		}
	}
	connect(t, g, sid, 0, vid, 0)

	ev := New(Options{})
	res, err := ev.Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: vid})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got, ok := res.Value.Texture()
	if !ok {
		t.Fatal("viewer output is not a texture")
	}
	want, _ := res.Outputs[sid].Texture(nodes.PortTexture)
	if got != want {
		t.Error("viewer should show the solid's texture")
	}
	if got.Bounds().Dx() != 8 || got.Bounds().Dy() != 4 || got.NRGBAAt(0, 0) != red {
		t.Errorf("texture = %v %v, want 8x4 red", got.Bounds(), got.NRGBAAt(0, 0))
	}

	if err := g.RemoveNode(sid); err != nil {
		t.Fatal(err)
	}
	_, err = ev.Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: vid})
	var evalErr *fgerrors.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("err = %v, want *EvaluationError", err)
	}
	if evalErr.NodeID != vid {
		t.Errorf("NodeID = %s, want viewer %s", evalErr.NodeID, vid)
	}
	if !fgerrors.Is(err, fgerrors.ErrCodeUnconnectedInput) {
		t.Errorf("err = %v, want UNCONNECTED_INPUT cause", err)
	}
}

type recordingHooks struct {
	mu        sync.Mutex
	starts    int
	nodes     []string
	completed int
	lastErr   error
}

func (h *recordingHooks) OnPassStart(context.Context, string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts++
}

func (h *recordingHooks) OnNodeEvaluated(_ context.Context, _, _, typ string, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes = append(h.nodes, typ)
}

func (h *recordingHooks) OnPassComplete(_ context.Context, _, _ string, _ int, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed++
	h.lastErr = err
}

func TestHooksObservePass(t *testing.T) {
	var calls atomic.Int64
	g := graph.New()
	a := add(t, g, counter(t, &calls, 1))
	b := add(t, g, adder(t, nil))
	connect(t, g, a, 0, b, 0)

	h := &recordingHooks{}
	if _, err := New(Options{Hooks: h}).Evaluate(context.Background(), g.Snapshot(), graph.PortRef{Node: b}); err != nil {
		t.Fatal(err)
	}
	if h.starts != 1 || h.completed != 1 {
		t.Errorf("starts=%d completed=%d, want 1 and 1", h.starts, h.completed)
	}
	if len(h.nodes) != 2 || h.nodes[0] != "counter" || h.nodes[1] != "add" {
		t.Errorf("nodes = %v, want [counter add]", h.nodes)
	}
	if h.lastErr != nil {
		t.Errorf("lastErr = %v, want nil", h.lastErr)
	}
}

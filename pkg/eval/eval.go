// Package eval computes output values of a graph snapshot.
//
// An evaluation pass starts from one target output port and pulls values
// through the graph: each input is resolved from its incoming edge
// (recursively evaluating the upstream node), else from the node's literal,
// else from the port default. Every node reached is computed at most once
// per pass. Passes never share results with each other.
//
// # Failure
//
// The first failure aborts the pass. It is reported as an
// [errors.EvaluationError] naming the node that failed; nodes downstream of
// it propagate the same error unchanged, so [errors.FailedNode] always
// points at the origin. Canceling the context aborts the pass with a
// CANCELED error and discards its memo.
//
// # Parallelism
//
// With [Options.Parallel] set, the connected inputs of a node are resolved
// concurrently. Per-node futures keep the at-most-once guarantee: a node
// reached by two branches is computed by whichever gets there first while
// the other waits for the result.
//
// [errors.EvaluationError]: github.com/matzehuels/framegraph/pkg/errors.EvaluationError
// [errors.FailedNode]: github.com/matzehuels/framegraph/pkg/errors.FailedNode
package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/graph"
	"github.com/matzehuels/framegraph/pkg/node"
	"github.com/matzehuels/framegraph/pkg/observability"
)

// Options configures an Evaluator.
type Options struct {
	// Parallel resolves independent upstream inputs concurrently.
	Parallel bool

	// Logger receives pass start/finish records at debug level.
	// Nil discards them.
	Logger *log.Logger

	// Hooks overrides the globally registered evaluation hooks.
	Hooks observability.EvalHooks
}

// Stats summarizes one pass.
type Stats struct {
	PassID   string
	Nodes    int // Nodes actually computed
	Duration time.Duration
	Parallel bool
}

// Result is the outcome of a successful pass.
type Result struct {
	Target graph.PortRef
	Value  node.Value

	// Outputs holds the outputs of every node computed during the pass,
	// keyed by node id. Viewer notification reads from here.
	Outputs map[string]node.Outputs

	Stats Stats
}

// Evaluator runs evaluation passes. It holds no per-pass state and is safe
// for concurrent use.
type Evaluator struct {
	opts   Options
	logger *log.Logger
}

// New returns an Evaluator configured by opts.
func New(opts Options) *Evaluator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Evaluator{opts: opts, logger: logger}
}

func (e *Evaluator) hooks() observability.EvalHooks {
	if e.opts.Hooks != nil {
		return e.opts.Hooks
	}
	return observability.Eval()
}

// Evaluate computes the value of the output port target in snap.
//
// An unknown target node or port fails with LOOKUP before the pass starts.
// Failures during the pass are EvaluationErrors; cancellation is CANCELED.
func (e *Evaluator) Evaluate(ctx context.Context, snap *graph.Snapshot, target graph.PortRef) (*Result, error) {
	n, ok := snap.Node(target.Node)
	if !ok {
		return nil, fgerrors.New(fgerrors.ErrCodeLookup, "unknown node %q", target.Node)
	}
	spec, err := n.Output(target.Port)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	p := &pass{
		ev:     e,
		snap:   snap,
		id:     uuid.NewString(),
		memo:   make(map[string]*future),
		cancel: cancel,
	}
	hooks := e.hooks()
	start := time.Now()
	e.logger.Debug("pass started", "pass", p.id, "target", n.DisplayName(), "parallel", e.opts.Parallel)
	hooks.OnPassStart(ctx, p.id, target.Node)

	out, err := p.outputs(pctx, target.Node)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		err = canceled(ctx)
	default:
		if first := p.failure(); first != nil {
			err = first
		}
	}
	stats := Stats{
		PassID:   p.id,
		Nodes:    int(p.computed.Load()),
		Duration: time.Since(start),
		Parallel: e.opts.Parallel,
	}
	hooks.OnPassComplete(ctx, p.id, target.Node, stats.Nodes, stats.Duration, err)
	if err != nil {
		e.logger.Debug("pass failed", "pass", p.id, "nodes", stats.Nodes, "duration", stats.Duration, "err", err)
		return nil, err
	}
	e.logger.Debug("pass finished", "pass", p.id, "nodes", stats.Nodes, "duration", stats.Duration)

	return &Result{
		Target:  target,
		Value:   out[spec.Name],
		Outputs: p.results(),
		Stats:   stats,
	}, nil
}

// EvaluateNode computes all outputs of the node id. It is shorthand for
// evaluating the node's first output port and reading its outputs from the
// result.
func (e *Evaluator) EvaluateNode(ctx context.Context, snap *graph.Snapshot, id string) (node.Outputs, *Result, error) {
	res, err := e.Evaluate(ctx, snap, graph.PortRef{Node: id, Port: 0})
	if err != nil {
		return nil, nil, err
	}
	return res.Outputs[id], res, nil
}

// future is the per-pass memo slot of one node. done is closed once out and
// err are final.
type future struct {
	done chan struct{}
	out  node.Outputs
	err  error
}

type pass struct {
	ev   *Evaluator
	snap *graph.Snapshot
	id   string

	mu       sync.Mutex
	memo     map[string]*future
	computed atomic.Int64

	// cancel aborts the pass context on the first failure so that every
	// branch still running stops early.
	cancel  context.CancelCauseFunc
	failMu  sync.Mutex
	failErr error
}

// fail records the first failure of the pass and cancels the pass context.
// Cancellations are not failures: they are the consequence of one.
func (p *pass) fail(err error) {
	if err == nil || fgerrors.Is(err, fgerrors.ErrCodeCanceled) {
		return
	}
	p.failMu.Lock()
	if p.failErr == nil {
		p.failErr = err
	}
	p.failMu.Unlock()
	p.cancel(err)
}

// failure returns the first failure recorded by fail, if any.
func (p *pass) failure() error {
	p.failMu.Lock()
	defer p.failMu.Unlock()
	return p.failErr
}

// outputs returns the memoized outputs of node id, computing them on first
// use. ctx is always the pass context, never that of a single branch, so a
// memo slot only holds CANCELED when the whole pass was aborted.
func (p *pass) outputs(ctx context.Context, id string) (node.Outputs, error) {
	p.mu.Lock()
	if f, ok := p.memo[id]; ok {
		p.mu.Unlock()
		select {
		case <-f.done:
			return f.out, f.err
		case <-ctx.Done():
			return nil, canceled(ctx)
		}
	}
	f := &future{done: make(chan struct{})}
	p.memo[id] = f
	p.mu.Unlock()

	f.out, f.err = p.compute(ctx, id)
	p.fail(f.err)
	close(f.done)
	return f.out, f.err
}

func (p *pass) results() map[string]node.Outputs {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make(map[string]node.Outputs, len(p.memo))
	for id, f := range p.memo {
		select {
		case <-f.done:
			if f.err == nil {
				res[id] = maps.Clone(f.out)
			}
		default:
		}
	}
	return res
}

func (p *pass) compute(ctx context.Context, id string) (node.Outputs, error) {
	if ctx.Err() != nil {
		return nil, canceled(ctx)
	}
	n, ok := p.snap.Node(id)
	if !ok {
		return nil, &fgerrors.EvaluationError{
			NodeID: id,
			Cause:  fgerrors.New(fgerrors.ErrCodeLookup, "node %q does not exist", id),
		}
	}

	in, err := p.resolve(ctx, n)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, canceled(ctx)
	}

	start := time.Now()
	out, err := invoke(ctx, n, in)
	d := time.Since(start)
	p.computed.Add(1)
	if err == nil {
		err = checkOutputs(n, out)
	}
	p.ev.hooks().OnNodeEvaluated(ctx, p.id, n.ID, n.Type, d, err)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, canceled(ctx)
		}
		return nil, &fgerrors.EvaluationError{NodeID: n.ID, Type: n.Type, Cause: err}
	}
	return out, nil
}

// resolve builds the Inputs for n. Connected inputs are evaluated upstream;
// unconnected ones fall back to literal, then default. Optional inputs with
// no value are left out.
func (p *pass) resolve(ctx context.Context, n *node.Node) (node.Inputs, error) {
	specs := n.Inputs()
	in := make(node.Inputs, len(specs))

	type link struct {
		name string
		edge graph.Edge
	}
	var links []link
	for i, spec := range specs {
		if edge, ok := p.snap.EdgeInto(graph.PortRef{Node: n.ID, Port: i}); ok {
			links = append(links, link{name: spec.Name, edge: edge})
			continue
		}
		if v, ok := n.Literal(i); ok {
			in[spec.Name] = v
			continue
		}
		if spec.Default.IsSet() {
			in[spec.Name] = spec.Default
			continue
		}
		if spec.Optional {
			continue
		}
		return nil, &fgerrors.EvaluationError{
			NodeID: n.ID,
			Type:   n.Type,
			Cause:  fgerrors.New(fgerrors.ErrCodeUnconnectedInput, "input %q has no edge, literal or default", spec.Name),
		}
	}
	if len(links) == 0 {
		return in, nil
	}

	values := make([]node.Value, len(links))
	fetch := func(ctx context.Context, i int) error {
		v, err := p.upstream(ctx, n, links[i].name, links[i].edge)
		values[i] = v
		return err
	}

	if p.ev.opts.Parallel && len(links) > 1 {
		var g errgroup.Group
		for i := range links {
			g.Go(func() error { return fetch(ctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range links {
			if err := fetch(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	for i, l := range links {
		in[l.name] = values[i]
	}
	return in, nil
}

// upstream evaluates the source of edge and returns the value on its output
// port. Errors from the source propagate unchanged.
func (p *pass) upstream(ctx context.Context, n *node.Node, input string, edge graph.Edge) (node.Value, error) {
	src, ok := p.snap.Node(edge.From.Node)
	if !ok {
		return node.Value{}, &fgerrors.EvaluationError{
			NodeID: n.ID,
			Type:   n.Type,
			Cause:  fgerrors.New(fgerrors.ErrCodeLookup, "input %q references missing node %q", input, edge.From.Node),
		}
	}
	spec, err := src.Output(edge.From.Port)
	if err != nil {
		return node.Value{}, &fgerrors.EvaluationError{NodeID: n.ID, Type: n.Type, Cause: err}
	}
	out, err := p.outputs(ctx, src.ID)
	if err != nil {
		return node.Value{}, err
	}
	return out[spec.Name], nil
}

// invoke runs the node's computation, converting a panic into an error.
func invoke(ctx context.Context, n *node.Node, in node.Inputs) (out node.Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fgerrors.New(fgerrors.ErrCodeInternal, "panic: %v", r)
		}
	}()
	return n.Evaluator().Evaluate(ctx, in)
}

func checkOutputs(n *node.Node, out node.Outputs) error {
	for _, spec := range n.Outputs() {
		v, ok := out[spec.Name]
		if !ok || !v.IsSet() {
			return fgerrors.New(fgerrors.ErrCodeInternal, "output %q was not produced", spec.Name)
		}
		if v.Type() != spec.Type {
			return fgerrors.New(fgerrors.ErrCodeInternal, "output %q is %s, declared %s", spec.Name, v.Type(), spec.Type)
		}
	}
	return nil
}

func canceled(ctx context.Context) error {
	return fgerrors.Wrap(fgerrors.ErrCodeCanceled, ctx.Err(), "evaluation canceled")
}

// String implements fmt.Stringer for log output.
func (s Stats) String() string {
	return fmt.Sprintf("pass %s: %d nodes in %s", s.PassID, s.Nodes, s.Duration.Round(time.Microsecond))
}

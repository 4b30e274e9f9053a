// Package engine serializes access to a graph through a command channel.
//
// One goroutine owns the [graph.Graph]. Callers never touch it directly:
// every public method sends a command to the owner and waits for the reply,
// so structural mutations are applied one at a time and never interleave
// with the snapshot taken for an evaluation pass. Passes themselves run on
// the caller's goroutine against that immutable snapshot, so a long render
// does not block further edits.
//
// A viewer sink attached with [Engine.Attach] is notified once a pass that
// targets its node has completed.
package engine

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/eval"
	"github.com/matzehuels/framegraph/pkg/graph"
	"github.com/matzehuels/framegraph/pkg/node"
	"github.com/matzehuels/framegraph/pkg/nodes"
	"github.com/matzehuels/framegraph/pkg/observability"
	"github.com/matzehuels/framegraph/pkg/viewer"
)

// Options configures an Engine.
type Options struct {
	// Graph is adopted as the initial graph. Nil starts empty. The caller
	// must not use it after handing it over.
	Graph *graph.Graph

	// Registry resolves type names for AddNode. Nil uses nodes.Default().
	Registry *node.Registry

	// Eval configures evaluation passes. Its Logger defaults to Logger.
	Eval eval.Options

	// Logger receives one debug record per command. Nil discards.
	Logger *log.Logger

	// Hooks overrides the globally registered graph hooks.
	Hooks observability.GraphHooks
}

// Engine owns a graph and the viewer attachments of its nodes.
type Engine struct {
	cmds chan command
	quit chan struct{}
	done chan struct{}
	once sync.Once

	registry *node.Registry
	viewers  *viewer.Registry
	eval     *eval.Evaluator
	logger   *log.Logger
	hooks    observability.GraphHooks

	// g is only touched by the loop goroutine.
	g *graph.Graph
}

type command struct {
	ctx   context.Context
	op    string
	fn    func(g *graph.Graph) (any, error)
	reply chan result
}

type result struct {
	val any
	err error
}

// New starts an engine. Call Close to stop it.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Eval.Logger == nil {
		opts.Eval.Logger = logger
	}
	reg := opts.Registry
	if reg == nil {
		reg = nodes.Default()
	}
	g := opts.Graph
	if g == nil {
		g = graph.New()
	}
	e := &Engine{
		cmds:     make(chan command),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		registry: reg,
		viewers:  viewer.NewRegistry(),
		eval:     eval.New(opts.Eval),
		logger:   logger,
		hooks:    opts.Hooks,
		g:        g,
	}
	go e.loop()
	return e
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case c := <-e.cmds:
			if err := c.ctx.Err(); err != nil {
				c.reply <- result{err: fgerrors.Wrap(fgerrors.ErrCodeCanceled, err, "%s canceled", c.op)}
				continue
			}
			val, err := c.fn(e.g)
			e.logger.Debug("command", "op", c.op, "version", e.g.Version(), "err", err)
			if c.op != opSnapshot {
				e.graphHooks().OnMutation(context.Background(), c.op, err)
			}
			c.reply <- result{val: val, err: err}
		case <-e.quit:
			e.g.Close()
			return
		}
	}
}

func (e *Engine) graphHooks() observability.GraphHooks {
	if e.hooks != nil {
		return e.hooks
	}
	return observability.Graph()
}

// do sends fn to the loop and waits for its result. ctx bounds only the
// wait for the loop to accept the command. Once accepted, the command is
// either applied or rejected as canceled and the caller always learns
// which, so a reported error never hides a committed mutation.
func (e *Engine) do(ctx context.Context, op string, fn func(g *graph.Graph) (any, error)) (any, error) {
	c := command{ctx: ctx, op: op, fn: fn, reply: make(chan result, 1)}
	select {
	case e.cmds <- c:
	case <-e.done:
		return nil, fgerrors.New(fgerrors.ErrCodeClosed, "engine is closed")
	case <-ctx.Done():
		return nil, fgerrors.Wrap(fgerrors.ErrCodeCanceled, ctx.Err(), "%s canceled", op)
	}
	r := <-c.reply
	return r.val, r.err
}

func (e *Engine) exec(ctx context.Context, op string, fn func(g *graph.Graph) error) error {
	_, err := e.do(ctx, op, func(g *graph.Graph) (any, error) { return nil, fn(g) })
	return err
}

// Operation names reported to hooks and logs.
const (
	opAddNode    = "add_node"
	opRemoveNode = "remove_node"
	opConnect    = "connect"
	opDisconnect = "disconnect"
	opSetLiteral = "set_literal"
	opSetLabel   = "set_label"
	opAttach     = "attach"
	opSnapshot   = "snapshot"
)

// Registry returns the node type registry used by AddNode.
func (e *Engine) Registry() *node.Registry { return e.registry }

// AddNode creates a node of the registered type typ and adds it to the
// graph, returning its id.
func (e *Engine) AddNode(ctx context.Context, typ string) (string, error) {
	n, err := e.registry.Create(typ)
	if err != nil {
		return "", err
	}
	return e.Insert(ctx, n)
}

// Insert adds a prebuilt node to the graph, returning its id.
func (e *Engine) Insert(ctx context.Context, n *node.Node) (string, error) {
	v, err := e.do(ctx, opAddNode, func(g *graph.Graph) (any, error) { return g.AddNode(n) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// RemoveNode removes a node, its edges and any viewer attachment.
func (e *Engine) RemoveNode(ctx context.Context, id string) error {
	return e.exec(ctx, opRemoveNode, func(g *graph.Graph) error {
		if err := g.RemoveNode(id); err != nil {
			return err
		}
		e.viewers.Detach(id)
		return nil
	})
}

// Connect links output port from to input port to.
func (e *Engine) Connect(ctx context.Context, from, to graph.PortRef) error {
	return e.exec(ctx, opConnect, func(g *graph.Graph) error { return g.ConnectEdge(from, to) })
}

// ConnectNamed links ports addressed by name.
func (e *Engine) ConnectNamed(ctx context.Context, fromNode, output, toNode, input string) error {
	return e.exec(ctx, opConnect, func(g *graph.Graph) error {
		from, err := g.Output(fromNode, output)
		if err != nil {
			return err
		}
		to, err := g.Input(toNode, input)
		if err != nil {
			return err
		}
		return g.ConnectEdge(from, to)
	})
}

// Disconnect removes the edge into input to, if any.
func (e *Engine) Disconnect(ctx context.Context, to graph.PortRef) error {
	return e.exec(ctx, opDisconnect, func(g *graph.Graph) error { return g.DisconnectEdge(to) })
}

// SetLiteral sets the literal value of an unconnected input.
func (e *Engine) SetLiteral(ctx context.Context, to graph.PortRef, v node.Value) error {
	return e.exec(ctx, opSetLiteral, func(g *graph.Graph) error { return g.SetLiteral(to, v) })
}

// SetLabel sets a node's display label.
func (e *Engine) SetLabel(ctx context.Context, id, label string) error {
	return e.exec(ctx, opSetLabel, func(g *graph.Graph) error { return g.SetLabel(id, label) })
}

// Attach associates sink with the viewer node id, replacing any previous
// sink. Only output nodes accept sinks.
func (e *Engine) Attach(ctx context.Context, id string, sink viewer.Sink) error {
	if sink == nil {
		return fgerrors.New(fgerrors.ErrCodeInvalidInput, "sink must not be nil")
	}
	return e.exec(ctx, opAttach, func(g *graph.Graph) error {
		n, ok := g.Node(id)
		if !ok {
			return fgerrors.New(fgerrors.ErrCodeLookup, "node %s not found", id)
		}
		if !n.IsOutput() {
			return fgerrors.New(fgerrors.ErrCodeInvalidInput, "node %s (%s) is not a viewer", n.DisplayName(), n.Type)
		}
		e.viewers.Attach(id, sink)
		return nil
	})
}

// Detach drops the sink attached to id. It does not touch the graph.
func (e *Engine) Detach(id string) bool {
	return e.viewers.Detach(id)
}

// Snapshot returns an immutable view of the current graph.
func (e *Engine) Snapshot(ctx context.Context) (*graph.Snapshot, error) {
	v, err := e.do(ctx, opSnapshot, func(g *graph.Graph) (any, error) { return g.Snapshot(), nil })
	if err != nil {
		return nil, err
	}
	return v.(*graph.Snapshot), nil
}

// Evaluate runs a pass for the output port target on a fresh snapshot and
// then notifies the sink attached to the target node, if any. Viewers that
// the pass merely passed through upstream are not notified; they get their
// own frame when they are the target. Sink failures are logged and do not
// fail the pass.
func (e *Engine) Evaluate(ctx context.Context, target graph.PortRef) (*eval.Result, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	res, err := e.eval.Evaluate(ctx, snap, target)
	if err != nil {
		e.logger.Debug("evaluation failed", "target", target, "failed_node", fgerrors.FailedNode(err), "err", err)
		return nil, err
	}
	label := func(id string) string {
		if n, ok := snap.Node(id); ok {
			return n.Label
		}
		return ""
	}
	targetOut := make(map[string]node.Outputs, 1)
	if out, ok := res.Outputs[target.Node]; ok {
		targetOut[target.Node] = out
	}
	n, err := e.viewers.Notify(ctx, res.Stats.PassID, targetOut, label)
	if err != nil {
		e.logger.Warn("viewer notification failed", "pass", res.Stats.PassID, "err", err)
	}
	e.logger.Debug("pass complete", "pass", res.Stats.PassID, "nodes", res.Stats.Nodes, "notified", n)
	return res, nil
}

// Render evaluates the viewer node id.
func (e *Engine) Render(ctx context.Context, id string) (*eval.Result, error) {
	return e.Evaluate(ctx, graph.PortRef{Node: id, Port: 0})
}

// RenderAll evaluates every output node of the current graph, one pass
// each, in node id order. It stops at the first failure.
func (e *Engine) RenderAll(ctx context.Context) (map[string]*eval.Result, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	results := make(map[string]*eval.Result)
	for _, n := range snap.Nodes() {
		if !n.IsOutput() {
			continue
		}
		res, err := e.Render(ctx, n.ID)
		if err != nil {
			return results, err
		}
		results[n.ID] = res
	}
	return results, nil
}

// Close stops the engine and destroys its graph. Further calls fail with
// CLOSED. Close is idempotent.
func (e *Engine) Close() error {
	e.once.Do(func() { close(e.quit) })
	<-e.done
	return nil
}

package graph

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/node"
)

// PortRef addresses a port by owning node id and port index. Whether it
// names an input or an output depends on where it is used.
type PortRef struct {
	Node string
	Port int
}

func (p PortRef) String() string { return fmt.Sprintf("%s[%d]", p.Node, p.Port) }

// Edge is a directed connection from an output port to an input port.
// Edges are plain tuples, never live pointers, so removing a node cannot
// leave a dangling reference behind.
type Edge struct {
	From PortRef // Output port on the source node
	To   PortRef // Input port on the destination node
}

// state is the arena shared by Graph and Snapshot. Read-only methods are
// defined on *state and promoted to both.
type state struct {
	nodes    map[string]*node.Node
	incoming map[PortRef]Edge     // input port -> the single edge feeding it
	outgoing map[string][]PortRef // source node id -> input ports it feeds
	version  uint64
}

func newState() state {
	return state{
		nodes:    make(map[string]*node.Node),
		incoming: make(map[PortRef]Edge),
		outgoing: make(map[string][]PortRef),
	}
}

func (s *state) clone() state {
	out := make(map[string][]PortRef, len(s.outgoing))
	for id, refs := range s.outgoing {
		out[id] = slices.Clone(refs)
	}
	return state{
		nodes:    maps.Clone(s.nodes),
		incoming: maps.Clone(s.incoming),
		outgoing: out,
		version:  s.version,
	}
}

// Graph owns a set of nodes and the edges between their ports.
//
// The edge set, viewed as a directed graph over nodes, is always acyclic.
// Every mutation is all-or-nothing: when an error is returned the graph is
// unchanged.
//
// The zero value is not usable - use New to create a Graph.
// Graph is not safe for concurrent use; the engine package serializes access
// through a single owning goroutine and hands evaluation passes immutable
// [Snapshot]s.
type Graph struct {
	state
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{state: newState()}
}

// AddNode takes ownership of n, assigns it a fresh unique id and returns
// that id. The graph stores its own copy of n; use the returned id (not the
// pointer passed in) for all further operations.
//
// Returns an INVALID_INPUT error only if n is nil.
func (g *Graph) AddNode(n *node.Node) (string, error) {
	if n == nil {
		return "", fgerrors.New(fgerrors.ErrCodeInvalidInput, "node must not be nil")
	}
	owned := n.Clone()
	owned.ID = uuid.NewString()
	g.nodes[owned.ID] = owned
	g.version++
	return owned.ID, nil
}

// RemoveNode removes the node and every edge touching any of its ports.
// Removing an unknown id returns a NOT_FOUND error and changes nothing.
func (g *Graph) RemoveNode(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fgerrors.New(fgerrors.ErrCodeNotFound, "node %s not found", id)
	}

	// Edges into this node's inputs.
	for i := 0; i < n.NumInputs(); i++ {
		g.unlink(PortRef{Node: id, Port: i})
	}
	// Edges out of this node's outputs.
	for _, to := range slices.Clone(g.outgoing[id]) {
		delete(g.incoming, to)
	}
	delete(g.outgoing, id)
	delete(g.nodes, id)
	g.version++
	return nil
}

// ConnectEdge connects output port from to input port to.
//
// It fails with LOOKUP if either node or port does not exist, TYPE_MISMATCH
// if the declared port types are incompatible, and CYCLE if the edge would
// close a directed cycle (self-edges included). On success any previous
// edge into the input is replaced. A literal held by the input is kept but
// ignored while the edge exists.
func (g *Graph) ConnectEdge(from, to PortRef) error {
	src, err := g.outputSpec(from)
	if err != nil {
		return err
	}
	dst, err := g.inputSpec(to)
	if err != nil {
		return err
	}
	if !node.Compatible(src.Type, dst.Type) {
		return fgerrors.New(fgerrors.ErrCodeTypeMismatch,
			"cannot connect %s output %q to %s input %q", src.Type, src.Name, dst.Type, dst.Name)
	}
	if prev, ok := g.incoming[to]; ok && prev.From == from {
		return nil
	}
	if g.reaches(to.Node, from.Node) {
		return fgerrors.New(fgerrors.ErrCodeCycle,
			"connecting %s to %s would create a cycle", from, to)
	}

	g.unlink(to)
	g.incoming[to] = Edge{From: from, To: to}
	g.outgoing[from.Node] = append(g.outgoing[from.Node], to)
	g.version++
	return nil
}

// DisconnectEdge removes the edge into input port to, if any. It is a no-op
// returning nil when the input has no edge, and fails with LOOKUP only when
// the node or port does not exist.
func (g *Graph) DisconnectEdge(to PortRef) error {
	if _, err := g.inputSpec(to); err != nil {
		return err
	}
	if g.unlink(to) {
		g.version++
	}
	return nil
}

// SetLiteral sets the literal value of input port to. It fails with
// STATE_CONFLICT while the input has an incoming edge (disconnect first),
// LOOKUP for unknown node or port, and TYPE_MISMATCH if v does not match the
// declared port type. An unset v clears the literal.
func (g *Graph) SetLiteral(to PortRef, v node.Value) error {
	n, ok := g.nodes[to.Node]
	if !ok {
		return fgerrors.New(fgerrors.ErrCodeLookup, "node %s not found", to.Node)
	}
	if _, connected := g.incoming[to]; connected {
		p, _ := n.Input(to.Port)
		return fgerrors.New(fgerrors.ErrCodeStateConflict,
			"input %q of node %s is connected; disconnect before setting a literal", p.Name, n.DisplayName())
	}
	updated, err := n.WithLiteral(to.Port, v)
	if err != nil {
		return err
	}
	g.nodes[to.Node] = updated
	g.version++
	return nil
}

// SetLabel sets the display label of a node.
func (g *Graph) SetLabel(id, label string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fgerrors.New(fgerrors.ErrCodeLookup, "node %s not found", id)
	}
	c := n.Clone()
	c.Label = label
	g.nodes[id] = c
	g.version++
	return nil
}

// Snapshot returns an immutable copy of the current graph. Nodes are shared
// with the graph (they are never modified in place) while the edge indices
// are copied, so later mutations never affect the snapshot.
func (g *Graph) Snapshot() *Snapshot {
	return &Snapshot{state: g.clone()}
}

// Close destroys the graph, dropping every node and edge it owns.
func (g *Graph) Close() {
	g.state = newState()
}

// unlink removes the edge into input to and reports whether one existed.
func (g *Graph) unlink(to PortRef) bool {
	e, ok := g.incoming[to]
	if !ok {
		return false
	}
	delete(g.incoming, to)
	g.outgoing[e.From.Node] = slices.DeleteFunc(g.outgoing[e.From.Node], func(r PortRef) bool { return r == to })
	if len(g.outgoing[e.From.Node]) == 0 {
		delete(g.outgoing, e.From.Node)
	}
	return true
}

// reaches reports whether target is reachable from start by following edges
// forward. The search only visits nodes downstream of start, so its cost is
// bounded by the edges reachable from start rather than the graph size.
func (s *state) reaches(start, target string) bool {
	if start == target {
		return true
	}
	visited := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, to := range s.outgoing[id] {
			if to.Node == target {
				return true
			}
			if !visited[to.Node] {
				visited[to.Node] = true
				stack = append(stack, to.Node)
			}
		}
	}
	return false
}

// =============================================================================
// Read-only queries (shared by Graph and Snapshot)
// =============================================================================

// Version returns a counter bumped by every successful mutation.
func (s *state) Version() uint64 { return s.version }

// Node returns the node with the given id.
func (s *state) Node(id string) (*node.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Has reports whether a node with the given id exists.
func (s *state) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// NodeCount returns the number of nodes.
func (s *state) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of edges.
func (s *state) EdgeCount() int { return len(s.incoming) }

// Nodes returns all nodes sorted by id.
func (s *state) Nodes() []*node.Node {
	nodes := slices.Collect(maps.Values(s.nodes))
	slices.SortFunc(nodes, func(a, b *node.Node) int { return cmp.Compare(a.ID, b.ID) })
	return nodes
}

// Edges returns all edges sorted by destination then source.
func (s *state) Edges() []Edge {
	edges := slices.Collect(maps.Values(s.incoming))
	slices.SortFunc(edges, compareEdges)
	return edges
}

func compareEdges(a, b Edge) int {
	return cmp.Or(
		cmp.Compare(a.To.Node, b.To.Node),
		cmp.Compare(a.To.Port, b.To.Port),
		cmp.Compare(a.From.Node, b.From.Node),
		cmp.Compare(a.From.Port, b.From.Port),
	)
}

// EdgeInto returns the edge feeding input port to, if any.
func (s *state) EdgeInto(to PortRef) (Edge, bool) {
	e, ok := s.incoming[to]
	return e, ok
}

// Upstream returns the ids of nodes feeding id directly, sorted.
func (s *state) Upstream(id string) []string {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	for i := 0; i < n.NumInputs(); i++ {
		if e, ok := s.incoming[PortRef{Node: id, Port: i}]; ok {
			seen[e.From.Node] = true
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Downstream returns the ids of nodes fed directly by id, sorted.
func (s *state) Downstream(id string) []string {
	seen := make(map[string]bool)
	for _, to := range s.outgoing[id] {
		seen[to.Node] = true
	}
	return slices.Sorted(maps.Keys(seen))
}

// Input resolves an input port by node id and port name.
func (s *state) Input(id, name string) (PortRef, error) {
	n, ok := s.nodes[id]
	if !ok {
		return PortRef{}, fgerrors.New(fgerrors.ErrCodeLookup, "node %s not found", id)
	}
	i, err := n.InputIndex(name)
	if err != nil {
		return PortRef{}, err
	}
	return PortRef{Node: id, Port: i}, nil
}

// Output resolves an output port by node id and port name.
func (s *state) Output(id, name string) (PortRef, error) {
	n, ok := s.nodes[id]
	if !ok {
		return PortRef{}, fgerrors.New(fgerrors.ErrCodeLookup, "node %s not found", id)
	}
	i, err := n.OutputIndex(name)
	if err != nil {
		return PortRef{}, err
	}
	return PortRef{Node: id, Port: i}, nil
}

func (s *state) inputSpec(ref PortRef) (node.PortSpec, error) {
	n, ok := s.nodes[ref.Node]
	if !ok {
		return node.PortSpec{}, fgerrors.New(fgerrors.ErrCodeLookup, "node %s not found", ref.Node)
	}
	return n.Input(ref.Port)
}

func (s *state) outputSpec(ref PortRef) (node.PortSpec, error) {
	n, ok := s.nodes[ref.Node]
	if !ok {
		return node.PortSpec{}, fgerrors.New(fgerrors.ErrCodeLookup, "node %s not found", ref.Node)
	}
	return n.Output(ref.Port)
}

// Sources returns nodes with no connected inputs, sorted by id.
func (s *state) Sources() []*node.Node {
	var out []*node.Node
	for _, n := range s.Nodes() {
		if len(s.Upstream(n.ID)) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Sinks returns nodes whose outputs feed nothing, sorted by id.
func (s *state) Sinks() []*node.Node {
	var out []*node.Node
	for _, n := range s.Nodes() {
		if len(s.outgoing[n.ID]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// TopologicalOrder returns node ids such that every edge goes from an
// earlier to a later id. Ties are broken by id for deterministic output.
func (s *state) TopologicalOrder() []string {
	indeg := make(map[string]int, len(s.nodes))
	for id := range s.nodes {
		indeg[id] = len(s.Upstream(id))
	}
	var ready []string
	for id, d := range indeg {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(s.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, child := range s.Downstream(id) {
			indeg[child]--
			if indeg[child] == 0 {
				ready = append(ready, child)
				slices.Sort(ready)
			}
		}
	}
	return order
}

// Validate checks graph integrity and returns nil if valid.
// It verifies that every edge connects existing, type-compatible ports and
// that the graph is acyclic. Mutations maintain these invariants, so a
// failure here indicates corruption.
//
// Cycle detection runs in O(N+E) time using depth-first search.
func (s *state) Validate() error {
	for _, e := range s.incoming {
		src, err := s.outputSpec(e.From)
		if err != nil {
			return fgerrors.Wrap(fgerrors.ErrCodeInternal, err, "invalid edge endpoint %s", e.From)
		}
		dst, err := s.inputSpec(e.To)
		if err != nil {
			return fgerrors.Wrap(fgerrors.ErrCodeInternal, err, "invalid edge endpoint %s", e.To)
		}
		if !node.Compatible(src.Type, dst.Type) {
			return fgerrors.New(fgerrors.ErrCodeTypeMismatch, "edge %s -> %s has incompatible types", e.From, e.To)
		}
	}
	return s.detectCycles()
}

func (s *state) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(s.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range s.Downstream(id) {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
				return
			}
		}
		color[id] = black
	}

	for id := range s.nodes {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return fgerrors.New(fgerrors.ErrCodeCycle, "graph contains a cycle")
			}
		}
	}
	return nil
}

// Snapshot is an immutable, versioned view of a graph taken at one point in
// time. It is safe for concurrent readers and is what evaluation passes
// operate on.
type Snapshot struct {
	state
}

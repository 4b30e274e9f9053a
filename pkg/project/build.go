package project

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/graph"
	"github.com/matzehuels/framegraph/pkg/node"
)

// Index maps document node names to graph node ids.
type Index map[string]string

// Name returns the document name of node id.
func (ix Index) Name(id string) (string, bool) {
	for name, nid := range ix {
		if nid == id {
			return name, true
		}
	}
	return "", false
}

// Build creates a graph from doc, resolving node types through reg. Each
// node's label is set to its document name.
//
// Errors are INVALID_DOCUMENT wrapping the underlying cause, so
// errors.Is(err, errors.ErrCodeCycle) and similar still work. Nothing is
// returned on error.
func Build(doc *Document, reg *node.Registry) (*graph.Graph, Index, error) {
	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}

	g := graph.New()
	index := make(Index, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		n, err := reg.Create(nd.Type)
		if err != nil {
			return nil, nil, fgerrors.Wrap(fgerrors.ErrCodeInvalidDocument, err, "node %q", nd.Name)
		}
		n.Label = nd.Name
		if n, err = applyParams(n, nd); err != nil {
			return nil, nil, err
		}
		id, err := g.AddNode(n)
		if err != nil {
			return nil, nil, fgerrors.Wrap(fgerrors.ErrCodeInvalidDocument, err, "node %q", nd.Name)
		}
		index[nd.Name] = id
	}

	for _, e := range doc.Edges {
		from, to, err := e.parse()
		if err != nil {
			return nil, nil, err
		}
		src, err := g.Output(index[from.Node], from.Port)
		if err != nil {
			return nil, nil, fgerrors.Wrap(fgerrors.ErrCodeInvalidDocument, err, "edge %s -> %s", e.From, e.To)
		}
		dst, err := g.Input(index[to.Node], to.Port)
		if err != nil {
			return nil, nil, fgerrors.Wrap(fgerrors.ErrCodeInvalidDocument, err, "edge %s -> %s", e.From, e.To)
		}
		if n, _ := g.Node(dst.Node); hasLiteral(n, dst.Port) {
			return nil, nil, fgerrors.New(fgerrors.ErrCodeInvalidDocument, "input %s has both an edge and a param", to)
		}
		if err := g.ConnectEdge(src, dst); err != nil {
			return nil, nil, fgerrors.Wrap(fgerrors.ErrCodeInvalidDocument, err, "edge %s -> %s", e.From, e.To)
		}
	}
	return g, index, nil
}

func hasLiteral(n *node.Node, port int) bool {
	_, ok := n.Literal(port)
	return ok
}

func applyParams(n *node.Node, nd NodeDoc) (*node.Node, error) {
	for _, name := range slices.Sorted(maps.Keys(nd.Params)) {
		i, err := n.InputIndex(name)
		if err != nil {
			return nil, fgerrors.Wrap(fgerrors.ErrCodeInvalidDocument, err, "node %q", nd.Name)
		}
		spec, _ := n.Input(i)
		v, err := DecodeParam(nd.Params[name], spec.Type)
		if err != nil {
			return nil, fgerrors.Wrap(fgerrors.ErrCodeInvalidDocument, err, "node %q param %q", nd.Name, name)
		}
		if n, err = n.WithLiteral(i, v); err != nil {
			return nil, fgerrors.Wrap(fgerrors.ErrCodeInvalidDocument, err, "node %q param %q", nd.Name, name)
		}
	}
	return n, nil
}

// View is the read-only graph interface Export needs. Both *graph.Graph
// and *graph.Snapshot satisfy it.
type View interface {
	Nodes() []*node.Node
	Node(id string) (*node.Node, bool)
	Edges() []graph.Edge
	TopologicalOrder() []string
}

// Export converts a graph into a document called name. Node labels become
// node names when they are valid and unique; other nodes are named after
// their type ("blur", "blur_2", ...). Nodes are ordered by depth from the
// sources, then by name, so exporting the same structure twice yields the
// same document.
func Export(g View, name string) *Document {
	doc := &Document{Version: FormatVersion, Name: name}
	names := make(map[string]string)
	used := make(map[string]bool)
	order := g.TopologicalOrder()
	depth := depths(g, order)
	nodeDepth := make(map[string]int, len(order))

	for _, id := range order {
		n, _ := g.Node(id)
		nm := n.Label
		if fgerrors.ValidateName(nm) != nil || used[nm] {
			nm = uniqueName(n.Type, used)
		}
		used[nm] = true
		names[id] = nm

		nd := NodeDoc{Name: nm, Type: n.Type}
		for i, spec := range n.Inputs() {
			v, ok := n.Literal(i)
			if !ok {
				continue
			}
			raw, ok := EncodeParam(v)
			if !ok {
				continue
			}
			if nd.Params == nil {
				nd.Params = make(map[string]any)
			}
			nd.Params[spec.Name] = raw
		}
		doc.Nodes = append(doc.Nodes, nd)
		nodeDepth[nm] = depth[id]
	}
	slices.SortStableFunc(doc.Nodes, func(a, b NodeDoc) int {
		return cmp.Or(cmp.Compare(nodeDepth[a.Name], nodeDepth[b.Name]), cmp.Compare(a.Name, b.Name))
	})

	for _, e := range g.Edges() {
		src, _ := g.Node(e.From.Node)
		dst, _ := g.Node(e.To.Node)
		out, err := src.Output(e.From.Port)
		if err != nil {
			continue
		}
		in, err := dst.Input(e.To.Port)
		if err != nil {
			continue
		}
		doc.Edges = append(doc.Edges, EdgeDoc{
			From: Endpoint{Node: names[src.ID], Port: out.Name}.String(),
			To:   Endpoint{Node: names[dst.ID], Port: in.Name}.String(),
		})
	}
	slices.SortFunc(doc.Edges, func(a, b EdgeDoc) int {
		return cmp.Or(cmp.Compare(a.To, b.To), cmp.Compare(a.From, b.From))
	})
	return doc
}

// depths returns the longest distance of each node from a source.
func depths(g View, order []string) map[string]int {
	d := make(map[string]int, len(order))
	incoming := make(map[string][]string)
	for _, e := range g.Edges() {
		incoming[e.To.Node] = append(incoming[e.To.Node], e.From.Node)
	}
	for _, id := range order {
		for _, up := range incoming[id] {
			d[id] = max(d[id], d[up]+1)
		}
	}
	return d
}

func uniqueName(typ string, used map[string]bool) string {
	base := typ
	if fgerrors.ValidateName(base) != nil {
		base = "node"
	}
	if !used[base] {
		return base
	}
	for i := 2; ; i++ {
		nm := base + "_" + strconv.Itoa(i)
		if !used[nm] {
			return nm
		}
	}
}

// Describe returns "name (type)" for node id, for messages.
func (ix Index) Describe(g View, id string) string {
	n, ok := g.Node(id)
	if !ok {
		return id
	}
	if name, ok := ix.Name(id); ok {
		return fmt.Sprintf("%s (%s)", name, n.Type)
	}
	return fmt.Sprintf("%s (%s)", n.DisplayName(), n.Type)
}

package node

import (
	"context"
	"slices"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
)

// Kind classifies how a node participates in a graph.
type Kind int

const (
	// KindGenerator produces values without upstream textures (solids, images).
	KindGenerator Kind = iota
	// KindFilter transforms a single texture (blur, invert, transform).
	KindFilter
	// KindCompositor combines several textures into one (merge).
	KindCompositor
	// KindOutput is a sink whose results are presented to an attached viewer.
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindGenerator:
		return "generator"
	case KindFilter:
		return "filter"
	case KindCompositor:
		return "compositor"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// PortSpec declares a port. Input ports may carry a Default used when the
// port has neither an incoming edge nor a literal; Optional inputs are simply
// omitted from [Inputs] in that case.
type PortSpec struct {
	Name     string
	Type     ValueType
	Default  Value
	Optional bool
}

// Evaluator is the single computation contract every node type implements.
// Inputs holds one resolved value per declared input (optional inputs may be
// absent). The returned Outputs must hold a value for every declared output.
type Evaluator interface {
	Evaluate(ctx context.Context, in Inputs) (Outputs, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, in Inputs) (Outputs, error)

// Evaluate calls f(ctx, in).
func (f EvaluatorFunc) Evaluate(ctx context.Context, in Inputs) (Outputs, error) { return f(ctx, in) }

// Node is a unit of computation with ordered, typed input and output ports.
//
// A Node is built with [New] (or a [Registry]) and handed to a graph, which
// assigns its ID and owns it from then on. Literal values set on inputs are
// held by the node; edges are held by the graph.
//
// Nodes owned by a graph are treated as immutable: mutations produce a new
// copy via [Node.WithLiteral], so snapshots taken earlier remain valid.
type Node struct {
	ID      string // Assigned by the graph
	Type    string // Registered type name (e.g. "solid")
	Kind    Kind
	Label   string // Optional display/document name
	Version uint64 // Bumped by the graph whenever a literal changes

	inputs   []PortSpec
	outputs  []PortSpec
	literals []Value
	impl     Evaluator
}

// New creates an unattached node. Port names must be unique per direction.
func New(typ string, kind Kind, inputs, outputs []PortSpec, impl Evaluator) (*Node, error) {
	if impl == nil {
		return nil, fgerrors.New(fgerrors.ErrCodeInvalidInput, "node type %q has no evaluator", typ)
	}
	if err := checkPorts(typ, inputs); err != nil {
		return nil, err
	}
	if err := checkPorts(typ, outputs); err != nil {
		return nil, err
	}
	for _, p := range inputs {
		if p.Default.IsSet() && p.Default.Type() != p.Type {
			return nil, fgerrors.New(fgerrors.ErrCodeTypeMismatch,
				"node type %q: default for input %q is %s, want %s", typ, p.Name, p.Default.Type(), p.Type)
		}
	}
	return &Node{
		Type:     typ,
		Kind:     kind,
		inputs:   slices.Clone(inputs),
		outputs:  slices.Clone(outputs),
		literals: make([]Value, len(inputs)),
		impl:     impl,
	}, nil
}

func checkPorts(typ string, ports []PortSpec) error {
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if p.Name == "" {
			return fgerrors.New(fgerrors.ErrCodeInvalidInput, "node type %q: port name must not be empty", typ)
		}
		if p.Type == TypeInvalid {
			return fgerrors.New(fgerrors.ErrCodeInvalidInput, "node type %q: port %q has no type", typ, p.Name)
		}
		if seen[p.Name] {
			return fgerrors.New(fgerrors.ErrCodeInvalidInput, "node type %q: duplicate port %q", typ, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Inputs returns a copy of the node's input port declarations.
func (n *Node) Inputs() []PortSpec { return slices.Clone(n.inputs) }

// Outputs returns a copy of the node's output port declarations.
func (n *Node) Outputs() []PortSpec { return slices.Clone(n.outputs) }

// NumInputs returns the number of input ports.
func (n *Node) NumInputs() int { return len(n.inputs) }

// NumOutputs returns the number of output ports.
func (n *Node) NumOutputs() int { return len(n.outputs) }

// Input returns the input port at index i.
func (n *Node) Input(i int) (PortSpec, error) {
	if i < 0 || i >= len(n.inputs) {
		return PortSpec{}, fgerrors.New(fgerrors.ErrCodeLookup, "node %s has no input #%d", n.name(), i)
	}
	return n.inputs[i], nil
}

// Output returns the output port at index i.
func (n *Node) Output(i int) (PortSpec, error) {
	if i < 0 || i >= len(n.outputs) {
		return PortSpec{}, fgerrors.New(fgerrors.ErrCodeLookup, "node %s has no output #%d", n.name(), i)
	}
	return n.outputs[i], nil
}

// InputIndex returns the index of the input port called name.
func (n *Node) InputIndex(name string) (int, error) {
	for i, p := range n.inputs {
		if p.Name == name {
			return i, nil
		}
	}
	return -1, fgerrors.New(fgerrors.ErrCodeLookup, "node %s has no input %q", n.name(), name)
}

// OutputIndex returns the index of the output port called name.
func (n *Node) OutputIndex(name string) (int, error) {
	for i, p := range n.outputs {
		if p.Name == name {
			return i, nil
		}
	}
	return -1, fgerrors.New(fgerrors.ErrCodeLookup, "node %s has no output %q", n.name(), name)
}

// Literal returns the literal set on input i, if any.
func (n *Node) Literal(i int) (Value, bool) {
	if i < 0 || i >= len(n.literals) {
		return Value{}, false
	}
	v := n.literals[i]
	return v, v.IsSet()
}

// WithLiteral returns a copy of n with the literal on input i replaced by v.
// An unset v clears the literal. The receiver is not modified.
func (n *Node) WithLiteral(i int, v Value) (*Node, error) {
	p, err := n.Input(i)
	if err != nil {
		return nil, err
	}
	if v.IsSet() && v.Type() != p.Type {
		return nil, fgerrors.New(fgerrors.ErrCodeTypeMismatch,
			"input %q of node %s is %s, got %s", p.Name, n.name(), p.Type, v.Type())
	}
	c := n.Clone()
	c.literals[i] = v
	c.Version++
	return c, nil
}

// Clone returns a copy of n sharing the evaluator and port declarations.
func (n *Node) Clone() *Node {
	c := *n
	c.literals = slices.Clone(n.literals)
	return &c
}

// Evaluator returns the node's computation.
func (n *Node) Evaluator() Evaluator { return n.impl }

// IsOutput reports whether the node is a viewer sink.
func (n *Node) IsOutput() bool { return n.Kind == KindOutput }

// DisplayName returns the label if set, otherwise the ID, otherwise the type.
func (n *Node) DisplayName() string { return n.name() }

func (n *Node) name() string {
	switch {
	case n.Label != "":
		return n.Label
	case n.ID != "":
		return n.ID
	default:
		return n.Type
	}
}

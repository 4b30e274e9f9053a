package project

import (
	"fmt"
	"strings"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
)

// FormatVersion is the document version written by this package.
const FormatVersion = 1

// Document is the serialized form of a node graph.
type Document struct {
	Version int       `json:"version" yaml:"version" toml:"version" bson:"version"`
	Name    string    `json:"name" yaml:"name" toml:"name" bson:"name"`
	Nodes   []NodeDoc `json:"nodes" yaml:"nodes" toml:"nodes" bson:"nodes"`
	Edges   []EdgeDoc `json:"edges" yaml:"edges" toml:"edges" bson:"edges"`
}

// NodeDoc is one named node with its input literals.
type NodeDoc struct {
	Name   string         `json:"name" yaml:"name" toml:"name" bson:"name"`
	Type   string         `json:"type" yaml:"type" toml:"type" bson:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty" bson:"params,omitempty"`
}

// EdgeDoc connects an output to an input, each written "node.port".
type EdgeDoc struct {
	From string `json:"from" yaml:"from" toml:"from" bson:"from"`
	To   string `json:"to" yaml:"to" toml:"to" bson:"to"`
}

// Endpoint is a parsed "node.port" reference.
type Endpoint struct {
	Node string
	Port string
}

func (e Endpoint) String() string { return e.Node + "." + e.Port }

// ParseEndpoint splits "node.port". Node names cannot contain dots, so the
// first dot separates the two parts.
func ParseEndpoint(s string) (Endpoint, error) {
	node, port, ok := strings.Cut(s, ".")
	if !ok || node == "" || port == "" {
		return Endpoint{}, fgerrors.New(fgerrors.ErrCodeInvalidDocument, "endpoint %q must be of the form node.port", s)
	}
	return Endpoint{Node: node, Port: port}, nil
}

// Node returns the node called name.
func (d *Document) Node(name string) (NodeDoc, bool) {
	for _, n := range d.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeDoc{}, false
}

// Validate checks the document's shape without resolving node types:
// version, unique valid node names, and well-formed edges between known
// nodes with at most one edge per input.
func (d *Document) Validate() error {
	if d.Version > FormatVersion {
		return fgerrors.New(fgerrors.ErrCodeUnsupported, "document version %d is newer than supported version %d", d.Version, FormatVersion)
	}
	names := make(map[string]bool, len(d.Nodes))
	for i, n := range d.Nodes {
		if err := fgerrors.ValidateName(n.Name); err != nil {
			return fgerrors.Wrap(fgerrors.ErrCodeInvalidDocument, err, "node %d", i)
		}
		if names[n.Name] {
			return fgerrors.New(fgerrors.ErrCodeInvalidDocument, "duplicate node name %q", n.Name)
		}
		if n.Type == "" {
			return fgerrors.New(fgerrors.ErrCodeInvalidDocument, "node %q has no type", n.Name)
		}
		names[n.Name] = true
	}

	inputs := make(map[Endpoint]bool, len(d.Edges))
	for _, e := range d.Edges {
		from, to, err := e.parse()
		if err != nil {
			return err
		}
		for _, ep := range []Endpoint{from, to} {
			if !names[ep.Node] {
				return fgerrors.New(fgerrors.ErrCodeInvalidDocument, "edge %s -> %s references unknown node %q", e.From, e.To, ep.Node)
			}
		}
		if inputs[to] {
			return fgerrors.New(fgerrors.ErrCodeInvalidDocument, "input %s has more than one edge", to)
		}
		inputs[to] = true
	}
	return nil
}

func (e EdgeDoc) parse() (from, to Endpoint, err error) {
	if from, err = ParseEndpoint(e.From); err != nil {
		return
	}
	to, err = ParseEndpoint(e.To)
	return
}

// String returns a one-line summary.
func (d *Document) String() string {
	return fmt.Sprintf("%s (%d nodes, %d edges)", d.Name, len(d.Nodes), len(d.Edges))
}

// Package node defines the node and port model of a framegraph graph.
//
// A [Node] is a unit of computation with ordered, typed input and output
// ports. Every node type implements a single [Evaluator] contract: given the
// resolved [Inputs], produce [Outputs]. Node types are grouped into a small
// closed set of [Kind]s (generator, filter, compositor, output) and
// instantiated by name through a [Registry].
//
// # Ports and Values
//
// Ports are declared with a [PortSpec] and addressed by stable index or by
// name; looking up an unknown name fails with a LOOKUP error. Values flowing
// through ports are tagged [Value]s (texture, scalar, string, color) and two
// ports can only be connected when their declared types are [Compatible].
//
// An input port is fed by exactly one of: an incoming edge (held by the
// graph), a literal set on the node, or the port's declared default.
//
// # Immutability
//
// Nodes owned by a graph are never modified in place. [Node.WithLiteral]
// returns a modified copy with a bumped [Node.Version], which lets the graph
// hand out cheap copy-on-write snapshots to concurrent evaluation passes.
package node

// Package graph provides the node graph: an arena of nodes indexed by stable
// id, plus the typed edges between their ports.
//
// # Overview
//
// A [Graph] owns every node added to it. Edges are stored as plain
// (source node, output index, destination node, input index) tuples rather
// than pointers, so removing a node can never leave a dangling reference.
//
// # Basic Usage
//
//	g := graph.New()
//	solidID, _ := g.AddNode(solid)
//	viewerID, _ := g.AddNode(viewer)
//	out, _ := g.Output(solidID, "texture")
//	in, _ := g.Input(viewerID, "texture")
//	if err := g.ConnectEdge(out, in); err != nil {
//	    // LOOKUP, TYPE_MISMATCH or CYCLE
//	}
//
// # Invariants
//
//   - Every input port has at most one incoming edge; connecting again replaces it.
//   - Connected ports have compatible declared types.
//   - The edge set is acyclic. Before an edge is committed, a reachability
//     search runs forward from the destination node; if the source is
//     reachable the edge is rejected with a CYCLE error. The search only
//     touches the downstream region of the destination, keeping interactive
//     edits fast on large graphs.
//   - Every mutation is all-or-nothing.
//
// # Snapshots
//
// [Graph.Snapshot] returns an immutable, versioned [Snapshot]. Nodes are
// copy-on-write (see [node.Node.WithLiteral]), so a snapshot costs one copy
// of the index maps and is safe to evaluate concurrently with later edits.
//
// # Concurrency
//
// Graph instances are not safe for concurrent use. The engine package owns a
// Graph from a single goroutine; snapshots can be read from any goroutine.
package graph

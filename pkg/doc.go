// Package pkg provides the libraries behind framegraph, an on-demand
// evaluator for image-processing node graphs.
//
// # Overview
//
// A graph is a set of nodes (generators, filters, compositors and viewer
// outputs) whose typed ports are connected by edges. Evaluating a viewer
// computes exactly the nodes upstream of it, each once per pass, and hands
// the resulting frame to whatever display is attached to the viewer.
//
//  1. [node] - Ports, values, the Evaluator contract and the type registry
//  2. [nodes] - Built-in node types (solid, image, blur, merge, viewer, ...)
//  3. [graph] - The acyclic node graph and its immutable snapshots
//  4. [eval] - Demand-driven evaluation passes with per-pass memoization
//  5. [engine] - A single goroutine owning a graph, serving mutations and passes
//  6. [viewer] - Attachments from viewer nodes to display sinks
//  7. [project] - Project documents (JSON, YAML, TOML) and graph conversion
//  8. [store] - Project persistence (file, memory, Redis, MongoDB)
//  9. [dot] - Graphviz export
//
// # Architecture
//
//	project document (file or store)
//	         ↓
//	    [project.Build] (graph + name index)
//	         ↓
//	    [engine] (mutations, snapshots)
//	         ↓
//	    [eval] (pass over a snapshot)
//	         ↓
//	    [viewer] sinks (files, channels, HTTP responses)
//
// # Quick Start
//
//	doc, _ := project.ReadFile("poster.yaml")
//	g, ix, _ := project.Build(doc, nodes.Default())
//
//	eng := engine.New(engine.Options{Graph: g})
//	defer eng.Close()
//
//	_ = eng.Attach(ctx, ix["preview"], viewer.FileSink{Path: "{node}.png"})
//	res, err := eng.Render(ctx, ix["preview"])
//
// [node]: github.com/matzehuels/framegraph/pkg/node
// [nodes]: github.com/matzehuels/framegraph/pkg/nodes
// [graph]: github.com/matzehuels/framegraph/pkg/graph
// [eval]: github.com/matzehuels/framegraph/pkg/eval
// [engine]: github.com/matzehuels/framegraph/pkg/engine
// [viewer]: github.com/matzehuels/framegraph/pkg/viewer
// [project]: github.com/matzehuels/framegraph/pkg/project
// [project.Build]: github.com/matzehuels/framegraph/pkg/project#Build
// [store]: github.com/matzehuels/framegraph/pkg/store
// [dot]: github.com/matzehuels/framegraph/pkg/dot
package pkg

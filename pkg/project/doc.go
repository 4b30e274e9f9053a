// Package project provides the document format for persisted node graphs.
//
// A [Document] names its nodes and refers to ports by name, so it stays
// readable and stable across sessions while the live graph uses generated
// ids and port indices. Documents are exchanged as JSON, YAML or TOML and
// stored by the store package.
//
// # Format
//
//	name: poster
//	nodes:
//	  - name: bg
//	    type: solid
//	    params: {color: "#202040", width: 640, height: 360}
//	  - name: soft
//	    type: blur
//	    params: {sigma: 2}
//	  - name: preview
//	    type: viewer
//	edges:
//	  - {from: bg.texture, to: soft.texture}
//	  - {from: soft.texture, to: preview.texture}
//
// Params set input literals and must match the declared port type:
// numbers for scalars, strings for strings, and for colors either a hex
// string ("#rgb", "#rrggbb", "#rrggbbaa"), an {r, g, b, a} map or a list
// of 3 or 4 channel values. Textures cannot be params.
//
// # Converting
//
//	doc, _ := project.ReadFile("poster.yaml")          // File → Document
//	g, index, _ := project.Build(doc, nodes.Default()) // Document → Graph
//	out := project.Export(g.Snapshot(), "poster")      // Graph → Document
//	project.WriteFile("poster.toml", out)              // Document → File
//
// # Concurrency
//
// All functions are safe for concurrent use on distinct documents.
package project

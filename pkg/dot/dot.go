// Package dot exports node graphs as Graphviz DOT and renders them with
// go-graphviz.
package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/framegraph/pkg/graph"
	"github.com/matzehuels/framegraph/pkg/node"
)

// Options configures DOT output.
type Options struct {
	// Detailed adds input literals to node labels.
	Detailed bool

	// Highlight marks one node (typically the failing node of an
	// evaluation) with a red outline.
	Highlight string
}

// View is the read-only graph interface ToDOT needs. Both *graph.Graph and
// *graph.Snapshot satisfy it.
type View interface {
	Nodes() []*node.Node
	Node(id string) (*node.Node, bool)
	Edges() []graph.Edge
}

var kindColors = map[node.Kind]string{
	node.KindGenerator:  "#e3f2fd",
	node.KindFilter:     "#f1f8e9",
	node.KindCompositor: "#fff3e0",
	node.KindOutput:     "#fce4ec",
}

// ToDOT converts a graph to DOT. Nodes are drawn as records with one field
// per port so edges attach to the ports they connect.
func ToDOT(g View, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=record, style=\"rounded,filled\", fontsize=12];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		attrs := []string{
			`label="` + recordLabel(n, opts.Detailed) + `"`,
			fmt.Sprintf("fillcolor=%q", kindColors[n.Kind]),
		}
		if n.ID == opts.Highlight {
			attrs = append(attrs, "color=red", "penwidth=2")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q:o%d -> %q:i%d;\n", e.From.Node, e.From.Port, e.To.Node, e.To.Port)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// recordLabel builds "{{<i0> a|<i1> b}|title|{<o0> out}}". The result is
// already escaped for use inside a quoted DOT string.
func recordLabel(n *node.Node, detailed bool) string {
	var ins, outs []string
	for i, p := range n.Inputs() {
		field := escape(p.Name)
		if detailed {
			if v, ok := n.Literal(i); ok {
				field += "=" + escape(v.String())
			}
		}
		ins = append(ins, fmt.Sprintf("<i%d> %s", i, field))
	}
	for i, p := range n.Outputs() {
		outs = append(outs, fmt.Sprintf("<o%d> %s", i, escape(p.Name)))
	}

	title := escape(n.Type)
	if n.Label != "" {
		title = escape(n.Label) + `\n` + title
	}

	parts := make([]string, 0, 3)
	if len(ins) > 0 {
		parts = append(parts, "{"+strings.Join(ins, "|")+"}")
	}
	parts = append(parts, title)
	if len(outs) > 0 {
		parts = append(parts, "{"+strings.Join(outs, "|")+"}")
	}
	return "{" + strings.Join(parts, "|") + "}"
}

var recordSpecial = strings.NewReplacer(
	`{`, `\{`, `}`, `\}`, `|`, `\|`, `<`, `\<`, `>`, `\>`, `"`, `\"`,
)

func escape(s string) string { return recordSpecial.Replace(s) }

// Format is an output format supported by Render.
type Format = graphviz.Format

// Render formats.
const (
	SVG = graphviz.SVG
	PNG = graphviz.PNG
)

// Render lays out a DOT graph with Graphviz and encodes it in format.
func Render(ctx context.Context, dot string, format Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderSVG renders a DOT graph to SVG with a normalized viewBox.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	svg, err := Render(ctx, dot, SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(svg), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

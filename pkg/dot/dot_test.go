package dot

import (
	"bytes"
	"context"
	"image/color"
	"strings"
	"testing"

	"github.com/matzehuels/framegraph/pkg/graph"
	"github.com/matzehuels/framegraph/pkg/node"
	"github.com/matzehuels/framegraph/pkg/nodes"
)

func sampleGraph(t *testing.T) (*graph.Graph, string, string) {
	t.Helper()
	g := graph.New()
	s, err := nodes.Default().Create(nodes.TypeSolid)
	if err != nil {
		t.Fatal(err)
	}
	s.Label = "bg"
	v, err := nodes.Default().Create(nodes.TypeViewer)
	if err != nil {
		t.Fatal(err)
	}
	sid, _ := g.AddNode(s)
	vid, _ := g.AddNode(v)
	if err := g.SetLiteral(graph.PortRef{Node: sid, Port: 0}, node.Color(color.NRGBA{R: 255, A: 255})); err != nil {
		t.Fatal(err)
	}
	if err := g.ConnectEdge(graph.PortRef{Node: sid}, graph.PortRef{Node: vid}); err != nil {
		t.Fatal(err)
	}
	return g, sid, vid
}

func TestToDOT(t *testing.T) {
	g, sid, vid := sampleGraph(t)
	out := ToDOT(g.Snapshot(), Options{})

	for _, want := range []string{
		"digraph G {",
		`"` + sid + `":o0 -> "` + vid + `":i0;`,
		`bg\nsolid`,
		`<i0> color`,
		`<o0> texture`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "#ff0000ff") {
		t.Error("literals should only appear in detailed mode")
	}
}

func TestToDOTDetailedAndHighlight(t *testing.T) {
	g, sid, _ := sampleGraph(t)
	out := ToDOT(g, Options{Detailed: true, Highlight: sid})

	if !strings.Contains(out, "color=#ff0000ff") {
		t.Errorf("detailed DOT should show literals:\n%s", out)
	}
	if !strings.Contains(out, "penwidth=2") {
		t.Error("highlighted node should be outlined")
	}
}

func TestEscape(t *testing.T) {
	if got := escape(`a|b{c}<d>"e"`); got != `a\|b\{c\}\<d\>\"e\"` {
		t.Errorf("escape = %s", got)
	}
}

func TestRenderSVG(t *testing.T) {
	g, _, _ := sampleGraph(t)
	svg, err := RenderSVG(context.Background(), ToDOT(g, Options{}))
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("output is not SVG")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 0.00 10.00 20.00" xmlns="x"><g/></svg>`)
	out := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10.00 20.00" width="10" height="20"><g/></svg>`
	if out != want {
		t.Errorf("got  %s\nwant %s", out, want)
	}
}

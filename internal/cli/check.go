package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framegraph/pkg/eval"
	"github.com/matzehuels/framegraph/pkg/graph"
	"github.com/matzehuels/framegraph/pkg/nodes"
	"github.com/matzehuels/framegraph/pkg/project"
)

// checkCommand creates the check command for validating projects.
func (c *CLI) checkCommand() *cobra.Command {
	var evaluate bool

	cmd := &cobra.Command{
		Use:   "check <project>",
		Short: "Validate a project (types, cycles, dangling references)",
		Long: `Check loads a project and builds its graph, which rejects unknown node
types, mismatched port types, cycles and edges to missing nodes or ports.
It then reports required inputs that are neither connected nor set.

With --eval every viewer is also evaluated, without writing any output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(cmd.Context(), cmd.OutOrStdout(), args[0], evaluate)
		},
		ValidArgsFunction: c.completeProject,
	}

	cmd.Flags().BoolVar(&evaluate, "eval", false, "also evaluate every viewer")

	return cmd
}

func (c *CLI) runCheck(ctx context.Context, w io.Writer, ref string, evaluate bool) error {
	doc, err := c.loadProject(ctx, ref)
	if err != nil {
		return err
	}
	g, ix, err := project.Build(doc, nodes.Default())
	if err != nil {
		printError(w, "%s: %s", doc.Name, describeError(err, nil))
		return err
	}
	snap := g.Snapshot()

	viewers := 0
	for _, n := range snap.Nodes() {
		if n.IsOutput() {
			viewers++
		}
	}

	dangling := unsetInputs(snap, ix)
	for _, msg := range dangling {
		printWarning(w, "%s", msg)
	}

	if evaluate {
		ev := eval.New(c.evalOptions())
		ctx, cancel := c.evalContext(ctx)
		defer cancel()
		for _, nd := range doc.Nodes {
			n, _ := snap.Node(ix[nd.Name])
			if !n.IsOutput() {
				continue
			}
			res, err := ev.Evaluate(ctx, snap, graph.PortRef{Node: n.ID})
			if err != nil {
				printError(w, "%s: %s", nd.Name, describeError(err, ix))
				return err
			}
			printDetail(w, "%s: %s", nd.Name, res.Stats)
		}
	}

	printSuccess(w, "%s is valid", StyleTitle.Render(doc.Name))
	printStats(w, snap.NodeCount(), snap.EdgeCount(), viewers)
	if viewers > 0 && !evaluate {
		printNextStep(w, "Render it with", "framegraph render "+ref)
	}
	return nil
}

// unsetInputs describes every required input with no edge, literal or
// default. Evaluating a node downstream of one fails with UNCONNECTED_INPUT.
func unsetInputs(snap *graph.Snapshot, ix project.Index) []string {
	var out []string
	for _, nd := range snap.Nodes() {
		for i, p := range nd.Inputs() {
			if p.Optional || p.Default.IsSet() {
				continue
			}
			if _, ok := nd.Literal(i); ok {
				continue
			}
			if _, ok := snap.EdgeInto(graph.PortRef{Node: nd.ID, Port: i}); ok {
				continue
			}
			out = append(out, fmt.Sprintf("input %s.%s is not connected", ix.Describe(snap, nd.ID), p.Name))
		}
	}
	return out
}

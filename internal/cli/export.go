package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framegraph/pkg/dot"
	"github.com/matzehuels/framegraph/pkg/nodes"
	"github.com/matzehuels/framegraph/pkg/project"
)

// dotOpts holds the command-line flags for the dot command.
type dotOpts struct {
	output   string // output file; empty writes to stdout
	svg      bool   // render SVG instead of emitting DOT
	detailed bool   // show input literals in node labels
}

// dotCommand creates the dot command for exporting project graphs.
func (c *CLI) dotCommand() *cobra.Command {
	var opts dotOpts

	cmd := &cobra.Command{
		Use:   "dot <project>",
		Short: "Export a project graph as Graphviz DOT or SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDot(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
		ValidArgsFunction: c.completeProject,
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.svg, "svg", false, "render SVG with Graphviz")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show input values in node labels")

	return cmd
}

func (c *CLI) runDot(ctx context.Context, w io.Writer, ref string, opts dotOpts) error {
	doc, err := c.loadProject(ctx, ref)
	if err != nil {
		return err
	}
	data, err := exportDOT(ctx, doc, opts.svg, opts.detailed)
	if err != nil {
		return err
	}

	if opts.output == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printSuccess(w, "Exported %s", doc.Name)
	printFile(w, opts.output)
	return nil
}

// exportDOT builds doc and returns its DOT source, or the rendered SVG.
func exportDOT(ctx context.Context, doc *project.Document, svg, detailed bool) ([]byte, error) {
	g, _, err := project.Build(doc, nodes.Default())
	if err != nil {
		return nil, err
	}
	src := dot.ToDOT(g, dot.Options{Detailed: detailed})
	if !svg {
		return []byte(src), nil
	}
	return dot.RenderSVG(ctx, src)
}

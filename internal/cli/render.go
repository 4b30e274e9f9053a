package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framegraph/pkg/engine"
	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/eval"
	"github.com/matzehuels/framegraph/pkg/graph"
	"github.com/matzehuels/framegraph/pkg/nodes"
	"github.com/matzehuels/framegraph/pkg/project"
	"github.com/matzehuels/framegraph/pkg/viewer"
)

// defaultOutput writes one PNG per viewer into the working directory.
const defaultOutput = "{node}.png"

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	viewers []string // viewer names to render; empty renders all
	output  string   // output path; "{node}" is replaced by the viewer name
	pick    bool     // choose viewers interactively

	in     io.Reader // picker input
	status io.Writer // spinner and picker output
}

// renderCommand creates the render command for evaluating viewer nodes.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{output: defaultOutput}

	cmd := &cobra.Command{
		Use:   "render <project>",
		Short: "Evaluate viewer nodes and write their frames as images",
		Long: `Render loads a project (a file path or the name of a stored project),
evaluates each of its viewer nodes and writes what they show to image files.
The image format follows the extension of --out (png, jpg, gif, tif, bmp).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.in, opts.status = cmd.InOrStdin(), cmd.ErrOrStderr()
			return c.runRender(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
		ValidArgsFunction: c.completeProject,
	}

	cmd.Flags().StringSliceVar(&opts.viewers, "viewer", nil, "viewer node(s) to render (default: all)")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "choose the viewers to render interactively")
	cmd.MarkFlagsMutuallyExclusive("viewer", "pick")
	cmd.Flags().StringVarP(&opts.output, "out", "o", opts.output, `output path, "{node}" is replaced by the viewer name`)

	return cmd
}

func (c *CLI) runRender(ctx context.Context, w io.Writer, ref string, opts renderOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	doc, err := c.loadProject(ctx, ref)
	if err != nil {
		return err
	}
	g, ix, err := project.Build(doc, nodes.Default())
	if err != nil {
		return err
	}

	targets, err := selectViewers(g, doc, ix, opts.viewers)
	if err != nil {
		return err
	}
	if opts.pick {
		targets, err = pickViewers(NewViewerPickerModel(g.Snapshot(), ix, targets), opts.in, opts.status)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			printInfo(w, "Nothing to render")
			return nil
		}
	}
	if len(targets) > 1 && !strings.Contains(opts.output, "{node}") {
		return fgerrors.New(fgerrors.ErrCodeInvalidInput, "rendering %d viewers needs a {node} placeholder in --out", len(targets))
	}

	eng := engine.New(engine.Options{
		Graph:    g,
		Registry: nodes.Default(),
		Eval:     c.evalOptions(),
		Logger:   logger,
	})
	defer eng.Close()

	out := &fileOutputs{sink: viewer.FileSink{Path: opts.output}}
	for _, name := range targets {
		if err := eng.Attach(ctx, ix[name], out); err != nil {
			return err
		}
	}

	ctx, cancel := c.evalContext(ctx)
	defer cancel()

	printInfo(w, "Rendering %s", StyleTitle.Render(doc.Name))
	for _, name := range targets {
		res, err := c.evaluateViewer(ctx, eng, ix[name], name, opts.status)
		if err != nil {
			printError(w, "%s", describeError(err, ix))
			return err
		}
		printDetail(w, "%s: %s", name, res.Stats)
	}
	if err := out.err(); err != nil {
		return err
	}

	for _, path := range out.written() {
		printFile(w, path)
	}
	prog.done(fmt.Sprintf("Rendered %d viewer(s) of %s", len(targets), doc.Name))
	return nil
}

// selectViewers returns the document names of the viewers to render, in
// document order.
func selectViewers(g *graph.Graph, doc *project.Document, ix project.Index, want []string) ([]string, error) {
	var all []string
	for _, nd := range doc.Nodes {
		if n, ok := g.Node(ix[nd.Name]); ok && n.IsOutput() {
			all = append(all, nd.Name)
		}
	}
	if len(want) == 0 {
		if len(all) == 0 {
			return nil, fgerrors.New(fgerrors.ErrCodeInvalidInput, "project %s has no viewer nodes", doc.Name)
		}
		return all, nil
	}
	for _, name := range want {
		if _, ok := ix[name]; !ok {
			return nil, fgerrors.New(fgerrors.ErrCodeLookup, "project %s has no node %q", doc.Name, name)
		}
		if !slices.Contains(all, name) {
			return nil, fgerrors.New(fgerrors.ErrCodeInvalidInput, "node %q is not a viewer", name)
		}
	}
	return want, nil
}

// fileOutputs is the sink attached to every rendered viewer. It records
// written paths and write failures, which the engine only logs.
type fileOutputs struct {
	sink viewer.FileSink

	mu    sync.Mutex
	paths []string
	errs  []error
}

func (o *fileOutputs) Show(ctx context.Context, f viewer.Frame) error {
	err := o.sink.Show(ctx, f)
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.errs = append(o.errs, err)
		return err
	}
	o.paths = append(o.paths, o.sink.PathFor(f))
	return nil
}

func (o *fileOutputs) written() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.paths)
}

func (o *fileOutputs) err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.errs) == 0 {
		return nil
	}
	return o.errs[0]
}

// evaluateViewer evaluates one viewer with a spinner on status.
func (c *CLI) evaluateViewer(ctx context.Context, eng *engine.Engine, id, name string, status io.Writer) (*eval.Result, error) {
	if status == nil {
		return eng.Render(ctx, id)
	}
	spin := newSpinner(ctx, status, "Evaluating "+name)
	spin.Start()
	defer spin.Stop()
	return eng.Render(ctx, id)
}

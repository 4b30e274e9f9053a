package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framegraph/pkg/nodes"
	"github.com/matzehuels/framegraph/pkg/project"
	"github.com/matzehuels/framegraph/pkg/store"
)

// storeCommand creates the project store management command.
func (c *CLI) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage stored projects",
	}

	cmd.AddCommand(c.storeListCommand())
	cmd.AddCommand(c.storePutCommand())
	cmd.AddCommand(c.storeGetCommand())
	cmd.AddCommand(c.storeRemoveCommand())

	return cmd
}

// withStore opens the configured store for the duration of fn.
func (c *CLI) withStore(ctx context.Context, fn func(store.Store) error) (err error) {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()
	return fn(s)
}

// storeListCommand creates the "store ls" subcommand.
func (c *CLI) storeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, w := cmd.Context(), cmd.OutOrStdout()
			return c.withStore(ctx, func(s store.Store) error {
				names, err := s.List(ctx)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					printInfo(w, "No stored projects")
					printNextStep(w, "Store one with", "framegraph store put <file>")
					return nil
				}
				for _, name := range names {
					printInfo(w, "%s", name)
				}
				return nil
			})
		},
	}
}

// storePutCommand creates the "store put" subcommand.
func (c *CLI) storePutCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Validate a project file and save it to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, w := cmd.Context(), cmd.OutOrStdout()
			doc, err := project.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name != "" {
				doc.Name = name
			}
			return c.withStore(ctx, func(s store.Store) error {
				err := store.RetryWithBackoff(ctx, func() error { return s.Save(ctx, doc) })
				if err != nil {
					return err
				}
				printSuccess(w, "Saved %s", StyleTitle.Render(doc.Name))
				printStats(w, len(doc.Nodes), len(doc.Edges), countViewers(doc))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "store under this name (default: document name or file name)")

	return cmd
}

// storeGetCommand creates the "store get" subcommand.
func (c *CLI) storeGetCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := project.ParseFormat(format)
			if err != nil {
				return err
			}
			return c.withStore(ctx, func(s store.Store) error {
				doc, err := s.Load(ctx, args[0])
				if err != nil {
					return err
				}
				return project.Write(cmd.OutOrStdout(), doc, f)
			})
		},
		ValidArgsFunction: c.completeProject,
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(project.FormatYAML), "output format (json, yaml, toml)")

	return cmd
}

// storeRemoveCommand creates the "store rm" subcommand.
func (c *CLI) storeRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>...",
		Aliases: []string{"remove"},
		Short:   "Remove stored projects",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, w := cmd.Context(), cmd.OutOrStdout()
			return c.withStore(ctx, func(s store.Store) error {
				for _, name := range args {
					if err := s.Delete(ctx, name); err != nil {
						return err
					}
					printSuccess(w, "Removed %s", name)
				}
				return nil
			})
		},
		ValidArgsFunction: c.completeProjects,
	}
}

// countViewers counts the viewer nodes of doc without building it.
func countViewers(doc *project.Document) int {
	n := 0
	for _, nd := range doc.Nodes {
		if nd.Type == nodes.TypeViewer {
			n++
		}
	}
	return n
}


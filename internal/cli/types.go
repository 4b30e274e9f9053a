package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/framegraph/pkg/node"
	"github.com/matzehuels/framegraph/pkg/nodes"
)

// typesCommand creates the types command listing registered node types.
func (c *CLI) typesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the registered node types and their ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printTypes(cmd.OutOrStdout(), nodes.Default())
			return nil
		},
	}
}

func printTypes(w io.Writer, reg *node.Registry) {
	for i, typ := range reg.Types() {
		def, _ := reg.Lookup(typ)
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, StyleTitle.Render(def.Type)+" "+styleKind.Render(def.Kind.String()))
		if def.Description != "" {
			printDetail(w, "%s", def.Description)
		}
		printKeyValue(w, "  inputs", formatPorts(def.Inputs))
		printKeyValue(w, "  outputs", formatPorts(def.Outputs))
	}
}

// formatPorts renders "name:type" pairs; defaults are shown as name:type=value
// and optional ports get a trailing "?".
func formatPorts(ports []node.PortSpec) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		s := p.Name + ":" + p.Type.String()
		if p.Default.IsSet() {
			s += "=" + p.Default.String()
		}
		if p.Optional {
			s += "?"
		}
		parts[i] = s
	}
	return strings.Join(parts, " ")
}

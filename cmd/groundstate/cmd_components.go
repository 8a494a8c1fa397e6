package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seantiz/groundstate/internal/builtin"
	"github.com/seantiz/groundstate/internal/registry"
)

func newComponentsCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "components",
		Short: "List the registered components and their default parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := builtin.Registry()
			if err != nil {
				return err
			}

			var filter registry.Kind
			if kind != "" {
				if filter, err = registry.ParseKind(kind); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tNAME\tDEFAULT\tPARAMETERS\tDESCRIPTION")
			for _, info := range reg.List() {
				if filter != "" && info.Kind != filter {
					continue
				}
				def := ""
				if info.Default {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", info.Kind, info.Name, def, formatParams(info.Defaults), info.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only list components of this kind")
	return cmd
}

// formatParams renders parameters as sorted key=value pairs.
func formatParams(p registry.Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, " ")
}

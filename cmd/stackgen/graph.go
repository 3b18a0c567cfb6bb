package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleanserverless/stackgen/internal/graph"
)

func newGraphCmd(root *rootOptions) *cobra.Command {
	var (
		outputFormat    string
		clusterByTarget bool
		includeWildcard bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate DOT graph of the deployment graph",
		Long: `Generate a DOT or Mermaid graph of the table, bucket, API and functions
with their routes, grants and event subscriptions.

The output can be rendered with Graphviz:
    stackgen graph | dot -Tpng -o stack.png

Or used in GitHub markdown (Mermaid format):
    stackgen graph -f mermaid

Examples:
    stackgen graph
    stackgen graph -c              # cluster functions by runtime target
    stackgen graph -w              # draw wildcard grants`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var graphFormat graph.Format
			switch outputFormat {
			case "dot":
				graphFormat = graph.FormatDOT
			case "mermaid":
				graphFormat = graph.FormatMermaid
			default:
				return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", outputFormat)
			}

			_, g, err := loadGraph(root)
			if err != nil {
				return err
			}

			gen := &graph.Generator{
				Format:          graphFormat,
				ClusterByTarget: clusterByTarget,
				IncludeWildcard: includeWildcard,
			}
			return gen.Generate(g, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&clusterByTarget, "cluster", "c", false, "Cluster functions by runtime target")
	cmd.Flags().BoolVarP(&includeWildcard, "wildcard", "w", false, "Include grants scoped to every resource")

	return cmd
}

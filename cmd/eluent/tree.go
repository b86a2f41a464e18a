package main

import (
	"github.com/spf13/cobra"

	"github.com/eluent/eluent/internal/graph"
)

var (
	treeDepth   int
	treeMermaid bool
)

var treeCmd = &cobra.Command{
	Use:   "tree <ref>",
	Short: "Render the parent/child tree rooted at an atom",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRepo()
		if err != nil {
			return err
		}
		defer r.Close()

		nodes, err := r.Tree(args[0], treeDepth)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(nodes)
			return nil
		}
		if treeMermaid {
			cmd.Println(graph.RenderMermaid(nodes))
			return nil
		}
		cmd.Println(graph.RenderText(nodes))
		return nil
	},
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", 0, "maximum depth (0 = unlimited)")
	treeCmd.Flags().BoolVar(&treeMermaid, "mermaid", false, "render as a Mermaid diagram instead of text")
}

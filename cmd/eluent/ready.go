package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/eluent/eluent/internal/graph"
)

var (
	readyAssignee string
	readyLabelsAll []string
	readyLabelsAny []string
	readyParent    string
	readySort      string
	readyLimit     int
)

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List atoms that are ready to work on",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRepo()
		if err != nil {
			return err
		}
		defer r.Close()

		filter := graph.ReadyFilter{
			Assignee:      readyAssignee,
			LabelsAll:     readyLabelsAll,
			LabelsAny:     readyLabelsAny,
			ParentSubtree: readyParent,
			Limit:         readyLimit,
		}
		atoms := r.Ready(filter, graph.SortPolicy(readySort), time.Now().UTC())

		if jsonOutput {
			outputJSON(atoms)
			return nil
		}
		for _, a := range atoms {
			cmd.Printf("%s [p%d/%s] %s\n", a.ID, a.Priority, a.IssueType, a.Title)
		}
		return nil
	},
}

func init() {
	readyCmd.Flags().StringVar(&readyAssignee, "assignee", "", "filter by assignee")
	readyCmd.Flags().StringSliceVar(&readyLabelsAll, "label-all", nil, "require every listed label")
	readyCmd.Flags().StringSliceVar(&readyLabelsAny, "label-any", nil, "require at least one listed label")
	readyCmd.Flags().StringVar(&readyParent, "parent", "", "restrict to descendants of this atom")
	readyCmd.Flags().StringVar(&readySort, "sort", string(graph.SortHybrid), "sort policy: priority, oldest, hybrid")
	readyCmd.Flags().IntVar(&readyLimit, "limit", 0, "maximum atoms to return (0 = unlimited)")
}

package main

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eluent/eluent/internal/repo"
	"github.com/eluent/eluent/internal/types"
)

var (
	createIssueType  string
	createPriority   int
	createLabels     []string
	createAssignee   string
	createParent     string
	createDesc       string
	createDesign     string
	createNotes      string
	createEphemeral  bool
	createMetadataKV []string
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new atom",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRepo()
		if err != nil {
			return err
		}
		defer r.Close()

		var priority *int
		if cmd.Flags().Changed("priority") {
			priority = &createPriority
		}

		metadata, err := parseMetadataFlags(createMetadataKV)
		if err != nil {
			return err
		}

		atom, err := r.CreateAtom(repo.CreateAtomParams{
			Title:       args[0],
			Description: createDesc,
			Design:      createDesign,
			Notes:       createNotes,
			IssueType:   types.IssueType(createIssueType),
			Priority:    priority,
			Labels:      createLabels,
			Assignee:    createAssignee,
			Creator:     agentID,
			ParentID:    createParent,
			Metadata:    metadata,
			Ephemeral:   createEphemeral,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(atom)
			return nil
		}
		cmd.Printf("created %s: %s\n", atom.ID, atom.Title)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createIssueType, "type", "", "issue type (defaults to defaults.issue_type)")
	createCmd.Flags().IntVar(&createPriority, "priority", 0, "priority 0-4 (defaults to defaults.priority)")
	createCmd.Flags().StringSliceVar(&createLabels, "label", nil, "label (repeatable)")
	createCmd.Flags().StringVar(&createAssignee, "assignee", "", "initial assignee")
	createCmd.Flags().StringVar(&createParent, "parent", "", "parent atom reference")
	createCmd.Flags().StringVar(&createDesc, "description", "", "description")
	createCmd.Flags().StringVar(&createDesign, "design", "", "design notes")
	createCmd.Flags().StringVar(&createNotes, "notes", "", "freeform notes")
	createCmd.Flags().BoolVar(&createEphemeral, "ephemeral", false, "store in the local-only ephemeral log instead of the synced ledger")
	createCmd.Flags().StringSliceVar(&createMetadataKV, "meta", nil, "metadata key=value (repeatable)")
}

// parseMetadataFlags turns "key=value" pairs into a metadata map, encoding
// each value as a JSON string unless it already parses as JSON.
func parseMetadataFlags(kv []string) (map[string]json.RawMessage, error) {
	if len(kv) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(kv))
	for _, pair := range kv {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, types.NewConfigError("meta", "expected key=value, got "+strconv.Quote(pair))
		}
		if json.Valid([]byte(value)) {
			out[key] = json.RawMessage(value)
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		out[key] = encoded
	}
	return out, nil
}

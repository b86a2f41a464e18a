package main

import (
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Show a single atom by ID or prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRepo()
		if err != nil {
			return err
		}
		defer r.Close()

		atom, err := r.Show(args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(atom)
			return nil
		}
		cmd.Printf("%s [%s/%s] %s\n", atom.ID, atom.Status, atom.IssueType, atom.Title)
		if atom.Description != "" {
			cmd.Println(atom.Description)
		}
		return nil
	},
}

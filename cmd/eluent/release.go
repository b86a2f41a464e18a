package main

import (
	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:   "release <ref>",
	Short: "Release a previously claimed atom",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRepo()
		if err != nil {
			return err
		}
		defer r.Close()

		atom, err := r.Release(rootCtx, args[0], agentID)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(atom)
			return nil
		}
		cmd.Printf("%s released (now %s)\n", atom.ID, atom.Status)
		return nil
	},
}

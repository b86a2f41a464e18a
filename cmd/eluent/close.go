package main

import (
	"github.com/spf13/cobra"

	"github.com/eluent/eluent/internal/types"
)

var closeReason string

var closeCmd = &cobra.Command{
	Use:   "close <ref>",
	Short: "Close an atom",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRepo()
		if err != nil {
			return err
		}
		defer r.Close()

		atom, err := r.Transition(args[0], types.StatusClosed, closeReason)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(atom)
			return nil
		}
		cmd.Printf("%s closed\n", atom.ID)
		return nil
	},
}

func init() {
	closeCmd.Flags().StringVar(&closeReason, "reason", "", "close reason")
}

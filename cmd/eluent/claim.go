package main

import (
	"github.com/spf13/cobra"
)

var claimHeartbeat bool

var claimCmd = &cobra.Command{
	Use:   "claim <ref>",
	Short: "Claim an atom for the current agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRepo()
		if err != nil {
			return err
		}
		defer r.Close()

		if claimHeartbeat {
			a, err := r.Heartbeat(rootCtx, args[0], agentID)
			if err != nil {
				return err
			}
			if jsonOutput {
				outputJSON(a)
				return nil
			}
			cmd.Printf("%s heartbeat refreshed for %s\n", a.ID, a.Assignee)
			return nil
		}

		a, err := r.Claim(rootCtx, args[0], agentID)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(a)
			return nil
		}
		cmd.Printf("%s claimed by %s\n", a.ID, a.Assignee)
		return nil
	},
}

func init() {
	claimCmd.Flags().BoolVar(&claimHeartbeat, "heartbeat", false, "refresh the claim's updated_at instead of claiming")
}

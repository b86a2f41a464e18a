package main

import (
	"github.com/spf13/cobra"

	"github.com/eluent/eluent/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull-first sync: fetch, three-way merge, commit, and push the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRepo()
		if err != nil {
			return err
		}
		defer r.Close()
		cfg := r.Config()

		repoRoot, err := findRepoRoot()
		if err != nil {
			return err
		}

		s := syncer.New(repoRoot, syncer.DefaultRemote, cfg.SyncNetworkTimeout)
		result, err := s.Sync(rootCtx)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(result)
			return nil
		}
		if result.NoOp {
			cmd.Println("already up to date")
			return nil
		}
		cmd.Printf("synced: %d atoms, %d bonds, %d comments (commit %s)\n",
			len(result.Merged.Atoms), len(result.Merged.Bonds), len(result.Merged.Comments), result.CommitHash)
		return nil
	},
}

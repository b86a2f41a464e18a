package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eluent/eluent/internal/git"
	"github.com/eluent/eluent/internal/repo"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a .eluent directory in the current repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		mainRepoDir, err := git.GetMainRepoRoot()
		if err != nil {
			mainRepoDir = cwd
		}

		r, err := repo.Open(cwd, mainRepoDir)
		if err != nil {
			return err
		}
		defer r.Close()

		gitignorePath := filepath.Join(cwd, repo.EluentDirName, ".gitignore")
		if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
			contents := "ephemeral.jsonl\n.sync-state\n"
			if err := os.WriteFile(gitignorePath, []byte(contents), 0o644); err != nil {
				return fmt.Errorf("write .gitignore: %w", err)
			}
		}

		fmt.Printf("initialized eluent repository at %s\n", filepath.Join(cwd, repo.EluentDirName))
		return nil
	},
}

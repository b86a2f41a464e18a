// Command eluent is the CLI front end for a local-first, git-synchronised
// work-item tracker (spec.md §1). Grounded on the teacher's cmd/bd root
// command (signal-aware context, --json global flag, cobra command
// groups), retargeted from bd's SQLite-backed issue store onto eluent's
// JSONL repository and claim protocol.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eluent/eluent/internal/git"
	"github.com/eluent/eluent/internal/repo"
	"github.com/eluent/eluent/internal/telemetry"
)

var (
	jsonOutput bool
	agentID    string

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "eluent",
	Short: "eluent - local-first, git-synchronised work-item tracker",
	Long: `eluent tracks a directed acyclic graph of work items ("atoms") connected by
dependency edges ("bonds"). Agents discover ready work, claim it exclusively
across clones via a dedicated git ledger branch, execute it, and close it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON")
	rootCmd.PersistentFlags().StringVar(&agentID, "agent", defaultAgentID(), "agent identity for claim/release")

	rootCmd.AddCommand(initCmd, createCmd, showCmd, readyCmd, claimCmd, releaseCmd, closeCmd, syncCmd, treeCmd)
}

func defaultAgentID() string {
	if v := os.Getenv("ELUENT_AGENT"); v != "" {
		return v
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}

func main() {
	shutdownMetrics, err := telemetry.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: metrics disabled: %v\n", err)
	}

	runErr := rootCmd.Execute()

	if shutdownMetrics != nil {
		if err := shutdownMetrics(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: metrics shutdown: %v\n", err)
		}
	}
	if rootCancel != nil {
		rootCancel()
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(exitCodeFor(runErr))
	}
}

// openRepo resolves the current repository root (nearest ancestor
// containing .eluent, or cwd if none) and opens it. mainRepoDir is
// resolved separately via git.GetMainRepoRoot so a command invoked from
// inside the eluent-ledger worktree still points the Claimer at the main
// checkout it needs to add its own worktree under.
func openRepo() (*repo.Repo, error) {
	root, err := findRepoRoot()
	if err != nil {
		return nil, err
	}
	mainRepoDir, err := git.GetMainRepoRoot()
	if err != nil {
		mainRepoDir = root
	}
	return repo.Open(root, mainRepoDir)
}

func findRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, repo.EluentDirName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

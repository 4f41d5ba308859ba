package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tiny-backspace/internal/eventstore"
	"tiny-backspace/internal/session"
	"tiny-backspace/internal/worker"
)

// newWorkerCmd is the detached entrypoint the dispatcher launches. It is not
// meant to be invoked by hand, so it stays out of help output.
func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run one dispatched coding task (internal)",
		Hidden: true,
		RunE:   runWorker,
	}
	cmd.Flags().String("session", "", "session id minted by the dispatcher")
	cmd.Flags().String("repo", "", "repository URL to modify")
	cmd.Flags().String("prompt", "", "task description for the coding agent")
	cmd.Flags().String("agent-cmd", "", "shell command to run as the coding agent")
	cmd.Flags().String("base-branch", "main", "pull request target branch")
	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	sessionID := viper.GetString("session")
	if !session.IsWellFormed(sessionID) {
		return fmt.Errorf("worker: session id %q not well formed", sessionID)
	}
	repoURL := viper.GetString("repo")
	prompt := viper.GetString("prompt")
	if repoURL == "" || prompt == "" {
		return fmt.Errorf("worker: repo and prompt are required")
	}

	logger := log.New(os.Stderr, "worker ", log.LstdFlags)
	store := eventstore.NewRedisStore(redisOptions(), logger)
	defer store.Close()

	runner := worker.NewRunner(store, &worker.CommandAgent{
		Command: viper.GetString("agent-cmd"),
	}, logger)

	return runner.Run(cmd.Context(), worker.Config{
		SessionID:  sessionID,
		RepoURL:    repoURL,
		Prompt:     prompt,
		BaseBranch: viper.GetString("base-branch"),
	})
}

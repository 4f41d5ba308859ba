package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tiny-backspace/internal/eventstore"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [session-id]",
		Short: "List stored events, for one session or globally",
		Long: "With a session id, prints that session's timeline oldest first.\n" +
			"Without one, prints the most recent events across all sessions.",
		Args: cobra.MaximumNArgs(1),
		RunE: runLogs,
	}
	cmd.Flags().Int("limit", 100, "maximum number of events")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "logs ", log.LstdFlags)
	store := eventstore.NewRedisStore(redisOptions(), logger)
	defer store.Close()

	limit := viper.GetInt("limit")
	ctx := cmd.Context()

	if len(args) == 1 {
		events, err := store.ListBySession(ctx, args[0], limit)
		if err != nil {
			return err
		}
		for _, ev := range events {
			printEvent(ev)
		}
		return nil
	}

	events, err := store.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	for _, ev := range events {
		printEvent(ev)
	}
	return nil
}

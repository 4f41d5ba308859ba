package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tiny-backspace/internal/dispatch"
	"tiny-backspace/internal/eventstore"
	"tiny-backspace/internal/relay"
	"tiny-backspace/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trigger/query/stream HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().StringSlice("allowed-origins", nil, "CORS origins (empty allows all)")
	cmd.Flags().String("agent-cmd", "", "shell command the worker runs as the coding agent")
	cmd.Flags().String("base-branch", "main", "pull request target branch")
	cmd.Flags().Bool("debug", false, "verbose HTTP logging")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "backspace ", log.LstdFlags)
	opts := redisOptions()

	store := eventstore.NewRedisStore(opts, logger)
	defer store.Close()
	rel := relay.NewRedisRelay(opts, logger)
	defer rel.Close()

	bin, err := os.Executable()
	if err != nil {
		return err
	}
	launcher := &dispatch.ExecLauncher{
		Bin: bin,
		Args: []string{
			"--redis-addr", viper.GetString("redis-addr"),
			"--agent-cmd", viper.GetString("agent-cmd"),
			"--base-branch", viper.GetString("base-branch"),
		},
		Logger: logger,
	}
	dispatcher := dispatch.NewDispatcher(store, launcher, logger)

	srv := server.New(server.Config{
		Addr:           viper.GetString("listen"),
		AllowedOrigins: viper.GetStringSlice("allowed-origins"),
		Debug:          viper.GetBool("debug"),
	}, store, dispatcher, rel, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

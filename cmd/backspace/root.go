package main

import (
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "backspace",
		Short: "Dispatch coding tasks and follow their event streams",
		Long: "backspace runs a coding-agent service: an HTTP trigger hands each task\n" +
			"to a detached worker, and every step the worker takes is recorded as an\n" +
			"event under the task's session for live streaming and later inspection.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	root.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address backing the event store")
	root.AddCommand(newServeCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newTailCmd())
	root.AddCommand(newLogsCmd())
	return root
}

func initConfig(cmd *cobra.Command) error {
	viper.SetConfigName("backspace")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
	viper.SetEnvPrefix("BACKSPACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; flags and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

func redisOptions() *redis.Options {
	return &redis.Options{Addr: viper.GetString("redis-addr")}
}

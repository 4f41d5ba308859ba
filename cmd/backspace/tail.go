package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tiny-backspace/internal/core"
	"tiny-backspace/internal/eventstore"
	"tiny-backspace/internal/relay"
	"tiny-backspace/internal/session"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail <session-id>",
		Short: "Follow a session's event stream live",
		Args:  cobra.ExactArgs(1),
		RunE:  runTail,
	}
	cmd.Flags().Bool("backfill", true, "print stored events before following")
	return cmd
}

func runTail(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	if !session.IsWellFormed(sessionID) {
		return fmt.Errorf("session id %q not well formed", sessionID)
	}

	logger := log.New(os.Stderr, "tail ", log.LstdFlags)
	opts := redisOptions()
	rel := relay.NewRedisRelay(opts, logger)
	defer rel.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	live, err := rel.Subscribe(ctx, sessionID)
	if err != nil {
		return err
	}

	printed := make(map[string]struct{})
	if viper.GetBool("backfill") {
		store := eventstore.NewRedisStore(opts, logger)
		defer store.Close()
		events, err := store.ListBySession(ctx, sessionID, 0)
		if err != nil {
			return err
		}
		for _, ev := range events {
			printed[ev.ID] = struct{}{}
			printEvent(ev)
			if isTerminal(ev.Type) {
				return nil
			}
		}
	}

	for {
		select {
		case ev, ok := <-live:
			if !ok {
				return nil
			}
			if _, seen := printed[ev.ID]; seen {
				continue
			}
			printEvent(ev)
			if isTerminal(ev.Type) {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// isTerminal applies the producer-side convention: the store itself never
// interprets event types, but a tail session is done once the worker says so.
func isTerminal(typ string) bool {
	return typ == "success" || typ == "error" || typ == "dispatch_error"
}

func printEvent(ev core.Event) {
	ts := time.UnixMilli(ev.Timestamp).Format("15:04:05.000")
	var tag string
	switch {
	case ev.Type == "success":
		tag = green(ev.Type)
	case ev.Type == "error" || ev.Type == "dispatch_error":
		tag = red(ev.Type)
	case ev.Type == "start" || ev.Type == "status":
		tag = blue(ev.Type)
	case len(ev.Type) > 4 && ev.Type[:4] == "git_":
		tag = yellow(ev.Type)
	default:
		tag = cyan(ev.Type)
	}
	fmt.Printf("%s %-16s %s\n", gray(ts), tag, ev.Message)
}

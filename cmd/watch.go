package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/swellwatch/internal/monitor"
	"github.com/example/swellwatch/internal/push"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the monitor subsystem: poll the roster, stream job events, surface notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := client.Ping(ctx); err != nil {
				return fmt.Errorf("provider ping: %w", err)
			}

			store := monitor.NewStore(logger)

			sink := monitor.SinkFunc(func(n monitor.Notification) {
				outcome := "failed"
				if n.Success {
					outcome = "booked"
				}
				fmt.Fprintf(os.Stdout, "%s job=%s outcome=%s %s action=%s\n",
					n.Title, n.JobID, outcome, n.Message, n.Action)
			})
			notifier := monitor.NewNotifier(sink, logger)

			factory := func(jobID string, deliver func(monitor.PushEvent)) monitor.Channel {
				return push.NewChannel(client.ChannelURL(jobID), client.AuthHeader(), jobID, deliver, logger)
			}

			rec := monitor.NewReconciler(store, client, cfg.PollInterval(), logger)
			sup := monitor.NewSupervisor(client, store, rec, factory, logger)
			defer sup.Close()

			rec.AddObserver(notifier)
			rec.AddObserver(sup)

			logger.Info("watching monitor jobs", "poll_interval", cfg.PollInterval().String())
			if err := rec.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/swellwatch/internal/provider"
	"github.com/example/swellwatch/internal/scan"
)

func newScanCmd() *cobra.Command {
	var force bool

	c := &cobra.Command{
		Use:   "scan",
		Short: "Refresh provider availability, honoring the rescan cooldown",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, logger, err := setup()
			if err != nil {
				return err
			}
			ctx := context.Background()

			gate := scan.NewGate(cfg.CooldownWindow(), logger)

			cached, err := client.Availability(ctx)
			if err != nil {
				// No seed means the gate stays open rather than guessing.
				logger.Warn("availability fetch failed", "error", err)
			} else {
				gate.Seed(cached.CacheUpdatedAt)
			}

			if gate.Engaged() && !force {
				fmt.Fprintf(os.Stdout, "rescan cooling down: %s remaining (cache updated %s)\n",
					gate.Remaining().Round(time.Second), cached.CacheUpdatedAt.Format(time.RFC3339))
				printSlots(cached.Slots)
				return nil
			}

			res, err := client.Rescan(ctx)
			if err != nil {
				return err
			}
			gate.Trigger()

			fmt.Fprintf(os.Stdout, "scan complete, cache updated %s\n", res.CacheUpdatedAt.Format(time.RFC3339))
			printSlots(res.Slots)
			return nil
		},
	}

	c.Flags().BoolVar(&force, "force", false, "rescan even while the cooldown is engaged")
	return c
}

func printSlots(slots []provider.SlotDescriptor) {
	for _, s := range slots {
		fmt.Fprintf(os.Stdout, "date=%s start=%s end=%s level=%s side=%s available=%d\n",
			s.Date, s.Start, s.End, s.Level, s.Side, s.Available)
	}
}

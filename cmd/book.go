package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/swellwatch/internal/booking"
	"github.com/example/swellwatch/internal/provider"
)

func newBookCmd() *cobra.Command {
	var (
		members   []string
		date      string
		start     string
		end       string
		level     string
		side      string
		packageID string
		productID string
		available int
	)

	c := &cobra.Command{
		Use:   "book",
		Short: "Book one slot for several members, isolating per-member failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, logger, err := setup()
			if err != nil {
				return err
			}
			ctx := context.Background()

			slot := provider.SlotDescriptor{
				Date:      date,
				Start:     start,
				End:       end,
				Level:     level,
				Side:      side,
				PackageID: packageID,
				ProductID: productID,
				Available: available,
			}

			// The member/booking/availability caches live in the surrounding
			// app; here a successful batch just logs that they are stale.
			invalidate := func() {
				logger.Info("bookings changed, dependent caches are stale")
			}

			orch := booking.NewOrchestrator(client, cfg.AttemptPace(), invalidate, logger)
			results := orch.Book(ctx, slot, members)

			for _, r := range results {
				if r.Success {
					fmt.Fprintf(os.Stdout, "member=%s success=true\n", r.RecipientID)
					continue
				}
				fmt.Fprintf(os.Stdout, "member=%s success=false error=%q\n", r.RecipientID, r.Error)
			}
			return nil
		},
	}

	c.Flags().StringSliceVar(&members, "member", nil, "member id to book for (repeatable, attempted in order)")
	c.Flags().StringVar(&date, "date", "", "slot date YYYY-MM-DD")
	c.Flags().StringVar(&start, "start", "", "slot start time, e.g. 07:00")
	c.Flags().StringVar(&end, "end", "", "slot end time, e.g. 08:00")
	c.Flags().StringVar(&level, "level", "", "session level")
	c.Flags().StringVar(&side, "side", "", "wave side: left, right or any")
	c.Flags().StringVar(&packageID, "package-id", "", "provider package id")
	c.Flags().StringVar(&productID, "product-id", "", "provider product id")
	c.Flags().IntVar(&available, "available", 0, "advertised vacancy count (advisory; 0 = unknown)")

	_ = c.MarkFlagRequired("member")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	_ = c.MarkFlagRequired("level")
	_ = c.MarkFlagRequired("package-id")
	_ = c.MarkFlagRequired("product-id")
	return c
}

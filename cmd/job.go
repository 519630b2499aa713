package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/swellwatch/internal/monitor"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage monitor jobs (one-shot, non-watching)",
	}
	cmd.AddCommand(newJobStartCmd())
	cmd.AddCommand(newJobListCmd())
	cmd.AddCommand(newJobStopCmd())
	cmd.AddCommand(newJobUpdateCmd())
	return cmd
}

func newJobStartCmd() *cobra.Command {
	var (
		memberID      string
		memberName    string
		kind          string
		level         string
		side          string
		dates         []string
		hour          int
		budgetMinutes int
	)

	c := &cobra.Command{
		Use:   "start",
		Short: "Start a background search/booking job for a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := setup()
			if err != nil {
				return err
			}
			ctx := context.Background()

			k := monitor.Kind(kind)
			if k != monitor.KindPreferenceSweep && k != monitor.KindSpecificSearch {
				return fmt.Errorf("invalid --kind %q (want %s or %s)", kind, monitor.KindPreferenceSweep, monitor.KindSpecificSearch)
			}

			criteria := monitor.Criteria{
				Level:         level,
				Side:          side,
				Dates:         dates,
				BudgetMinutes: budgetMinutes,
			}
			if cmd.Flags().Changed("hour") {
				h := hour
				criteria.Hour = &h
			}
			if err := criteria.Validate(); err != nil {
				return fmt.Errorf("invalid criteria: %w", err)
			}

			id, err := client.StartJob(ctx, monitor.StartRequest{
				Kind:     k,
				Subject:  monitor.Subject{MemberID: memberID, DisplayName: memberName},
				Criteria: criteria,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "started monitor id=%s member=%q %s\n", id, memberName, criteria.Summary())
			return nil
		},
	}

	c.Flags().StringVar(&memberID, "member-id", "", "member id the job books for")
	c.Flags().StringVar(&memberName, "member-name", "", "member display name")
	c.Flags().StringVar(&kind, "kind", string(monitor.KindPreferenceSweep), "preference-sweep or specific-search")
	c.Flags().StringVar(&level, "level", "", "session level, e.g. intermediate")
	c.Flags().StringVar(&side, "side", "", "wave side: left, right or any")
	c.Flags().StringSliceVar(&dates, "date", nil, "target date YYYY-MM-DD (repeatable)")
	c.Flags().IntVar(&hour, "hour", 0, "target hour 0-23 (omit for any)")
	c.Flags().IntVar(&budgetMinutes, "budget-minutes", 60, "how long the provider may keep searching")

	_ = c.MarkFlagRequired("member-id")
	_ = c.MarkFlagRequired("member-name")
	_ = c.MarkFlagRequired("level")
	_ = c.MarkFlagRequired("date")
	return c
}

func newJobListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the current user's monitor jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := setup()
			if err != nil {
				return err
			}
			jobs, err := client.Roster(context.Background())
			if err != nil {
				return err
			}
			for _, j := range jobs {
				line := fmt.Sprintf("id=%s status=%s kind=%s member=%q elapsed=%ds started=%s",
					j.ID, j.Status, j.Kind, j.Subject.DisplayName, j.ElapsedSeconds, j.StartedAt.Format(time.RFC3339))
				if j.Result != nil {
					if j.Result.Success {
						line += fmt.Sprintf(" voucher=%s", j.Result.Voucher)
					} else if j.Result.Error != "" {
						line += fmt.Sprintf(" error=%q", j.Result.Error)
					}
				}
				fmt.Fprintln(os.Stdout, line)
			}
			return nil
		},
	}
}

func newJobStopCmd() *cobra.Command {
	var id string
	c := &cobra.Command{
		Use:   "stop",
		Short: "Request cancellation of a running job",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := setup()
			if err != nil {
				return err
			}
			if err := client.StopJob(context.Background(), id); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "stop requested id=%s (the next roster poll confirms the outcome)\n", id)
			return nil
		},
	}
	c.Flags().StringVar(&id, "id", "", "job id")
	_ = c.MarkFlagRequired("id")
	return c
}

func newJobUpdateCmd() *cobra.Command {
	var (
		id            string
		level         string
		side          string
		dates         []string
		hour          int
		budgetMinutes int
	)

	c := &cobra.Command{
		Use:   "update",
		Short: "Patch a job's search criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := setup()
			if err != nil {
				return err
			}

			var patch monitor.CriteriaPatch
			if cmd.Flags().Changed("level") {
				patch.Level = &level
			}
			if cmd.Flags().Changed("side") {
				patch.Side = &side
			}
			if cmd.Flags().Changed("date") {
				patch.Dates = dates
			}
			if cmd.Flags().Changed("hour") {
				h := hour
				patch.Hour = &h
			}
			if cmd.Flags().Changed("budget-minutes") {
				patch.BudgetMinutes = &budgetMinutes
			}

			restarted, err := client.UpdateJob(context.Background(), id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "updated id=%s restarted=%t\n", id, restarted)
			return nil
		},
	}

	c.Flags().StringVar(&id, "id", "", "job id")
	c.Flags().StringVar(&level, "level", "", "session level")
	c.Flags().StringVar(&side, "side", "", "wave side: left, right or any")
	c.Flags().StringSliceVar(&dates, "date", nil, "target date YYYY-MM-DD (repeatable)")
	c.Flags().IntVar(&hour, "hour", 0, "target hour 0-23")
	c.Flags().IntVar(&budgetMinutes, "budget-minutes", 0, "search budget in minutes")
	_ = c.MarkFlagRequired("id")
	return c
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/tracker/internal/activity"
)

func newTimelineCmd() *cobra.Command {
	var (
		tz    string
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "timeline [key|sprint-id]",
		Short: "Show activity grouped by day",
		Long:  "Shows the day-by-day activity of an issue or sprint. Without an argument, shows all activity within --since.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				loc := a.cfg.Location()
				if tz != "" {
					l, err := time.LoadLocation(tz)
					if err != nil {
						return fmt.Errorf("--tz: %w", err)
					}
					loc = l
				}

				var (
					days []activity.Day
					err  error
				)
				if len(args) == 1 {
					days, err = a.svc.Timeline(ctx, args[0], loc)
				} else {
					days, err = a.svc.ActivitySince(ctx, time.Now().Add(-since), loc)
				}
				if err != nil {
					return err
				}
				printDays(cmd, days, loc)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone for day boundaries (default from config)")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "window for project-wide activity")
	return cmd
}

func printDays(cmd *cobra.Command, days []activity.Day, loc *time.Location) {
	out := cmd.OutOrStdout()
	if len(days) == 0 {
		fmt.Fprintln(out, "No activity.")
		return
	}
	for _, d := range days {
		fmt.Fprintln(out, bold(d.Date))
		for _, l := range d.Lines {
			fmt.Fprintf(out, "  %s  %-10s %s\n", faint(l.At.In(loc).Format("15:04")), l.ActorID, l.Text)
			if l.Detail != "" {
				fmt.Fprintf(out, "                    %s\n", faint("“"+truncate(l.Detail, 72)+"”"))
			}
		}
	}
}

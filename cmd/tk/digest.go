package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/tracker/internal/digest"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Activity digest commands",
	}
	cmd.AddCommand(newDigestSendCmd())
	return cmd
}

func newDigestSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send the digest for the last 24 hours now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				runner, err := digest.New(a.cfg.Digest, a.cfg.Location(), a.store, a.notifier, a.log)
				if err != nil {
					return err
				}
				report, err := runner.RunOnce(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if report == nil {
					fmt.Fprintln(out, "No activity in the last 24 hours; nothing sent.")
					return nil
				}
				success(out, "Sent digest to %s: %d entries by %d people", a.cfg.Digest.Recipient, report.Entries, len(report.Actors))
				return nil
			})
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tk",
		Short:         "Tracker: work items, epics, sprints and client approval",
		Long:          "Tracker manages issues through their lifecycle, groups them into epics and sprints, and records every change in an append-only audit log.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "path to tracker config file")
	cmd.PersistentFlags().String("actor", defaultActor(), "acting user id (env TK_ACTOR)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newIssueCmd())
	cmd.AddCommand(newEpicCmd())
	cmd.AddCommand(newSprintCmd())
	cmd.AddCommand(newTimelineCmd())
	cmd.AddCommand(newDigestCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tk %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func defaultActor() string {
	if a := os.Getenv("TK_ACTOR"); a != "" {
		return a
	}
	return os.Getenv("USER")
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		printError(cmd.ErrOrStderr(), err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}

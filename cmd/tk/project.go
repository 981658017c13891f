package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project management commands",
	}
	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <KEY> <name>",
		Short: "Create a project",
		Long:  "Creates a project. KEY is 2-10 uppercase letters or digits and prefixes every issue key.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.svc.CreateProject(ctx, a.actor, args[0], args[1])
				if err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "Created project %s (%s)", bold(p.Key), p.Name)
				return nil
			})
		},
	}
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				projects, err := a.svc.ListProjects(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(projects) == 0 {
					fmt.Fprintln(out, "No projects found.")
					return nil
				}
				table := newTable(out, "KEY", "NAME", "LAST #", "CREATED")
				for _, p := range projects {
					_ = table.Append([]string{p.Key, p.Name, fmt.Sprint(p.LastNumber), p.CreatedAt.Format(time.DateOnly)})
				}
				return table.Render()
			})
		},
	}
}

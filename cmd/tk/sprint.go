package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/tracker"
	"github.com/zulandar/tracker/internal/workitem"
)

func newSprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Sprint management commands",
	}

	cmd.AddCommand(newSprintCreateCmd())
	cmd.AddCommand(newSprintListCmd())
	cmd.AddCommand(newSprintAssignCmd())
	cmd.AddCommand(newSprintBacklogCmd())
	cmd.AddCommand(newSprintCloseCmd())
	cmd.AddCommand(newSprintVelocityCmd())
	return cmd
}

func newSprintCreateCmd() *cobra.Command {
	var (
		project string
		name    string
		goal    string
		start   string
		end     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sprint",
		Long:  "Creates a sprint. Dates are YYYY-MM-DD in the configured timezone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				loc := a.cfg.Location()
				startDate, err := time.ParseInLocation(time.DateOnly, start, loc)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				endDate, err := time.ParseInLocation(time.DateOnly, end, loc)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				sp, err := a.svc.CreateSprint(ctx, a.actor, workitem.SprintOpts{
					ProjectID: project,
					Name:      name,
					Goal:      goal,
					StartDate: startDate,
					EndDate:   endDate,
				})
				if err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "Created sprint %s %s", bold(sp.Name), faint(sp.ID))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project key or id (required)")
	cmd.Flags().StringVar(&name, "name", "", "sprint name (required)")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD (required)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func sprintStatusColor(v tracker.SprintView) string {
	s := string(v.Status)
	switch {
	case v.Overdue:
		return red(s + " (overdue)")
	case v.Status == models.SprintActive:
		return yellow(s)
	case v.Status == models.SprintCompleted:
		return green(s)
	default:
		return s
	}
}

func newSprintListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project>",
		Short: "List a project's sprints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				sprints, err := a.svc.ListSprints(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(sprints) == 0 {
					fmt.Fprintln(out, "No sprints found.")
					return nil
				}
				table := newTable(out, "ID", "NAME", "START", "END", "STATUS")
				for _, sp := range sprints {
					_ = table.Append([]string{
						sp.ID,
						sp.Name,
						sp.StartDate.Format(time.DateOnly),
						sp.EndDate.Format(time.DateOnly),
						sprintStatusColor(sp),
					})
				}
				return table.Render()
			})
		},
	}
}

func newSprintAssignCmd() *cobra.Command {
	return issueAction("assign <key> <sprint-id>", "Put an issue into a sprint", 1,
		func(ctx context.Context, a *app, ref string, args []string) (*models.Issue, error) {
			return a.svc.AssignToSprint(ctx, a.actor, ref, args[0])
		})
}

func newSprintBacklogCmd() *cobra.Command {
	return issueAction("backlog <key>", "Move an issue back to the backlog", 0,
		func(ctx context.Context, a *app, ref string, _ []string) (*models.Issue, error) {
			return a.svc.MoveToBacklog(ctx, a.actor, ref)
		})
}

func newSprintCloseCmd() *cobra.Command {
	var carryTo string

	cmd := &cobra.Command{
		Use:   "close <sprint-id>",
		Short: "Complete a sprint",
		Long:  "Completes a sprint. Open issues go to the backlog, or to --carry-to when given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target *string
			if carryTo != "" {
				target = &carryTo
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.svc.CloseSprint(ctx, a.actor, args[0], target)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				dest := "backlog"
				if target != nil {
					dest = *target
				}
				success(out, "Closed sprint %s: %d issues moved to %s", bold(res.Sprint.Name), len(res.Updated), dest)
				return printFailures(out, res.Failed)
			})
		},
	}

	cmd.Flags().StringVar(&carryTo, "carry-to", "", "sprint id that receives open issues")
	return cmd
}

func newSprintVelocityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "velocity <sprint-id>",
		Short: "Show committed and completed story points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				v, err := a.svc.Velocity(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Committed: %g pts (%d issues)\nCompleted: %g pts (%d done)\n",
					v.Committed, v.Issues, v.Completed, v.Done)
				return nil
			})
		},
	}
}

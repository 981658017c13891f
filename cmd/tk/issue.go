package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/status"
	"github.com/zulandar/tracker/internal/store"
	"github.com/zulandar/tracker/internal/tracker"
	"github.com/zulandar/tracker/internal/workitem"
)

func newIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue management commands",
	}

	cmd.AddCommand(newIssueCreateCmd())
	cmd.AddCommand(newIssueListCmd())
	cmd.AddCommand(newIssueShowCmd())
	cmd.AddCommand(newIssueTransitionCmd())
	cmd.AddCommand(newIssueCancelCmd())
	cmd.AddCommand(newIssuePriorityCmd())
	cmd.AddCommand(newIssueSetCmd())
	cmd.AddCommand(newIssueVisibleCmd())
	cmd.AddCommand(newIssueApproveCmd())
	cmd.AddCommand(newIssueResubmitCmd())
	cmd.AddCommand(newIssueRevertCmd())
	cmd.AddCommand(newIssueCommentCmd())
	cmd.AddCommand(newIssueLinkCmd())
	cmd.AddCommand(newIssueHistoryCmd())
	cmd.AddCommand(newIssueDeleteCmd())
	cmd.AddCommand(newIssueRemovedCmd())
	return cmd
}

// issueFlags are shared by issue create and epic subtask.
type issueFlags struct {
	kind        string
	title       string
	description string
	priority    string
	assignee    string
	points      float64
	visible     bool
}

func (f *issueFlags) register(cmd *cobra.Command, defaultKind string) {
	cmd.Flags().StringVar(&f.kind, "kind", defaultKind, "issue kind (EPIC, STORY, TASK, BUG, FEATURE, SUPPORT)")
	cmd.Flags().StringVar(&f.title, "title", "", "issue title (required)")
	cmd.Flags().StringVar(&f.description, "description", "", "detailed description")
	cmd.Flags().StringVar(&f.priority, "priority", "", "priority (LOW, MEDIUM, HIGH, CRITICAL)")
	cmd.Flags().StringVar(&f.assignee, "assignee", "", "assignee user id")
	cmd.Flags().Float64Var(&f.points, "points", 0, "story points")
	cmd.Flags().BoolVar(&f.visible, "visible", false, "make the issue visible to the client")
	cmd.MarkFlagRequired("title")
}

func (f *issueFlags) opts(cmd *cobra.Command, projectID string) workitem.CreateOpts {
	o := workitem.CreateOpts{
		ProjectID:     projectID,
		Kind:          models.Kind(strings.ToUpper(f.kind)),
		Title:         f.title,
		Description:   f.description,
		Priority:      models.Priority(strings.ToUpper(f.priority)),
		AssigneeID:    f.assignee,
		ClientVisible: f.visible,
	}
	if cmd.Flags().Changed("points") {
		p := f.points
		o.StoryPoints = &p
	}
	return o
}

func newIssueCreateCmd() *cobra.Command {
	var (
		flags   issueFlags
		project string
		parent  string
		sprint  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an issue",
		Long:  "Creates an issue in TODO with the next key of its project, optionally under an epic and in a sprint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				issue, err := a.svc.CreateIssue(ctx, a.actor, tracker.CreateIssueOpts{
					CreateOpts: flags.opts(cmd, project),
					ParentRef:  parent,
					SprintID:   sprint,
				})
				if err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "Created %s %s", bold(issue.Key), issue.Title)
				return nil
			})
		},
	}

	flags.register(cmd, string(models.KindTask))
	cmd.Flags().StringVarP(&project, "project", "p", "", "project key or id (required)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent epic key")
	cmd.Flags().StringVar(&sprint, "sprint", "", "sprint id")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newIssueListCmd() *cobra.Command {
	var (
		f       store.IssueFilter
		kind    string
		st      string
		backlog bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Long:  "Lists issues with optional filters, ordered by project and number.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Kind = models.Kind(strings.ToUpper(kind))
			f.Status = models.Status(strings.ToUpper(st))
			f.Backlog = backlog
			return withApp(cmd, func(ctx context.Context, a *app) error {
				issues, err := a.svc.ListIssues(ctx, f)
				if err != nil {
					return err
				}
				return printIssues(cmd, issues)
			})
		},
	}

	cmd.Flags().StringVarP(&f.ProjectID, "project", "p", "", "filter by project key or id")
	cmd.Flags().StringVar(&f.SprintID, "sprint", "", "filter by sprint id")
	cmd.Flags().StringVar(&f.ParentID, "parent", "", "filter by parent epic id")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", "", "filter by assignee")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind")
	cmd.Flags().StringVar(&st, "status", "", "filter by status")
	cmd.Flags().BoolVar(&backlog, "backlog", false, "only issues without a sprint")
	return cmd
}

func printIssues(cmd *cobra.Command, issues []models.Issue) error {
	out := cmd.OutOrStdout()
	if len(issues) == 0 {
		fmt.Fprintln(out, "No issues found.")
		return nil
	}
	table := newTable(out, "KEY", "KIND", "TITLE", "STATUS", "PRIORITY", "ASSIGNEE", "PTS")
	for _, i := range issues {
		_ = table.Append([]string{
			i.Key,
			string(i.Kind),
			truncate(i.Title, 48),
			statusColor(i.Status),
			string(i.Priority),
			orDash(i.AssigneeID),
			points(i.StoryPoints),
		})
	}
	return table.Render()
}

func newIssueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Show issue details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				issue, err := a.svc.GetIssue(ctx, args[0])
				if err != nil {
					return err
				}
				urls, err := a.svc.Links(ctx, issue.ID)
				if err != nil {
					return err
				}
				printIssue(cmd, workitem.ClientView(issue), urls)
				return nil
			})
		},
	}
}

func printIssue(cmd *cobra.Command, i *models.Issue, urls []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", bold(i.Key), i.Title)
	fmt.Fprintf(out, "Kind:        %s\n", i.Kind)
	fmt.Fprintf(out, "Status:      %s\n", statusColor(i.Status))
	if i.Kind == models.KindEpic && i.EpicClosed {
		fmt.Fprintf(out, "Epic:        %s\n", faint("closed"))
	}
	fmt.Fprintf(out, "Priority:    %s\n", i.Priority)
	fmt.Fprintf(out, "Reporter:    %s\n", i.ReporterID)
	fmt.Fprintf(out, "Assignee:    %s\n", orDash(i.AssigneeID))
	fmt.Fprintf(out, "Points:      %s\n", points(i.StoryPoints))
	fmt.Fprintf(out, "Parent:      %s\n", orDash(i.ParentID))
	fmt.Fprintf(out, "Sprint:      %s\n", orDash(i.SprintID))
	if i.ClientVisible {
		fmt.Fprintf(out, "Approval:    %s\n", approvalColor(i.ClientApprovalStatus))
		if i.ClientFeedback != nil {
			fmt.Fprintf(out, "Feedback:    %s\n", *i.ClientFeedback)
		}
	}
	fmt.Fprintf(out, "Updated:     %s (v%d)\n", i.UpdatedAt.Format(time.RFC3339), i.Version)
	if i.Description != "" {
		fmt.Fprintf(out, "\n%s\n", i.Description)
	}
	if len(urls) > 0 {
		fmt.Fprintln(out, "\nLinks:")
		for _, u := range urls {
			fmt.Fprintf(out, "  %s\n", u)
		}
	}
}

// issueAction builds a command that takes an issue key plus fixed extra
// args, runs fn and reports the resulting issue.
func issueAction(use, short string, extra int, fn func(ctx context.Context, a *app, ref string, args []string) (*models.Issue, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1 + extra),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				issue, err := fn(ctx, a, args[0], args[1:])
				if err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "%s  %s  %s", bold(issue.Key), statusColor(issue.Status), faint(fmt.Sprintf("v%d", issue.Version)))
				return nil
			})
		},
	}
}

func newIssueTransitionCmd() *cobra.Command {
	return issueAction("transition <key> <status>", "Move an issue to a new status", 1,
		func(ctx context.Context, a *app, ref string, args []string) (*models.Issue, error) {
			return a.svc.TransitionStatus(ctx, a.actor, ref, models.Status(strings.ToUpper(args[0])))
		})
}

func newIssueCancelCmd() *cobra.Command {
	return issueAction("cancel <key>", "Cancel an issue", 0,
		func(ctx context.Context, a *app, ref string, _ []string) (*models.Issue, error) {
			return a.svc.Cancel(ctx, a.actor, ref)
		})
}

func newIssuePriorityCmd() *cobra.Command {
	return issueAction("priority <key> <priority>", "Change an issue's priority", 1,
		func(ctx context.Context, a *app, ref string, args []string) (*models.Issue, error) {
			return a.svc.ChangePriority(ctx, a.actor, ref, models.Priority(strings.ToUpper(args[0])))
		})
}

func newIssueSetCmd() *cobra.Command {
	var unset bool

	cmd := &cobra.Command{
		Use:   "set <key> <field> [value]",
		Short: "Edit title, description, assignee or story_points",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value *string
			switch {
			case unset:
			case len(args) == 3:
				value = &args[2]
			default:
				return fmt.Errorf("set %s: value is required unless --unset is given", args[1])
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				issue, err := a.svc.UpdateField(ctx, a.actor, args[0], status.Field(args[1]), value)
				if err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "%s  %s updated", bold(issue.Key), args[1])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unset, "unset", false, "clear the field")
	return cmd
}

func newIssueVisibleCmd() *cobra.Command {
	return issueAction("visible <key> <true|false>", "Show or hide an issue from the client", 1,
		func(ctx context.Context, a *app, ref string, args []string) (*models.Issue, error) {
			v, err := strconv.ParseBool(args[0])
			if err != nil {
				return nil, fmt.Errorf("visible: %q is not true or false", args[0])
			}
			return a.svc.SetClientVisible(ctx, a.actor, ref, v)
		})
}

func newIssueApproveCmd() *cobra.Command {
	var feedback string
	cmd := &cobra.Command{
		Use:   "approve <key> <APPROVED|REJECTED|CHANGES_REQUESTED>",
		Short: "Record the client's decision on a visible issue",
		Long:  "Records a client decision on a PENDING issue. REJECTED and CHANGES_REQUESTED require --feedback.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				decision := models.ApprovalStatus(strings.ToUpper(args[1]))
				issue, err := a.svc.SubmitApproval(ctx, a.actor, args[0], decision, feedback)
				if err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "%s  %s", bold(issue.Key), approvalColor(issue.ClientApprovalStatus))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&feedback, "feedback", "m", "", "client feedback")
	return cmd
}

func newIssueResubmitCmd() *cobra.Command {
	return issueAction("resubmit <key>", "Return a rejected issue to PENDING", 0,
		func(ctx context.Context, a *app, ref string, _ []string) (*models.Issue, error) {
			return a.svc.ResubmitApproval(ctx, a.actor, ref)
		})
}

func newIssueRevertCmd() *cobra.Command {
	return issueAction("revert <key>", "Return an approved issue to PENDING", 0,
		func(ctx context.Context, a *app, ref string, _ []string) (*models.Issue, error) {
			return a.svc.RevertApproval(ctx, a.actor, ref)
		})
}

func newIssueCommentCmd() *cobra.Command {
	return issueAction("comment <key> <body>", "Comment on an issue", 1,
		func(ctx context.Context, a *app, ref string, args []string) (*models.Issue, error) {
			return a.svc.AddComment(ctx, a.actor, ref, args[0])
		})
}

func newIssueLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage external links on an issue",
	}
	cmd.AddCommand(issueAction("add <key> <url>", "Link a URL", 1,
		func(ctx context.Context, a *app, ref string, args []string) (*models.Issue, error) {
			return a.svc.AddLink(ctx, a.actor, ref, args[0])
		}))
	cmd.AddCommand(issueAction("rm <key> <url>", "Remove a link", 1,
		func(ctx context.Context, a *app, ref string, args []string) (*models.Issue, error) {
			return a.svc.RemoveLink(ctx, a.actor, ref, args[0])
		}))
	cmd.AddCommand(&cobra.Command{
		Use:   "list <key>",
		Short: "List links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				urls, err := a.svc.Links(ctx, args[0])
				if err != nil {
					return err
				}
				for _, u := range urls {
					fmt.Fprintln(cmd.OutOrStdout(), u)
				}
				return nil
			})
		},
	})
	return cmd
}

func newIssueHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <key|sprint-id>",
		Short: "Show the raw audit entries of an issue or sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				entries, err := a.svc.History(ctx, args[0])
				if err != nil {
					return err
				}
				table := newTable(cmd.OutOrStdout(), "AT", "ACTOR", "ACTION", "PAYLOAD")
				for _, e := range entries {
					_ = table.Append([]string{
						e.CreatedAt.In(a.cfg.Location()).Format(time.DateTime),
						e.ActorID,
						string(e.Action),
						truncate(e.Payload, 60),
					})
				}
				return table.Render()
			})
		},
	}
}

func newIssueDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete an issue and detach its children",
		Long:  "Deletes an issue. Children of a deleted epic move to no parent, each with its own audit entry.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.svc.DeleteIssue(ctx, a.actor, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				success(out, "Deleted %s, detached %d children", args[0], len(res.Updated))
				return printFailures(out, res.Failed)
			})
		},
	}
}

func newIssueRemovedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "removed <id>",
		Short: "Detach issues from a parent deleted outside tk",
		Long:  "Clears parent links that still point at an issue removed directly from the database. Takes the internal issue id, since the key no longer resolves.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.svc.IssueRemoved(ctx, a.actor, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				success(out, "Detached %d issues from %s", len(res.Updated), args[0])
				return printFailures(out, res.Failed)
			})
		},
	}
}

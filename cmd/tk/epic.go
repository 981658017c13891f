package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/tracker/internal/hierarchy"
	"github.com/zulandar/tracker/internal/models"
)

func newEpicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epic",
		Short: "Epic hierarchy commands",
	}

	cmd.AddCommand(newEpicAttachCmd())
	cmd.AddCommand(newEpicDetachCmd())
	cmd.AddCommand(newEpicSubtaskCmd())
	cmd.AddCommand(newEpicCloseCmd())
	cmd.AddCommand(newEpicTreeCmd())
	return cmd
}

func newEpicAttachCmd() *cobra.Command {
	return issueAction("attach <key> <epic>", "Put an issue under an epic", 1,
		func(ctx context.Context, a *app, ref string, args []string) (*models.Issue, error) {
			return a.svc.AttachToEpic(ctx, a.actor, ref, args[0])
		})
}

func newEpicDetachCmd() *cobra.Command {
	return issueAction("detach <key>", "Remove an issue from its epic", 0,
		func(ctx context.Context, a *app, ref string, _ []string) (*models.Issue, error) {
			return a.svc.DetachFromEpic(ctx, a.actor, ref)
		})
}

func newEpicSubtaskCmd() *cobra.Command {
	var flags issueFlags

	cmd := &cobra.Command{
		Use:   "subtask <epic>",
		Short: "Create an issue directly under an epic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				issue, err := a.svc.CreateSubtask(ctx, a.actor, args[0], flags.opts(cmd, ""))
				if err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "Created %s under %s", bold(issue.Key), args[0])
				return nil
			})
		},
	}

	flags.register(cmd, string(models.KindTask))
	return cmd
}

func newEpicCloseCmd() *cobra.Command {
	var (
		resolution string
		target     string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "close <epic>",
		Short: "Close an epic and resolve its open children",
		Long: `Closes an epic. Open children are resolved with --resolution:
  KEEP     leave them under the closed epic
  MOVE     move them to --target
  BACKLOG  remove their parent
  CANCEL   cancel them (asks for confirmation unless --yes)
Children already DONE or CANCELLED are never touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := hierarchy.ParseResolution(resolution)
			if err != nil {
				return err
			}
			if res == hierarchy.ResolutionCancel && !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Cancel every open child of %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.svc.CloseEpic(ctx, a.actor, args[0], res, target)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				success(out, "Closed %s (%s): %d updated, %d untouched",
					bold(result.Epic.Key), res, len(result.Updated), len(result.Untouched))
				return printFailures(out, result.Failed)
			})
		},
	}

	cmd.Flags().StringVarP(&resolution, "resolution", "r", string(hierarchy.ResolutionKeep), "KEEP, MOVE, BACKLOG or CANCEL")
	cmd.Flags().StringVar(&target, "target", "", "target epic for MOVE")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func newEpicTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <project>",
		Short: "Show epics with their children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				h, err := a.svc.GetHierarchy(ctx, args[0])
				if err != nil {
					return err
				}
				printTree(cmd, h)
				return nil
			})
		},
	}
}

func printTree(cmd *cobra.Command, h hierarchy.Hierarchy) {
	out := cmd.OutOrStdout()
	for _, n := range h.Epics {
		state := statusColor(n.Epic.Status)
		if n.Epic.EpicClosed {
			state = faint("closed")
		}
		fmt.Fprintf(out, "%s  %s  %s\n", bold(n.Epic.Key), n.Epic.Title, state)
		for i, c := range n.Children {
			branch := "├─"
			if i == len(n.Children)-1 {
				branch = "└─"
			}
			fmt.Fprintf(out, "  %s %s  %s  %s\n", branch, c.Key, truncate(c.Title, 48), statusColor(c.Status))
		}
		for _, sc := range hierarchy.ChildrenSummary(n.Children) {
			fmt.Fprintf(out, "     %s %d", faint(string(sc.Status)), sc.Count)
		}
		if len(n.Children) > 0 {
			fmt.Fprintln(out)
		}
	}
	if len(h.Unparented) > 0 {
		fmt.Fprintln(out, bold("No epic"))
		for _, c := range h.Unparented {
			fmt.Fprintf(out, "  %s  %s  %s\n", c.Key, truncate(c.Title, 48), statusColor(c.Status))
		}
	}
}

package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/tracker/internal/audit"
	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/hierarchy"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/notify"
	"github.com/zulandar/tracker/internal/status"
	"github.com/zulandar/tracker/internal/store"
)

// parentKey returns the key of the issue's current parent, or its id when
// the parent no longer exists.
func parentKey(ctx context.Context, tx store.Store, issue *models.Issue) (*string, error) {
	if issue.ParentID == nil {
		return nil, nil
	}
	p, err := tx.LoadIssue(ctx, *issue.ParentID)
	if errs.Is[*errs.NotFoundError](err) {
		id := *issue.ParentID
		return &id, nil
	}
	if err != nil {
		return nil, err
	}
	return &p.Key, nil
}

// AttachToEpic makes epicRef the parent of ref, replacing any previous parent.
func (s *Service) AttachToEpic(ctx context.Context, actorID, ref, epicRef string) (*models.Issue, error) {
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(ctx context.Context, tx store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		epic, err := loadIssue(ctx, tx, epicRef)
		if err != nil {
			return nil, err
		}
		if issue.ParentID != nil && *issue.ParentID == epic.ID {
			return nil, nil
		}
		old, err := parentKey(ctx, tx, issue)
		if err != nil {
			return nil, err
		}
		if err := hierarchy.Attach(issue, epic, now); err != nil {
			return nil, err
		}
		return []audit.Payload{audit.SetParent{Old: old, New: &epic.Key}}, nil
	})
	return issue, err
}

// DetachFromEpic clears the parent link. Detaching an unparented issue is a
// no-op.
func (s *Service) DetachFromEpic(ctx context.Context, actorID, ref string) (*models.Issue, error) {
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(ctx context.Context, tx store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		old, err := parentKey(ctx, tx, issue)
		if err != nil {
			return nil, err
		}
		if !hierarchy.Detach(issue, now) {
			return nil, nil
		}
		return []audit.Payload{audit.SetParent{Old: old}}, nil
	})
	return issue, err
}

// sprintRef returns the id and name of the issue's current sprint.
func sprintRef(ctx context.Context, tx store.Store, issue *models.Issue) (*string, string, error) {
	if issue.SprintID == nil {
		return nil, "", nil
	}
	id := *issue.SprintID
	sp, err := tx.LoadSprint(ctx, id)
	if errs.Is[*errs.NotFoundError](err) {
		return &id, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return &id, sp.Name, nil
}

// AssignToSprint moves an issue into a sprint.
func (s *Service) AssignToSprint(ctx context.Context, actorID, ref, sprintID string) (*models.Issue, error) {
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(ctx context.Context, tx store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		sprint, err := tx.LoadSprint(ctx, sprintID)
		if err != nil {
			return nil, err
		}
		return assignSprint(ctx, tx, issue, sprint, now)
	})
	return issue, err
}

func assignSprint(ctx context.Context, tx store.Store, issue *models.Issue, sprint *models.Sprint, now time.Time) ([]audit.Payload, error) {
	if issue.SprintID != nil && *issue.SprintID == sprint.ID {
		return nil, nil
	}
	old, oldName, err := sprintRef(ctx, tx, issue)
	if err != nil {
		return nil, err
	}
	if err := hierarchy.AssignSprint(issue, sprint, now); err != nil {
		return nil, err
	}
	id := sprint.ID
	return []audit.Payload{audit.SetSprint{Old: old, New: &id, OldName: oldName, NewName: sprint.Name}}, nil
}

// MoveToBacklog clears the sprint link.
func (s *Service) MoveToBacklog(ctx context.Context, actorID, ref string) (*models.Issue, error) {
	issue, _, err := s.mutateIssue(ctx, actorID, ref, moveToBacklog)
	return issue, err
}

func moveToBacklog(ctx context.Context, tx store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
	old, oldName, err := sprintRef(ctx, tx, issue)
	if err != nil {
		return nil, err
	}
	if !hierarchy.MoveToBacklog(issue, now) {
		return nil, nil
	}
	return []audit.Payload{audit.SetSprint{Old: old, OldName: oldName}}, nil
}

// CloseEpicResult is the outcome of CloseEpic.
type CloseEpicResult struct {
	Epic *models.Issue `json:"epic"`
	BulkResult
	Untouched []string `json:"untouched"`
}

// CloseEpic marks an epic closed and applies the resolution to each open
// child. The epic is closed first in its own unit of work; each child is
// then updated independently, so a failed child is reported in the result
// and can be retried on its own with the single-issue operations.
func (s *Service) CloseEpic(ctx context.Context, actorID, epicRef string, res hierarchy.Resolution, targetRef string) (*CloseEpicResult, error) {
	res, err := hierarchy.ParseResolution(string(res))
	if err != nil {
		return nil, err
	}

	var plan *hierarchy.ClosePlan
	epic, _, err := s.mutateIssue(ctx, actorID, epicRef, func(ctx context.Context, tx store.Store, epic *models.Issue, now time.Time) ([]audit.Payload, error) {
		var target *models.Issue
		if res == hierarchy.ResolutionMove && targetRef != "" {
			t, err := loadIssue(ctx, tx, targetRef)
			if err != nil {
				return nil, err
			}
			target = t
		}
		children, err := tx.ListIssues(ctx, store.IssueFilter{ParentID: epic.ID})
		if err != nil {
			return nil, err
		}
		plan, err = hierarchy.PlanEpicClose(epic, children, res, target)
		if err != nil {
			return nil, err
		}
		if err := hierarchy.MarkClosed(epic, now); err != nil {
			return nil, err
		}
		p := audit.CloseEpic{Resolution: string(res), Open: len(plan.Open)}
		if target != nil {
			p.Target = &target.Key
		}
		return []audit.Payload{p}, nil
	})
	if err != nil {
		return nil, err
	}

	out := &CloseEpicResult{Epic: epic, Untouched: plan.Untouched}
	for _, id := range plan.Open {
		var err error
		switch res {
		case hierarchy.ResolutionKeep:
			continue
		case hierarchy.ResolutionMove:
			_, err = s.AttachToEpic(ctx, actorID, id, plan.Target.ID)
		case hierarchy.ResolutionBacklog:
			_, err = s.DetachFromEpic(ctx, actorID, id)
		case hierarchy.ResolutionCancel:
			err = s.cancelChild(ctx, actorID, id, epic)
		}
		out.add(id, err)
	}
	s.log.Infow("epic closed", "epic", epic.Key, "resolution", res,
		"updated", len(out.Updated), "failed", len(out.Failed), "actor", actorID)
	s.announce(ctx, recipients(epic, actorID), issueEvent(notify.KindEpicClosed, epic, actorID,
		fmt.Sprintf("closed with %s", res),
		notify.Field{Name: "Updated", Value: fmt.Sprint(len(out.Updated)), Short: true},
		notify.Field{Name: "Failed", Value: fmt.Sprint(len(out.Failed)), Short: true}))
	return out, nil
}

// cancelChild detaches a child from its closing epic and cancels it through
// the status table, recording one entry for each change.
func (s *Service) cancelChild(ctx context.Context, actorID, id string, epic *models.Issue) error {
	_, _, err := s.mutateIssue(ctx, actorID, id, func(_ context.Context, _ store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		var payloads []audit.Payload
		if issue.ParentID != nil && *issue.ParentID == epic.ID {
			hierarchy.Detach(issue, now)
			payloads = append(payloads, audit.SetParent{Old: &epic.Key})
		}
		if issue.IsTerminal() {
			return payloads, nil
		}
		c, err := status.Cancel(issue, now)
		if err != nil {
			return nil, err
		}
		return append(payloads, audit.StatusChange{Old: c.From, New: c.To}), nil
	})
	return err
}

// GetHierarchy returns the project's epics with their children plus the
// unparented leaf issues.
func (s *Service) GetHierarchy(ctx context.Context, projectRef string) (hierarchy.Hierarchy, error) {
	p, err := s.Project(ctx, projectRef)
	if err != nil {
		return hierarchy.Hierarchy{}, err
	}
	issues, err := s.store.ListIssues(ctx, store.IssueFilter{ProjectID: p.ID})
	if err != nil {
		return hierarchy.Hierarchy{}, err
	}
	return hierarchy.Build(p.ID, issues), nil
}

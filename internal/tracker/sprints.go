package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/tracker/internal/audit"
	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/notify"
	"github.com/zulandar/tracker/internal/store"
	"github.com/zulandar/tracker/internal/workitem"
)

// SprintView is a sprint with its derived status.
type SprintView struct {
	models.Sprint
	Status  models.SprintStatus `json:"status"`
	Overdue bool                `json:"overdue"`
}

func (s *Service) view(sp *models.Sprint) SprintView {
	now := s.clock()
	return SprintView{Sprint: *sp, Status: workitem.SprintStatus(sp, now), Overdue: workitem.Overdue(sp, now)}
}

// CreateSprint creates a sprint and records create_sprint on it.
func (s *Service) CreateSprint(ctx context.Context, actorID string, opts workitem.SprintOpts) (*SprintView, error) {
	if err := s.checkUser(ctx, "actor", actorID); err != nil {
		return nil, err
	}
	if opts.ProjectID != "" {
		p, err := s.Project(ctx, opts.ProjectID)
		if err != nil {
			return nil, err
		}
		opts.ProjectID = p.ID
	}
	sp, err := workitem.NewSprint(opts, s.clock())
	if err != nil {
		return nil, err
	}
	err = s.store.Atomic(ctx, func(tx store.Store) error {
		if err := tx.InsertSprint(ctx, sp); err != nil {
			return err
		}
		_, err := audit.NewRecorder(tx, s.clock).Record(ctx, models.ResourceSprint, sp.ID, actorID, audit.CreateSprint{
			Name:      sp.Name,
			StartDate: sp.StartDate.Format(time.DateOnly),
			EndDate:   sp.EndDate.Format(time.DateOnly),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	v := s.view(sp)
	return &v, nil
}

// GetSprint loads a sprint with its derived status.
func (s *Service) GetSprint(ctx context.Context, id string) (*SprintView, error) {
	sp, err := s.store.LoadSprint(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(sp)
	return &v, nil
}

// ListSprints lists a project's sprints by start date.
func (s *Service) ListSprints(ctx context.Context, projectRef string) ([]SprintView, error) {
	p, err := s.Project(ctx, projectRef)
	if err != nil {
		return nil, err
	}
	sprints, err := s.store.ListSprints(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]SprintView, 0, len(sprints))
	for i := range sprints {
		out = append(out, s.view(&sprints[i]))
	}
	return out, nil
}

// CloseSprintResult is the outcome of CloseSprint.
type CloseSprintResult struct {
	Sprint SprintView `json:"sprint"`
	BulkResult
}

// CloseSprint completes a sprint. Its open issues return to the backlog, or
// move to carryTo when given. DONE and CANCELLED issues stay in the closed
// sprint so velocity can be computed later.
func (s *Service) CloseSprint(ctx context.Context, actorID, sprintID string, carryTo *string) (*CloseSprintResult, error) {
	if err := s.checkUser(ctx, "actor", actorID); err != nil {
		return nil, err
	}
	var (
		sprint *models.Sprint
		target *models.Sprint
		open   []string
	)
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		if sprint, err = tx.LoadSprint(ctx, sprintID); err != nil {
			return err
		}
		if carryTo != nil {
			if target, err = tx.LoadSprint(ctx, *carryTo); err != nil {
				return err
			}
			if err := checkCarryTarget(sprint, target, s.clock()); err != nil {
				return err
			}
		}
		issues, err := tx.ListIssues(ctx, store.IssueFilter{SprintID: sprint.ID})
		if err != nil {
			return err
		}
		for _, i := range issues {
			if !i.IsTerminal() {
				open = append(open, i.ID)
			}
		}
		if err := workitem.CloseSprint(sprint, s.clock()); err != nil {
			return err
		}
		if err := tx.SaveSprint(ctx, sprint); err != nil {
			return err
		}
		p := audit.CloseSprint{Moved: len(open)}
		if target != nil {
			p.CarriedTo = &target.ID
		}
		_, err = audit.NewRecorder(tx, s.clock).Record(ctx, models.ResourceSprint, sprint.ID, actorID, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &CloseSprintResult{Sprint: s.view(sprint)}
	for _, id := range open {
		_, _, err := s.mutateIssue(ctx, actorID, id, func(ctx context.Context, tx store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
			if issue.SprintID == nil || *issue.SprintID != sprint.ID {
				return nil, nil
			}
			if target != nil {
				return assignSprint(ctx, tx, issue, target, now)
			}
			return moveToBacklog(ctx, tx, issue, now)
		})
		out.add(id, err)
	}
	s.log.Infow("sprint closed", "sprint", sprint.Name, "moved", len(out.Updated), "failed", len(out.Failed), "actor", actorID)
	dest := "backlog"
	if target != nil {
		dest = target.Name
	}
	s.announce(ctx, []string{actorID}, notify.Event{
		Kind:    notify.KindSprintClosed,
		Title:   sprint.Name,
		ActorID: actorID,
		Summary: fmt.Sprintf("%d open issues moved to %s", len(out.Updated), dest),
	})
	return out, nil
}

func checkCarryTarget(sprint, target *models.Sprint, now time.Time) error {
	switch {
	case target.ID == sprint.ID:
		return errs.Validation("carry_target_self", "cannot carry issues into the sprint being closed")
	case target.ProjectID != sprint.ProjectID:
		return &errs.CrossProjectError{IssueProject: sprint.ProjectID, TargetProject: target.ProjectID}
	case workitem.SprintStatus(target, now) == models.SprintCompleted:
		return errs.Validation("sprint_completed", "sprint %s is completed", target.Name)
	}
	return nil
}

// Velocity summarises story points for one sprint.
type Velocity struct {
	SprintID  string  `json:"sprint_id"`
	Committed float64 `json:"committed"`
	Completed float64 `json:"completed"`
	Issues    int     `json:"issues"`
	Done      int     `json:"done"`
}

// Velocity sums story points of the sprint's issues. Completed counts DONE
// issues only; Committed excludes CANCELLED ones.
func (s *Service) Velocity(ctx context.Context, sprintID string) (*Velocity, error) {
	if _, err := s.store.LoadSprint(ctx, sprintID); err != nil {
		return nil, err
	}
	issues, err := s.store.ListIssues(ctx, store.IssueFilter{SprintID: sprintID})
	if err != nil {
		return nil, err
	}
	v := &Velocity{SprintID: sprintID}
	for _, i := range issues {
		if i.Status == models.StatusCancelled {
			continue
		}
		v.Issues++
		pts := 0.0
		if i.StoryPoints != nil {
			pts = *i.StoryPoints
		}
		v.Committed += pts
		if i.Status == models.StatusDone {
			v.Done++
			v.Completed += pts
		}
	}
	return v, nil
}

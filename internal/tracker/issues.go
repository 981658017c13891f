package tracker

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/zulandar/tracker/internal/audit"
	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/hierarchy"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/notify"
	"github.com/zulandar/tracker/internal/status"
	"github.com/zulandar/tracker/internal/store"
	"github.com/zulandar/tracker/internal/workitem"
)

var projectKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// CreateProject registers a project. Keys are 2-10 upper-case letters or
// digits and prefix every issue key in the project.
func (s *Service) CreateProject(ctx context.Context, actorID, key, name string) (*models.Project, error) {
	if err := s.checkUser(ctx, "actor", actorID); err != nil {
		return nil, err
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	if !projectKeyRe.MatchString(key) {
		return nil, errs.Validation("project_key_invalid", "project key %q must be 2-10 letters or digits starting with a letter", key)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = key
	}
	p := &models.Project{Key: key, Name: name, CreatedAt: s.clock()}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.log.Infow("project created", "project", p.Key, "actor", actorID)
	return p, nil
}

// ListProjects returns every project ordered by key.
func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.store.ListProjects(ctx)
}

// Project resolves a project by id or key.
func (s *Service) Project(ctx context.Context, ref string) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, ref)
	if err == nil || !errs.Is[*errs.NotFoundError](err) {
		return p, err
	}
	return s.store.GetProjectByKey(ctx, strings.ToUpper(ref))
}

// loadIssue resolves ref as an issue id, falling back to a key such as
// "MAR-116".
func loadIssue(ctx context.Context, st store.Store, ref string) (*models.Issue, error) {
	issue, err := st.LoadIssue(ctx, ref)
	if err == nil || !errs.Is[*errs.NotFoundError](err) || !strings.Contains(ref, "-") {
		return issue, err
	}
	return st.LoadIssueByKey(ctx, strings.ToUpper(ref))
}

// CreateIssueOpts describes a new issue. ParentRef and SprintID place it in
// the hierarchy at creation; each placement gets its own audit entry.
type CreateIssueOpts struct {
	workitem.CreateOpts
	ParentRef string
	SprintID  string
}

// CreateIssue creates an issue and records create_issue. The reporter
// defaults to the actor.
func (s *Service) CreateIssue(ctx context.Context, actorID string, opts CreateIssueOpts) (*models.Issue, error) {
	if err := s.checkUser(ctx, "actor", actorID); err != nil {
		return nil, err
	}
	if opts.ReporterID == "" {
		opts.ReporterID = actorID
	}
	if opts.AssigneeID != "" {
		if err := s.checkUser(ctx, "assignee", opts.AssigneeID); err != nil {
			return nil, err
		}
	}
	if opts.ProjectID == "" {
		return nil, errs.Validation("project_required", "project id is required")
	}
	p, err := s.Project(ctx, opts.ProjectID)
	if err != nil {
		return nil, err
	}
	opts.ProjectID = p.ID

	var issue *models.Issue
	err = s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		issue, err = s.insertIssue(ctx, tx, actorID, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("issue created", "issue", issue.Key, "kind", issue.Kind, "actor", actorID)
	if issue.AssigneeID != nil && *issue.AssigneeID != actorID {
		s.announce(ctx, []string{*issue.AssigneeID}, issueEvent(notify.KindAssigned, issue, actorID, "assigned to you"))
	}
	return issue, nil
}

// insertIssue builds, places and inserts an issue and records its entries.
// It must run inside a unit of work.
func (s *Service) insertIssue(ctx context.Context, tx store.Store, actorID string, opts CreateIssueOpts) (*models.Issue, error) {
	now := s.clock()
	issue, err := workitem.NewIssue(opts.CreateOpts, now)
	if err != nil {
		return nil, err
	}

	var epic *models.Issue
	if opts.ParentRef != "" {
		if epic, err = loadIssue(ctx, tx, opts.ParentRef); err != nil {
			return nil, err
		}
		if err := hierarchy.Attach(issue, epic, now); err != nil {
			return nil, err
		}
	}
	var sprint *models.Sprint
	if opts.SprintID != "" {
		if sprint, err = tx.LoadSprint(ctx, opts.SprintID); err != nil {
			return nil, err
		}
		if err := hierarchy.AssignSprint(issue, sprint, now); err != nil {
			return nil, err
		}
	}

	if err := tx.InsertIssue(ctx, issue); err != nil {
		return nil, err
	}
	rec := audit.NewRecorder(tx, s.clock)
	payloads := []audit.Payload{audit.CreateIssue{Key: issue.Key, Kind: issue.Kind, Title: issue.Title}}
	if epic != nil {
		payloads = append(payloads, audit.SetParent{New: &epic.Key})
	}
	if sprint != nil {
		payloads = append(payloads, audit.SetSprint{New: &sprint.ID, NewName: sprint.Name})
	}
	for _, p := range payloads {
		if _, err := rec.RecordIssue(ctx, issue.ID, actorID, p); err != nil {
			return nil, err
		}
	}
	return issue, nil
}

// CreateSubtask creates a leaf issue under an epic. The child gets its own
// create_issue entry and the epic records create_subtask.
func (s *Service) CreateSubtask(ctx context.Context, actorID, epicRef string, opts workitem.CreateOpts) (*models.Issue, error) {
	if err := s.checkUser(ctx, "actor", actorID); err != nil {
		return nil, err
	}
	if opts.ReporterID == "" {
		opts.ReporterID = actorID
	}
	var child, epic *models.Issue
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		if epic, err = loadIssue(ctx, tx, epicRef); err != nil {
			return err
		}
		if !epic.IsEpic() {
			return &errs.InvalidHierarchyError{IssueID: epic.ID, Reason: fmt.Sprintf("%s is %s, not EPIC", epic.Key, epic.Kind)}
		}
		opts.ProjectID = epic.ProjectID
		child, err = s.insertIssue(ctx, tx, actorID, CreateIssueOpts{CreateOpts: opts, ParentRef: epic.ID})
		if err != nil {
			return err
		}
		epic.UpdatedAt = s.clock()
		if err := tx.SaveIssue(ctx, epic); err != nil {
			return err
		}
		_, err = audit.NewRecorder(tx, s.clock).RecordIssue(ctx, epic.ID, actorID,
			audit.CreateSubtask{SubtaskID: child.ID, SubtaskKey: child.Key, Title: child.Title})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, recipients(epic, actorID), issueEvent(notify.KindIssueCreated, epic, actorID,
		fmt.Sprintf("subtask %s created", child.Key), notify.Field{Name: "Subtask", Value: child.Key + " " + child.Title}))
	return child, nil
}

// GetIssue loads an issue by id or key.
func (s *Service) GetIssue(ctx context.Context, ref string) (*models.Issue, error) {
	return loadIssue(ctx, s.store, ref)
}

// ListIssues lists issues matching filter.
func (s *Service) ListIssues(ctx context.Context, filter store.IssueFilter) ([]models.Issue, error) {
	if filter.ProjectID != "" {
		p, err := s.Project(ctx, filter.ProjectID)
		if err != nil {
			return nil, err
		}
		filter.ProjectID = p.ID
	}
	return s.store.ListIssues(ctx, filter)
}

// TransitionStatus moves an issue along the status table.
func (s *Service) TransitionStatus(ctx context.Context, actorID, ref string, to models.Status) (*models.Issue, error) {
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(_ context.Context, _ store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		c, err := status.Transition(issue, to, now)
		if err != nil {
			return nil, err
		}
		return []audit.Payload{audit.StatusChange{Old: c.From, New: c.To}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, recipients(issue, actorID), issueEvent(notify.KindStatusChanged, issue, actorID,
		"status is now "+string(issue.Status)))
	return issue, nil
}

// Cancel moves an issue to CANCELLED.
func (s *Service) Cancel(ctx context.Context, actorID, ref string) (*models.Issue, error) {
	return s.TransitionStatus(ctx, actorID, ref, models.StatusCancelled)
}

// ChangePriority sets the issue priority.
func (s *Service) ChangePriority(ctx context.Context, actorID, ref string, to models.Priority) (*models.Issue, error) {
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(_ context.Context, _ store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		c, err := status.SetPriority(issue, to, now)
		if err != nil {
			return nil, err
		}
		return []audit.Payload{audit.PriorityChange{Old: c.From, New: c.To}}, nil
	})
	return issue, err
}

// UpdateField edits one scalar field. A nil value clears optional fields.
// Setting the same value again records nothing.
func (s *Service) UpdateField(ctx context.Context, actorID, ref string, field status.Field, value *string) (*models.Issue, error) {
	if field == status.FieldAssignee && value != nil && *value != "" {
		if err := s.checkUser(ctx, "assignee", *value); err != nil {
			return nil, err
		}
	}
	issue, recorded, err := s.mutateIssue(ctx, actorID, ref, func(_ context.Context, _ store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		c, err := status.SetField(issue, field, value, now)
		if err != nil {
			return nil, err
		}
		if equalPtr(c.Old, c.New) {
			return nil, nil
		}
		return []audit.Payload{audit.UpdateField{Field: string(c.Field), Old: c.Old, New: c.New}}, nil
	})
	if err != nil {
		return nil, err
	}
	if field == status.FieldAssignee && len(recorded) > 0 && issue.AssigneeID != nil && *issue.AssigneeID != actorID {
		s.announce(ctx, []string{*issue.AssigneeID}, issueEvent(notify.KindAssigned, issue, actorID, "assigned to you"))
	}
	return issue, nil
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AddComment records a comment on an issue.
func (s *Service) AddComment(ctx context.Context, actorID, ref, body string) (*models.Issue, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errs.Validation("comment_required", "comment body is required")
	}
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(_ context.Context, _ store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		issue.UpdatedAt = now
		return []audit.Payload{audit.AddComment{Body: body}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, recipients(issue, actorID), issueEvent(notify.KindCommented, issue, actorID, body))
	return issue, nil
}

func checkLinkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errs.Validation("link_invalid", "link %q must be an absolute http(s) URL", raw)
	}
	return raw, nil
}

// AddLink attaches a URL to an issue. When a resolver recognises the URL its
// title and state are stored in the entry; resolution failures are logged
// and the link is added without them.
func (s *Service) AddLink(ctx context.Context, actorID, ref, rawURL string) (*models.Issue, error) {
	link, err := checkLinkURL(rawURL)
	if err != nil {
		return nil, err
	}
	payload := audit.AddLink{URL: link}
	if s.links != nil {
		info, ok, err := s.links.Resolve(ctx, link)
		switch {
		case err != nil:
			s.log.Warnw("link resolution failed", "url", link, "error", err)
		case ok:
			payload.Title, payload.State = info.Title, info.State
		}
	}
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(ctx context.Context, tx store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		current, err := linksOf(ctx, tx, issue.ID)
		if err != nil {
			return nil, err
		}
		if contains(current, link) {
			return nil, errs.Validation("link_exists", "%s is already linked to %s", link, issue.Key)
		}
		issue.UpdatedAt = now
		return []audit.Payload{payload}, nil
	})
	return issue, err
}

// RemoveLink detaches a URL previously added with AddLink.
func (s *Service) RemoveLink(ctx context.Context, actorID, ref, rawURL string) (*models.Issue, error) {
	link := strings.TrimSpace(rawURL)
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(ctx context.Context, tx store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		current, err := linksOf(ctx, tx, issue.ID)
		if err != nil {
			return nil, err
		}
		if !contains(current, link) {
			return nil, errs.NotFound("link", link)
		}
		issue.UpdatedAt = now
		return []audit.Payload{audit.RemoveLink{URL: link}}, nil
	})
	return issue, err
}

// Links returns the URLs currently linked to an issue, in the order they
// were added.
func (s *Service) Links(ctx context.Context, ref string) ([]string, error) {
	issue, err := loadIssue(ctx, s.store, ref)
	if err != nil {
		return nil, err
	}
	return linksOf(ctx, s.store, issue.ID)
}

// linksOf folds add_link and remove_link entries into the current link set.
func linksOf(ctx context.Context, st store.Store, issueID string) ([]string, error) {
	entries, err := st.QueryAudit(ctx, issueID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		p, err := audit.Decode(e.Action, e.Payload)
		if err != nil {
			continue
		}
		switch v := p.(type) {
		case audit.AddLink:
			if !contains(out, v.URL) {
				out = append(out, v.URL)
			}
		case audit.RemoveLink:
			out = remove(out, v.URL)
		}
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// DeleteIssue removes an issue and records delete_issue in one step, then
// detaches everything that pointed at it. The issue's audit trail is kept.
func (s *Service) DeleteIssue(ctx context.Context, actorID, ref string) (*BulkResult, error) {
	if err := s.checkUser(ctx, "actor", actorID); err != nil {
		return nil, err
	}
	var issue *models.Issue
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		issue, err = loadIssue(ctx, tx, ref)
		if err != nil {
			return err
		}
		if err := tx.DeleteIssue(ctx, issue.ID); err != nil {
			return err
		}
		_, err = audit.NewRecorder(tx, s.clock).RecordIssue(ctx, issue.ID, actorID,
			audit.DeleteIssue{Key: issue.Key, Kind: issue.Kind, Title: issue.Title})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("issue deleted", "issue", issue.Key, "actor", actorID)
	return s.detachFrom(ctx, actorID, issue.ID, issue.Key)
}

// IssueRemoved reacts to an issue deleted outside the tracker by clearing
// parent links that still point at it.
func (s *Service) IssueRemoved(ctx context.Context, actorID, issueID string) (*BulkResult, error) {
	if err := s.checkUser(ctx, "actor", actorID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(issueID) == "" {
		return nil, errs.Validation("issue_required", "removed issue id is required")
	}
	return s.detachFrom(ctx, actorID, issueID, issueID)
}

// detachFrom clears parent links to removedID, one unit of work per child.
func (s *Service) detachFrom(ctx context.Context, actorID, removedID, label string) (*BulkResult, error) {
	deps, err := s.store.ListIssues(ctx, store.IssueFilter{ParentID: removedID})
	if err != nil {
		return nil, err
	}
	res := &BulkResult{}
	for _, d := range deps {
		_, _, err := s.mutateIssue(ctx, actorID, d.ID, func(_ context.Context, _ store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
			ptrs := hierarchy.DetachDependents(removedID, []*models.Issue{issue}, now)
			if len(ptrs) == 0 {
				return nil, nil
			}
			return []audit.Payload{audit.SetParent{Old: &label}}, nil
		})
		res.add(d.ID, err)
	}
	return res, nil
}

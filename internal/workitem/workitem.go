// Package workitem constructs issues and sprints and guards their invariants.
//
// Every setter validates its input completely before touching the issue, so a
// returned error always leaves the issue exactly as it was.
package workitem

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

// MaxTitleLen is the maximum title length in runes.
const MaxTitleLen = 200

// CreateOpts holds parameters for creating a new issue.
type CreateOpts struct {
	ProjectID     string
	Kind          models.Kind
	Title         string
	Description   string
	Priority      models.Priority // defaults to MEDIUM
	ReporterID    string
	AssigneeID    string
	StoryPoints   *float64
	ClientVisible bool
}

// NewIssue builds an unsaved issue. ID, Number and Key are assigned by the store.
func NewIssue(opts CreateOpts, now time.Time) (*models.Issue, error) {
	if opts.ProjectID == "" {
		return nil, errs.Validation("project_required", "project id is required")
	}
	if opts.ReporterID == "" {
		return nil, errs.Validation("reporter_required", "reporter id is required")
	}
	if !opts.Kind.Valid() {
		return nil, errs.Validation("kind_invalid", "unknown kind %q", opts.Kind)
	}
	title, err := normalizeTitle(opts.Title)
	if err != nil {
		return nil, err
	}
	if opts.Priority == "" {
		opts.Priority = models.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return nil, errs.Validation("priority_invalid", "unknown priority %q", opts.Priority)
	}
	if err := checkStoryPoints(opts.Kind, opts.StoryPoints); err != nil {
		return nil, err
	}

	issue := &models.Issue{
		ProjectID:   opts.ProjectID,
		Kind:        opts.Kind,
		Title:       title,
		Description: opts.Description,
		Status:      models.StatusTodo,
		Priority:    opts.Priority,
		ReporterID:  opts.ReporterID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.AssigneeID != "" {
		issue.AssigneeID = &opts.AssigneeID
	}
	if opts.StoryPoints != nil {
		pts := *opts.StoryPoints
		issue.StoryPoints = &pts
	}
	if opts.ClientVisible {
		SetClientVisible(issue, true, now)
	}
	return issue, nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errs.Validation("title_required", "title is required")
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleLen {
		return "", errs.Validation("title_too_long", "title is %d characters, max %d", n, MaxTitleLen)
	}
	return title, nil
}

func checkStoryPoints(kind models.Kind, pts *float64) error {
	if pts == nil {
		return nil
	}
	if !kind.IsLeaf() {
		return errs.Validation("story_points_leaf_only", "story points apply to leaf kinds only, not %s", kind)
	}
	if *pts < 0 {
		return errs.Validation("story_points_negative", "story points must be non-negative, got %v", *pts)
	}
	return nil
}

// SetTitle replaces the title.
func SetTitle(issue *models.Issue, title string, now time.Time) error {
	t, err := normalizeTitle(title)
	if err != nil {
		return err
	}
	issue.Title = t
	issue.UpdatedAt = now
	return nil
}

// SetDescription replaces the description. Any text is accepted.
func SetDescription(issue *models.Issue, desc string, now time.Time) {
	issue.Description = desc
	issue.UpdatedAt = now
}

// SetAssignee sets or clears (empty id) the assignee.
func SetAssignee(issue *models.Issue, assigneeID string, now time.Time) {
	if assigneeID == "" {
		issue.AssigneeID = nil
	} else {
		issue.AssigneeID = &assigneeID
	}
	issue.UpdatedAt = now
}

// SetStoryPoints sets or clears (nil) the estimate.
func SetStoryPoints(issue *models.Issue, pts *float64, now time.Time) error {
	if err := checkStoryPoints(issue.Kind, pts); err != nil {
		return err
	}
	if pts == nil {
		issue.StoryPoints = nil
	} else {
		v := *pts
		issue.StoryPoints = &v
	}
	issue.UpdatedAt = now
	return nil
}

// SetParent points issue at epic. Only leaf issues may have a parent and the
// parent must be an epic of the same project.
func SetParent(issue, epic *models.Issue, now time.Time) error {
	if issue.IsEpic() {
		return &errs.InvalidHierarchyError{IssueID: issue.ID, Reason: "epics cannot have a parent"}
	}
	if !epic.IsEpic() {
		return &errs.InvalidHierarchyError{IssueID: issue.ID, Reason: "parent " + epic.ID + " is " + string(epic.Kind) + ", not EPIC"}
	}
	if issue.ProjectID != epic.ProjectID {
		return &errs.CrossProjectError{IssueProject: issue.ProjectID, TargetProject: epic.ProjectID}
	}
	id := epic.ID
	issue.ParentID = &id
	issue.UpdatedAt = now
	return nil
}

// ClearParent removes the parent. It reports whether anything changed.
func ClearParent(issue *models.Issue, now time.Time) bool {
	if issue.ParentID == nil {
		return false
	}
	issue.ParentID = nil
	issue.UpdatedAt = now
	return true
}

// SetSprint places issue in sprint.
func SetSprint(issue *models.Issue, sprint *models.Sprint, now time.Time) error {
	if issue.ProjectID != sprint.ProjectID {
		return &errs.CrossProjectError{IssueProject: issue.ProjectID, TargetProject: sprint.ProjectID}
	}
	id := sprint.ID
	issue.SprintID = &id
	issue.UpdatedAt = now
	return nil
}

// ClearSprint moves issue to the backlog. It reports whether anything changed.
func ClearSprint(issue *models.Issue, now time.Time) bool {
	if issue.SprintID == nil {
		return false
	}
	issue.SprintID = nil
	issue.UpdatedAt = now
	return true
}

// SetClientVisible toggles client visibility. Turning it on with no approval
// history starts the approval at PENDING. Turning it off keeps the stored
// approval state; ClientView hides it. Never fails.
func SetClientVisible(issue *models.Issue, visible bool, now time.Time) bool {
	if issue.ClientVisible == visible {
		return false
	}
	issue.ClientVisible = visible
	if visible && issue.ClientApprovalStatus == nil {
		pending := models.ApprovalPending
		issue.ClientApprovalStatus = &pending
	}
	issue.UpdatedAt = now
	return true
}

// ClientView returns a copy of issue suitable for client exposure: approval
// fields are nil unless the issue is client-visible.
func ClientView(issue *models.Issue) *models.Issue {
	c := issue.Clone()
	if !c.ClientVisible {
		c.ClientApprovalStatus = nil
		c.ClientFeedback = nil
	}
	return c
}

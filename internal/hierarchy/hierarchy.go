// Package hierarchy maintains the two independent partitions over leaf
// issues: epic -> children and sprint -> issues (or backlog).
//
// The package only mutates in-memory issues. Callers persist the result and
// record the audit entry for the action they performed.
package hierarchy

import (
	"errors"
	"sort"
	"time"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/workitem"
)

// Attach makes epic the parent of issue, replacing any previous parent.
func Attach(issue, epic *models.Issue, now time.Time) error {
	if epic.IsEpic() && epic.EpicClosed {
		return &errs.InvalidHierarchyError{IssueID: issue.ID, Reason: "epic " + epic.Key + " is closed"}
	}
	if issue.ID != "" && issue.ID == epic.ID {
		return &errs.InvalidHierarchyError{IssueID: issue.ID, Reason: "issue cannot be its own parent"}
	}
	if err := workitem.SetParent(issue, epic, now); err != nil {
		var cp *errs.CrossProjectError
		if errors.As(err, &cp) {
			return &errs.InvalidHierarchyError{IssueID: issue.ID, Reason: cp.Error()}
		}
		return err
	}
	return nil
}

// Detach clears the parent link. It is a no-op when already detached and
// reports whether anything changed.
func Detach(issue *models.Issue, now time.Time) bool {
	return workitem.ClearParent(issue, now)
}

// AssignSprint moves issue into sprint. Completed sprints accept no new issues.
func AssignSprint(issue *models.Issue, sprint *models.Sprint, now time.Time) error {
	if err := workitem.SetSprint(issue.Clone(), sprint, now); err != nil {
		return err
	}
	if workitem.SprintStatus(sprint, now) == models.SprintCompleted {
		return errs.Validation("sprint_completed", "sprint %s is completed", sprint.Name)
	}
	return workitem.SetSprint(issue, sprint, now)
}

// MoveToBacklog clears the sprint link. It reports whether anything changed.
func MoveToBacklog(issue *models.Issue, now time.Time) bool {
	return workitem.ClearSprint(issue, now)
}

// EpicNode is an epic with its children ordered by issue number.
type EpicNode struct {
	Epic     models.Issue
	Children []models.Issue
}

// Hierarchy is the epic/children view of one project.
type Hierarchy struct {
	ProjectID  string
	Epics      []EpicNode
	Unparented []models.Issue
}

// Build groups the project's issues into epics with children plus the leaf
// issues without a parent. Closed epics are included; readers filter on
// EpicClosed themselves. Issues of other projects are ignored, and a child
// whose parent is not among issues is treated as unparented.
func Build(projectID string, issues []models.Issue) Hierarchy {
	h := Hierarchy{ProjectID: projectID}
	index := make(map[string]int)
	var leaves []models.Issue

	for _, i := range issues {
		if i.ProjectID != projectID {
			continue
		}
		if i.IsEpic() {
			index[i.ID] = len(h.Epics)
			h.Epics = append(h.Epics, EpicNode{Epic: i})
			continue
		}
		leaves = append(leaves, i)
	}
	for _, l := range leaves {
		if l.ParentID != nil {
			if n, ok := index[*l.ParentID]; ok {
				h.Epics[n].Children = append(h.Epics[n].Children, l)
				continue
			}
		}
		h.Unparented = append(h.Unparented, l)
	}

	sort.SliceStable(h.Epics, func(a, b int) bool { return h.Epics[a].Epic.Number < h.Epics[b].Epic.Number })
	for n := range h.Epics {
		sortByNumber(h.Epics[n].Children)
	}
	sortByNumber(h.Unparented)
	return h
}

func sortByNumber(issues []models.Issue) {
	sort.SliceStable(issues, func(a, b int) bool { return issues[a].Number < issues[b].Number })
}

// StatusCount holds a status and its count for children summaries.
type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int           `json:"count"`
}

// ChildrenSummary counts children by status in workflow order, omitting zeros.
func ChildrenSummary(children []models.Issue) []StatusCount {
	counts := make(map[models.Status]int)
	for _, c := range children {
		counts[c.Status]++
	}
	var out []StatusCount
	for _, s := range models.Statuses {
		if counts[s] > 0 {
			out = append(out, StatusCount{Status: s, Count: counts[s]})
		}
	}
	return out
}

// DetachDependents clears parent and sprint back-references to a resource
// that no longer exists. It returns the issues it changed.
func DetachDependents(removedID string, issues []*models.Issue, now time.Time) []*models.Issue {
	var changed []*models.Issue
	for _, i := range issues {
		touched := false
		if i.ParentID != nil && *i.ParentID == removedID {
			touched = workitem.ClearParent(i, now) || touched
		}
		if i.SprintID != nil && *i.SprintID == removedID {
			touched = workitem.ClearSprint(i, now) || touched
		}
		if touched {
			changed = append(changed, i)
		}
	}
	return changed
}

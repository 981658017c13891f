package hierarchy

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

// Resolution decides what happens to an epic's open children when it closes.
type Resolution string

const (
	ResolutionKeep    Resolution = "KEEP"
	ResolutionMove    Resolution = "MOVE"
	ResolutionBacklog Resolution = "BACKLOG"
	ResolutionCancel  Resolution = "CANCEL"
)

// ParseResolution accepts a resolution name in any case.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case ResolutionKeep, ResolutionMove, ResolutionBacklog, ResolutionCancel:
		return r, nil
	}
	return "", errs.Validation("resolution_invalid", "unknown resolution %q (want KEEP, MOVE, BACKLOG or CANCEL)", s)
}

// ClosePlan lists the children an epic close will touch.
type ClosePlan struct {
	Epic       *models.Issue
	Resolution Resolution
	Target     *models.Issue // MOVE only
	// Open holds the ids of children that get the resolution applied, in
	// issue-number order.
	Open []string
	// Untouched holds children already DONE or CANCELLED.
	Untouched []string
}

// PlanEpicClose validates a close request and selects the children it
// applies to. children may include issues that are not the epic's children;
// they are ignored.
func PlanEpicClose(epic *models.Issue, children []models.Issue, res Resolution, target *models.Issue) (*ClosePlan, error) {
	if !epic.IsEpic() {
		return nil, &errs.InvalidHierarchyError{IssueID: epic.ID, Reason: "only epics can be closed"}
	}
	if epic.EpicClosed {
		return nil, errs.Validation("epic_closed", "epic %s is already closed", epic.Key)
	}
	if _, err := ParseResolution(string(res)); err != nil {
		return nil, err
	}
	if res == ResolutionMove {
		if err := checkMoveTarget(epic, target); err != nil {
			return nil, err
		}
	} else {
		target = nil
	}

	kids := make([]models.Issue, 0, len(children))
	for _, c := range children {
		if c.ParentID != nil && *c.ParentID == epic.ID {
			kids = append(kids, c)
		}
	}
	sortByNumber(kids)

	plan := &ClosePlan{Epic: epic, Resolution: res, Target: target}
	for _, c := range kids {
		if c.IsTerminal() {
			plan.Untouched = append(plan.Untouched, c.ID)
			continue
		}
		plan.Open = append(plan.Open, c.ID)
	}
	return plan, nil
}

func checkMoveTarget(epic, target *models.Issue) error {
	if target == nil {
		return errs.Validation("target_required", "MOVE requires a target epic")
	}
	switch {
	case target.ID == epic.ID:
		return &errs.InvalidHierarchyError{IssueID: epic.ID, Reason: "cannot move children to the epic being closed"}
	case !target.IsEpic():
		return &errs.InvalidHierarchyError{IssueID: epic.ID, Reason: fmt.Sprintf("target %s is %s, not EPIC", target.Key, target.Kind)}
	case target.EpicClosed:
		return &errs.InvalidHierarchyError{IssueID: epic.ID, Reason: fmt.Sprintf("target epic %s is closed", target.Key)}
	case target.ProjectID != epic.ProjectID:
		return &errs.CrossProjectError{IssueProject: epic.ProjectID, TargetProject: target.ProjectID}
	}
	return nil
}

// MarkClosed sets the epic's closed marker. There is no reopen.
func MarkClosed(epic *models.Issue, now time.Time) error {
	if !epic.IsEpic() {
		return &errs.InvalidHierarchyError{IssueID: epic.ID, Reason: "only epics can be closed"}
	}
	if epic.EpicClosed {
		return errs.Validation("epic_closed", "epic %s is already closed", epic.Key)
	}
	t := now
	epic.EpicClosed = true
	epic.ClosedAt = &t
	epic.UpdatedAt = now
	return nil
}

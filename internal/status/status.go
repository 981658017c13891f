// Package status applies execution-status, priority and scalar field changes
// to issues. Only status changes are governed by a transition table.
package status

import (
	"slices"
	"strconv"
	"time"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/workitem"
)

// ValidTransitions maps each status to its valid next statuses.
// DONE and CANCELLED are terminal except for the DONE -> IN_PROGRESS reopen.
var ValidTransitions = map[models.Status][]models.Status{
	models.StatusTodo:       {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusTodo, models.StatusInReview, models.StatusCancelled},
	models.StatusInReview:   {models.StatusInProgress, models.StatusDone, models.StatusCancelled},
	models.StatusDone:       {models.StatusInProgress},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to models.Status) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// Change records an old/new pair for a status or priority change.
type Change[T any] struct {
	From T
	To   T
}

// Transition moves issue to the target status.
func Transition(issue *models.Issue, to models.Status, now time.Time) (Change[models.Status], error) {
	if !to.Valid() {
		return Change[models.Status]{}, errs.Validation("status_invalid", "unknown status %q", to)
	}
	from := issue.Status
	if !CanTransition(from, to) {
		return Change[models.Status]{}, &errs.IllegalTransitionError{Machine: "status", From: string(from), To: string(to)}
	}
	issue.Status = to
	issue.UpdatedAt = now
	return Change[models.Status]{From: from, To: to}, nil
}

// Cancel moves a non-terminal issue to CANCELLED.
func Cancel(issue *models.Issue, now time.Time) (Change[models.Status], error) {
	return Transition(issue, models.StatusCancelled, now)
}

// SetPriority changes the priority. Any priority may follow any other.
func SetPriority(issue *models.Issue, to models.Priority, now time.Time) (Change[models.Priority], error) {
	if !to.Valid() {
		return Change[models.Priority]{}, errs.Validation("priority_invalid", "unknown priority %q", to)
	}
	from := issue.Priority
	if from == to {
		return Change[models.Priority]{}, errs.Validation("priority_unchanged", "priority is already %s", to)
	}
	issue.Priority = to
	issue.UpdatedAt = now
	return Change[models.Priority]{From: from, To: to}, nil
}

// Field names a scalar issue field editable through SetField.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldAssignee    Field = "assignee"
	FieldStoryPoints Field = "story_points"
)

// FieldChange is the before/after of a scalar field edit. Nil means unset.
type FieldChange struct {
	Field Field
	Old   *string
	New   *string
}

// SetField edits a scalar field. value nil clears optional fields.
func SetField(issue *models.Issue, field Field, value *string, now time.Time) (FieldChange, error) {
	old := fieldValue(issue, field)
	switch field {
	case FieldTitle:
		if value == nil {
			return FieldChange{}, errs.Validation("title_required", "title is required")
		}
		if err := workitem.SetTitle(issue, *value, now); err != nil {
			return FieldChange{}, err
		}
	case FieldDescription:
		d := ""
		if value != nil {
			d = *value
		}
		workitem.SetDescription(issue, d, now)
	case FieldAssignee:
		a := ""
		if value != nil {
			a = *value
		}
		workitem.SetAssignee(issue, a, now)
	case FieldStoryPoints:
		var pts *float64
		if value != nil && *value != "" {
			f, err := strconv.ParseFloat(*value, 64)
			if err != nil {
				return FieldChange{}, errs.Validation("story_points_invalid", "story points %q is not a number", *value)
			}
			pts = &f
		}
		if err := workitem.SetStoryPoints(issue, pts, now); err != nil {
			return FieldChange{}, err
		}
	default:
		return FieldChange{}, errs.Validation("field_unknown", "field %q is not editable", field)
	}
	return FieldChange{Field: field, Old: old, New: fieldValue(issue, field)}, nil
}

func fieldValue(issue *models.Issue, field Field) *string {
	var s string
	switch field {
	case FieldTitle:
		s = issue.Title
	case FieldDescription:
		if issue.Description == "" {
			return nil
		}
		s = issue.Description
	case FieldAssignee:
		if issue.AssigneeID == nil {
			return nil
		}
		s = *issue.AssigneeID
	case FieldStoryPoints:
		if issue.StoryPoints == nil {
			return nil
		}
		s = strconv.FormatFloat(*issue.StoryPoints, 'f', -1, 64)
	default:
		return nil
	}
	return &s
}

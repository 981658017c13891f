package activity

import (
	"fmt"
	"strings"

	"github.com/zulandar/tracker/internal/audit"
	"github.com/zulandar/tracker/internal/models"
)

// Format renders a single entry. Unknown tags, and payloads that fail to
// decode, produce "performed action: <tag>".
func Format(e models.AuditEntry) Line {
	line := Line{
		EntryID: e.ID,
		At:      e.CreatedAt,
		ActorID: e.ActorID,
		Action:  e.Action,
	}
	if !audit.Known(e.Action) {
		line.Text = fallback(e.Action)
		return line
	}
	p, err := audit.Decode(e.Action, e.Payload)
	if err != nil {
		line.Text = fallback(e.Action)
		return line
	}

	switch v := p.(type) {
	case audit.CreateIssue:
		line.Text = fmt.Sprintf("created %s %s: %s", strings.ToLower(string(v.Kind)), v.Key, v.Title)
	case audit.DeleteIssue:
		line.Text = fmt.Sprintf("deleted %s %s: %s", strings.ToLower(string(v.Kind)), v.Key, v.Title)
	case audit.StatusChange:
		line.Text = fmt.Sprintf("%s (%s → %s)", statusVerb(v.New), statusLabel(v.Old), statusLabel(v.New))
	case audit.PriorityChange:
		line.Text = fmt.Sprintf("changed priority from %s to %s", lower(v.Old), lower(v.New))
	case audit.UpdateField:
		line.Text = fieldText(v)
	case audit.ClientApproval:
		line.Text = approvalVerb(v.Status)
		if v.Feedback != nil {
			line.Detail = *v.Feedback
		}
	case audit.ClientVisibility:
		if v.Visible {
			line.Text = "made the issue visible to the client"
		} else {
			line.Text = "hid the issue from the client"
		}
	case audit.AddComment:
		line.Text = "commented"
		line.Detail = v.Body
	case audit.AddLink:
		if v.Title != "" {
			line.Text = fmt.Sprintf("linked %q (%s)", v.Title, v.URL)
		} else {
			line.Text = "linked " + v.URL
		}
	case audit.RemoveLink:
		line.Text = "removed link " + v.URL
	case audit.CreateSubtask:
		line.Text = fmt.Sprintf("created subtask %s: %s", v.SubtaskKey, v.Title)
	case audit.SetParent:
		line.Text = parentText(v)
	case audit.SetSprint:
		line.Text = sprintText(v)
	case audit.CloseEpic:
		line.Text = fmt.Sprintf("closed the epic (%s, %d open children)", lower(v.Resolution), v.Open)
	case audit.CreateSprint:
		line.Text = fmt.Sprintf("created sprint %s (%s to %s)", v.Name, v.StartDate, v.EndDate)
	case audit.CloseSprint:
		if v.CarriedTo != nil {
			line.Text = fmt.Sprintf("closed the sprint, carried %d issues to %s", v.Moved, *v.CarriedTo)
		} else {
			line.Text = fmt.Sprintf("closed the sprint, returned %d issues to the backlog", v.Moved)
		}
	default:
		line.Text = fallback(e.Action)
	}
	return line
}

func fallback(tag models.Action) string {
	return "performed action: " + string(tag)
}

func lower[T ~string](s T) string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

func statusLabel(s models.Status) string { return lower(s) }

// statusVerb returns a human-friendly verb for a status transition target.
func statusVerb(to models.Status) string {
	switch to {
	case models.StatusInProgress:
		return "started work"
	case models.StatusInReview:
		return "sent for review"
	case models.StatusDone:
		return "completed"
	case models.StatusCancelled:
		return "cancelled"
	case models.StatusTodo:
		return "moved back to to-do"
	default:
		return "changed status"
	}
}

func approvalVerb(s models.ApprovalStatus) string {
	switch s {
	case models.ApprovalApproved:
		return "client approved"
	case models.ApprovalRejected:
		return "client rejected"
	case models.ApprovalChangesRequested:
		return "client requested changes"
	case models.ApprovalPending:
		return "resubmitted for client approval"
	default:
		return "updated client approval"
	}
}

func fieldText(v audit.UpdateField) string {
	name := lower(v.Field)
	switch {
	case v.New == nil:
		return "cleared " + name
	case v.Old == nil:
		return fmt.Sprintf("set %s to %q", name, *v.New)
	default:
		return fmt.Sprintf("changed %s from %q to %q", name, *v.Old, *v.New)
	}
}

func parentText(v audit.SetParent) string {
	switch {
	case v.Old != nil && v.New != nil:
		return fmt.Sprintf("moved from epic %s to %s", *v.Old, *v.New)
	case v.New != nil:
		return "added to epic " + *v.New
	case v.Old != nil:
		return "removed from epic " + *v.Old
	default:
		return "removed from epic"
	}
}

func sprintText(v audit.SetSprint) string {
	oldName, newName := v.OldName, v.NewName
	if oldName == "" && v.Old != nil {
		oldName = *v.Old
	}
	if newName == "" && v.New != nil {
		newName = *v.New
	}
	switch {
	case v.Old != nil && v.New != nil:
		return fmt.Sprintf("moved from sprint %s to %s", oldName, newName)
	case v.New != nil:
		return "added to sprint " + newName
	default:
		return "moved to the backlog"
	}
}

package api

import (
	"encoding/json"
	"time"

	"github.com/zulandar/tracker/internal/hierarchy"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/tracker"
	"github.com/zulandar/tracker/internal/workitem"
)

type issueJSON struct {
	ID                   string                 `json:"id"`
	Key                  string                 `json:"key"`
	ProjectID            string                 `json:"project_id"`
	Kind                 models.Kind            `json:"kind"`
	Title                string                 `json:"title"`
	Description          string                 `json:"description,omitempty"`
	Status               models.Status          `json:"status"`
	Priority             models.Priority        `json:"priority"`
	ParentID             *string                `json:"parent_id"`
	SprintID             *string                `json:"sprint_id"`
	ClientVisible        bool                   `json:"client_visible"`
	ClientApprovalStatus *models.ApprovalStatus `json:"client_approval_status"`
	ClientFeedback       *string                `json:"client_feedback"`
	ReporterID           string                 `json:"reporter_id"`
	AssigneeID           *string                `json:"assignee_id"`
	StoryPoints          *float64               `json:"story_points"`
	EpicClosed           bool                   `json:"epic_closed,omitempty"`
	ClosedAt             *time.Time             `json:"closed_at,omitempty"`
	Version              int64                  `json:"version"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// toIssue renders an issue. Approval fields are always suppressed for
// hidden issues.
func toIssue(i *models.Issue) issueJSON {
	v := workitem.ClientView(i)
	return issueJSON{
		ID:                   v.ID,
		Key:                  v.Key,
		ProjectID:            v.ProjectID,
		Kind:                 v.Kind,
		Title:                v.Title,
		Description:          v.Description,
		Status:               v.Status,
		Priority:             v.Priority,
		ParentID:             v.ParentID,
		SprintID:             v.SprintID,
		ClientVisible:        v.ClientVisible,
		ClientApprovalStatus: v.ClientApprovalStatus,
		ClientFeedback:       v.ClientFeedback,
		ReporterID:           v.ReporterID,
		AssigneeID:           v.AssigneeID,
		StoryPoints:          v.StoryPoints,
		EpicClosed:           v.EpicClosed,
		ClosedAt:             v.ClosedAt,
		Version:              v.Version,
		CreatedAt:            v.CreatedAt,
		UpdatedAt:            v.UpdatedAt,
	}
}

func toIssues(in []models.Issue) []issueJSON {
	out := make([]issueJSON, 0, len(in))
	for i := range in {
		out = append(out, toIssue(&in[i]))
	}
	return out
}

type projectJSON struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toProject(p *models.Project) projectJSON {
	return projectJSON{ID: p.ID, Key: p.Key, Name: p.Name, CreatedAt: p.CreatedAt}
}

type sprintJSON struct {
	ID        string              `json:"id"`
	ProjectID string              `json:"project_id"`
	Name      string              `json:"name"`
	Goal      string              `json:"goal,omitempty"`
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	Status    models.SprintStatus `json:"status"`
	Overdue   bool                `json:"overdue"`
	ClosedAt  *time.Time          `json:"closed_at,omitempty"`
	Version   int64               `json:"version"`
}

func toSprint(v *tracker.SprintView) sprintJSON {
	return sprintJSON{
		ID:        v.ID,
		ProjectID: v.ProjectID,
		Name:      v.Name,
		Goal:      v.Goal,
		StartDate: v.StartDate.Format(time.DateOnly),
		EndDate:   v.EndDate.Format(time.DateOnly),
		Status:    v.Status,
		Overdue:   v.Overdue,
		ClosedAt:  v.ClosedAt,
		Version:   v.Version,
	}
}

type epicNodeJSON struct {
	Epic     issueJSON               `json:"epic"`
	Children []issueJSON             `json:"children"`
	Summary  []hierarchy.StatusCount `json:"summary"`
}

type hierarchyJSON struct {
	ProjectID  string         `json:"project_id"`
	Epics      []epicNodeJSON `json:"epics"`
	Unparented []issueJSON    `json:"unparented"`
}

func toHierarchy(h hierarchy.Hierarchy) hierarchyJSON {
	out := hierarchyJSON{ProjectID: h.ProjectID, Epics: []epicNodeJSON{}, Unparented: toIssues(h.Unparented)}
	for _, n := range h.Epics {
		out.Epics = append(out.Epics, epicNodeJSON{
			Epic:     toIssue(&n.Epic),
			Children: toIssues(n.Children),
			Summary:  hierarchy.ChildrenSummary(n.Children),
		})
	}
	return out
}

type auditJSON struct {
	ID           string              `json:"id"`
	ResourceType models.ResourceType `json:"resource_type"`
	ResourceID   string              `json:"resource_id"`
	ActorID      string              `json:"actor_id"`
	Action       models.Action       `json:"action"`
	Payload      rawJSON             `json:"payload"`
	CreatedAt    time.Time           `json:"created_at"`
}

// rawJSON embeds stored JSON text verbatim. Text that is not valid JSON is
// emitted as a string.
type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	if !json.Valid([]byte(r)) {
		return json.Marshal(string(r))
	}
	return []byte(r), nil
}

func toAudit(in []models.AuditEntry) []auditJSON {
	out := make([]auditJSON, 0, len(in))
	for _, e := range in {
		out = append(out, auditJSON{
			ID:           e.ID,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			ActorID:      e.ActorID,
			Action:       e.Action,
			Payload:      rawJSON(e.Payload),
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}

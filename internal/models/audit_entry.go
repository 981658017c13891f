package models

import "time"

// ResourceType names the subject of an audit entry.
type ResourceType string

const (
	ResourceIssue  ResourceType = "issue"
	ResourceSprint ResourceType = "sprint"
)

// Action is the discriminating tag of an audit entry.
type Action string

const (
	ActionCreateIssue      Action = "create_issue"
	ActionDeleteIssue      Action = "delete_issue"
	ActionStatusChange     Action = "status_change"
	ActionPriorityChange   Action = "priority_change"
	ActionUpdateField      Action = "update_field"
	ActionClientApproval   Action = "client_approval"
	ActionClientVisibility Action = "client_visibility"
	ActionAddComment       Action = "add_comment"
	ActionAddLink          Action = "add_link"
	ActionRemoveLink       Action = "remove_link"
	ActionCreateSubtask    Action = "create_subtask"
	ActionSetParent        Action = "set_parent"
	ActionSetSprint        Action = "set_sprint"
	ActionCloseEpic        Action = "close_epic"
	ActionCreateSprint     Action = "create_sprint"
	ActionCloseSprint      Action = "close_sprint"
)

// AuditEntry is one immutable record of a single mutation. Rows are only
// ever inserted.
type AuditEntry struct {
	ID           string       `gorm:"primaryKey;size:32"`
	ResourceType ResourceType `gorm:"size:16;not null;index:idx_audit_resource"`
	ResourceID   string       `gorm:"size:32;not null;index:idx_audit_resource"`
	ActorID      string       `gorm:"size:64;not null"`
	Action       Action       `gorm:"size:32;not null"`
	Payload      string       `gorm:"type:text"`
	CreatedAt    time.Time    `gorm:"index;autoCreateTime:false"`
}

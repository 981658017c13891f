package models

import "time"

// Kind is the type of work an issue tracks. EPIC is the only container kind.
type Kind string

const (
	KindEpic    Kind = "EPIC"
	KindStory   Kind = "STORY"
	KindTask    Kind = "TASK"
	KindBug     Kind = "BUG"
	KindFeature Kind = "FEATURE"
	KindSupport Kind = "SUPPORT"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindEpic, KindStory, KindTask, KindBug, KindFeature, KindSupport}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// IsLeaf reports whether k is a leaf (non-container) kind.
func (k Kind) IsLeaf() bool { return k != KindEpic }

// Status is the execution state of an issue.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInReview   Status = "IN_REVIEW"
	StatusDone       Status = "DONE"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists every execution status.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusInReview, StatusDone, StatusCancelled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority is the urgency of an issue.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ApprovalStatus is the client-approval sub-state of a client-visible issue.
type ApprovalStatus string

const (
	ApprovalPending          ApprovalStatus = "PENDING"
	ApprovalApproved         ApprovalStatus = "APPROVED"
	ApprovalRejected         ApprovalStatus = "REJECTED"
	ApprovalChangesRequested ApprovalStatus = "CHANGES_REQUESTED"
)

// Valid reports whether a is a known approval status.
func (a ApprovalStatus) Valid() bool {
	switch a {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalChangesRequested:
		return true
	}
	return false
}

// Issue is the central work item.
type Issue struct {
	ID          string   `gorm:"primaryKey;size:32"`
	ProjectID   string   `gorm:"size:32;not null;uniqueIndex:idx_issue_project_number"`
	Number      int64    `gorm:"not null;uniqueIndex:idx_issue_project_number"`
	Key         string   `gorm:"size:48;not null;uniqueIndex"`
	Kind        Kind     `gorm:"size:16;not null;index"`
	Title       string   `gorm:"size:255;not null"`
	Description string   `gorm:"type:text"`
	Status      Status   `gorm:"size:16;default:TODO;index"`
	Priority    Priority `gorm:"size:16;default:MEDIUM"`
	ParentID    *string  `gorm:"size:32;index"`
	SprintID    *string  `gorm:"size:32;index"`

	ClientVisible        bool            `gorm:"default:false"`
	ClientApprovalStatus *ApprovalStatus `gorm:"size:24"`
	ClientFeedback       *string         `gorm:"type:text"`

	ReporterID  string  `gorm:"size:64;not null"`
	AssigneeID  *string `gorm:"size:64;index"`
	StoryPoints *float64

	// EpicClosed marks an epic as closed; epics are never reopened here.
	EpicClosed bool `gorm:"default:false"`
	ClosedAt   *time.Time

	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

// IsEpic reports whether the issue is a container.
func (i *Issue) IsEpic() bool { return i.Kind == KindEpic }

// IsTerminal reports whether the issue sits in DONE or CANCELLED.
func (i *Issue) IsTerminal() bool {
	return i.Status == StatusDone || i.Status == StatusCancelled
}

// Clone returns a deep copy so callers can mutate without aliasing pointer fields.
func (i *Issue) Clone() *Issue {
	c := *i
	c.ParentID = clonePtr(i.ParentID)
	c.SprintID = clonePtr(i.SprintID)
	c.ClientApprovalStatus = clonePtr(i.ClientApprovalStatus)
	c.ClientFeedback = clonePtr(i.ClientFeedback)
	c.AssigneeID = clonePtr(i.AssigneeID)
	c.StoryPoints = clonePtr(i.StoryPoints)
	c.ClosedAt = clonePtr(i.ClosedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

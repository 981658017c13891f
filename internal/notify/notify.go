// Package notify delivers best-effort notifications about tracker events to
// users over chat platforms. Delivery failures are returned to the caller,
// which logs them and carries on; they never undo a committed mutation.
package notify

import (
	"context"
	"errors"
)

// Kind classifies an event.
type Kind string

const (
	KindIssueCreated        Kind = "issue_created"
	KindStatusChanged       Kind = "status_changed"
	KindAssigned            Kind = "assigned"
	KindApprovalDecided     Kind = "approval_decided"
	KindApprovalResubmitted Kind = "approval_resubmitted"
	KindCommented           Kind = "commented"
	KindEpicClosed          Kind = "epic_closed"
	KindSprintClosed        Kind = "sprint_closed"
	KindDigest              Kind = "digest"
)

// Event is a platform-neutral notification.
type Event struct {
	Kind     Kind
	IssueKey string // empty for project-level events
	Title    string
	ActorID  string
	Summary  string
	Fields   []Field
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Notifier sends an event to one user.
type Notifier interface {
	Notify(ctx context.Context, userID string, e Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, userID string, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, userID, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

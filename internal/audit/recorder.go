package audit

import (
	"context"
	"time"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

// Appender is the append-only side of the audit store.
type Appender interface {
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
}

// Recorder builds audit entries and appends them. It is cheap to construct;
// callers inside a transaction build one around the transactional store.
type Recorder struct {
	store Appender
	now   func() time.Time
}

// NewRecorder returns a Recorder writing to store. A nil clock uses time.Now.
func NewRecorder(store Appender, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{store: store, now: clock}
}

// Record appends one entry for payload. The store assigns the entry ID.
// Append failures surface as *errs.StorageError.
func (r *Recorder) Record(ctx context.Context, rt models.ResourceType, resourceID, actorID string, p Payload) (*models.AuditEntry, error) {
	if resourceID == "" {
		return nil, errs.Validation("resource_required", "audit entry needs a resource id")
	}
	if actorID == "" {
		return nil, errs.Validation("actor_required", "audit entry needs an actor id")
	}
	body, err := Encode(p)
	if err != nil {
		return nil, errs.Validation("payload_invalid", "%v", err)
	}
	entry := &models.AuditEntry{
		ResourceType: rt,
		ResourceID:   resourceID,
		ActorID:      actorID,
		Action:       p.Action(),
		Payload:      body,
		CreatedAt:    r.now(),
	}
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		return nil, errs.Storage("append audit", err)
	}
	return entry, nil
}

// RecordIssue is Record for an issue subject.
func (r *Recorder) RecordIssue(ctx context.Context, issueID, actorID string, p Payload) (*models.AuditEntry, error) {
	return r.Record(ctx, models.ResourceIssue, issueID, actorID, p)
}

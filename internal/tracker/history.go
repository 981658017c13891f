package tracker

import (
	"context"
	"time"

	"github.com/zulandar/tracker/internal/activity"
	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

// History returns the raw audit trail of an issue (by id or key) or a sprint,
// oldest first.
func (s *Service) History(ctx context.Context, ref string) ([]models.AuditEntry, error) {
	id := ref
	issue, err := loadIssue(ctx, s.store, ref)
	switch {
	case err == nil:
		id = issue.ID
	case errs.Is[*errs.NotFoundError](err):
		if _, serr := s.store.LoadSprint(ctx, ref); serr != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return s.store.QueryAudit(ctx, id)
}

// Timeline reconstructs the history of ref grouped by day in loc.
func (s *Service) Timeline(ctx context.Context, ref string, loc *time.Location) ([]activity.Day, error) {
	entries, err := s.History(ctx, ref)
	if err != nil {
		return nil, err
	}
	return activity.Reconstruct(entries, loc), nil
}

// ActivitySince returns every audit entry recorded after since, grouped by
// day in loc.
func (s *Service) ActivitySince(ctx context.Context, since time.Time, loc *time.Location) ([]activity.Day, error) {
	entries, err := s.store.AuditSince(ctx, since)
	if err != nil {
		return nil, err
	}
	return activity.Reconstruct(entries, loc), nil
}

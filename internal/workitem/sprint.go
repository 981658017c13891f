package workitem

import (
	"strings"
	"time"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

// SprintOpts holds parameters for creating a sprint.
type SprintOpts struct {
	ProjectID string
	Name      string
	Goal      string
	StartDate time.Time
	EndDate   time.Time
}

// NewSprint builds an unsaved sprint.
func NewSprint(opts SprintOpts, now time.Time) (*models.Sprint, error) {
	if opts.ProjectID == "" {
		return nil, errs.Validation("project_required", "project id is required")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errs.Validation("name_required", "sprint name is required")
	}
	if opts.StartDate.IsZero() || opts.EndDate.IsZero() {
		return nil, errs.Validation("dates_required", "sprint start and end dates are required")
	}
	if opts.EndDate.Before(opts.StartDate) {
		return nil, errs.Validation("end_before_start", "end date %s is before start date %s",
			opts.EndDate.Format(time.DateOnly), opts.StartDate.Format(time.DateOnly))
	}
	return &models.Sprint{
		ProjectID: opts.ProjectID,
		Name:      name,
		Goal:      opts.Goal,
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SprintStatus derives the sprint's status at now. A sprint past its end date
// stays ACTIVE until it is explicitly closed.
func SprintStatus(s *models.Sprint, now time.Time) models.SprintStatus {
	switch {
	case s.Closed():
		return models.SprintCompleted
	case now.Before(s.StartDate):
		return models.SprintPlanned
	default:
		return models.SprintActive
	}
}

// Overdue reports whether an open sprint has run past its end date.
func Overdue(s *models.Sprint, now time.Time) bool {
	return !s.Closed() && now.After(s.EndDate)
}

// CloseSprint marks the sprint completed.
func CloseSprint(s *models.Sprint, now time.Time) error {
	if s.Closed() {
		return errs.Validation("sprint_closed", "sprint %s is already closed", s.ID)
	}
	t := now
	s.ClosedAt = &t
	s.UpdatedAt = now
	return nil
}

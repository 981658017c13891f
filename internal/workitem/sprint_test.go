package workitem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

func TestNewSprint(t *testing.T) {
	start := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)

	s, err := NewSprint(SprintOpts{ProjectID: "p1", Name: " Sprint 7 ", StartDate: start, EndDate: end}, now)
	require.NoError(t, err)
	assert.Equal(t, "Sprint 7", s.Name)
	assert.Equal(t, int64(1), s.Version)

	_, err = NewSprint(SprintOpts{ProjectID: "p1", Name: "x", StartDate: end, EndDate: start}, now)
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "end_before_start", ve.Rule)

	_, err = NewSprint(SprintOpts{ProjectID: "p1", StartDate: start, EndDate: end}, now)
	assert.True(t, errs.Is[*errs.ValidationError](err))

	_, err = NewSprint(SprintOpts{ProjectID: "p1", Name: "same day", StartDate: start, EndDate: start}, now)
	assert.NoError(t, err)
}

func TestSprintStatus(t *testing.T) {
	start := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	s := &models.Sprint{StartDate: start, EndDate: start.AddDate(0, 0, 14)}

	assert.Equal(t, models.SprintPlanned, SprintStatus(s, start.Add(-time.Hour)))
	assert.Equal(t, models.SprintActive, SprintStatus(s, start))
	assert.Equal(t, models.SprintActive, SprintStatus(s, start.AddDate(0, 0, 20)))
	assert.True(t, Overdue(s, start.AddDate(0, 0, 20)))

	require.NoError(t, CloseSprint(s, start.AddDate(0, 0, 14)))
	assert.Equal(t, models.SprintCompleted, SprintStatus(s, start.AddDate(0, 0, 20)))
	assert.False(t, Overdue(s, start.AddDate(0, 0, 20)))

	assert.True(t, errs.Is[*errs.ValidationError](CloseSprint(s, start)))
}

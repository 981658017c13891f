package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

var now = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

func issueIn(s models.Status) *models.Issue {
	return &models.Issue{ID: "i1", Kind: models.KindTask, Status: s, Priority: models.PriorityMedium, Title: "t"}
}

func TestTransition_Table(t *testing.T) {
	all := models.Statuses
	allowed := map[[2]models.Status]bool{
		{models.StatusTodo, models.StatusInProgress}:      true,
		{models.StatusTodo, models.StatusCancelled}:       true,
		{models.StatusInProgress, models.StatusTodo}:      true,
		{models.StatusInProgress, models.StatusInReview}:  true,
		{models.StatusInProgress, models.StatusCancelled}: true,
		{models.StatusInReview, models.StatusInProgress}:  true,
		{models.StatusInReview, models.StatusDone}:        true,
		{models.StatusInReview, models.StatusCancelled}:   true,
		{models.StatusDone, models.StatusInProgress}:      true,
	}
	for _, from := range all {
		for _, to := range all {
			issue := issueIn(from)
			ch, err := Transition(issue, to, now)
			if allowed[[2]models.Status{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, from, ch.From)
				assert.Equal(t, to, issue.Status)
				assert.Equal(t, now, issue.UpdatedAt)
				continue
			}
			var ite *errs.IllegalTransitionError
			require.ErrorAs(t, err, &ite, "%s -> %s", from, to)
			assert.Equal(t, string(from), ite.From)
			assert.Equal(t, from, issue.Status, "failed transition must not mutate")
		}
	}
}

func TestTransition_TodoToDoneIsIllegal(t *testing.T) {
	issue := issueIn(models.StatusTodo)
	_, err := Transition(issue, models.StatusDone, now)
	assert.True(t, errs.Is[*errs.IllegalTransitionError](err))
}

func TestTransition_UnknownStatus(t *testing.T) {
	_, err := Transition(issueIn(models.StatusTodo), "CLOSED", now)
	assert.True(t, errs.Is[*errs.ValidationError](err))
}

func TestCancel(t *testing.T) {
	issue := issueIn(models.StatusInReview)
	ch, err := Cancel(issue, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, ch.To)

	_, err = Cancel(issueIn(models.StatusDone), now)
	assert.Error(t, err)
}

func TestSetPriority(t *testing.T) {
	issue := issueIn(models.StatusTodo)
	ch, err := SetPriority(issue, models.PriorityCritical, now)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityMedium, ch.From)
	assert.Equal(t, models.PriorityCritical, issue.Priority)

	_, err = SetPriority(issue, models.PriorityCritical, now)
	assert.True(t, errs.Is[*errs.ValidationError](err))
	_, err = SetPriority(issue, "URGENT", now)
	assert.True(t, errs.Is[*errs.ValidationError](err))
}

func TestSetField(t *testing.T) {
	issue := issueIn(models.StatusTodo)
	v := func(s string) *string { return &s }

	ch, err := SetField(issue, FieldTitle, v("Renamed"), now)
	require.NoError(t, err)
	assert.Equal(t, "t", *ch.Old)
	assert.Equal(t, "Renamed", *ch.New)

	ch, err = SetField(issue, FieldStoryPoints, v("2.5"), now)
	require.NoError(t, err)
	assert.Nil(t, ch.Old)
	assert.Equal(t, "2.5", *ch.New)

	ch, err = SetField(issue, FieldAssignee, v("u9"), now)
	require.NoError(t, err)
	assert.Equal(t, "u9", *ch.New)

	ch, err = SetField(issue, FieldAssignee, nil, now)
	require.NoError(t, err)
	assert.Equal(t, "u9", *ch.Old)
	assert.Nil(t, ch.New)

	_, err = SetField(issue, FieldStoryPoints, v("lots"), now)
	assert.True(t, errs.Is[*errs.ValidationError](err))
	_, err = SetField(issue, FieldTitle, nil, now)
	assert.True(t, errs.Is[*errs.ValidationError](err))
	_, err = SetField(issue, "status", v("DONE"), now)
	assert.True(t, errs.Is[*errs.ValidationError](err))
	assert.Equal(t, models.StatusTodo, issue.Status)
}

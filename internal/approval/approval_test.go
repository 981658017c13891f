package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

var now = time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

func visibleIssue() *models.Issue {
	pending := models.ApprovalPending
	return &models.Issue{ID: "i1", ClientVisible: true, ClientApprovalStatus: &pending}
}

func TestSubmit_ApprovedWithoutFeedback(t *testing.T) {
	issue := visibleIssue()
	ch, err := Submit(issue, models.ApprovalApproved, "", now)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalPending, ch.From)
	assert.Equal(t, models.ApprovalApproved, ch.To)
	assert.Nil(t, ch.Feedback)
	assert.Equal(t, models.ApprovalApproved, *issue.ClientApprovalStatus)
	assert.Nil(t, issue.ClientFeedback)
	assert.Equal(t, now, issue.UpdatedAt)
}

func TestSubmit_FeedbackRequired(t *testing.T) {
	for _, d := range []models.ApprovalStatus{models.ApprovalRejected, models.ApprovalChangesRequested} {
		issue := visibleIssue()
		_, err := Submit(issue, d, "  ", now)
		var ve *errs.ValidationError
		require.ErrorAs(t, err, &ve, string(d))
		assert.Equal(t, "feedback_required", ve.Rule)
		assert.Equal(t, models.ApprovalPending, *issue.ClientApprovalStatus)

		ch, err := Submit(issue, d, "logo is off-brand", now)
		require.NoError(t, err)
		assert.Equal(t, "logo is off-brand", *ch.Feedback)
		assert.Equal(t, "logo is off-brand", *issue.ClientFeedback)
	}
}

func TestSubmit_NotVisible(t *testing.T) {
	issue := &models.Issue{ID: "i1"}
	_, err := Submit(issue, models.ApprovalApproved, "", now)
	assert.True(t, errs.Is[*errs.NotVisibleError](err))
	assert.Nil(t, issue.ClientApprovalStatus)
}

func TestSubmit_RejectsPendingAsDecision(t *testing.T) {
	_, err := Submit(visibleIssue(), models.ApprovalPending, "", now)
	assert.True(t, errs.Is[*errs.ValidationError](err))
}

func TestSubmit_ReplacesEarlierDecision(t *testing.T) {
	issue := visibleIssue()
	_, err := Submit(issue, models.ApprovalRejected, "no", now)
	require.NoError(t, err)

	ch, err := Submit(issue, models.ApprovalRejected, "still no", now)
	require.NoError(t, err, "a repeat rejection with feedback succeeds")
	assert.Equal(t, models.ApprovalRejected, ch.From)
	assert.Equal(t, "still no", *issue.ClientFeedback)

	ch, err = Submit(issue, models.ApprovalApproved, "", now)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, ch.From)
	assert.Equal(t, models.ApprovalApproved, *issue.ClientApprovalStatus)
	assert.Nil(t, issue.ClientFeedback)

	_, err = Submit(issue, models.ApprovalChangesRequested, " ", now)
	assert.True(t, errs.Is[*errs.ValidationError](err), "feedback is still required")
	assert.Equal(t, models.ApprovalApproved, *issue.ClientApprovalStatus)
}

func TestResubmitCycle(t *testing.T) {
	issue := visibleIssue()
	for range 3 {
		_, err := Submit(issue, models.ApprovalChangesRequested, "tweak copy", now)
		require.NoError(t, err)
		ch, err := Resubmit(issue, now)
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalChangesRequested, ch.From)
		assert.Equal(t, models.ApprovalPending, *issue.ClientApprovalStatus)
	}

	_, err := Resubmit(issue, now)
	assert.True(t, errs.Is[*errs.IllegalTransitionError](err), "resubmit from PENDING")
}

func TestRevert(t *testing.T) {
	issue := visibleIssue()
	_, err := Revert(issue, now)
	assert.True(t, errs.Is[*errs.IllegalTransitionError](err))

	_, err = Submit(issue, models.ApprovalApproved, "", now)
	require.NoError(t, err)

	_, err = Resubmit(issue, now)
	assert.True(t, errs.Is[*errs.IllegalTransitionError](err), "approved needs an explicit revert")

	ch, err := Revert(issue, now)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, ch.From)
	assert.Equal(t, models.ApprovalPending, *issue.ClientApprovalStatus)
}

// Package approval implements the client-approval sub-state machine that runs
// alongside execution status on client-visible issues.
//
//	any -> APPROVED | REJECTED | CHANGES_REQUESTED   (Submit)
//	REJECTED | CHANGES_REQUESTED -> PENDING          (Resubmit)
//	APPROVED -> PENDING                              (Revert)
//
// A client may replace an earlier decision directly. None of these
// transitions fire implicitly; editing an issue never resets its approval.
package approval

import (
	"strings"
	"time"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

// Change is the result of an approval mutation.
type Change struct {
	From     models.ApprovalStatus
	To       models.ApprovalStatus
	Feedback *string
}

// RequiresFeedback reports whether a decision must carry client feedback.
func RequiresFeedback(s models.ApprovalStatus) bool {
	return s == models.ApprovalRejected || s == models.ApprovalChangesRequested
}

func current(issue *models.Issue) models.ApprovalStatus {
	if issue.ClientApprovalStatus == nil {
		return models.ApprovalPending
	}
	return *issue.ClientApprovalStatus
}

// Submit records a client decision, replacing any earlier one. Blank feedback
// is stored as nil.
func Submit(issue *models.Issue, decision models.ApprovalStatus, feedback string, now time.Time) (Change, error) {
	if !issue.ClientVisible {
		return Change{}, &errs.NotVisibleError{IssueID: issue.ID}
	}
	if !decision.Valid() || decision == models.ApprovalPending {
		return Change{}, errs.Validation("decision_invalid", "approval decision must be APPROVED, REJECTED or CHANGES_REQUESTED, got %q", decision)
	}
	feedback = strings.TrimSpace(feedback)
	if RequiresFeedback(decision) && feedback == "" {
		return Change{}, errs.Validation("feedback_required", "feedback is required for %s", decision)
	}
	from := current(issue)

	var fb *string
	if feedback != "" {
		fb = &feedback
	}
	d := decision
	issue.ClientApprovalStatus = &d
	issue.ClientFeedback = fb
	issue.UpdatedAt = now
	return Change{From: from, To: decision, Feedback: fb}, nil
}

// Resubmit returns a REJECTED or CHANGES_REQUESTED issue to PENDING after the
// team has addressed the feedback. The previous feedback is kept on the issue
// until the next decision replaces it.
func Resubmit(issue *models.Issue, now time.Time) (Change, error) {
	return toPending(issue, now, models.ApprovalRejected, models.ApprovalChangesRequested)
}

// Revert returns an APPROVED issue to PENDING when the underlying work has
// materially changed.
func Revert(issue *models.Issue, now time.Time) (Change, error) {
	return toPending(issue, now, models.ApprovalApproved)
}

func toPending(issue *models.Issue, now time.Time, allowed ...models.ApprovalStatus) (Change, error) {
	if !issue.ClientVisible {
		return Change{}, &errs.NotVisibleError{IssueID: issue.ID}
	}
	from := current(issue)
	ok := false
	for _, a := range allowed {
		if from == a {
			ok = true
			break
		}
	}
	if !ok {
		return Change{}, &errs.IllegalTransitionError{Machine: "approval", From: string(from), To: string(models.ApprovalPending)}
	}
	pending := models.ApprovalPending
	issue.ClientApprovalStatus = &pending
	issue.UpdatedAt = now
	return Change{From: from, To: pending}, nil
}

package tracker

import (
	"context"
	"time"

	"github.com/zulandar/tracker/internal/approval"
	"github.com/zulandar/tracker/internal/audit"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/notify"
	"github.com/zulandar/tracker/internal/store"
	"github.com/zulandar/tracker/internal/workitem"
)

// SetClientVisible toggles client visibility. Turning visibility on with no
// approval history starts the approval at PENDING.
func (s *Service) SetClientVisible(ctx context.Context, actorID, ref string, visible bool) (*models.Issue, error) {
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(_ context.Context, _ store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		if !workitem.SetClientVisible(issue, visible, now) {
			return nil, nil
		}
		return []audit.Payload{audit.ClientVisibility{Visible: visible}}, nil
	})
	return issue, err
}

// SubmitApproval records a client decision. The reporter and assignee are
// told about it.
func (s *Service) SubmitApproval(ctx context.Context, actorID, ref string, decision models.ApprovalStatus, feedback string) (*models.Issue, error) {
	return s.approve(ctx, actorID, ref, notify.KindApprovalDecided, func(issue *models.Issue, now time.Time) (approval.Change, error) {
		return approval.Submit(issue, decision, feedback, now)
	})
}

// ResubmitApproval returns a rejected or change-requested issue to PENDING.
func (s *Service) ResubmitApproval(ctx context.Context, actorID, ref string) (*models.Issue, error) {
	return s.approve(ctx, actorID, ref, notify.KindApprovalResubmitted, approval.Resubmit)
}

// RevertApproval returns an approved issue to PENDING after material change.
func (s *Service) RevertApproval(ctx context.Context, actorID, ref string) (*models.Issue, error) {
	return s.approve(ctx, actorID, ref, notify.KindApprovalResubmitted, approval.Revert)
}

func (s *Service) approve(ctx context.Context, actorID, ref string, kind notify.Kind, apply func(*models.Issue, time.Time) (approval.Change, error)) (*models.Issue, error) {
	var change approval.Change
	issue, _, err := s.mutateIssue(ctx, actorID, ref, func(_ context.Context, _ store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error) {
		c, err := apply(issue, now)
		if err != nil {
			return nil, err
		}
		change = c
		return []audit.Payload{audit.ClientApproval{Status: c.To, Feedback: c.Feedback}}, nil
	})
	if err != nil {
		return nil, err
	}
	var fields []notify.Field
	if change.Feedback != nil {
		fields = append(fields, notify.Field{Name: "Feedback", Value: *change.Feedback})
	}
	s.announce(ctx, recipients(issue, actorID), issueEvent(kind, issue, actorID,
		"client approval is now "+string(change.To), fields...))
	return issue, nil
}

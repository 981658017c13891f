// Package tracker is the service facade over the workflow packages. Every
// mutating operation loads current state, applies one of the pure state
// transitions, and saves the result together with its audit entry in a single
// unit of work. Notifications go out after commit and never fail the call.
package tracker

import (
	"context"
	"time"

	"github.com/zulandar/tracker/internal/audit"
	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/links"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/notify"
	"github.com/zulandar/tracker/internal/store"
	"go.uber.org/zap"
)

// Directory resolves user ids. Nothing in the tracker depends on user
// attributes beyond existence.
type Directory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// OpenDirectory accepts every non-empty user id.
type OpenDirectory struct{}

// UserExists implements Directory.
func (OpenDirectory) UserExists(_ context.Context, userID string) (bool, error) {
	return userID != "", nil
}

// StaticDirectory accepts a fixed set of user ids.
type StaticDirectory map[string]bool

// UserExists implements Directory.
func (d StaticDirectory) UserExists(_ context.Context, userID string) (bool, error) {
	return d[userID], nil
}

// LinkResolver looks up metadata for a linked URL. ok is false when the
// resolver does not recognise the URL.
type LinkResolver interface {
	Resolve(ctx context.Context, url string) (info links.Info, ok bool, err error)
}

// Options configures a Service. Store is required; the rest default to
// permissive or no-op collaborators.
type Options struct {
	Store     store.Store
	Directory Directory
	Notifier  notify.Notifier
	Links     LinkResolver
	Clock     func() time.Time
	Logger    *zap.SugaredLogger
}

// Service runs tracker operations against a store.
type Service struct {
	store     store.Store
	directory Directory
	notifier  notify.Notifier
	links     LinkResolver
	clock     func() time.Time
	log       *zap.SugaredLogger
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		store:     opts.Store,
		directory: opts.Directory,
		notifier:  opts.Notifier,
		links:     opts.Links,
		clock:     opts.Clock,
		log:       opts.Logger,
	}
	if s.directory == nil {
		s.directory = OpenDirectory{}
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	if s.notifier == nil {
		s.notifier = notify.Log{Logger: s.log}
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() store.Store { return s.store }

func (s *Service) checkUser(ctx context.Context, role, userID string) error {
	if userID == "" {
		return errs.Validation(role+"_required", "%s id is required", role)
	}
	ok, err := s.directory.UserExists(ctx, userID)
	if err != nil {
		return errs.Storage("resolve user", err)
	}
	if !ok {
		return errs.NotFound("user", userID)
	}
	return nil
}

// applyFunc mutates issue in place and returns the audit payloads describing
// what changed. Returning no payloads means nothing changed and nothing is
// saved.
type applyFunc func(ctx context.Context, tx store.Store, issue *models.Issue, now time.Time) ([]audit.Payload, error)

// mutateIssue runs load -> apply -> save + audit in one unit of work. If the
// audit append fails the save is rolled back.
func (s *Service) mutateIssue(ctx context.Context, actorID, issueID string, apply applyFunc) (*models.Issue, []audit.Payload, error) {
	if err := s.checkUser(ctx, "actor", actorID); err != nil {
		return nil, nil, err
	}
	var (
		out      *models.Issue
		recorded []audit.Payload
	)
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		issue, err := tx.LoadIssue(ctx, issueID)
		if err != nil {
			return err
		}
		now := s.clock()
		payloads, err := apply(ctx, tx, issue, now)
		if err != nil {
			return err
		}
		out = issue
		if len(payloads) == 0 {
			return nil
		}
		if err := tx.SaveIssue(ctx, issue); err != nil {
			return err
		}
		rec := audit.NewRecorder(tx, s.clock)
		for _, p := range payloads {
			if _, err := rec.RecordIssue(ctx, issue.ID, actorID, p); err != nil {
				return err
			}
		}
		recorded = payloads
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, recorded, nil
}

// recipients returns the reporter and assignee of issue, minus the actor.
func recipients(issue *models.Issue, actorID string) []string {
	var out []string
	add := func(id string) {
		if id == "" || id == actorID {
			return
		}
		for _, o := range out {
			if o == id {
				return
			}
		}
		out = append(out, id)
	}
	add(issue.ReporterID)
	if issue.AssigneeID != nil {
		add(*issue.AssigneeID)
	}
	return out
}

// announce delivers e to each user. Failures are logged and dropped.
func (s *Service) announce(ctx context.Context, users []string, e notify.Event) {
	for _, u := range users {
		if err := s.notifier.Notify(ctx, u, e); err != nil {
			s.log.Warnw("notification failed", "user", u, "kind", e.Kind, "issue", e.IssueKey, "error", err)
		}
	}
}

func issueEvent(kind notify.Kind, issue *models.Issue, actorID, summary string, fields ...notify.Field) notify.Event {
	return notify.Event{
		Kind:     kind,
		IssueKey: issue.Key,
		Title:    issue.Title,
		ActorID:  actorID,
		Summary:  summary,
		Fields:   fields,
	}
}

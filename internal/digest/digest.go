// Package digest posts a periodic summary of tracker activity to a chat
// recipient on a cron schedule.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zulandar/tracker/internal/activity"
	"github.com/zulandar/tracker/internal/audit"
	"github.com/zulandar/tracker/internal/config"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/notify"
)

// Source reads audit entries recorded after a point in time.
type Source interface {
	AuditSince(ctx context.Context, since time.Time) ([]models.AuditEntry, error)
}

// Report holds the activity of one digest period.
type Report struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Entries     int
	Actors      []string
	Created     int
	Completed   int
	Cancelled   int
	Approvals   map[models.ApprovalStatus]int
	Comments    int
	EpicsClosed int
	Days        []activity.Day
}

// BuildReport summarises entries. Entries that fail to decode still count
// toward Entries and Days.
func BuildReport(entries []models.AuditEntry, since, until time.Time, loc *time.Location) *Report {
	r := &Report{
		PeriodStart: since,
		PeriodEnd:   until,
		Entries:     len(entries),
		Approvals:   make(map[models.ApprovalStatus]int),
		Days:        activity.Reconstruct(entries, loc),
	}
	actors := make(map[string]bool)
	for _, e := range entries {
		actors[e.ActorID] = true
		p, err := audit.Decode(e.Action, e.Payload)
		if err != nil {
			continue
		}
		switch v := p.(type) {
		case audit.CreateIssue:
			r.Created++
		case audit.StatusChange:
			switch v.New {
			case models.StatusDone:
				r.Completed++
			case models.StatusCancelled:
				r.Cancelled++
			}
		case audit.ClientApproval:
			if v.Status != models.ApprovalPending {
				r.Approvals[v.Status]++
			}
		case audit.AddComment:
			r.Comments++
		case audit.CloseEpic:
			r.EpicsClosed++
		}
	}
	for a := range actors {
		r.Actors = append(r.Actors, a)
	}
	sort.Strings(r.Actors)
	return r
}

// Format renders a report as a notification.
func Format(r *Report) notify.Event {
	var body []string
	body = append(body, fmt.Sprintf("Period: %s - %s",
		r.PeriodStart.Format("Jan 2 15:04"), r.PeriodEnd.Format("Jan 2 15:04")))
	body = append(body, fmt.Sprintf("Issues: %d created, %d completed, %d cancelled", r.Created, r.Completed, r.Cancelled))
	if n := r.Approvals[models.ApprovalApproved] + r.Approvals[models.ApprovalRejected] + r.Approvals[models.ApprovalChangesRequested]; n > 0 {
		body = append(body, fmt.Sprintf("Client decisions: %d approved, %d rejected, %d changes requested",
			r.Approvals[models.ApprovalApproved], r.Approvals[models.ApprovalRejected], r.Approvals[models.ApprovalChangesRequested]))
	}
	if r.EpicsClosed > 0 {
		body = append(body, fmt.Sprintf("Epics closed: %d", r.EpicsClosed))
	}
	if len(r.Actors) > 0 {
		body = append(body, "Active: "+strings.Join(r.Actors, ", "))
	}

	return notify.Event{
		Kind:    notify.KindDigest,
		Title:   "Tracker digest",
		Summary: strings.Join(body, "\n"),
		Fields: []notify.Field{
			{Name: "Created", Value: fmt.Sprint(r.Created), Short: true},
			{Name: "Completed", Value: fmt.Sprint(r.Completed), Short: true},
			{Name: "Comments", Value: fmt.Sprint(r.Comments), Short: true},
			{Name: "Entries", Value: fmt.Sprint(r.Entries), Short: true},
		},
	}
}

// Runner sends digests on a schedule. Each run covers the time since the
// previous run; the first run looks back one day.
type Runner struct {
	schedule  string
	recipient string
	loc       *time.Location
	src       Source
	notifier  notify.Notifier
	log       *zap.SugaredLogger
	clock     func() time.Time

	mu   sync.Mutex
	last time.Time
}

// New validates the digest config and returns a Runner.
func New(cfg config.DigestConfig, loc *time.Location, src Source, n notify.Notifier, log *zap.SugaredLogger) (*Runner, error) {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("digest: schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Recipient == "" {
		return nil, fmt.Errorf("digest: recipient is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{
		schedule:  cfg.Schedule,
		recipient: cfg.Recipient,
		loc:       loc,
		src:       src,
		notifier:  n,
		log:       log,
		clock:     time.Now,
	}, nil
}

// RunOnce builds and sends one digest. It returns nil without sending when
// nothing happened in the period.
func (r *Runner) RunOnce(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.clock()
	since := r.last
	if since.IsZero() {
		since = until.Add(-24 * time.Hour)
	}
	entries, err := r.src.AuditSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("digest: read activity: %w", err)
	}
	r.last = until
	if len(entries) == 0 {
		r.log.Debugw("digest skipped, no activity", "since", since)
		return nil, nil
	}
	report := BuildReport(entries, since, until, r.loc)
	if err := r.notifier.Notify(ctx, r.recipient, Format(report)); err != nil {
		return report, fmt.Errorf("digest: send: %w", err)
	}
	r.log.Infow("digest sent", "recipient", r.recipient, "entries", report.Entries)
	return report, nil
}

// Start runs digests on the schedule until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(r.loc))
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warnw("digest run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("digest: schedule: %w", err)
	}
	c.Start()
	r.log.Infow("digest scheduler started", "schedule", r.schedule, "location", r.loc.String())
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

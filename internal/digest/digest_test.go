package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/tracker/internal/audit"
	"github.com/zulandar/tracker/internal/config"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/notify"
)

type fakeSource struct {
	entries []models.AuditEntry
	since   []time.Time
	err     error
}

func (f *fakeSource) AuditSince(_ context.Context, since time.Time) ([]models.AuditEntry, error) {
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.AuditEntry
	for _, e := range f.entries {
		if e.CreatedAt.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func entry(t *testing.T, id, actor string, at time.Time, p audit.Payload) models.AuditEntry {
	t.Helper()
	body, err := audit.Encode(p)
	require.NoError(t, err)
	return models.AuditEntry{ID: id, ResourceType: models.ResourceIssue, ResourceID: "i1", ActorID: actor, Action: p.Action(), Payload: body, CreatedAt: at}
}

var now = time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

func sampleEntries(t *testing.T) []models.AuditEntry {
	return []models.AuditEntry{
		entry(t, "01", "alice", now.Add(-3*time.Hour), audit.CreateIssue{Key: "MAR-1", Kind: models.KindTask, Title: "x"}),
		entry(t, "02", "bob", now.Add(-2*time.Hour), audit.StatusChange{Old: models.StatusInReview, New: models.StatusDone}),
		entry(t, "03", "client", now.Add(-time.Hour), audit.ClientApproval{Status: models.ApprovalApproved}),
		entry(t, "04", "bob", now.Add(-time.Hour), audit.AddComment{Body: "shipped"}),
		{ID: "05", ActorID: "bob", Action: "future_tag", Payload: "{}", CreatedAt: now.Add(-time.Minute)},
	}
}

func TestBuildReport(t *testing.T) {
	r := BuildReport(sampleEntries(t), now.Add(-24*time.Hour), now, time.UTC)
	assert.Equal(t, 5, r.Entries)
	assert.Equal(t, 1, r.Created)
	assert.Equal(t, 1, r.Completed)
	assert.Equal(t, 1, r.Comments)
	assert.Equal(t, 1, r.Approvals[models.ApprovalApproved])
	assert.Equal(t, []string{"alice", "bob", "client"}, r.Actors)
	require.Len(t, r.Days, 1)
	assert.Len(t, r.Days[0].Lines, 5)
}

func TestFormat(t *testing.T) {
	e := Format(BuildReport(sampleEntries(t), now.Add(-24*time.Hour), now, time.UTC))
	assert.Equal(t, notify.KindDigest, e.Kind)
	assert.Contains(t, e.Summary, "1 created, 1 completed, 0 cancelled")
	assert.Contains(t, e.Summary, "1 approved")
	assert.Contains(t, e.Summary, "alice, bob, client")
	assert.Len(t, e.Fields, 4)
}

func newRunner(t *testing.T, src Source, n notify.Notifier) *Runner {
	t.Helper()
	r, err := New(config.DigestConfig{Schedule: "0 9 * * 1-5", Recipient: "team"}, time.UTC, src, n, nil)
	require.NoError(t, err)
	r.clock = func() time.Time { return now }
	return r
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.DigestConfig{Schedule: "whenever", Recipient: "team"}, nil, &fakeSource{}, notify.NewMock(), nil)
	assert.ErrorContains(t, err, "schedule")
	_, err = New(config.DigestConfig{Schedule: "0 9 * * *"}, nil, &fakeSource{}, notify.NewMock(), nil)
	assert.ErrorContains(t, err, "recipient")
}

func TestRunOnce_SendsAndAdvances(t *testing.T) {
	src := &fakeSource{entries: sampleEntries(t)}
	n := notify.NewMock()
	r := newRunner(t, src, n)

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	sent := n.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "team", sent[0].UserID)
	assert.Equal(t, now.Add(-24*time.Hour), src.since[0])

	// Nothing new since the last run: suppressed.
	report, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Len(t, n.Sent(), 1)
	assert.Equal(t, now, src.since[1])
}

func TestRunOnce_Errors(t *testing.T) {
	boom := errors.New("db gone")
	r := newRunner(t, &fakeSource{err: boom}, notify.NewMock())
	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)

	n := notify.NewMock()
	n.Err = errors.New("slack down")
	r = newRunner(t, &fakeSource{entries: sampleEntries(t)}, n)
	report, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, n.Err)
	assert.NotNil(t, report)
}

func TestStart_StopsOnCancel(t *testing.T) {
	r := newRunner(t, &fakeSource{}, notify.NewMock())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

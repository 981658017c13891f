package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/tracker/internal/db"
	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

var t0 = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *GormStore {
	t.Helper()
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(gdb) })
	return New(gdb)
}

func seedProject(t *testing.T, s *GormStore, key string) *models.Project {
	t.Helper()
	p := &models.Project{Key: key, Name: key + " project", CreatedAt: t0}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func newIssue(projectID, title string) *models.Issue {
	return &models.Issue{
		ProjectID:  projectID,
		Kind:       models.KindTask,
		Title:      title,
		Status:     models.StatusTodo,
		Priority:   models.PriorityMedium,
		ReporterID: "u1",
		CreatedAt:  t0,
		UpdatedAt:  t0,
	}
}

func TestInsertIssue_AssignsSequentialKeys(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "MAR")

	for n := 1; n <= 3; n++ {
		i := newIssue(p.ID, fmt.Sprintf("issue %d", n))
		require.NoError(t, s.InsertIssue(ctx, i))
		assert.Equal(t, int64(n), i.Number)
		assert.Equal(t, fmt.Sprintf("MAR-%d", n), i.Key)
		assert.NotEmpty(t, i.ID)
		assert.Equal(t, int64(1), i.Version)
	}

	got, err := s.LoadIssueByKey(ctx, "MAR-2")
	require.NoError(t, err)
	assert.Equal(t, "issue 2", got.Title)
}

func TestInsertIssue_NumbersNeverReused(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "OPS")

	a := newIssue(p.ID, "a")
	require.NoError(t, s.InsertIssue(ctx, a))
	b := newIssue(p.ID, "b")
	require.NoError(t, s.InsertIssue(ctx, b))
	require.NoError(t, s.DeleteIssue(ctx, b.ID))

	c := newIssue(p.ID, "c")
	require.NoError(t, s.InsertIssue(ctx, c))
	assert.Equal(t, "OPS-3", c.Key)
}

func TestInsertIssue_UnknownProject(t *testing.T) {
	s := testStore(t)
	err := s.InsertIssue(context.Background(), newIssue("nope", "x"))
	assert.True(t, errs.Is[*errs.NotFoundError](err))
}

func TestCreateProject_DuplicateKeyIsConflict(t *testing.T) {
	s := testStore(t)
	seedProject(t, s, "DUP")
	err := s.CreateProject(context.Background(), &models.Project{Key: "DUP", Name: "again"})
	assert.True(t, errs.Is[*errs.ConflictError](err), "got %v", err)
}

func TestLoadIssue_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.LoadIssue(context.Background(), "missing")
	var nf *errs.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "issue", nf.Resource)
}

func TestSaveIssue_VersionCheck(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "VER")
	i := newIssue(p.ID, "versioned")
	require.NoError(t, s.InsertIssue(ctx, i))

	first, err := s.LoadIssue(ctx, i.ID)
	require.NoError(t, err)
	second, err := s.LoadIssue(ctx, i.ID)
	require.NoError(t, err)

	first.Status = models.StatusInProgress
	require.NoError(t, s.SaveIssue(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Priority = models.PriorityHigh
	err = s.SaveIssue(ctx, second)
	assert.True(t, errs.Is[*errs.ConflictError](err), "got %v", err)

	stored, err := s.LoadIssue(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Equal(t, models.PriorityMedium, stored.Priority)
}

func TestSaveIssue_PersistsNullables(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "NUL")
	i := newIssue(p.ID, "nullable")
	require.NoError(t, s.InsertIssue(ctx, i))

	approved := models.ApprovalApproved
	fb := "ok"
	pts := 3.5
	parent := "epic-id"
	i.ClientVisible = true
	i.ClientApprovalStatus = &approved
	i.ClientFeedback = &fb
	i.StoryPoints = &pts
	i.ParentID = &parent
	require.NoError(t, s.SaveIssue(ctx, i))

	got, err := s.LoadIssue(ctx, i.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClientApprovalStatus)
	assert.Equal(t, models.ApprovalApproved, *got.ClientApprovalStatus)
	assert.Equal(t, 3.5, *got.StoryPoints)
	assert.Equal(t, "epic-id", *got.ParentID)

	got.ParentID = nil
	got.StoryPoints = nil
	require.NoError(t, s.SaveIssue(ctx, got))
	again, err := s.LoadIssue(ctx, i.ID)
	require.NoError(t, err)
	assert.Nil(t, again.ParentID)
	assert.Nil(t, again.StoryPoints)
}

func TestSaveIssue_Deleted(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "DEL")
	i := newIssue(p.ID, "gone")
	require.NoError(t, s.InsertIssue(ctx, i))
	require.NoError(t, s.DeleteIssue(ctx, i.ID))

	assert.True(t, errs.Is[*errs.NotFoundError](s.SaveIssue(ctx, i)))
	assert.True(t, errs.Is[*errs.NotFoundError](s.DeleteIssue(ctx, i.ID)))
}

func TestListIssues_Filters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "FLT")
	sprint := &models.Sprint{ProjectID: p.ID, Name: "S1", StartDate: t0, EndDate: t0.AddDate(0, 0, 14)}
	require.NoError(t, s.InsertSprint(ctx, sprint))

	a := newIssue(p.ID, "in sprint")
	a.SprintID = &sprint.ID
	b := newIssue(p.ID, "backlog bug")
	b.Kind = models.KindBug
	for _, i := range []*models.Issue{a, b} {
		require.NoError(t, s.InsertIssue(ctx, i))
	}

	inSprint, err := s.ListIssues(ctx, IssueFilter{SprintID: sprint.ID})
	require.NoError(t, err)
	require.Len(t, inSprint, 1)
	assert.Equal(t, a.ID, inSprint[0].ID)

	backlog, err := s.ListIssues(ctx, IssueFilter{ProjectID: p.ID, Backlog: true})
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, b.ID, backlog[0].ID)

	bugs, err := s.ListIssues(ctx, IssueFilter{Kind: models.KindBug})
	require.NoError(t, err)
	assert.Len(t, bugs, 1)

	all, err := s.ListIssues(ctx, IssueFilter{ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].Number, all[1].Number)
}

func TestSprint_SaveAndList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "SPR")

	later := &models.Sprint{ProjectID: p.ID, Name: "S2", StartDate: t0.AddDate(0, 0, 14), EndDate: t0.AddDate(0, 0, 28)}
	first := &models.Sprint{ProjectID: p.ID, Name: "S1", StartDate: t0, EndDate: t0.AddDate(0, 0, 14)}
	require.NoError(t, s.InsertSprint(ctx, later))
	require.NoError(t, s.InsertSprint(ctx, first))

	list, err := s.ListSprints(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "S1", list[0].Name)

	stale := *first
	closed := t0.AddDate(0, 0, 14)
	first.ClosedAt = &closed
	require.NoError(t, s.SaveSprint(ctx, first))
	assert.True(t, errs.Is[*errs.ConflictError](s.SaveSprint(ctx, &stale)))

	got, err := s.LoadSprint(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Closed())

	_, err = s.LoadSprint(ctx, "missing")
	assert.True(t, errs.Is[*errs.NotFoundError](err))
}

func TestAudit_AppendAndQuery(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for n, at := range []time.Time{t0.Add(2 * time.Minute), t0, t0.Add(time.Minute)} {
		e := &models.AuditEntry{
			ResourceType: models.ResourceIssue,
			ResourceID:   "i1",
			ActorID:      "u1",
			Action:       models.ActionAddComment,
			Payload:      fmt.Sprintf(`{"body":"%d"}`, n),
			CreatedAt:    at,
		}
		require.NoError(t, s.AppendAudit(ctx, e))
		assert.NotEmpty(t, e.ID)
	}
	require.NoError(t, s.AppendAudit(ctx, &models.AuditEntry{
		ResourceType: models.ResourceIssue, ResourceID: "i2", ActorID: "u1",
		Action: models.ActionAddComment, Payload: `{}`, CreatedAt: t0,
	}))

	entries, err := s.QueryAudit(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].CreatedAt.Equal(t0))
	assert.Equal(t, `{"body":"0"}`, entries[2].Payload)

	since, err := s.AuditSince(ctx, t0)
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestAtomic_RollsBackOnError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "TX")
	i := newIssue(p.ID, "tx")
	require.NoError(t, s.InsertIssue(ctx, i))

	boom := fmt.Errorf("audit unavailable")
	err := s.Atomic(ctx, func(tx Store) error {
		loaded, err := tx.LoadIssue(ctx, i.ID)
		if err != nil {
			return err
		}
		loaded.Status = models.StatusInProgress
		if err := tx.SaveIssue(ctx, loaded); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.LoadIssue(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTodo, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestAtomic_Commits(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "OK")

	var id string
	err := s.Atomic(ctx, func(tx Store) error {
		i := newIssue(p.ID, "committed")
		if err := tx.InsertIssue(ctx, i); err != nil {
			return err
		}
		id = i.ID
		return tx.AppendAudit(ctx, &models.AuditEntry{
			ResourceType: models.ResourceIssue, ResourceID: i.ID, ActorID: "u1",
			Action: models.ActionCreateIssue, Payload: `{}`, CreatedAt: t0,
		})
	})
	require.NoError(t, err)

	_, err = s.LoadIssue(ctx, id)
	require.NoError(t, err)
	entries, err := s.QueryAudit(ctx, id)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTranslate(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, errs.Is[*errs.ConflictError](translate("op", "issue", "x", fmt.Errorf("wrap: %w", dup))))

	other := &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}
	assert.True(t, errs.Is[*errs.StorageError](translate("op", "issue", "x", other)))
	assert.NoError(t, translate("op", "issue", "x", nil))
}

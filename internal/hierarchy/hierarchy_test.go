package hierarchy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

var now = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func epic(id string, number int64) models.Issue {
	return models.Issue{ID: id, Key: "MAR-" + id, ProjectID: "p1", Number: number, Kind: models.KindEpic, Status: models.StatusTodo}
}

func leaf(id string, number int64, parent string, status models.Status) models.Issue {
	i := models.Issue{ID: id, Key: "MAR-" + id, ProjectID: "p1", Number: number, Kind: models.KindStory, Status: status}
	if parent != "" {
		i.ParentID = ptr(parent)
	}
	return i
}

func TestAttach_ReplacesParent(t *testing.T) {
	e2 := epic("e2", 2)
	s := leaf("s1", 3, "e1", models.StatusTodo)

	require.NoError(t, Attach(&s, &e2, now))
	assert.Equal(t, "e2", *s.ParentID)
	assert.Equal(t, now, s.UpdatedAt)
}

func TestAttach_Rejections(t *testing.T) {
	e1 := epic("e1", 1)
	s := leaf("s1", 2, "", models.StatusTodo)
	other := leaf("s2", 3, "", models.StatusTodo)

	closed := epic("e9", 9)
	closed.EpicClosed = true

	foreign := epic("ex", 1)
	foreign.ProjectID = "p2"

	nested := epic("e2", 4)

	tests := []struct {
		name  string
		issue *models.Issue
		epic  *models.Issue
	}{
		{"target not epic", &s, &other},
		{"issue is epic", &nested, &e1},
		{"closed epic", &s, &closed},
		{"other project", &s, &foreign},
		{"self", &e1, &e1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Attach(tt.issue, tt.epic, now)
			assert.True(t, errs.Is[*errs.InvalidHierarchyError](err), "got %v", err)
		})
	}
	assert.Nil(t, s.ParentID)
}

func TestDetach_Idempotent(t *testing.T) {
	s := leaf("s1", 2, "e1", models.StatusTodo)
	assert.True(t, Detach(&s, now))
	assert.False(t, Detach(&s, now))
	assert.Nil(t, s.ParentID)
}

func TestAssignSprint(t *testing.T) {
	s := leaf("s1", 2, "", models.StatusTodo)
	sprint := &models.Sprint{ID: "sp1", ProjectID: "p1", StartDate: now, EndDate: now.AddDate(0, 0, 14)}

	require.NoError(t, AssignSprint(&s, sprint, now))
	assert.Equal(t, "sp1", *s.SprintID)
	assert.True(t, MoveToBacklog(&s, now))
	assert.False(t, MoveToBacklog(&s, now))

	foreign := &models.Sprint{ID: "sp2", ProjectID: "p2", StartDate: now, EndDate: now}
	assert.True(t, errs.Is[*errs.CrossProjectError](AssignSprint(&s, foreign, now)))

	sprint.ClosedAt = ptr(now)
	err := AssignSprint(&s, sprint, now)
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "sprint_completed", ve.Rule)
	assert.Nil(t, s.SprintID)
}

func TestBuild(t *testing.T) {
	issues := []models.Issue{
		leaf("c", 5, "e2", models.StatusTodo),
		epic("e2", 4),
		leaf("a", 3, "e1", models.StatusDone),
		leaf("b", 2, "e1", models.StatusTodo),
		epic("e1", 1),
		leaf("loose", 6, "", models.StatusTodo),
		leaf("orphan", 7, "gone", models.StatusTodo),
	}
	closed := epic("e3", 8)
	closed.EpicClosed = true
	issues = append(issues, closed)
	foreign := leaf("x", 1, "", models.StatusTodo)
	foreign.ProjectID = "p2"
	issues = append(issues, foreign)

	h := Build("p1", issues)

	require.Len(t, h.Epics, 3)
	assert.Equal(t, "e1", h.Epics[0].Epic.ID)
	assert.Equal(t, "e2", h.Epics[1].Epic.ID)
	assert.Equal(t, "e3", h.Epics[2].Epic.ID, "closed epics are not filtered")

	require.Len(t, h.Epics[0].Children, 2)
	assert.Equal(t, "b", h.Epics[0].Children[0].ID)
	assert.Equal(t, "a", h.Epics[0].Children[1].ID)

	var ids []string
	for _, u := range h.Unparented {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"loose", "orphan"}, ids)
}

func TestChildrenSummary(t *testing.T) {
	sum := ChildrenSummary([]models.Issue{
		leaf("a", 1, "e", models.StatusDone),
		leaf("b", 2, "e", models.StatusTodo),
		leaf("c", 3, "e", models.StatusDone),
	})
	assert.Equal(t, []StatusCount{{models.StatusTodo, 1}, {models.StatusDone, 2}}, sum)
}

func TestDetachDependents(t *testing.T) {
	a := leaf("a", 1, "e1", models.StatusTodo)
	b := leaf("b", 2, "", models.StatusTodo)
	b.SprintID = ptr("e1")
	c := leaf("c", 3, "e2", models.StatusTodo)

	changed := DetachDependents("e1", []*models.Issue{&a, &b, &c}, now)

	require.Len(t, changed, 2)
	assert.Nil(t, a.ParentID)
	assert.Nil(t, b.SprintID)
	assert.Equal(t, "e2", *c.ParentID)
}

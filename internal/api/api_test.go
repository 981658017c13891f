package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/tracker/internal/db"
	"github.com/zulandar/tracker/internal/notify"
	"github.com/zulandar/tracker/internal/store"
	"github.com/zulandar/tracker/internal/tracker"
)

type testAPI struct {
	t      *testing.T
	router http.Handler
	store  *store.GormStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(gdb) })

	st := store.New(gdb)
	svc := tracker.New(tracker.Options{
		Store:    st,
		Notifier: notify.NewMock(),
	})
	return &testAPI{t: t, router: NewRouter(StartOpts{Service: svc}), store: st}
}

// do sends a request as alice and decodes the JSON response into out when
// out is non-nil.
func (a *testAPI) do(method, path string, body interface{}, out interface{}) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, "alice")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func (a *testAPI) project(key string) {
	a.t.Helper()
	code := a.do(http.MethodPost, "/api/v1/projects", map[string]string{"key": key, "name": key + " project"}, nil)
	require.Equal(a.t, http.StatusCreated, code)
}

func (a *testAPI) issue(project, kind, title string) issueJSON {
	a.t.Helper()
	var out issueJSON
	code := a.do(http.MethodPost, "/api/v1/issues", map[string]interface{}{
		"project": project, "kind": kind, "title": title,
	}, &out)
	require.Equal(a.t, http.StatusCreated, code)
	return out
}

func TestStart_NilService(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service is required")
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", nil, nil))
}

func TestIssueLifecycle(t *testing.T) {
	a := newTestAPI(t)
	a.project("MAR")
	is := a.issue("MAR", "TASK", "Write copy")
	assert.Equal(t, "MAR-1", is.Key)
	assert.Equal(t, "TODO", string(is.Status))
	assert.Equal(t, "alice", is.ReporterID)

	var got issueJSON
	code := a.do(http.MethodPost, "/api/v1/issues/MAR-1/transition", map[string]string{"status": "IN_PROGRESS"}, &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "IN_PROGRESS", string(got.Status))

	var list []issueJSON
	code = a.do(http.MethodGet, "/api/v1/issues?project=MAR&status=IN_PROGRESS", nil, &list)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 1)
	assert.Equal(t, is.ID, list[0].ID)
}

func TestErrorMapping(t *testing.T) {
	a := newTestAPI(t)
	a.project("MAR")
	a.issue("MAR", "TASK", "Write copy")

	var body errorBody
	code := a.do(http.MethodPost, "/api/v1/issues/MAR-1/transition", map[string]string{"status": "DONE"}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "illegal_transition", body.Kind)

	body = errorBody{}
	code = a.do(http.MethodPost, "/api/v1/issues", map[string]string{"project": "MAR", "kind": "TASK"}, &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body.Kind)
	assert.NotEmpty(t, body.Rule)

	body = errorBody{}
	code = a.do(http.MethodGet, "/api/v1/issues/MAR-99", nil, &body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body.Kind)

	body = errorBody{}
	code = a.do(http.MethodPost, "/api/v1/issues/MAR-1/approval", map[string]string{"status": "APPROVED"}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "not_visible", body.Kind)
}

func TestMalformedBody(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "body_invalid", body.Rule)
}

func TestApprovalAndHistory(t *testing.T) {
	a := newTestAPI(t)
	a.project("MAR")
	a.issue("MAR", "STORY", "Landing page")

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/issues/MAR-1/visibility", map[string]bool{"visible": true}, nil))

	var got issueJSON
	code := a.do(http.MethodPost, "/api/v1/issues/MAR-1/approval",
		map[string]string{"status": "CHANGES_REQUESTED", "feedback": "Bigger logo"}, &got)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, got.ClientApprovalStatus)
	assert.Equal(t, "CHANGES_REQUESTED", string(*got.ClientApprovalStatus))
	require.NotNil(t, got.ClientFeedback)
	assert.Equal(t, "Bigger logo", *got.ClientFeedback)

	var history []map[string]interface{}
	code = a.do(http.MethodGet, "/api/v1/issues/MAR-1/history", nil, &history)
	require.Equal(t, http.StatusOK, code)
	last := history[len(history)-1]
	assert.Equal(t, "client_approval", last["action"])
	payload, ok := last["payload"].(map[string]interface{})
	require.True(t, ok, "payload should be a JSON object")
	assert.Equal(t, "Bigger logo", payload["feedback"])
}

func TestTimeline_InvalidZone(t *testing.T) {
	a := newTestAPI(t)
	a.project("MAR")
	a.issue("MAR", "TASK", "Write copy")

	var body errorBody
	code := a.do(http.MethodGet, "/api/v1/issues/MAR-1/timeline?tz=Mars/Olympus", nil, &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "tz_invalid", body.Rule)

	var out struct {
		Timezone string `json:"timezone"`
		Days     []struct {
			Date string `json:"date"`
		} `json:"days"`
	}
	code = a.do(http.MethodGet, "/api/v1/issues/MAR-1/timeline?tz=Europe/Berlin", nil, &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Europe/Berlin", out.Timezone)
	assert.Len(t, out.Days, 1)
}

func TestCloseEpic(t *testing.T) {
	a := newTestAPI(t)
	a.project("MAR")
	a.issue("MAR", "EPIC", "Checkout")
	a.issue("MAR", "EPIC", "Payments")
	child := a.issue("MAR", "STORY", "Card form")
	require.Equal(t, http.StatusOK, a.do(http.MethodPut, "/api/v1/issues/MAR-3/parent", map[string]string{"epic": "MAR-1"}, nil))

	var out struct {
		Epic    issueJSON `json:"epic"`
		Updated []string  `json:"updated"`
	}
	code := a.do(http.MethodPost, "/api/v1/epics/MAR-1/close",
		map[string]string{"resolution": "move", "target": "MAR-2"}, &out)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, out.Epic.EpicClosed)
	assert.Equal(t, []string{child.ID}, out.Updated)

	var hier hierarchyJSON
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/projects/MAR/hierarchy", nil, &hier))
	for _, n := range hier.Epics {
		if n.Epic.Key == "MAR-2" {
			require.Len(t, n.Children, 1)
			assert.Equal(t, "MAR-3", n.Children[0].Key)
		}
	}

	var body errorBody
	code = a.do(http.MethodPost, "/api/v1/epics/MAR-2/close", map[string]string{"resolution": "shred"}, &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "resolution_invalid", body.Rule)
}

func TestIssueRemovedEvent(t *testing.T) {
	a := newTestAPI(t)
	a.project("MAR")
	epic := a.issue("MAR", "EPIC", "Checkout")
	child := a.issue("MAR", "STORY", "Card form")
	require.Equal(t, http.StatusOK, a.do(http.MethodPut, "/api/v1/issues/MAR-2/parent", map[string]string{"epic": "MAR-1"}, nil))
	require.NoError(t, a.store.DeleteIssue(context.Background(), epic.ID))

	var out struct {
		Updated []string `json:"updated"`
	}
	code := a.do(http.MethodPost, "/api/v1/events/issue-removed", map[string]string{"issue_id": epic.ID}, &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{child.ID}, out.Updated)

	var got issueJSON
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/issues/MAR-2", nil, &got))
	assert.Nil(t, got.ParentID)

	var body errorBody
	code = a.do(http.MethodPost, "/api/v1/events/issue-removed", map[string]string{}, &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "issue_required", body.Rule)
}

func TestSprintFlow(t *testing.T) {
	a := newTestAPI(t)
	a.project("MAR")
	start := time.Now().UTC().AddDate(0, 0, -7).Format(time.DateOnly)
	end := time.Now().UTC().AddDate(0, 0, 7).Format(time.DateOnly)

	var sp sprintJSON
	code := a.do(http.MethodPost, "/api/v1/sprints", map[string]string{
		"project": "MAR", "name": "Sprint 1", "start_date": start, "end_date": end,
	}, &sp)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, start, sp.StartDate)

	a.issue("MAR", "TASK", "Write copy")
	a.issue("MAR", "TASK", "Pick fonts")
	for _, key := range []string{"MAR-1", "MAR-2"} {
		require.Equal(t, http.StatusOK, a.do(http.MethodPut, "/api/v1/issues/"+key+"/sprint", map[string]string{"sprint": sp.ID}, nil))
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/issues/MAR-1/transition", map[string]string{"status": "IN_PROGRESS"}, nil))

	var closed struct {
		Sprint  sprintJSON `json:"sprint"`
		Updated []string   `json:"updated"`
	}
	code = a.do(http.MethodPost, "/api/v1/sprints/"+sp.ID+"/close", nil, &closed)
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, closed.Sprint.ClosedAt)
	assert.Len(t, closed.Updated, 2)

	var backlog []issueJSON
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/issues?project=MAR&backlog=true", nil, &backlog))
	assert.Len(t, backlog, 2)

	var body errorBody
	code = a.do(http.MethodGet, "/api/v1/issues?backlog=maybe", nil, &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "backlog_invalid", body.Rule)
}

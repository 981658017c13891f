package activity

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/tracker/internal/audit"
	"github.com/zulandar/tracker/internal/models"
)

func entry(t *testing.T, id string, at time.Time, p audit.Payload) models.AuditEntry {
	t.Helper()
	raw, err := audit.Encode(p)
	require.NoError(t, err)
	return models.AuditEntry{
		ID:           id,
		ResourceType: models.ResourceIssue,
		ResourceID:   "i1",
		ActorID:      "u1",
		Action:       p.Action(),
		Payload:      raw,
		CreatedAt:    at,
	}
}

func sample(t *testing.T) []models.AuditEntry {
	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	return []models.AuditEntry{
		entry(t, "01A", day1, audit.CreateIssue{Key: "MAR-1", Kind: models.KindStory, Title: "Checkout"}),
		entry(t, "01B", day1.Add(time.Hour), audit.StatusChange{Old: models.StatusTodo, New: models.StatusInProgress}),
		entry(t, "01C", day2, audit.AddComment{Body: "looks good"}),
		entry(t, "01D", day2, audit.PriorityChange{Old: models.PriorityLow, New: models.PriorityHigh}),
		entry(t, "01E", day2.Add(time.Minute), audit.StatusChange{Old: models.StatusInProgress, New: models.StatusInReview}),
	}
}

func TestReconstruct_GroupsNewestDayFirst(t *testing.T) {
	days := Reconstruct(sample(t), time.UTC)

	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-02", days[0].Date)
	assert.Equal(t, "2026-03-01", days[1].Date)

	var ids []string
	for _, l := range days[0].Lines {
		ids = append(ids, l.EntryID)
	}
	assert.Equal(t, []string{"01C", "01D", "01E"}, ids, "ascending within the day, ties by id")
}

func TestReconstruct_UsesLocation(t *testing.T) {
	// 23:30 UTC on the 2nd is already the 3rd in Tokyo.
	tokyo := time.FixedZone("JST", 9*3600)
	days := Reconstruct(sample(t), tokyo)

	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-03", days[0].Date)
	assert.Len(t, days[0].Lines, 3)
	assert.Equal(t, tokyo, days[0].Lines[0].At.Location())
}

func TestReconstruct_OrderStable(t *testing.T) {
	entries := sample(t)
	want := Reconstruct(entries, time.UTC)

	r := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		shuffled := append([]models.AuditEntry(nil), entries...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, Reconstruct(shuffled, time.UTC))
	}
}

func TestReconstruct_DoesNotMutateInput(t *testing.T) {
	entries := sample(t)
	entries[0], entries[4] = entries[4], entries[0]
	first := entries[0].ID
	Reconstruct(entries, time.UTC)
	assert.Equal(t, first, entries[0].ID)
}

func TestReconstruct_Empty(t *testing.T) {
	assert.Empty(t, Reconstruct(nil, nil))
}

func TestFormat(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fb := "wrong color"
	epicKey, otherKey := "MAR-1", "MAR-9"
	sprintID := "sp1"
	oldTitle, newTitle := "a", "b"

	tests := []struct {
		name   string
		p      audit.Payload
		text   string
		detail string
	}{
		{"status", audit.StatusChange{Old: models.StatusInReview, New: models.StatusDone}, "completed (in review → done)", ""},
		{"priority", audit.PriorityChange{Old: models.PriorityLow, New: models.PriorityCritical}, "changed priority from low to critical", ""},
		{"approval approved", audit.ClientApproval{Status: models.ApprovalApproved}, "client approved", ""},
		{"approval rejected", audit.ClientApproval{Status: models.ApprovalRejected, Feedback: &fb}, "client rejected", fb},
		{"approval resubmitted", audit.ClientApproval{Status: models.ApprovalPending}, "resubmitted for client approval", ""},
		{"comment", audit.AddComment{Body: "ship it"}, "commented", "ship it"},
		{"link titled", audit.AddLink{URL: "https://github.com/o/r/pull/1", Title: "Fix"}, `linked "Fix" (https://github.com/o/r/pull/1)`, ""},
		{"link bare", audit.AddLink{URL: "https://x.dev"}, "linked https://x.dev", ""},
		{"unlink", audit.RemoveLink{URL: "https://x.dev"}, "removed link https://x.dev", ""},
		{"subtask", audit.CreateSubtask{SubtaskKey: "MAR-4", Title: "Wire API"}, "created subtask MAR-4: Wire API", ""},
		{"field change", audit.UpdateField{Field: "title", Old: &oldTitle, New: &newTitle}, `changed title from "a" to "b"`, ""},
		{"field set", audit.UpdateField{Field: "story_points", New: &newTitle}, `set story points to "b"`, ""},
		{"field clear", audit.UpdateField{Field: "assignee", Old: &oldTitle}, "cleared assignee", ""},
		{"parent move", audit.SetParent{Old: &epicKey, New: &otherKey}, "moved from epic MAR-1 to MAR-9", ""},
		{"parent clear", audit.SetParent{Old: &epicKey}, "removed from epic MAR-1", ""},
		{"sprint add", audit.SetSprint{New: &sprintID, NewName: "Sprint 4"}, "added to sprint Sprint 4", ""},
		{"sprint clear", audit.SetSprint{Old: &sprintID}, "moved to the backlog", ""},
		{"visibility", audit.ClientVisibility{Visible: false}, "hid the issue from the client", ""},
		{"close epic", audit.CloseEpic{Resolution: "CANCEL", Open: 2}, "closed the epic (cancel, 2 open children)", ""},
		{"delete", audit.DeleteIssue{Key: "MAR-4", Kind: models.KindStory, Title: "Login"}, "deleted story MAR-4: Login", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := Format(entry(t, "01X", at, tt.p))
			assert.Equal(t, tt.text, line.Text)
			assert.Equal(t, tt.detail, line.Detail)
			assert.Equal(t, tt.p.Action(), line.Action)
		})
	}
}

func TestFormat_UnknownAndMalformed(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	unknown := models.AuditEntry{ID: "1", Action: "merge_issues", Payload: `{"into":"MAR-2"}`, CreatedAt: at}
	assert.Equal(t, "performed action: merge_issues", Format(unknown).Text)

	broken := models.AuditEntry{ID: "2", Action: models.ActionStatusChange, Payload: `not json`, CreatedAt: at}
	assert.Equal(t, "performed action: status_change", Format(broken).Text)
}

// Package activity turns raw audit entries into a day-grouped, human-readable
// timeline. Everything here is pure: the same entries and location always
// produce the same output.
package activity

import (
	"sort"
	"time"

	"github.com/zulandar/tracker/internal/models"
)

// Line is one rendered audit entry.
type Line struct {
	EntryID string        `json:"entry_id"`
	At      time.Time     `json:"at"`
	ActorID string        `json:"actor_id"`
	Action  models.Action `json:"action"`
	Text    string        `json:"text"`
	// Detail carries free text attached to the action, e.g. a comment body
	// or client feedback.
	Detail string `json:"detail,omitempty"`
}

// Day groups the lines of one calendar day, oldest first.
type Day struct {
	Date  string `json:"date"` // YYYY-MM-DD in the reconstruction location
	Lines []Line `json:"lines"`
}

// Reconstruct groups entries by calendar day in loc, most recent day first,
// with entries ascending by timestamp inside a day. Equal timestamps are
// ordered by entry ID, so input order never affects the result. A nil loc
// means UTC.
func Reconstruct(entries []models.AuditEntry, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}
	sorted := make([]models.AuditEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(a, b int) bool {
		ta, tb := sorted[a].CreatedAt, sorted[b].CreatedAt
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return sorted[a].ID < sorted[b].ID
	})

	var days []Day
	index := make(map[string]int)
	for _, e := range sorted {
		local := e.CreatedAt.In(loc)
		key := local.Format(time.DateOnly)
		n, ok := index[key]
		if !ok {
			n = len(days)
			index[key] = n
			days = append(days, Day{Date: key})
		}
		line := Format(e)
		line.At = local
		days[n].Lines = append(days[n].Lines, line)
	}

	// Days were created in ascending order; the timeline shows newest first.
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	return days
}

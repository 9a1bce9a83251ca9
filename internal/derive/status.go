// Package derive computes the transient view state the client renders:
// per-habit completion status for a calendar date, weekday scheduling,
// and streak counts. Everything here is a pure function over rows
// already fetched by the repository layer; nothing in this package
// touches the database or the cache.
package derive

import (
	"time"

	"github.com/duohabit/duohabit/internal/model"
)

// DateLayout is the calendar-date form used across the API and the
// habit_completions.completion_date column.
const DateLayout = "2006-01-02"

// DateString formats a point in time as its calendar date.
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// HabitWithStatus is a habit annotated with the completion state of
// both members for one calendar date. It is recomputed on every
// fetch and never persisted. The completion ids are carried because
// un-completing requires the exact row id.
type HabitWithStatus struct {
	model.Habit
	IsCompletedToday          bool    `json:"is_completed_today"`
	TodaysCompletionID        *string `json:"todays_completion_id"`
	PartnerCompletedToday     bool    `json:"partner_completed_today"`
	PartnerTodaysCompletionID *string `json:"partner_todays_completion_id"`
}

// StatusForDate joins habits with the day's completion rows. The
// completions slice is expected to be pre-filtered to one date and to
// the two relevant accounts; rows from any other account are ignored.
// Partner fields stay false/nil when partnerID is empty.
func StatusForDate(habits []model.Habit, completions []model.Completion, userID, partnerID string) []HabitWithStatus {
	own := make(map[string]string, len(completions))
	theirs := make(map[string]string)
	for _, c := range completions {
		switch c.UserID {
		case userID:
			own[c.HabitID] = c.ID
		case partnerID:
			if partnerID != "" {
				theirs[c.HabitID] = c.ID
			}
		}
	}

	out := make([]HabitWithStatus, 0, len(habits))
	for _, h := range habits {
		s := HabitWithStatus{Habit: h}
		if id, ok := own[h.ID]; ok {
			cid := id
			s.IsCompletedToday = true
			s.TodaysCompletionID = &cid
		}
		if id, ok := theirs[h.ID]; ok {
			cid := id
			s.PartnerCompletedToday = true
			s.PartnerTodaysCompletionID = &cid
		}
		out = append(out, s)
	}
	return out
}

// Degraded returns the habit list with all completion fields zeroed.
// Used when the completion fetch fails: the list still renders, the
// day just looks incomplete until the next refetch.
func Degraded(habits []model.Habit) []HabitWithStatus {
	out := make([]HabitWithStatus, 0, len(habits))
	for _, h := range habits {
		out = append(out, HabitWithStatus{Habit: h})
	}
	return out
}

package derive

import (
	"sort"
	"time"

	"github.com/duohabit/duohabit/internal/model"
)

// calendarLookbackDays bounds how far back the rendered calendar
// generates contiguous day marks. Completion dates older than the
// window are still included individually so historical markers render.
const calendarLookbackDays = 90

// DayMark is one calendar day in a habit's history with the
// completion state of both members.
type DayMark struct {
	Date    string `json:"date"`
	Self    bool   `json:"self"`
	Partner bool   `json:"partner"`
}

// Streaks holds the derived streak counts for a habit detail view.
// Joint counts a day only when both members completed; it can never
// exceed either personal streak.
type Streaks struct {
	User    int `json:"user_streak"`
	Partner int `json:"partner_streak"`
	Joint   int `json:"joint_streak"`
}

// dayPairs indexes completions by date for the two relevant accounts.
// Completions from any other account are ignored.
func dayPairs(completions []model.Completion, userID, partnerID string) map[string]*DayMark {
	marks := make(map[string]*DayMark, len(completions))
	for _, c := range completions {
		if c.UserID != userID && (partnerID == "" || c.UserID != partnerID) {
			continue
		}
		m := marks[c.Date]
		if m == nil {
			m = &DayMark{Date: c.Date}
			marks[c.Date] = m
		}
		if c.UserID == userID {
			m.Self = true
		} else {
			m.Partner = true
		}
	}
	return marks
}

// ComputeStreaks walks backward day by day from the given date. A
// streak requires a completion on the date itself; without one it is
// zero regardless of prior history. Each walk stops at the first day
// its condition fails.
func ComputeStreaks(completions []model.Completion, userID, partnerID string, today time.Time) Streaks {
	marks := dayPairs(completions, userID, partnerID)
	return Streaks{
		User:    walk(marks, today, func(m *DayMark) bool { return m.Self }),
		Partner: walk(marks, today, func(m *DayMark) bool { return m.Partner }),
		Joint:   walk(marks, today, func(m *DayMark) bool { return m.Self && m.Partner }),
	}
}

func walk(marks map[string]*DayMark, from time.Time, done func(*DayMark) bool) int {
	count := 0
	for d := from; ; d = d.AddDate(0, 0, -1) {
		m, ok := marks[DateString(d)]
		if !ok || !done(m) {
			return count
		}
		count++
	}
}

// Calendar produces the day marks for a detail view: every day in the
// lookback window ending at today, unioned with any completion dates
// outside it. The result is sorted ascending by date.
func Calendar(completions []model.Completion, userID, partnerID string, today time.Time) []DayMark {
	marks := dayPairs(completions, userID, partnerID)

	start := today.AddDate(0, 0, -(calendarLookbackDays - 1))
	included := make(map[string]bool, calendarLookbackDays+len(marks))
	out := make([]DayMark, 0, calendarLookbackDays+len(marks))

	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := DateString(d)
		included[key] = true
		if m := marks[key]; m != nil {
			out = append(out, *m)
		} else {
			out = append(out, DayMark{Date: key})
		}
	}
	// Historical completions outside the window.
	for key, m := range marks {
		if !included[key] {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

package derive

import (
	"fmt"
	"strings"
	"time"

	"github.com/duohabit/duohabit/internal/model"
)

// Weekdays is the canonical day-set vocabulary, lowercase English
// names as stored in habits.frequency_days.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// WeekdayName returns the lowercase name for a date's weekday.
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// ValidateDaySet checks a frequency day-set against the habit
// invariant: weekly habits need at least one known weekday, daily
// habits must not carry a day-set at all.
func ValidateDaySet(freq model.Frequency, days []string) error {
	switch freq {
	case model.FrequencyDaily:
		if len(days) > 0 {
			return fmt.Errorf("daily habits must not set frequency_days")
		}
		return nil
	case model.FrequencyWeekly:
		if len(days) == 0 {
			return fmt.Errorf("weekly habits need at least one day")
		}
		for _, d := range days {
			if !knownWeekday(d) {
				return fmt.Errorf("unknown weekday %q", d)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown frequency %q", freq)
	}
}

func knownWeekday(d string) bool {
	for _, w := range Weekdays {
		if d == w {
			return true
		}
	}
	return false
}

// IsScheduledOn reports whether a habit is due on the given date:
// daily habits always, weekly habits only when the date's weekday is
// in the day-set.
func IsScheduledOn(h model.Habit, day time.Time) bool {
	if h.Frequency != model.FrequencyWeekly {
		return true
	}
	name := WeekdayName(day)
	for _, d := range h.FrequencyDays {
		if d == name {
			return true
		}
	}
	return false
}

// FilterScheduled keeps only the habits due on the given date.
func FilterScheduled(list []HabitWithStatus, day time.Time) []HabitWithStatus {
	out := make([]HabitWithStatus, 0, len(list))
	for _, s := range list {
		if IsScheduledOn(s.Habit, day) {
			out = append(out, s)
		}
	}
	return out
}

// FrequencyLabel renders a habit's cadence for display, e.g. "Daily"
// or "Weekly on Mon, Wed". Purely presentational.
func FrequencyLabel(h model.Habit) string {
	if h.Frequency != model.FrequencyWeekly {
		return "Daily"
	}
	// Keep canonical weekday order regardless of how the set was stored.
	short := make([]string, 0, len(h.FrequencyDays))
	for _, w := range Weekdays {
		for _, d := range h.FrequencyDays {
			if d == w {
				short = append(short, strings.ToUpper(w[:1])+w[1:3])
				break
			}
		}
	}
	if len(short) == 0 {
		return "Weekly"
	}
	return "Weekly on " + strings.Join(short, ", ")
}

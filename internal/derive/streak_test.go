package derive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duohabit/duohabit/internal/model"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

func day(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func comp(userID, date string) model.Completion {
	return model.Completion{ID: userID + "-" + date, HabitID: "habit-1", UserID: userID, Date: date}
}

func TestComputeStreaks_ZeroWithoutTodayCompletion(t *testing.T) {
	// Ten straight days of history, but nothing today.
	comps := []model.Completion{}
	for i := 1; i <= 10; i++ {
		comps = append(comps, comp(alice, DateString(day("2026-08-31").AddDate(0, 0, -i))))
	}

	s := ComputeStreaks(comps, alice, bob, day("2026-08-31"))
	assert.Equal(t, 0, s.User)
	assert.Equal(t, 0, s.Partner)
	assert.Equal(t, 0, s.Joint)
}

func TestComputeStreaks_CountsBackFromToday(t *testing.T) {
	comps := []model.Completion{
		comp(alice, "2026-08-31"),
		comp(alice, "2026-08-30"),
		comp(alice, "2026-08-29"),
		// gap on the 28th
		comp(alice, "2026-08-27"),
	}

	s := ComputeStreaks(comps, alice, bob, day("2026-08-31"))
	assert.Equal(t, 3, s.User)
	assert.Equal(t, 0, s.Partner)
}

func TestComputeStreaks_JointNeverExceedsEitherPersonal(t *testing.T) {
	comps := []model.Completion{
		comp(alice, "2026-08-31"), comp(bob, "2026-08-31"),
		comp(alice, "2026-08-30"), comp(bob, "2026-08-30"),
		comp(alice, "2026-08-29"), // bob missed the 29th
		comp(alice, "2026-08-28"), comp(bob, "2026-08-28"),
	}

	s := ComputeStreaks(comps, alice, bob, day("2026-08-31"))
	assert.Equal(t, 4, s.User)
	assert.Equal(t, 2, s.Partner)
	assert.Equal(t, 2, s.Joint)
	assert.LessOrEqual(t, s.Joint, s.User)
	assert.LessOrEqual(t, s.Joint, s.Partner)
}

func TestComputeStreaks_IgnoresForeignAccounts(t *testing.T) {
	comps := []model.Completion{
		comp(alice, "2026-08-31"),
		comp("user-mallory", "2026-08-31"),
		comp("user-mallory", "2026-08-30"),
	}

	s := ComputeStreaks(comps, alice, bob, day("2026-08-31"))
	assert.Equal(t, 1, s.User)
	assert.Equal(t, 0, s.Partner)
}

func TestComputeStreaks_NoPartner(t *testing.T) {
	comps := []model.Completion{
		comp(alice, "2026-08-31"),
		comp(alice, "2026-08-30"),
	}

	s := ComputeStreaks(comps, alice, "", day("2026-08-31"))
	assert.Equal(t, 2, s.User)
	assert.Equal(t, 0, s.Partner)
	assert.Equal(t, 0, s.Joint)
}

func TestCalendar_WindowPlusHistoricalUnion(t *testing.T) {
	today := day("2026-08-31")
	comps := []model.Completion{
		comp(alice, "2026-08-31"),
		comp(bob, "2026-08-15"),
		comp(alice, "2025-01-01"), // far outside the lookback window
	}

	cal := Calendar(comps, alice, bob, today)
	require.Equal(t, 91, len(cal)) // 90-day window + one historical date

	// Sorted ascending, historical mark first.
	assert.Equal(t, "2025-01-01", cal[0].Date)
	assert.True(t, cal[0].Self)
	assert.False(t, cal[0].Partner)

	last := cal[len(cal)-1]
	assert.Equal(t, "2026-08-31", last.Date)
	assert.True(t, last.Self)
	assert.False(t, last.Partner)

	byDate := make(map[string]DayMark, len(cal))
	for _, m := range cal {
		byDate[m.Date] = m
	}
	assert.True(t, byDate["2026-08-15"].Partner)
	assert.False(t, byDate["2026-08-15"].Self)
	// An uneventful day inside the window still renders.
	empty, ok := byDate["2026-08-20"]
	require.True(t, ok)
	assert.False(t, empty.Self)
	assert.False(t, empty.Partner)
}

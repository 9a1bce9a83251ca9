package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duohabit/duohabit/internal/model"
)

func TestStatusForDate_JoinsBothMembers(t *testing.T) {
	habits := []model.Habit{
		{ID: "h1", OwnerID: alice, Name: "Stretch"},
		{ID: "h2", OwnerID: alice, Name: "Read", Scope: model.Scope{Kind: model.ScopeShared, CoupleID: "cp1"}},
	}
	comps := []model.Completion{
		{ID: "c1", HabitID: "h1", UserID: alice, Date: "2026-09-01"},
		{ID: "c2", HabitID: "h2", UserID: bob, Date: "2026-09-01"},
	}

	out := StatusForDate(habits, comps, alice, bob)
	require.Len(t, out, 2)

	assert.True(t, out[0].IsCompletedToday)
	require.NotNil(t, out[0].TodaysCompletionID)
	assert.Equal(t, "c1", *out[0].TodaysCompletionID)
	assert.False(t, out[0].PartnerCompletedToday)

	assert.False(t, out[1].IsCompletedToday)
	assert.True(t, out[1].PartnerCompletedToday)
	require.NotNil(t, out[1].PartnerTodaysCompletionID)
	assert.Equal(t, "c2", *out[1].PartnerTodaysCompletionID)
}

func TestStatusForDate_IgnoresForeignCompletions(t *testing.T) {
	habits := []model.Habit{{ID: "h1", OwnerID: alice}}
	comps := []model.Completion{
		{ID: "c1", HabitID: "h1", UserID: "user-mallory", Date: "2026-09-01"},
	}

	out := StatusForDate(habits, comps, alice, bob)
	require.Len(t, out, 1)
	assert.False(t, out[0].IsCompletedToday)
	assert.False(t, out[0].PartnerCompletedToday)
}

func TestStatusForDate_EmptyPartnerMatchesNothing(t *testing.T) {
	habits := []model.Habit{{ID: "h1", OwnerID: alice}}
	// A completion row with an empty user id must not be treated as
	// the (absent) partner's.
	comps := []model.Completion{
		{ID: "c1", HabitID: "h1", UserID: "", Date: "2026-09-01"},
	}

	out := StatusForDate(habits, comps, alice, "")
	require.Len(t, out, 1)
	assert.False(t, out[0].PartnerCompletedToday)
	assert.Nil(t, out[0].PartnerTodaysCompletionID)
}

func TestDegraded_KeepsHabitsZeroesStatus(t *testing.T) {
	habits := []model.Habit{{ID: "h1"}, {ID: "h2"}}

	out := Degraded(habits)
	require.Len(t, out, 2)
	for _, s := range out {
		assert.False(t, s.IsCompletedToday)
		assert.Nil(t, s.TodaysCompletionID)
		assert.False(t, s.PartnerCompletedToday)
		assert.Nil(t, s.PartnerTodaysCompletionID)
	}
}

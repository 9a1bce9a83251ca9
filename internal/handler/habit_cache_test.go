package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duohabit/duohabit/internal/cache"
	"github.com/duohabit/duohabit/internal/derive"
	"github.com/duohabit/duohabit/internal/model"
)

func newCachedHandler() *HabitHandler {
	return &HabitHandler{Views: cache.NewView(cache.NewMemoryBackend(), "view", time.Minute)}
}

func TestPatchListEntry_AppliesOptimisticToggle(t *testing.T) {
	ctx := context.Background()
	h := newCachedHandler()
	key := habitListKey("2026-09-01", "u1", "u2")

	list := []derive.HabitWithStatus{
		{Habit: model.Habit{ID: "h1", Name: "Stretch"}},
		{Habit: model.Habit{ID: "h2", Name: "Read"}},
	}
	h.Views.Put(ctx, key, 0, list)

	cid := "comp-1"
	applied := h.patchListEntry(ctx, key, "h2", func(s *derive.HabitWithStatus) {
		s.IsCompletedToday = true
		s.TodaysCompletionID = &cid
	})
	assert.True(t, applied)

	var out []derive.HabitWithStatus
	version, hit := h.Views.Get(ctx, key, &out)
	require.True(t, hit)
	assert.Equal(t, uint64(2), version, "patch bumps the entry version")
	require.Len(t, out, 2)
	assert.False(t, out[0].IsCompletedToday)
	assert.True(t, out[1].IsCompletedToday)
	require.NotNil(t, out[1].TodaysCompletionID)
	assert.Equal(t, "comp-1", *out[1].TodaysCompletionID)
}

func TestPatchListEntry_UnknownHabitLeavesEntryUntouched(t *testing.T) {
	ctx := context.Background()
	h := newCachedHandler()
	key := habitListKey("2026-09-01", "u1", "u2")

	list := []derive.HabitWithStatus{{Habit: model.Habit{ID: "h1"}}}
	h.Views.Put(ctx, key, 0, list)

	applied := h.patchListEntry(ctx, key, "missing", func(s *derive.HabitWithStatus) {
		s.IsCompletedToday = true
	})
	assert.False(t, applied)

	var out []derive.HabitWithStatus
	version, hit := h.Views.Get(ctx, key, &out)
	require.True(t, hit)
	assert.Equal(t, uint64(1), version)
	assert.False(t, out[0].IsCompletedToday)
}

func TestReconcileToggle_PatchesBothMembersAndDropsDetail(t *testing.T) {
	ctx := context.Background()
	h := newCachedHandler()
	mine := habitListKey("2026-09-01", "u1", "u2")
	theirs := habitListKey("2026-09-01", "u2", "u1")
	detail := cache.NewKey("habit_detail", "h1", "2026-09-01", "u2")

	h.Views.Put(ctx, mine, 0, []derive.HabitWithStatus{{Habit: model.Habit{ID: "h1"}}})
	h.Views.Put(ctx, theirs, 0, []derive.HabitWithStatus{{Habit: model.Habit{ID: "h1"}}})
	h.Views.Put(ctx, detail, 0, "seed")

	h.reconcileToggle(ctx, "2026-09-01", "u1", "u2", "h1",
		func(s *derive.HabitWithStatus) { s.IsCompletedToday = true },
		func(s *derive.HabitWithStatus) { s.PartnerCompletedToday = true })

	var out []derive.HabitWithStatus
	_, hit := h.Views.Get(ctx, mine, &out)
	require.True(t, hit, "patched entries survive")
	assert.True(t, out[0].IsCompletedToday)

	_, hit = h.Views.Get(ctx, theirs, &out)
	require.True(t, hit)
	assert.True(t, out[0].PartnerCompletedToday)

	_, hit = h.Views.Get(ctx, detail, nil)
	assert.False(t, hit, "detail views are recomputed on next fetch")
}

func TestReconcileToggle_UnpatchableEntryIsInvalidated(t *testing.T) {
	ctx := context.Background()
	h := newCachedHandler()
	key := habitListKey("2026-09-01", "u1", "u2")

	// The cached list predates the habit, so the patch cannot apply;
	// reconciliation must drop the entry rather than leave it stale.
	h.Views.Put(ctx, key, 0, []derive.HabitWithStatus{{Habit: model.Habit{ID: "other"}}})

	h.reconcileToggle(ctx, "2026-09-01", "u1", "u2", "h1",
		func(s *derive.HabitWithStatus) { s.IsCompletedToday = true },
		func(s *derive.HabitWithStatus) { s.PartnerCompletedToday = true })

	_, hit := h.Views.Get(ctx, key, nil)
	assert.False(t, hit)
}

func TestReconcileToggle_OtherDatesUntouched(t *testing.T) {
	ctx := context.Background()
	h := newCachedHandler()
	today := habitListKey("2026-09-01", "u1", "u2")
	past := habitListKey("2026-08-25", "u1", "u2")

	completed := "comp-old"
	h.Views.Put(ctx, today, 0, []derive.HabitWithStatus{
		{Habit: model.Habit{ID: "h1"}, IsCompletedToday: true, TodaysCompletionID: &completed},
	})
	h.Views.Put(ctx, past, 0, []derive.HabitWithStatus{
		{Habit: model.Habit{ID: "h1"}, IsCompletedToday: true, TodaysCompletionID: &completed},
	})

	// Undoing the past day's completion reconciles that date only.
	h.reconcileToggle(ctx, "2026-08-25", "u1", "u2", "h1",
		func(s *derive.HabitWithStatus) {
			s.IsCompletedToday = false
			s.TodaysCompletionID = nil
		},
		func(s *derive.HabitWithStatus) {
			s.PartnerCompletedToday = false
			s.PartnerTodaysCompletionID = nil
		})

	var out []derive.HabitWithStatus
	_, hit := h.Views.Get(ctx, past, &out)
	require.True(t, hit)
	assert.False(t, out[0].IsCompletedToday)

	_, hit = h.Views.Get(ctx, today, &out)
	require.True(t, hit)
	assert.True(t, out[0].IsCompletedToday, "today's flags keep their state")
}

package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestView() *View {
	return NewView(NewMemoryBackend(), "view", time.Minute)
}

func TestView_GetMissThenPutHit(t *testing.T) {
	ctx := context.Background()
	v := newTestView()
	key := NewKey("habits", "2026-09-01", "u1", "u2")

	var out []string
	version, hit := v.Get(ctx, key, &out)
	assert.False(t, hit)
	assert.Equal(t, uint64(0), version)

	v.Put(ctx, key, version, []string{"a", "b"})

	version, hit = v.Get(ctx, key, &out)
	require.True(t, hit)
	assert.Equal(t, uint64(1), version)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestView_StaleRefetchDoesNotClobberPatch(t *testing.T) {
	ctx := context.Background()
	v := newTestView()
	key := NewKey("habits", "2026-09-01", "u1", "u2")

	// A refetch observes the entry, then an optimistic patch lands
	// before the refetch writes back.
	v.Put(ctx, key, 0, []string{"stale"})
	observed, hit := v.Get(ctx, key, nil)
	require.True(t, hit)

	v.Patch(ctx, key, func(data json.RawMessage) (json.RawMessage, bool) {
		return json.RawMessage(`["patched"]`), true
	})

	v.Put(ctx, key, observed, []string{"refetched-before-patch"})

	var out []string
	_, hit = v.Get(ctx, key, &out)
	require.True(t, hit)
	assert.Equal(t, []string{"patched"}, out)

	// A refetch that observed the patched version does win.
	observed, _ = v.Get(ctx, key, nil)
	v.Put(ctx, key, observed, []string{"fresh"})
	_, hit = v.Get(ctx, key, &out)
	require.True(t, hit)
	assert.Equal(t, []string{"fresh"}, out)
}

func TestView_PatchSkipsUncachedEntry(t *testing.T) {
	ctx := context.Background()
	v := newTestView()
	key := NewKey("habits", "2026-09-01", "u1", "u2")

	called := false
	v.Patch(ctx, key, func(data json.RawMessage) (json.RawMessage, bool) {
		called = true
		return data, true
	})
	assert.False(t, called)

	_, hit := v.Get(ctx, key, nil)
	assert.False(t, hit)
}

func TestView_InvalidateByPrefix(t *testing.T) {
	ctx := context.Background()
	v := newTestView()

	listA := NewKey("habits", "2026-09-01", "u1", "u2")
	listB := NewKey("habits", "2026-08-31", "u1", "u2")
	detail := NewKey("habit_detail", "h1", "2026-09-01", "u1")

	v.Put(ctx, listA, 0, "a")
	v.Put(ctx, listB, 0, "b")
	v.Put(ctx, detail, 0, "d")

	v.Invalidate(ctx, "habits")

	_, hit := v.Get(ctx, listA, nil)
	assert.False(t, hit)
	_, hit = v.Get(ctx, listB, nil)
	assert.False(t, hit)
	_, hit = v.Get(ctx, detail, nil)
	assert.True(t, hit, "other operations survive")

	v.Invalidate(ctx, "habit_detail", "h1")
	_, hit = v.Get(ctx, detail, nil)
	assert.False(t, hit)
}

func TestView_PurgeScopeRemovesOnlyThatUser(t *testing.T) {
	ctx := context.Background()
	v := newTestView()

	mine := []Key{
		NewKey("habits", "2026-09-01", "u1", "u2"),
		NewKey("partner", "u1"),
		NewKey("notes", "latest", "u1", "u2"),
	}
	theirs := NewKey("partner", "u3")

	for _, k := range mine {
		v.Put(ctx, k, 0, "x")
	}
	v.Put(ctx, theirs, 0, "y")

	v.PurgeScope(ctx, "u1")

	for _, k := range mine {
		_, hit := v.Get(ctx, k, nil)
		assert.False(t, hit, "key %v should be purged", k)
	}
	_, hit := v.Get(ctx, theirs, nil)
	assert.True(t, hit)
}

func TestMemoryBackend_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	ok, err := b.SetVersioned(ctx, "view:x", 1, []byte("p"), 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	_, hit, _ := b.Get(ctx, "view:x")
	assert.True(t, hit)

	time.Sleep(20 * time.Millisecond)
	_, hit, _ = b.Get(ctx, "view:x")
	assert.False(t, hit)
}

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duohabit/duohabit/internal/cache"
)

func seedView(t *testing.T) *cache.View {
	t.Helper()
	ctx := context.Background()
	v := cache.NewView(cache.NewMemoryBackend(), "view", time.Minute)
	for _, k := range []cache.Key{
		cache.NewKey("habits", "2026-09-01", "u1", "u2"),
		cache.NewKey("habit_detail", "h1", "2026-09-01", "u1"),
		cache.NewKey("notes", "latest", "u1", "u2"),
		cache.NewKey("partner", "u1"),
	} {
		v.Put(ctx, k, 0, "seed")
	}
	return v
}

func cached(v *cache.View, k cache.Key) bool {
	_, hit := v.Get(context.Background(), k, nil)
	return hit
}

func TestHandleMessage_InvalidatesByTable(t *testing.T) {
	ctx := context.Background()

	t.Run("completion change drops habit views", func(t *testing.T) {
		v := seedView(t)
		err := handleMessage(ctx, []byte(`{"table":"habit_completions","action":"insert","row_id":"c1","user_ids":["u1"]}`), v)
		require.NoError(t, err)
		assert.False(t, cached(v, cache.NewKey("habits", "2026-09-01", "u1", "u2")))
		assert.False(t, cached(v, cache.NewKey("habit_detail", "h1", "2026-09-01", "u1")))
		assert.True(t, cached(v, cache.NewKey("notes", "latest", "u1", "u2")))
		assert.True(t, cached(v, cache.NewKey("partner", "u1")))
	})

	t.Run("note change drops note views only", func(t *testing.T) {
		v := seedView(t)
		err := handleMessage(ctx, []byte(`{"table":"notes","action":"insert","row_id":"n1","user_ids":["u2"]}`), v)
		require.NoError(t, err)
		assert.False(t, cached(v, cache.NewKey("notes", "latest", "u1", "u2")))
		assert.True(t, cached(v, cache.NewKey("habits", "2026-09-01", "u1", "u2")))
	})

	t.Run("membership change drops partner and habit views", func(t *testing.T) {
		v := seedView(t)
		err := handleMessage(ctx, []byte(`{"table":"couple_members","action":"delete","row_id":"cp1","user_ids":["u1"]}`), v)
		require.NoError(t, err)
		assert.False(t, cached(v, cache.NewKey("partner", "u1")))
		assert.False(t, cached(v, cache.NewKey("habits", "2026-09-01", "u1", "u2")))
		assert.True(t, cached(v, cache.NewKey("notes", "latest", "u1", "u2")))
	})
}

func TestHandleMessage_RejectsGarbage(t *testing.T) {
	v := seedView(t)
	assert.Error(t, handleMessage(context.Background(), []byte(`not json`), v))
	assert.Error(t, handleMessage(context.Background(), []byte(`{"table":"unknown_table"}`), v))
}

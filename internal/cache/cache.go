// Package cache is the derived-view cache: query results keyed by
// operation name plus parameters, each entry carrying a monotonic
// version. Mutation handlers patch entries optimistically (version
// bump) and then invalidate them so a background refetch reconciles
// with the store; a refetch carrying an older version than the stored
// entry is discarded rather than clobbering the patch.
//
// The cache is injected into handlers as a dependency; there is no
// package-level singleton.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Key identifies one cached view: an operation name and the
// parameters that select its result (user id, partner id, date,
// habit id). Two fetches with the same key are the same view.
type Key struct {
	Op     string
	Params []string
}

// NewKey builds a Key.
func NewKey(op string, params ...string) Key {
	return Key{Op: op, Params: params}
}

func (k Key) render(prefix string) string {
	parts := append([]string{prefix, k.Op}, k.Params...)
	return strings.Join(parts, ":")
}

// entry is the stored form: version plus the marshalled view data.
type entry struct {
	Version uint64          `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// Backend is the raw keyed storage behind the view cache. The
// versioned set must be atomic: the payload is written only when the
// stored entry's version is lower than the given one.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetVersioned(ctx context.Context, key string, version uint64, payload []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// View is the cache service handed to handlers. Cache failures are
// never surfaced to callers: a broken cache degrades to recomputing
// every view, it must not fail requests.
type View struct {
	backend Backend
	prefix  string
	ttl     time.Duration
}

// NewView builds a View over the given backend. prefix namespaces all
// keys; ttl bounds entry lifetime.
func NewView(b Backend, prefix string, ttl time.Duration) *View {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &View{backend: b, prefix: prefix, ttl: ttl}
}

// Get loads a cached view into out. It returns the stored version and
// whether the lookup hit. Backend errors count as misses.
func (v *View) Get(ctx context.Context, k Key, out any) (uint64, bool) {
	raw, ok, err := v.backend.Get(ctx, k.render(v.prefix))
	if err != nil || !ok {
		return 0, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return 0, false
	}
	if out != nil {
		if err := json.Unmarshal(e.Data, out); err != nil {
			return 0, false
		}
	}
	return e.Version, true
}

// Put stores a freshly computed view under version+1 of the version
// observed at Get time. If a newer entry landed in between (an
// optimistic patch), the write is dropped.
func (v *View) Put(ctx context.Context, k Key, observed uint64, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	payload, err := json.Marshal(entry{Version: observed + 1, Data: raw})
	if err != nil {
		return
	}
	_, _ = v.backend.SetVersioned(ctx, k.render(v.prefix), observed+1, payload, v.ttl)
}

// Patch applies an optimistic local update to a cached entry. apply
// receives the current data and returns the replacement; returning
// ok=false leaves the entry untouched (e.g. the view is not cached).
// A successful patch bumps the version so that stale refetch writes
// are discarded.
func (v *View) Patch(ctx context.Context, k Key, apply func(data json.RawMessage) (json.RawMessage, bool)) {
	key := k.render(v.prefix)
	raw, ok, err := v.backend.Get(ctx, key)
	if err != nil || !ok {
		return
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return
	}
	patched, ok := apply(e.Data)
	if !ok {
		return
	}
	payload, err := json.Marshal(entry{Version: e.Version + 1, Data: patched})
	if err != nil {
		return
	}
	_, _ = v.backend.SetVersioned(ctx, key, e.Version+1, payload, v.ttl)
}

// Invalidate removes every entry under the given operation and
// leading parameters. Invalidate(ctx, "habits") drops all cached
// habit lists; Invalidate(ctx, "habit_detail", id) drops one habit's
// detail views for every date.
func (v *View) Invalidate(ctx context.Context, op string, params ...string) {
	prefix := NewKey(op, params...).render(v.prefix)
	keys, err := v.backend.Keys(ctx, prefix)
	if err != nil {
		return
	}
	if len(keys) > 0 {
		_ = v.backend.Delete(ctx, keys...)
	}
}

// PurgeScope removes every entry whose parameters mention the given
// user id, regardless of operation. Wired to sign-out so one
// account's cached habits, partner and notes can never leak into the
// next session on the same client.
func (v *View) PurgeScope(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	keys, err := v.backend.Keys(ctx, v.prefix+":")
	if err != nil {
		return
	}
	needle := ":" + userID
	var doomed []string
	for _, k := range keys {
		if strings.Contains(k, needle) {
			doomed = append(doomed, k)
		}
	}
	if len(doomed) > 0 {
		_ = v.backend.Delete(ctx, doomed...)
	}
}

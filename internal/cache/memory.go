package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is a process-local Backend used when Redis is not
// reachable at startup and in tests. Entries expire lazily on read.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	version   uint64
	payload   []byte
	expiresAt time.Time
}

// NewMemoryBackend returns an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memEntry)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(b.entries, key)
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (b *MemoryBackend) SetVersioned(_ context.Context, key string, version uint64, payload []byte, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.entries[key]; ok && cur.version >= version {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	b.entries[key] = memEntry{version: version, payload: payload, expiresAt: exp}
	return true, nil
}

func (b *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.entries, k)
	}
	return nil
}

func (b *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for k := range b.entries {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

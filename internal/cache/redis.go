package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// setVersionedScript compares the version of the stored entry with
// the incoming one and writes only when the incoming version is
// newer. Entries are JSON objects with a numeric "v" field, which
// keeps the comparison doable inside Redis without a second key.
var setVersionedScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, obj = pcall(cjson.decode, cur)
  if ok and obj and tonumber(obj.v) and tonumber(obj.v) >= tonumber(ARGV[1]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisBackend stores view entries in Redis. It is the production
// backend; tests use MemoryBackend.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an already connected client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (b *RedisBackend) SetVersioned(ctx context.Context, key string, version uint64, payload []byte, ttl time.Duration) (bool, error) {
	res, err := setVersionedScript.Run(ctx, b.client, []string{key},
		version, payload, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.client.Del(ctx, keys...).Err()
}

// Keys scans for keys starting with prefix. SCAN is used instead of
// KEYS so a large cache does not block the server.
func (b *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := b.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

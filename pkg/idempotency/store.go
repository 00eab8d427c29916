package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// Seen marks key as processed and reports whether it had already been marked.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// Forget clears a mark so a failed delivery can be processed again.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// TryLock takes a best-effort exclusive lease on name. When the lease is held
// elsewhere it returns ok=false and a nil release.
func (s *Store) TryLock(ctx context.Context, name string, lease time.Duration) (release func(context.Context) error, ok bool, err error) {
	key := "lock:" + name
	token := uuid.NewString()

	ok, err = s.rdb.SetNX(ctx, key, token, lease).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, s.rdb, []string{key}, token).Err()
	}, true, nil
}

package persist

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-realtime-holds/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type RedisBackend struct {
	rdb *redis.Client
	key string
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb, key: redisx.KeyReservationState}
}

func (r *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

// Write stores the blob without expiry; stale entries are filtered on load.
func (r *RedisBackend) Write(ctx context.Context, blob []byte) error {
	return r.rdb.Set(ctx, r.key, blob, 0).Err()
}

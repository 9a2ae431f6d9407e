package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// FirstSeen marks (consumer, id) as processed and reports whether this call
// was the first to do so.
func FirstSeen(ctx context.Context, rdb *redis.Client, consumer, id string) (bool, error) {
	key := fmt.Sprintf(KeyDedup, consumer, id)
	return rdb.SetNX(ctx, key, "1", TTLDedup).Result()
}

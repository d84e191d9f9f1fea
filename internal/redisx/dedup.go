package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids for one consuming service.
type Dedup struct {
	Rdb     *redis.Client
	Service string
}

// First claims id and reports whether no earlier delivery claimed it.
func (d *Dedup) First(ctx context.Context, id string) (bool, error) {
	return MarkOnce(ctx, d.Rdb, fmt.Sprintf(KeyDedup, d.Service, id), TTLDedup)
}

// Forget drops a claim so a redelivery is processed again.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	return d.Rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}

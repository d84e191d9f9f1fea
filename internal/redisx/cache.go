package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/alkuinvito/kasirin/internal/checkout"
)

// TransactionCache is a best-effort read cache; Redis errors degrade to a miss.
type TransactionCache struct {
	Rdb *redis.Client
	Log *slog.Logger
}

var _ checkout.Cache = (*TransactionCache)(nil)

func (c *TransactionCache) GetTransaction(ctx context.Context, id string) (*checkout.Transaction, bool) {
	b, err := c.Rdb.Get(ctx, fmt.Sprintf(KeyTransaction, id)).Bytes()
	if err != nil {
		if !isNil(err) {
			c.warn("cache get", id, err)
		}
		return nil, false
	}
	var t checkout.Transaction
	if err := json.Unmarshal(b, &t); err != nil {
		c.warn("cache decode", id, err)
		return nil, false
	}
	return &t, true
}

func (c *TransactionCache) PutTransaction(ctx context.Context, t *checkout.Transaction) {
	b, err := json.Marshal(t)
	if err != nil {
		c.warn("cache encode", t.ID, err)
		return
	}
	if err := c.Rdb.Set(ctx, fmt.Sprintf(KeyTransaction, t.ID), b, TTLTransaction).Err(); err != nil {
		c.warn("cache put", t.ID, err)
	}
}

func (c *TransactionCache) Invalidate(ctx context.Context, id string) {
	if err := c.Rdb.Del(ctx, fmt.Sprintf(KeyTransaction, id)).Err(); err != nil {
		c.warn("cache invalidate", id, err)
	}
}

func (c *TransactionCache) warn(msg, id string, err error) {
	if c.Log != nil {
		c.Log.Warn(msg, "transaction_id", id, "err", err)
	}
}

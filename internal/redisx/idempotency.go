package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight means another request holding the same key has not finished.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

const inFlight = "pending"

type Idempotency struct {
	Rdb *redis.Client
}

// Claim reserves key for scope. When the key already completed it returns the
// stored result and claimed=false. A caller that claimed must later Complete
// or Release.
func (i *Idempotency) Claim(ctx context.Context, scope, key string) (result string, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemAdmit, scope, key)
	ok, err := i.Rdb.SetNX(ctx, k, inFlight, TTLIdemInFlight).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", true, nil
	}
	v, err := i.Rdb.Get(ctx, k).Result()
	switch {
	case isNil(err):
		// Released between SETNX and GET.
		return "", false, ErrInFlight
	case err != nil:
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	case v == inFlight:
		return "", false, ErrInFlight
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, scope, key, result string) error {
	return i.Rdb.Set(ctx, fmt.Sprintf(KeyIdemAdmit, scope, key), result, TTLIdempotency).Err()
}

// Release drops an in-flight claim so the client may retry.
func (i *Idempotency) Release(ctx context.Context, scope, key string) error {
	k := fmt.Sprintf(KeyIdemAdmit, scope, key)
	err := i.Rdb.Watch(ctx, func(tx *redis.Tx) error {
		v, err := tx.Get(ctx, k).Result()
		if isNil(err) || (err == nil && v != inFlight) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, k)
			return nil
		})
		return err
	}, k)
	return err
}

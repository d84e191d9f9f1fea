package redisx_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alkuinvito/kasirin/internal/checkout"
	"github.com/alkuinvito/kasirin/internal/redisx"
	"github.com/alkuinvito/kasirin/internal/redisx/redistest"
)

func TestIdempotency_ClaimCompleteReplay(t *testing.T) {
	rdb := redistest.Open(t)
	ctx := context.Background()
	idem := &redisx.Idempotency{Rdb: rdb}

	_, claimed, err := idem.Claim(ctx, "user-1", "k1")
	require.NoError(t, err)
	require.True(t, claimed)

	_, claimed, err = idem.Claim(ctx, "user-1", "k1")
	require.ErrorIs(t, err, redisx.ErrInFlight)
	require.False(t, claimed)

	require.NoError(t, idem.Complete(ctx, "user-1", "k1", "tx-1"))
	got, claimed, err := idem.Claim(ctx, "user-1", "k1")
	require.NoError(t, err)
	require.False(t, claimed)
	require.Equal(t, "tx-1", got)

	// Same key under another cashier is independent.
	_, claimed, err = idem.Claim(ctx, "user-2", "k1")
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestIdempotency_ReleaseOnlyDropsInFlight(t *testing.T) {
	rdb := redistest.Open(t)
	ctx := context.Background()
	idem := &redisx.Idempotency{Rdb: rdb}

	_, _, err := idem.Claim(ctx, "u", "retry")
	require.NoError(t, err)
	require.NoError(t, idem.Release(ctx, "u", "retry"))
	_, claimed, err := idem.Claim(ctx, "u", "retry")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, idem.Complete(ctx, "u", "retry", "tx-9"))
	require.NoError(t, idem.Release(ctx, "u", "retry"))
	got, _, err := idem.Claim(ctx, "u", "retry")
	require.NoError(t, err)
	require.Equal(t, "tx-9", got)
}

func TestTransactionCache_RoundTripAndInvalidate(t *testing.T) {
	rdb := redistest.Open(t)
	ctx := context.Background()
	c := &redisx.TransactionCache{Rdb: rdb}

	m := checkout.MethodCash
	tx := &checkout.Transaction{
		ID:        "tx-1",
		UserID:    "u-1",
		Status:    checkout.StatusDone,
		Method:    &m,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Lines: []checkout.OrderLine{{
			ID: "l-1", ProductID: "p-1", ProductName: "Latte", Quantity: 2, UnitPrice: 25000,
			Options: []checkout.SelectedOption{{ID: "o-1", Name: "Oat milk", Price: 5000}},
		}},
	}
	c.PutTransaction(ctx, tx)

	got, ok := c.GetTransaction(ctx, "tx-1")
	require.True(t, ok)
	require.Equal(t, int64(50000), got.Subtotal())
	require.Equal(t, checkout.MethodCash, *got.Method)
	require.Equal(t, "Oat milk", got.Lines[0].Options[0].Name)

	c.Invalidate(ctx, "tx-1")
	_, ok = c.GetTransaction(ctx, "tx-1")
	require.False(t, ok)
}

func TestSales_RecordAndDay(t *testing.T) {
	rdb := redistest.Open(t)
	ctx := context.Background()
	s := &redisx.Sales{Rdb: rdb}

	require.NoError(t, s.Record(ctx, "2026-10-19", 30000, []redisx.SoldQty{{ProductID: "a", Quantity: 2}, {ProductID: "b", Quantity: 1}}))
	require.NoError(t, s.Record(ctx, "2026-10-19", 12000, []redisx.SoldQty{{ProductID: "b", Quantity: 4}}))

	day, err := s.Day(ctx, "2026-10-19", 5)
	require.NoError(t, err)
	require.Equal(t, int64(42000), day.Revenue)
	require.Equal(t, int64(2), day.Transactions)
	require.Equal(t, []redisx.SoldQty{{ProductID: "b", Quantity: 5}, {ProductID: "a", Quantity: 2}}, day.BestSellers)

	empty, err := s.Day(ctx, "2026-10-18", 5)
	require.NoError(t, err)
	require.Zero(t, empty.Revenue)
	require.Empty(t, empty.BestSellers)
}

func TestMarkOnce(t *testing.T) {
	rdb := redistest.Open(t)
	ctx := context.Background()

	first, err := redisx.MarkOnce(ctx, rdb, "dedup:test:e1", time.Minute)
	require.NoError(t, err)
	require.True(t, first)
	again, err := redisx.MarkOnce(ctx, rdb, "dedup:test:e1", time.Minute)
	require.NoError(t, err)
	require.False(t, again)
}

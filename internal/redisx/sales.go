package redisx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type SoldQty struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type DaySales struct {
	Revenue      int64     `json:"revenue"`
	Transactions int64     `json:"transactions"`
	BestSellers  []SoldQty `json:"bestSellers"`
}

// Sales keeps per-day revenue and per-product quantity counters.
type Sales struct {
	Rdb *redis.Client
}

// Record adds one paid transaction to day's counters atomically.
func (s *Sales) Record(ctx context.Context, day string, revenue int64, lines []SoldQty) error {
	dayKey := fmt.Sprintf(KeySalesDay, day)
	prodKey := fmt.Sprintf(KeySalesProducts, day)
	_, err := s.Rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, dayKey, "revenue", revenue)
		p.HIncrBy(ctx, dayKey, "transactions", 1)
		for _, l := range lines {
			if l.ProductID == "" {
				continue
			}
			p.ZIncrBy(ctx, prodKey, float64(l.Quantity), l.ProductID)
		}
		p.Expire(ctx, dayKey, TTLSalesRetention)
		p.Expire(ctx, prodKey, TTLSalesRetention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record sales %s: %w", day, err)
	}
	return nil
}

// Day returns day's totals and its top sellers, highest quantity first.
func (s *Sales) Day(ctx context.Context, day string, top int) (DaySales, error) {
	out := DaySales{BestSellers: []SoldQty{}}
	h, err := s.Rdb.HGetAll(ctx, fmt.Sprintf(KeySalesDay, day)).Result()
	if err != nil {
		return out, err
	}
	out.Revenue, _ = strconv.ParseInt(h["revenue"], 10, 64)
	out.Transactions, _ = strconv.ParseInt(h["transactions"], 10, 64)

	if top <= 0 {
		top = 10
	}
	zs, err := s.Rdb.ZRevRangeWithScores(ctx, fmt.Sprintf(KeySalesProducts, day), 0, int64(top-1)).Result()
	if err != nil {
		return out, err
	}
	for _, z := range zs {
		id, _ := z.Member.(string)
		out.BestSellers = append(out.BestSellers, SoldQty{ProductID: id, Quantity: int64(z.Score)})
	}
	return out, nil
}

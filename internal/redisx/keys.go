package redisx

import "time"

const (
	// idem:transaction:create:{user_id}:{idempotency_key} -> transaction id, or "pending" while in flight
	KeyIdemAdmit = "idem:transaction:create:%s:%s"

	// transaction:{id} -> JSON of a paid transaction as stored
	KeyTransaction = "transaction:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// sales:{yyyy-mm-dd} hash {revenue, transactions}
	KeySalesDay = "sales:%s"

	// sales:{yyyy-mm-dd}:products zset product_id -> quantity sold
	KeySalesProducts = "sales:%s:products"
)

var (
	TTLIdempotency    = 24 * time.Hour
	TTLIdemInFlight   = 30 * time.Second
	TTLTransaction    = 10 * time.Minute
	TTLDedup          = 48 * time.Hour
	TTLSalesRetention = 90 * 24 * time.Hour
)

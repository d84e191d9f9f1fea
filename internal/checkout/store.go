package checkout

import (
	"context"
	"time"
)

// UnitOfWork is a scoped database transaction handle. Everything done through
// it commits together or not at all.
type UnitOfWork interface {
	// LockProduct reads the product row and holds it until the unit ends.
	LockProduct(ctx context.Context, productID string) (LockedProduct, error)
	// DecrementStock subtracts qty only if the row still holds at least qty.
	DecrementStock(ctx context.Context, productID string, qty int) error
	RestoreStock(ctx context.Context, productID string, qty int) error
	// ResolveOptions maps option item ids to items of the product's own groups.
	ResolveOptions(ctx context.Context, productID string, ids []string) ([]SelectedOption, error)
	InsertTransaction(ctx context.Context, t *Transaction) error
	// LockTransaction reads the transaction with its lines and holds the row.
	LockTransaction(ctx context.Context, id string) (*Transaction, error)
	MarkPaid(ctx context.Context, id string, method Method, at time.Time) error
	DeleteTransaction(ctx context.Context, id string) error
}

type Store interface {
	// WithinTx runs fn in one unit of work, committing only when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, limit, offset int) ([]Transaction, error)
	// MarkExpired persists expired for a transaction that is still pending.
	MarkExpired(ctx context.Context, id string) error
	ListFees(ctx context.Context) ([]Fee, error)
}

// Cache holds transactions as stored, before any read-time correction.
type Cache interface {
	GetTransaction(ctx context.Context, id string) (*Transaction, bool)
	PutTransaction(ctx context.Context, t *Transaction)
	Invalidate(ctx context.Context, id string)
}

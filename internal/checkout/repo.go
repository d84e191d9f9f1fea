package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres Store. Row locks (SELECT ... FOR UPDATE) serialise every
// read-check-write on a product's stock or a transaction's status.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repo) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgUnit{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if !isUUID(id) {
		return nil, &NotFoundError{Kind: "transaction", ID: id}
	}
	t, err := scanTransaction(r.DB.QueryRow(ctx, selectTransaction+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Kind: "transaction", ID: id}
	}
	if err != nil {
		return nil, err
	}
	if err := attachLines(ctx, r.DB, []*Transaction{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repo) ListTransactions(ctx context.Context, limit, offset int) ([]Transaction, error) {
	rows, err := r.DB.Query(ctx, selectTransaction+` ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ptrs []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachLines(ctx, r.DB, ptrs); err != nil {
		return nil, err
	}

	out := make([]Transaction, 0, len(ptrs))
	for _, t := range ptrs {
		out = append(out, *t)
	}
	return out, nil
}

func (r *Repo) MarkExpired(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `UPDATE transactions SET status = 'expired' WHERE id = $1 AND status = 'pending'`, id)
	return err
}

func (r *Repo) ListFees(ctx context.Context) ([]Fee, error) {
	rows, err := r.DB.Query(ctx, `SELECT id::text, name, type, amount::text FROM fees ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Fee
	for rows.Next() {
		var (
			f           Fee
			typ, amount string
		)
		if err := rows.Scan(&f.ID, &f.Name, &typ, &amount); err != nil {
			return nil, err
		}
		f.Type = FeeType(typ)
		if f.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("fee %s amount: %w", f.ID, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type pgUnit struct{ tx pgx.Tx }

func (u *pgUnit) LockProduct(ctx context.Context, productID string) (LockedProduct, error) {
	var p LockedProduct
	if !isUUID(productID) {
		return p, &NotFoundError{Kind: "product", ID: productID}
	}
	err := u.tx.QueryRow(ctx, `
		SELECT id::text, name, price, stock
		FROM products
		WHERE id = $1
		FOR UPDATE`, productID).Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, &NotFoundError{Kind: "product", ID: productID}
	}
	return p, err
}

func (u *pgUnit) DecrementStock(ctx context.Context, productID string, qty int) error {
	ct, err := u.tx.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		var available int
		err := u.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Kind: "product", ID: productID}
		}
		if err != nil {
			return fmt.Errorf("read stock of %s: %w", productID, err)
		}
		return &StockError{ProductID: productID, Requested: qty, Available: available}
	}
	return nil
}

func (u *pgUnit) RestoreStock(ctx context.Context, productID string, qty int) error {
	_, err := u.tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, productID, qty)
	return err
}

func (u *pgUnit) ResolveOptions(ctx context.Context, productID string, ids []string) ([]SelectedOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	for _, id := range ids {
		if !isUUID(id) {
			return nil, &NotFoundError{Kind: "variant", ID: id}
		}
	}

	rows, err := u.tx.Query(ctx, `
		SELECT oi.id::text, oi.name, oi.price
		FROM option_items oi
		JOIN option_groups og ON og.id = oi.group_id
		WHERE og.product_id = $1 AND oi.id = ANY($2::uuid[])`, productID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]SelectedOption, len(ids))
	for rows.Next() {
		var o SelectedOption
		if err := rows.Scan(&o.ID, &o.Name, &o.Price); err != nil {
			return nil, err
		}
		found[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]SelectedOption, 0, len(ids))
	for _, id := range ids {
		o, ok := found[id]
		if !ok {
			return nil, &NotFoundError{Kind: "variant", ID: id}
		}
		out = append(out, o)
	}
	return out, nil
}

func (u *pgUnit) InsertTransaction(ctx context.Context, t *Transaction) error {
	if _, err := u.tx.Exec(ctx, `
		INSERT INTO transactions (id, user_id, status, created_at)
		VALUES ($1, $2, $3, $4)`, t.ID, t.UserID, string(t.Status), t.CreatedAt); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	for i, l := range t.Lines {
		if _, err := u.tx.Exec(ctx, `
			INSERT INTO order_lines (id, transaction_id, position, product_id, product_name, quantity, unit_price, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			l.ID, t.ID, i, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice, l.Notes); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
		for _, o := range l.Options {
			if _, err := u.tx.Exec(ctx, `
				INSERT INTO order_line_options (line_id, option_item_id, name, price)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (line_id, option_item_id) DO NOTHING`,
				l.ID, o.ID, o.Name, o.Price); err != nil {
				return fmt.Errorf("insert order line option: %w", err)
			}
		}
	}
	return nil
}

func (u *pgUnit) LockTransaction(ctx context.Context, id string) (*Transaction, error) {
	if !isUUID(id) {
		return nil, &NotFoundError{Kind: "transaction", ID: id}
	}
	t, err := scanTransaction(u.tx.QueryRow(ctx, selectTransaction+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Kind: "transaction", ID: id}
	}
	if err != nil {
		return nil, err
	}
	if err := attachLines(ctx, u.tx, []*Transaction{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (u *pgUnit) MarkPaid(ctx context.Context, id string, method Method, at time.Time) error {
	ct, err := u.tx.Exec(ctx, `
		UPDATE transactions
		SET status = 'done', method = $2, paid_at = $3
		WHERE id = $1 AND status = 'pending'`, id, string(method), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrAlreadyPaid
	}
	return nil
}

func (u *pgUnit) DeleteTransaction(ctx context.Context, id string) error {
	_, err := u.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}

const selectTransaction = `
SELECT id::text, user_id::text, status, method, created_at, paid_at
FROM transactions`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		t      Transaction
		status string
		method *string
	)
	if err := row.Scan(&t.ID, &t.UserID, &status, &method, &t.CreatedAt, &t.PaidAt); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if method != nil {
		m := Method(*method)
		t.Method = &m
	}
	return &t, nil
}

// attachLines loads order lines and their option snapshots for txs in two queries.
func attachLines(ctx context.Context, q queryer, txs []*Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(txs))
	byID := make(map[string]*Transaction, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID)
		byID[t.ID] = t
		t.Lines = []OrderLine{}
	}

	rows, err := q.Query(ctx, `
		SELECT transaction_id::text, id::text, COALESCE(product_id::text, ''), product_name,
		       quantity, unit_price, notes
		FROM order_lines
		WHERE transaction_id = ANY($1::uuid[])
		ORDER BY transaction_id, position`, ids)
	if err != nil {
		return err
	}
	type lineRef struct {
		t   *Transaction
		idx int
	}
	refs := map[string]lineRef{}
	for rows.Next() {
		var (
			txID string
			l    OrderLine
		)
		if err := rows.Scan(&txID, &l.ID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.Notes); err != nil {
			rows.Close()
			return err
		}
		t := byID[txID]
		l.Options = []SelectedOption{}
		t.Lines = append(t.Lines, l)
		refs[l.ID] = lineRef{t: t, idx: len(t.Lines) - 1}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}

	orows, err := q.Query(ctx, `
		SELECT o.line_id::text, o.option_item_id::text, o.name, o.price
		FROM order_line_options o
		JOIN order_lines l ON l.id = o.line_id
		WHERE l.transaction_id = ANY($1::uuid[])
		ORDER BY o.name, o.option_item_id`, ids)
	if err != nil {
		return err
	}
	defer orows.Close()
	for orows.Next() {
		var (
			lineID string
			o      SelectedOption
		)
		if err := orows.Scan(&lineID, &o.ID, &o.Name, &o.Price); err != nil {
			return err
		}
		if ref, ok := refs[lineID]; ok {
			ref.t.Lines[ref.idx].Options = append(ref.t.Lines[ref.idx].Options, o)
		}
	}
	return orows.Err()
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

package checkout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alkuinvito/kasirin/internal/checkout"
	"github.com/alkuinvito/kasirin/internal/postgres/pgtest"
)

func pgService(t *testing.T) (*checkout.Service, *checkout.Repo, string) {
	pool := pgtest.Open(t)
	repo := &checkout.Repo{DB: pool}
	cashier := pgtest.InsertUser(t, pool, "employee")
	return &checkout.Service{Store: repo, RestockExpired: true}, repo, cashier
}

func TestRepo_AdmitLocksAgainstOversell(t *testing.T) {
	svc, repo, cashier := pgService(t)
	p := pgtest.InsertProduct(t, repo.DB, "Croissant", 15000, 10)

	var (
		wg        sync.WaitGroup
		ok, short atomic.Int32
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Admit(context.Background(), cashier, []checkout.OrderIntent{{ProductID: p, Quantity: 2}})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, checkout.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(5), ok.Load())
	require.Equal(t, int32(7), short.Load())
	require.Zero(t, pgtest.Stock(t, repo.DB, p))
	require.Equal(t, 5, pgtest.Count(t, repo.DB, "transactions"))
}

func TestRepo_AdmitRollsBackEveryLine(t *testing.T) {
	svc, repo, cashier := pgService(t)
	a := pgtest.InsertProduct(t, repo.DB, "Tea", 10000, 5)
	b := pgtest.InsertProduct(t, repo.DB, "Cake", 30000, 1)

	_, err := svc.Admit(context.Background(), cashier, []checkout.OrderIntent{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 2},
	})
	var se *checkout.StockError
	require.ErrorAs(t, err, &se)
	require.Equal(t, b, se.ProductID)

	_, err = svc.Admit(context.Background(), cashier, []checkout.OrderIntent{
		{ProductID: a, Quantity: 1, OptionItemIDs: []string{uuid.NewString()}},
	})
	require.ErrorIs(t, err, checkout.ErrNotFound)

	require.Equal(t, 5, pgtest.Stock(t, repo.DB, a))
	require.Equal(t, 1, pgtest.Stock(t, repo.DB, b))
	require.Zero(t, pgtest.Count(t, repo.DB, "transactions"))
	require.Zero(t, pgtest.Count(t, repo.DB, "order_lines"))
}

func TestRepo_OptionsAreScopedToProduct(t *testing.T) {
	svc, repo, cashier := pgService(t)
	latte := pgtest.InsertProduct(t, repo.DB, "Latte", 20000, 5)
	tea := pgtest.InsertProduct(t, repo.DB, "Tea", 10000, 5)
	oat := pgtest.InsertOption(t, repo.DB, latte, "Milk", "Oat", 5000)

	_, err := svc.Admit(context.Background(), cashier, []checkout.OrderIntent{{ProductID: tea, Quantity: 1, OptionItemIDs: []string{oat}}})
	var nf *checkout.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "variant", nf.Kind)

	note := "hot"
	id, err := svc.Admit(context.Background(), cashier, []checkout.OrderIntent{{ProductID: latte, Quantity: 2, Notes: &note, OptionItemIDs: []string{oat}}})
	require.NoError(t, err)

	_, err = repo.DB.Exec(context.Background(), `UPDATE products SET price = 99999 WHERE id = $1`, latte)
	require.NoError(t, err)

	v, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	require.Equal(t, int64(25000), v.Lines[0].UnitPrice)
	require.Equal(t, "Oat", v.Lines[0].Options[0].Name)
	require.Equal(t, "hot", *v.Lines[0].Notes)
	require.Equal(t, int64(50000), v.Total)
}

func TestRepo_PayOnceThenExpire(t *testing.T) {
	svc, repo, cashier := pgService(t)
	p := pgtest.InsertProduct(t, repo.DB, "Espresso", 18000, 5)
	ctx := context.Background()

	id, err := svc.Admit(ctx, cashier, []checkout.OrderIntent{{ProductID: p, Quantity: 2}})
	require.NoError(t, err)
	require.Equal(t, 3, pgtest.Stock(t, repo.DB, p))

	var (
		wg   sync.WaitGroup
		done atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ConfirmPayment(ctx, id, checkout.MethodCash); err == nil {
				done.Add(1)
			} else if !errors.Is(err, checkout.ErrAlreadyPaid) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), done.Load())
	require.Equal(t, 3, pgtest.Stock(t, repo.DB, p))

	late, err := svc.Admit(ctx, cashier, []checkout.OrderIntent{{ProductID: p, Quantity: 1}})
	require.NoError(t, err)
	svc.Now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	_, err = svc.ConfirmPayment(ctx, late, checkout.MethodCard)
	require.ErrorIs(t, err, checkout.ErrExpired)
	require.Equal(t, 3, pgtest.Stock(t, repo.DB, p))

	_, err = repo.GetTransaction(ctx, late)
	require.ErrorIs(t, err, checkout.ErrNotFound)
}

func TestRepo_PayAndAdmitShareLockOrder(t *testing.T) {
	svc, repo, cashier := pgService(t)
	lo := pgtest.InsertProduct(t, repo.DB, "Bagel", 12000, 100)
	hi := pgtest.InsertProduct(t, repo.DB, "Muffin", 14000, 100)
	if hi < lo {
		lo, hi = hi, lo
	}
	ctx := context.Background()

	// Lines stored as [hi, lo], the reverse of the order Admit locks in.
	pending := make([]string, 10)
	for i := range pending {
		id, err := svc.Admit(ctx, cashier, []checkout.OrderIntent{
			{ProductID: hi, Quantity: 1},
			{ProductID: lo, Quantity: 1},
		})
		require.NoError(t, err)
		pending[i] = id
	}

	var wg sync.WaitGroup
	for _, id := range pending {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.ConfirmPayment(ctx, id, checkout.MethodEWallet); err != nil {
				t.Errorf("pay %s: %v", id, err)
			}
		}(id)
		go func() {
			defer wg.Done()
			_, err := svc.Admit(ctx, cashier, []checkout.OrderIntent{
				{ProductID: lo, Quantity: 1},
				{ProductID: hi, Quantity: 1},
			})
			if err != nil {
				t.Errorf("admit: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 80, pgtest.Stock(t, repo.DB, lo))
	require.Equal(t, 80, pgtest.Stock(t, repo.DB, hi))
}

func TestRepo_DecrementMissingProduct(t *testing.T) {
	_, repo, _ := pgService(t)
	err := repo.WithinTx(context.Background(), func(ctx context.Context, uow checkout.UnitOfWork) error {
		return uow.DecrementStock(ctx, uuid.NewString(), 1)
	})
	require.ErrorIs(t, err, checkout.ErrNotFound)
}

func TestRepo_ReadMarksExpired(t *testing.T) {
	svc, repo, cashier := pgService(t)
	p := pgtest.InsertProduct(t, repo.DB, "Tea", 10000, 5)
	ctx := context.Background()

	id, err := svc.Admit(ctx, cashier, []checkout.OrderIntent{{ProductID: p, Quantity: 1}})
	require.NoError(t, err)

	svc.Now = func() time.Time { return time.Now().Add(time.Hour) }
	v, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, checkout.StatusExpired, v.Status)

	stored, err := repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, checkout.StatusExpired, stored.Status)

	list, err := repo.ListTransactions(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Lines, 1)
}

func TestRepo_DeletedProductBlocksPayment(t *testing.T) {
	svc, repo, cashier := pgService(t)
	p := pgtest.InsertProduct(t, repo.DB, "Tea", 10000, 5)
	ctx := context.Background()

	id, err := svc.Admit(ctx, cashier, []checkout.OrderIntent{{ProductID: p, Quantity: 1}})
	require.NoError(t, err)
	_, err = repo.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, p)
	require.NoError(t, err)

	_, err = svc.ConfirmPayment(ctx, id, checkout.MethodCash)
	require.ErrorIs(t, err, checkout.ErrNotFound)

	stored, err := repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, checkout.StatusPending, stored.Status)
	require.Equal(t, "Tea", stored.Lines[0].ProductName)
	require.Empty(t, stored.Lines[0].ProductID)
}

func TestRepo_ListFeesParsesAmount(t *testing.T) {
	_, repo, _ := pgService(t)
	_, err := repo.DB.Exec(context.Background(),
		`INSERT INTO fees (id, name, type, amount) VALUES ($1, 'Service', 'percentage', 7.5)`, uuid.NewString())
	require.NoError(t, err)

	fees, err := repo.ListFees(context.Background())
	require.NoError(t, err)
	require.Len(t, fees, 1)
	require.Equal(t, checkout.FeePercentage, fees[0].Type)
	require.Equal(t, "7.5", fees[0].Amount.String())
}

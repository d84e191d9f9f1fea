// Package pgtest opens the integration database for package tests.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/alkuinvito/kasirin/internal/postgres"
)

// Open connects to POSTGRES_DSN, applies the schema and truncates every table.
// The test is skipped when no database is configured or reachable.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `
TRUNCATE order_line_options, order_lines, transactions, option_items, option_groups,
         products, categories, fees, users
RESTART IDENTITY CASCADE;
`)
	require.NoError(t, err)
	return pool
}

func InsertUser(t *testing.T, pool *pgxpool.Pool, role string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email, name, role) VALUES ($1, $2, $3, $4)`,
		id, id+"@test.local", "Test "+role, role)
	require.NoError(t, err)
	return id
}

func InsertProduct(t *testing.T, pool *pgxpool.Pool, name string, price int64, stock int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO products (id, name, price, stock) VALUES ($1, $2, $3, $4)`,
		id, name, price, stock)
	require.NoError(t, err)
	return id
}

// InsertOption creates a group with a single item and returns the item id.
func InsertOption(t *testing.T, pool *pgxpool.Pool, productID, group, item string, price int64) string {
	t.Helper()
	ctx := context.Background()
	gid, iid := uuid.NewString(), uuid.NewString()
	_, err := pool.Exec(ctx, `INSERT INTO option_groups (id, product_id, name, required) VALUES ($1, $2, $3, true)`,
		gid, productID, group)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO option_items (id, group_id, name, price) VALUES ($1, $2, $3, $4)`,
		iid, gid, item, price)
	require.NoError(t, err)
	return iid
}

func Stock(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT stock FROM products WHERE id = $1`, productID).Scan(&n))
	return n
}

func Count(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

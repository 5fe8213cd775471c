package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaro/checkout/internal/domain/order"
)

const incrementBoughtSQL = `UPDATE products SET bought_count = bought_count + 1 WHERE id = ANY($1)`

var _ order.ProductCounter = (*ProductRepository)(nil)

// ProductRepository implements order.ProductCounter backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// IncrementBought adds one to each listed product's bought counter. One
// increment per product per order, regardless of the quantity ordered.
func (r *ProductRepository) IncrementBought(ctx context.Context, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx, incrementBoughtSQL, productIDs); err != nil {
		return errors.Wrap(err, "increment bought count")
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bazaro/checkout/internal/domain/promo"
	"github.com/bazaro/checkout/internal/domain/user"
)

const (
	findPromoByCodeSQL = `SELECT id, code, type, amount, free_shipping, min_price, max_price,
		start_date, end_date, usage_limit, used_count, deprecated
		FROM promo_codes WHERE code = $1 AND deleted_at IS NULL`

	createPromoSQL = `INSERT INTO promo_codes
		(id, code, type, amount, free_shipping, min_price, max_price, start_date, end_date, usage_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	softDeletePromoSQL = `UPDATE promo_codes SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`

	// The shared counter is guarded by the WHERE clause: the increment only
	// lands while the counter is below the limit, and the deprecated flag
	// flips in the same statement once the limit is reached.
	incrementUsedSQL = `UPDATE promo_codes
		SET used_count = used_count + 1,
		    deprecated = (usage_limit IS NOT NULL AND used_count + 1 >= usage_limit)
		WHERE id = $1 AND deleted_at IS NULL
		  AND (usage_limit IS NULL OR used_count < usage_limit)`

	countUsagesByUserSQL  = `SELECT COUNT(*) FROM promo_code_usages WHERE promo_id = $1 AND user_id = $2`
	countUsagesByGuestSQL = `SELECT COUNT(*) FROM promo_code_usages WHERE promo_id = $1 AND guest_id = $2`

	createUsageSQL = `INSERT INTO promo_code_usages (id, promo_id, order_id, user_id, guest_id)
		VALUES ($1, $2, $3, $4, $5)`

	deleteUsageByOrderSQL = `DELETE FROM promo_code_usages WHERE order_id = $1`
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a non-deleted promo code by its normalized code.
// Returns promo.ErrNotFound when no such code exists.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Code, error) {
	rows, err := r.pool.Query(ctx, findPromoByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find promo %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanPromoCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find promo %q", code)
	}
	return &c, nil
}

// Create persists a new promo code.
func (r *PromoRepository) Create(ctx context.Context, c *promo.Code) error {
	var amount *decimal.Decimal
	if c.Type != promo.TypeFreeShipping {
		amount = &c.Amount
	}
	_, err := r.pool.Exec(ctx, createPromoSQL,
		c.ID, c.Code, string(c.Type), amount, c.FreeShipping,
		c.MinPrice, c.MaxPrice, c.StartDate, c.EndDate, c.UsageLimit,
	)
	if err != nil {
		return errors.Wrapf(err, "create promo %q", c.Code)
	}
	return nil
}

// SoftDelete marks a promo code deleted without removing the row.
func (r *PromoRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, softDeletePromoSQL, id); err != nil {
		return errors.Wrapf(err, "soft delete promo %q", id)
	}
	return nil
}

// IncrementUsed bumps the shared usage counter with a conditional update.
// Returns promo.ErrExhausted when the counter is already at the limit.
func (r *PromoRepository) IncrementUsed(ctx context.Context, promoID string) error {
	tag, err := r.pool.Exec(ctx, incrementUsedSQL, promoID)
	if err != nil {
		return errors.Wrapf(err, "increment used for promo %q", promoID)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrExhausted
	}
	return nil
}

// CountUsagesByActor counts usage records for the actor+code pair.
func (r *PromoRepository) CountUsagesByActor(ctx context.Context, promoID string, actor user.Actor) (int32, error) {
	query := countUsagesByUserSQL
	if actor.Kind == user.KindGuest {
		query = countUsagesByGuestSQL
	}

	var count int32
	if err := r.pool.QueryRow(ctx, query, promoID, actor.ID).Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "count usages for promo %q", promoID)
	}
	return count, nil
}

// CreateUsage persists the usage record for a redemption.
func (r *PromoRepository) CreateUsage(ctx context.Context, rec *promo.UsageRecord) error {
	_, err := r.pool.Exec(ctx, createUsageSQL,
		rec.ID, rec.PromoID, rec.OrderID, rec.UserID, rec.GuestID,
	)
	if err != nil {
		return errors.Wrapf(err, "create usage for promo %q", rec.PromoID)
	}
	return nil
}

// DeleteUsageByOrder removes the usage record tied to an order. The promo
// code's used counter is intentionally not decremented.
func (r *PromoRepository) DeleteUsageByOrder(ctx context.Context, orderID string) error {
	if _, err := r.pool.Exec(ctx, deleteUsageByOrderSQL, orderID); err != nil {
		return errors.Wrapf(err, "delete usage for order %q", orderID)
	}
	return nil
}

func scanPromoCode(row pgx.CollectableRow) (promo.Code, error) {
	var (
		c      promo.Code
		typ    string
		amount *decimal.Decimal
	)
	var (
		minPrice, maxPrice *decimal.Decimal
		start, end         *time.Time
		limit              *int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &typ, &amount, &c.FreeShipping,
		&minPrice, &maxPrice, &start, &end, &limit, &c.UsedCount, &c.Deprecated,
	)
	c.Type = promo.Type(typ)
	if amount != nil {
		c.Amount = *amount
	}
	c.MinPrice = minPrice
	c.MaxPrice = maxPrice
	c.StartDate = start
	c.EndDate = end
	c.UsageLimit = limit
	return c, err
}

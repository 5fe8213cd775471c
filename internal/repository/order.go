package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaro/checkout/internal/domain/delivery"
	"github.com/bazaro/checkout/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, user_id, guest_id, status, sub_total, discount, delivery_fee, promo_discount,
		 used_bonuses, receiving_bonuses, total, items, delivery_address_id, billing_address_id,
		 promo_id, payment_method, delivery_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	getOrderSQL = `SELECT id, user_id, guest_id, status, sub_total, discount, delivery_fee,
		promo_discount, used_bonuses, receiving_bonuses, total, items, delivery_address_id,
		billing_address_id, promo_id, payment_method, delivery_method, created_at,
		finished_at, finished_by, canceled_at, canceled_by, canceled_by_admin, cancel_reason
		FROM orders WHERE id = $1`

	createAddressSQL = `INSERT INTO order_addresses
		(id, kind, country, city, street, building, apartment, comment, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	setStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	markCanceledSQL = `UPDATE orders SET status = $2, cancel_reason = $3, canceled_by = $4,
		canceled_by_admin = $5, canceled_at = $6 WHERE id = $1`

	markFinishedSQL = `UPDATE orders SET status = $2, finished_by = $3, finished_at = $4 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Line items go into a JSONB column as the
// frozen snapshot produced by the cart service.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.GuestID, string(o.Status),
		o.SubTotal, o.Discount, o.DeliveryFee, o.PromoDiscount,
		o.UsedBonuses, o.ReceivingBonuses, o.Total, items,
		o.DeliveryAddressID, o.BillingAddressID, o.PromoID,
		string(o.PaymentMethod), string(o.DeliveryMethod), o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Get loads an order by id. Returns order.ErrNotFound when it does not exist.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// CreateAddress persists an address snapshot.
func (r *OrderRepository) CreateAddress(ctx context.Context, a *order.Address) error {
	_, err := r.pool.Exec(ctx, createAddressSQL,
		a.ID, string(a.Kind), a.Country, a.City, a.Street,
		a.Building, a.Apartment, a.Comment, a.Lat, a.Lng,
	)
	if err != nil {
		return errors.Wrapf(err, "create address %q", a.ID)
	}
	return nil
}

// SetStatus updates the order status.
func (r *OrderRepository) SetStatus(ctx context.Context, id string, s order.Status) error {
	if _, err := r.pool.Exec(ctx, setStatusSQL, id, string(s)); err != nil {
		return errors.Wrapf(err, "set status for order %q", id)
	}
	return nil
}

// MarkCanceled sets the canceled status together with the cancellation
// reason, actor, and timestamp.
func (r *OrderRepository) MarkCanceled(ctx context.Context, id string, stamp order.CancelStamp) error {
	_, err := r.pool.Exec(ctx, markCanceledSQL,
		id, string(order.StatusCanceled), stamp.Reason, stamp.ActorID, stamp.ByAdmin, stamp.At,
	)
	if err != nil {
		return errors.Wrapf(err, "mark order %q canceled", id)
	}
	return nil
}

// MarkFinished sets the finished status together with the actor and timestamp.
func (r *OrderRepository) MarkFinished(ctx context.Context, id string, stamp order.FinishStamp) error {
	_, err := r.pool.Exec(ctx, markFinishedSQL,
		id, string(order.StatusFinished), stamp.ActorID, stamp.At,
	)
	if err != nil {
		return errors.Wrapf(err, "mark order %q finished", id)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		status     string
		payment    string
		deliveryM  string
		items      []byte
		finishedBy *string
		canceledBy *string
		finishedAt *time.Time
		canceledAt *time.Time
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.GuestID, &status,
		&o.SubTotal, &o.Discount, &o.DeliveryFee, &o.PromoDiscount,
		&o.UsedBonuses, &o.ReceivingBonuses, &o.Total, &items,
		&o.DeliveryAddressID, &o.BillingAddressID, &o.PromoID,
		&payment, &deliveryM, &o.CreatedAt,
		&finishedAt, &finishedBy, &canceledAt, &canceledBy,
		&o.CanceledByAdmin, &o.CancelReason,
	)
	if err != nil {
		return o, err
	}

	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(payment)
	o.DeliveryMethod = delivery.Method(deliveryM)
	o.FinishedAt = finishedAt
	o.FinishedBy = finishedBy
	o.CanceledAt = canceledAt
	o.CanceledBy = canceledBy

	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return o, errors.Wrap(err, "unmarshal order items")
		}
	}
	return o, nil
}

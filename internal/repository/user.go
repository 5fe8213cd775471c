package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaro/checkout/internal/domain/user"
)

const (
	getUserSQL  = `SELECT id, email, points, order_count, canceled_count FROM users WHERE id = $1`
	getGuestSQL = `SELECT id, email, verified, order_count, canceled_count FROM guests WHERE id = $1`

	// The balance is guarded by the WHERE clause; the debit only lands when
	// the balance covers it.
	debitPointsSQL  = `UPDATE users SET points = points - $2 WHERE id = $1 AND points >= $2`
	creditPointsSQL = `UPDATE users SET points = points + $2 WHERE id = $1`

	incUserOrderCountSQL     = `UPDATE users SET order_count = order_count + 1 WHERE id = $1`
	incUserCanceledCountSQL  = `UPDATE users SET canceled_count = canceled_count + 1 WHERE id = $1`
	incGuestOrderCountSQL    = `UPDATE guests SET order_count = order_count + 1 WHERE id = $1`
	incGuestCanceledCountSQL = `UPDATE guests SET canceled_count = canceled_count + 1 WHERE id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetUser loads a registered user by id. Returns user.ErrNotFound when the
// id does not exist.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := r.pool.QueryRow(ctx, getUserSQL, id).Scan(
		&u.ID, &u.Email, &u.Points, &u.OrderCount, &u.CanceledCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get user %q", id)
	}
	return &u, nil
}

// GetGuest loads a guest by id. Returns user.ErrNotFound when the id does
// not exist.
func (r *UserRepository) GetGuest(ctx context.Context, id string) (*user.Guest, error) {
	var g user.Guest
	err := r.pool.QueryRow(ctx, getGuestSQL, id).Scan(
		&g.ID, &g.Email, &g.Verified, &g.OrderCount, &g.CanceledCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get guest %q", id)
	}
	return &g, nil
}

// DebitPoints subtracts amount from the user's balance with a conditional
// update. Returns user.ErrInsufficientPoints when the balance cannot cover it.
func (r *UserRepository) DebitPoints(ctx context.Context, userID string, amount int64) error {
	tag, err := r.pool.Exec(ctx, debitPointsSQL, userID, amount)
	if err != nil {
		return errors.Wrapf(err, "debit points for user %q", userID)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrInsufficientPoints
	}
	return nil
}

// CreditPoints adds amount to the user's balance.
func (r *UserRepository) CreditPoints(ctx context.Context, userID string, amount int64) error {
	if _, err := r.pool.Exec(ctx, creditPointsSQL, userID, amount); err != nil {
		return errors.Wrapf(err, "credit points for user %q", userID)
	}
	return nil
}

func (r *UserRepository) IncrementUserOrderCount(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, incUserOrderCountSQL, userID); err != nil {
		return errors.Wrapf(err, "increment order count for user %q", userID)
	}
	return nil
}

func (r *UserRepository) IncrementUserCanceledCount(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, incUserCanceledCountSQL, userID); err != nil {
		return errors.Wrapf(err, "increment canceled count for user %q", userID)
	}
	return nil
}

func (r *UserRepository) IncrementGuestOrderCount(ctx context.Context, guestID string) error {
	if _, err := r.pool.Exec(ctx, incGuestOrderCountSQL, guestID); err != nil {
		return errors.Wrapf(err, "increment order count for guest %q", guestID)
	}
	return nil
}

func (r *UserRepository) IncrementGuestCanceledCount(ctx context.Context, guestID string) error {
	if _, err := r.pool.Exec(ctx, incGuestCanceledCountSQL, guestID); err != nil {
		return errors.Wrapf(err, "increment canceled count for guest %q", guestID)
	}
	return nil
}

// Package user holds the identities that can own or act on an order:
// registered customers, guest customers, and administrators.
package user

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrInsufficientPoints is returned by DebitPoints when the user's
	// balance does not cover the requested amount.
	ErrInsufficientPoints = errors.New("insufficient bonus points")
	// ErrNotFound is returned when a user or guest id does not exist.
	ErrNotFound = errors.New("identity not found")
)

// User is a registered customer. Points is the bonus-point balance; it is
// mutated only through the atomic ledger operations on Repository, never by
// read-modify-write in business code.
type User struct {
	ID            string
	Email         string
	Points        int64
	OrderCount    int32
	CanceledCount int32
}

// Guest is an unregistered customer identified by a verified email.
// Guests never hold bonus points.
type Guest struct {
	ID            string
	Email         string
	Verified      bool
	OrderCount    int32
	CanceledCount int32
}

// Kind discriminates the two customer identity types.
type Kind string

const (
	KindUser  Kind = "user"
	KindGuest Kind = "guest"
)

// Actor is the party performing an operation: a registered user, a guest, or
// an administrator acting on someone else's order.
type Actor struct {
	Kind  Kind
	ID    string
	Admin bool
}

// IsZero reports whether no actor is present.
func (a Actor) IsZero() bool {
	return a.ID == "" && !a.Admin
}

// Repository provides identity lookups and the atomic counter/ledger
// mutations used by checkout and lifecycle transitions.
type Repository interface {
	// GetUser and GetGuest return ErrNotFound when the id does not exist.
	GetUser(ctx context.Context, id string) (*User, error)
	GetGuest(ctx context.Context, id string) (*Guest, error)

	// DebitPoints subtracts amount from the user's balance only if the
	// balance covers it. Returns ErrInsufficientPoints otherwise.
	DebitPoints(ctx context.Context, userID string, amount int64) error
	// CreditPoints adds amount to the user's balance.
	CreditPoints(ctx context.Context, userID string, amount int64) error

	IncrementUserOrderCount(ctx context.Context, userID string) error
	IncrementUserCanceledCount(ctx context.Context, userID string) error
	IncrementGuestOrderCount(ctx context.Context, guestID string) error
	IncrementGuestCanceledCount(ctx context.Context, guestID string) error
}

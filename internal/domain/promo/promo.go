// Package promo implements promo-code entities and the evaluator that
// decides whether a code applies to an order and what it is worth.
package promo

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/bazaro/checkout/internal/domain/user"
)

// Type enumerates the supported promo-code discount strategies.
type Type string

const (
	// TypePercent discounts the order by a percentage, with the result
	// rounded to the nearest multiple of ten.
	TypePercent Type = "percent"
	// TypeFixed discounts the order by a flat amount.
	TypeFixed Type = "fixed"
	// TypeFreeShipping waives the delivery fee and nothing else.
	TypeFreeShipping Type = "free_shipping"
)

var (
	// ErrNotFound is returned when no active promo code matches a code string.
	ErrNotFound = errors.New("promo code not found")
	// ErrExhausted is returned when the shared usage counter cannot be
	// incremented because the code has reached its usage limit.
	ErrExhausted = errors.New("promo code usage limit reached")
	// ErrCodeTooShort is returned when a normalized code is shorter than
	// the minimum length.
	ErrCodeTooShort = errors.New("promo code must be at least 4 characters")
	// ErrAmountRequired is returned when a percent or fixed code is created
	// without a discount magnitude.
	ErrAmountRequired = errors.New("discount amount required for this promo type")
)

const minCodeLength = 4

// Code is a promo code as stored: uppercase, punctuation stripped, unique.
type Code struct {
	ID     string
	Code   string
	Type   Type
	Amount decimal.Decimal

	// FreeShipping additionally waives the delivery fee for percent and
	// fixed codes. It is implied for TypeFreeShipping.
	FreeShipping bool

	// MinPrice and MaxPrice bound the order price the code applies to.
	// Nil means unbounded.
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal

	// StartDate and EndDate bound the validity window. Nil means unbounded.
	StartDate *time.Time
	EndDate   *time.Time

	// UsageLimit is the shared cap across all actors; nil means unlimited.
	// UsedCount counts every successful redemption and never decreases,
	// even when a redeeming order is later canceled.
	UsageLimit *int32
	UsedCount  int32

	// Deprecated is set once UsedCount reaches UsageLimit. Deprecated codes
	// are kept for historical accounting and are soft-deleted, never removed.
	Deprecated bool
}

// WaivesShipping reports whether a successful redemption zeroes the
// delivery fee.
func (c *Code) WaivesShipping() bool {
	return c.Type == TypeFreeShipping || c.FreeShipping
}

// Normalize canonicalizes a raw code string: uppercase with all punctuation
// and whitespace stripped. Returns ErrCodeTooShort when the result is
// shorter than four characters.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	code := b.String()
	// Length is counted in characters, not bytes: non-ASCII codes are
	// legitimate and multi-byte.
	if utf8.RuneCountInString(code) < minCodeLength {
		return "", ErrCodeTooShort
	}
	return code, nil
}

// Validate checks the structural rules for a new code: normalized code
// length and the presence of a discount amount for value-bearing types.
func (c *Code) Validate() error {
	if utf8.RuneCountInString(c.Code) < minCodeLength {
		return ErrCodeTooShort
	}
	switch c.Type {
	case TypePercent, TypeFixed:
		if !c.Amount.IsPositive() {
			return ErrAmountRequired
		}
	case TypeFreeShipping:
		// Magnitude is meaningless; the value is the waived fee.
	default:
		return errors.Errorf("unsupported promo type: %q", c.Type)
	}
	return nil
}

// UsageRecord is the durable proof that an actor redeemed a code on an
// order. Exactly one of UserID and GuestID is set. The record is deleted
// when the owning order is canceled, freeing the actor to reuse the code;
// the code's shared UsedCount is deliberately left untouched.
type UsageRecord struct {
	ID        string
	PromoID   string
	OrderID   string
	UserID    *string
	GuestID   *string
	CreatedAt time.Time
}

// Repository provides promo-code lookup and the atomic usage mutations.
type Repository interface {
	// FindByCode looks up an active code by its normalized form.
	// Returns ErrNotFound when no such code exists.
	FindByCode(ctx context.Context, code string) (*Code, error)
	Create(ctx context.Context, c *Code) error
	SoftDelete(ctx context.Context, id string) error

	// CountUsagesByActor counts usage records for the actor+code pair.
	CountUsagesByActor(ctx context.Context, promoID string, actor user.Actor) (int32, error)
	// IncrementUsed bumps the shared counter only while it is below the
	// usage limit, setting the deprecated flag when the limit is reached.
	// Returns ErrExhausted when the counter is already at the limit.
	IncrementUsed(ctx context.Context, promoID string) error
	CreateUsage(ctx context.Context, rec *UsageRecord) error
	// DeleteUsageByOrder removes the usage record tied to an order, if any.
	DeleteUsageByOrder(ctx context.Context, orderID string) error
}

// Package order owns the order entity, its lifecycle state machine, and the
// checkout flow that creates orders from priced carts.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/bazaro/checkout/internal/domain/cart"
	"github.com/bazaro/checkout/internal/domain/delivery"
)

// Status is the order lifecycle state.
type Status string

const (
	// StatusDraft is an order awaiting a separate payment-capture step.
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusReview   Status = "review"
	StatusFinished Status = "finished"
	StatusCanceled Status = "canceled"
)

// PaymentMethod is the recorded payment tag. Capture and settlement are
// external; only card payments gate order activation on a capture step.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentPOS  PaymentMethod = "pos_terminal"
)

// RequiresCapture reports whether orders paid this way start as drafts.
func (m PaymentMethod) RequiresCapture() bool {
	return m == PaymentCard
}

// AddressKind discriminates the two address snapshots an order carries.
type AddressKind string

const (
	AddressDelivery AddressKind = "delivery"
	AddressBilling  AddressKind = "billing"
)

// Address is a point-in-time copy of a delivery or billing address. Orders
// reference snapshots, never live address records.
type Address struct {
	ID        string
	Kind      AddressKind
	Country   string
	City      string
	Street    string
	Building  string
	Apartment string
	Comment   string
	Lat       *float64
	Lng       *float64
}

// Order is the persisted order record. The monetary fields are frozen at
// creation time and never recomputed: Total = SubTotal - Discount +
// DeliveryFee - PromoDiscount holds at the moment of creation.
type Order struct {
	ID string

	// Exactly one of UserID and GuestID is set.
	UserID  *string
	GuestID *string

	Status Status

	SubTotal         decimal.Decimal
	Discount         decimal.Decimal
	DeliveryFee      decimal.Decimal
	PromoDiscount    decimal.Decimal
	UsedBonuses      int64
	ReceivingBonuses int64
	Total            decimal.Decimal

	Items []cart.Item

	DeliveryAddressID *string
	BillingAddressID  *string
	PromoID           *string

	PaymentMethod  PaymentMethod
	DeliveryMethod delivery.Method

	CreatedAt  time.Time
	FinishedAt *time.Time
	FinishedBy *string
	CanceledAt *time.Time
	CanceledBy *string
	// CanceledByAdmin distinguishes an administrative cancellation from the
	// customer's own.
	CanceledByAdmin bool
	CancelReason    string
}

// ErrNotFound is returned when an order id does not exist.
var ErrNotFound = errors.New("order not found")

// CancelStamp carries the cancellation metadata persisted on the order.
type CancelStamp struct {
	Reason  string
	ActorID string
	ByAdmin bool
	At      time.Time
}

// FinishStamp carries the completion metadata persisted on the order.
type FinishStamp struct {
	ActorID string
	At      time.Time
}

// Repository defines persistence for orders and their address snapshots.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	CreateAddress(ctx context.Context, a *Address) error

	SetStatus(ctx context.Context, id string, s Status) error
	MarkCanceled(ctx context.Context, id string, stamp CancelStamp) error
	MarkFinished(ctx context.Context, id string, stamp FinishStamp) error
}

// ProductCounter increments the global bought counter on purchased products.
type ProductCounter interface {
	// IncrementBought adds one to each product's bought count, regardless
	// of the quantity ordered.
	IncrementBought(ctx context.Context, productIDs []string) error
}

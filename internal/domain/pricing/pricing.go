// Package pricing combines the cart total, bonus redemption, delivery fee,
// and promo discount into the authoritative order breakdown. The evaluation
// order is fixed and load-bearing: the delivery fee is added before a promo
// code is evaluated, so a fee-waiving code retracts an already-added fee
// instead of preventing its addition.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/bazaro/checkout/internal/domain/bonus"
	"github.com/bazaro/checkout/internal/domain/cart"
	"github.com/bazaro/checkout/internal/domain/delivery"
	"github.com/bazaro/checkout/internal/domain/promo"
	"github.com/bazaro/checkout/internal/domain/user"
	"github.com/bazaro/checkout/internal/locale"
)

// ZoneResolver resolves a destination to a delivery zone. Exactly one
// resolution is performed per pricing pass.
type ZoneResolver interface {
	ResolveZone(ctx context.Context, pt delivery.Point) (*delivery.Zone, error)
}

// Input is one pricing pass over a priced cart.
type Input struct {
	Cart     cart.Result
	Actor    user.Actor
	Language locale.Language

	Method      delivery.Method
	Destination *delivery.Point

	// Promo is the resolved code to evaluate, nil when none was supplied.
	Promo *promo.Code

	// Bonuses is the requested point redemption, zero when none.
	Bonuses int64
}

// Quote is the final breakdown for an order. Total follows the frozen-
// snapshot formula Total = SubTotal - Discount + DeliveryFee - PromoDiscount;
// Payable is what the customer actually pays after the bonus redemption.
type Quote struct {
	SubTotal         decimal.Decimal
	Discount         decimal.Decimal
	DeliveryFee      decimal.Decimal
	PromoDiscount    decimal.Decimal
	UsedBonuses      int64
	ReceivingBonuses int64
	FreeShipping     bool
	Total            decimal.Decimal
	Payable          decimal.Decimal
}

// Aggregator produces Quotes by orchestrating the bonus guard, the delivery
// fee rule, and the promo evaluator in their fixed order.
type Aggregator struct {
	zones     ZoneResolver
	evaluator *promo.Evaluator
}

// NewAggregator creates an Aggregator.
func NewAggregator(zones ZoneResolver, evaluator *promo.Evaluator) *Aggregator {
	return &Aggregator{zones: zones, evaluator: evaluator}
}

// Quote runs one pricing pass: start from the cart total, subtract the
// guarded bonus redemption, add the delivery fee resolved against the
// intermediate total, then evaluate the promo code against the fee-inclusive
// total and retract the fee if the code waives shipping.
func (a *Aggregator) Quote(ctx context.Context, in Input) (*Quote, error) {
	q := &Quote{
		SubTotal:         in.Cart.SubTotal,
		Discount:         in.Cart.Discount,
		ReceivingBonuses: in.Cart.Bonus,
	}

	base := in.Cart.Total
	intermediate := base

	if in.Bonuses > 0 {
		if err := bonus.ValidateRedemption(in.Actor, in.Bonuses, base, in.Language); err != nil {
			return nil, err
		}
		q.UsedBonuses = in.Bonuses
		intermediate = intermediate.Sub(decimal.NewFromInt(in.Bonuses))
	}

	if in.Method == delivery.MethodCourier && in.Destination != nil {
		zone, err := a.zones.ResolveZone(ctx, *in.Destination)
		if err != nil {
			return nil, errors.Wrap(err, "resolve delivery zone")
		}
		q.DeliveryFee = delivery.Fee(*zone, intermediate)
		intermediate = intermediate.Add(q.DeliveryFee)
	}

	if in.Promo != nil {
		fee := q.DeliveryFee
		res, err := a.evaluator.Evaluate(ctx, in.Promo, promo.OrderContext{
			Actor:       in.Actor,
			Pickup:      in.Method == delivery.MethodPickup,
			Price:       intermediate,
			DeliveryFee: &fee,
			Language:    in.Language,
		})
		if err != nil {
			return nil, err
		}
		q.PromoDiscount = res.DiscountAmount
		intermediate = intermediate.Sub(res.DiscountAmount)
		if res.FreeShipping {
			// Retract the fee that was added in the previous step.
			intermediate = intermediate.Sub(q.DeliveryFee)
			q.DeliveryFee = decimal.Zero
			q.FreeShipping = true
		}
	}

	q.Total = floorAtZero(base.Add(q.DeliveryFee).Sub(q.PromoDiscount))
	q.Payable = floorAtZero(intermediate)
	return q, nil
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/bazaro/checkout/internal/domain/user"
	"github.com/bazaro/checkout/internal/locale"
)

var hundred = decimal.NewFromInt(100)

// OrderContext is the order-side input to promo evaluation.
type OrderContext struct {
	// Actor is the redeeming party; zero when checking a code anonymously.
	Actor user.Actor
	// Pickup is true when the order is collected in store, so no delivery
	// fee is ever chargeable.
	Pickup bool
	// Price is the fee-inclusive order total the code is evaluated against.
	Price decimal.Decimal
	// DeliveryFee is the resolved fee for the destination, or nil when the
	// destination is unknown.
	DeliveryFee *decimal.Decimal
	// Language selects the language of user-facing rejection messages.
	Language locale.Language
}

// Result is a successful evaluation: the discount the code yields, whether
// it waives shipping, and the delivery fee after any waiver.
type Result struct {
	DiscountAmount decimal.Decimal
	FreeShipping   bool
	DeliveryFee    decimal.Decimal
}

// Evaluator decides whether a promo code is usable for an order context and
// computes the discount it yields. All rejections carry localized messages;
// they are ordinary business outcomes, not system errors.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate runs the eligibility checks in their fixed order and computes the
// discount. It returns a *locale.RuleError for every business rejection.
func (e *Evaluator) Evaluate(ctx context.Context, c *Code, oc OrderContext) (*Result, error) {
	lang := oc.Language

	if c.Deprecated {
		return nil, locale.NewError(lang, locale.PromoExhausted)
	}

	now := e.now()
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return nil, locale.NewError(lang, locale.PromoNotStarted)
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return nil, locale.NewError(lang, locale.PromoExpired)
	}

	// Per-actor usage cap. The cap is the code's shared usage limit, so the
	// per-actor count and the global counter drain the same budget; see the
	// global-counter note on Code.UsedCount.
	if !oc.Actor.IsZero() && c.UsageLimit != nil {
		used, err := e.repo.CountUsagesByActor(ctx, c.ID, oc.Actor)
		if err != nil {
			return nil, errors.Wrap(err, "count promo usages")
		}
		if used >= *c.UsageLimit {
			return nil, locale.NewError(lang, locale.PromoAlreadyUsed)
		}
	}

	if c.MinPrice != nil && oc.Price.LessThan(*c.MinPrice) {
		return nil, locale.NewError(lang, locale.PromoBelowMinimum, c.MinPrice.String())
	}
	if c.MaxPrice != nil && oc.Price.GreaterThan(*c.MaxPrice) {
		return nil, locale.NewError(lang, locale.PromoAboveMaximum, c.MaxPrice.String())
	}

	// A code whose entire value is the shipping waiver is rejected when
	// there is nothing to waive.
	if c.Type == TypeFreeShipping && !feeChargeable(oc) {
		return nil, locale.NewError(lang, locale.ShippingAlreadyFree)
	}

	fee := decimal.Zero
	if oc.DeliveryFee != nil {
		fee = *oc.DeliveryFee
	}

	res := &Result{DeliveryFee: fee}
	switch c.Type {
	case TypeFreeShipping:
		res.FreeShipping = true
		res.DeliveryFee = decimal.Zero
	case TypeFixed:
		res.DiscountAmount = c.Amount
	case TypePercent:
		res.DiscountAmount = percentDiscount(oc.Price, c.Amount)
	default:
		return nil, errors.Errorf("unsupported promo type: %q", c.Type)
	}

	if c.Type != TypeFreeShipping && c.FreeShipping {
		res.FreeShipping = true
		res.DeliveryFee = decimal.Zero
	}

	return res, nil
}

// feeChargeable reports whether the order would pay a delivery fee at all:
// false for pickup orders and for destinations whose fee is already zero.
func feeChargeable(oc OrderContext) bool {
	if oc.Pickup {
		return false
	}
	if oc.DeliveryFee != nil && oc.DeliveryFee.IsZero() {
		return false
	}
	return true
}

// percentDiscount computes the discount for a percent code:
// the discounted price is price - round(price*percent/100), rounded to the
// nearest multiple of ten (half up); the discount is the difference from the
// original price.
func percentDiscount(price, percent decimal.Decimal) decimal.Decimal {
	discounted := price.Sub(price.Mul(percent).Div(hundred).Round(0))
	discounted = discounted.Round(-1)
	return price.Sub(discounted)
}

// Package bonus enforces the redemption rules for the bonus-point ledger.
// Balances live on the user record and are only ever mutated through the
// atomic debit/credit operations on user.Repository; this package owns the
// eligibility checks in front of them.
package bonus

import (
	"github.com/shopspring/decimal"

	"github.com/bazaro/checkout/internal/domain/user"
	"github.com/bazaro/checkout/internal/locale"
)

// redemptionCap is the share of the pre-bonus order total that points may
// cover: bonus <= 20% of total.
var redemptionCap = decimal.NewFromFloat(0.2)

// ValidateRedemption checks that an actor may redeem the requested points
// against the pre-bonus order total. A request over the cap is rejected
// outright, never clamped. Guests may not redeem at all.
func ValidateRedemption(actor user.Actor, requested int64, preBonusTotal decimal.Decimal, lang locale.Language) error {
	if requested <= 0 {
		return nil
	}
	if actor.Kind != user.KindUser {
		return locale.NewError(lang, locale.BonusGuestNotAllowed)
	}
	limit := preBonusTotal.Mul(redemptionCap)
	if decimal.NewFromInt(requested).GreaterThan(limit) {
		return locale.NewError(lang, locale.BonusOverCap)
	}
	return nil
}

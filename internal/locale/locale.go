// Package locale provides the user-facing message catalog for business-rule
// failures. Every rejection surfaced to a customer is rendered in one of the
// three supported storefront languages.
package locale

import (
	"fmt"
	"strings"
)

// Language is a storefront language selector. The numeric values are part of
// the client contract and must not be reordered.
type Language int

const (
	English  Language = 1
	Russian  Language = 2
	Armenian Language = 3
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	return l == English || l == Russian || l == Armenian
}

// Normalize returns l if it is supported, English otherwise.
func (l Language) Normalize() Language {
	if l.Valid() {
		return l
	}
	return English
}

// Key identifies a message in the catalog.
type Key string

const (
	PromoNotFound        Key = "promo_not_found"
	PromoAlreadyUsed     Key = "promo_already_used"
	PromoExpired         Key = "promo_expired"
	PromoNotStarted      Key = "promo_not_started"
	PromoExhausted       Key = "promo_exhausted"
	PromoBelowMinimum    Key = "promo_below_minimum"
	PromoAboveMaximum    Key = "promo_above_maximum"
	ShippingAlreadyFree  Key = "shipping_already_free"
	BonusOverCap         Key = "bonus_over_cap"
	BonusInsufficient    Key = "bonus_insufficient"
	BonusGuestNotAllowed Key = "bonus_guest_not_allowed"
	GuestNotVerified     Key = "guest_not_verified"
)

var catalog = map[Key]map[Language]string{
	PromoNotFound: {
		English:  "Promo code not found",
		Russian:  "Промокод не найден",
		Armenian: "Պրոմոկոդը չի գտնվել",
	},
	PromoAlreadyUsed: {
		English:  "You have already used this promo code",
		Russian:  "Вы уже использовали этот промокод",
		Armenian: "Դուք արդեն օգտագործել եք այս պրոմոկոդը",
	},
	PromoExpired: {
		English:  "This promo code has expired",
		Russian:  "Срок действия промокода истёк",
		Armenian: "Պրոմոկոդի ժամկետը լրացել է",
	},
	PromoNotStarted: {
		English:  "This promo code is not active yet",
		Russian:  "Промокод ещё не активен",
		Armenian: "Պրոմոկոդը դեռ ակտիվ չէ",
	},
	PromoExhausted: {
		English:  "This promo code is no longer available",
		Russian:  "Промокод больше недоступен",
		Armenian: "Պրոմոկոդն այլևս հասանելի չէ",
	},
	PromoBelowMinimum: {
		English:  "This promo code is valid for orders over %s",
		Russian:  "Промокод действует для заказов от %s",
		Armenian: "Պրոմոկոդը գործում է %s-ից ավելի պատվերների համար",
	},
	PromoAboveMaximum: {
		English:  "This promo code is valid for orders under %s",
		Russian:  "Промокод действует для заказов до %s",
		Armenian: "Պրոմոկոդը գործում է մինչև %s պատվերների համար",
	},
	ShippingAlreadyFree: {
		English:  "Delivery is already free for this order",
		Russian:  "Доставка этого заказа уже бесплатна",
		Armenian: "Այս պատվերի առաքումն արդեն անվճար է",
	},
	BonusOverCap: {
		English:  "Bonus points may cover at most 20%% of the order total",
		Russian:  "Бонусами можно оплатить не более 20%% суммы заказа",
		Armenian: "Բոնուսներով կարելի է վճարել պատվերի գումարի առավելագույնը 20%%-ը",
	},
	BonusInsufficient: {
		English:  "Not enough bonus points on your account",
		Russian:  "Недостаточно бонусов на счёте",
		Armenian: "Ձեր հաշվին բավարար բոնուսներ չկան",
	},
	BonusGuestNotAllowed: {
		English:  "Bonus points are available to registered customers only",
		Russian:  "Бонусы доступны только зарегистрированным покупателям",
		Armenian: "Բոնուսները հասանելի են միայն գրանցված հաճախորդներին",
	},
	GuestNotVerified: {
		English:  "Please verify your email address to place an order",
		Russian:  "Подтвердите адрес электронной почты, чтобы оформить заказ",
		Armenian: "Պատվեր ձևակերպելու համար հաստատեք ձեր էլ. փոստի հասցեն",
	},
}

// RuleError is a business-rule failure carrying a localized user-facing
// message. Handlers surface it as a success:false envelope instead of an
// HTTP error; it never aborts the request pipeline.
type RuleError struct {
	Key     Key
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

// NewError builds a RuleError with the message for key rendered in l.
func NewError(l Language, key Key, args ...any) *RuleError {
	return &RuleError{Key: key, Message: Message(l, key, args...)}
}

// Message renders the message for key in the given language, formatting args
// into the localized template. Unknown languages fall back to English.
func Message(l Language, key Key, args ...any) string {
	byLang, ok := catalog[key]
	if !ok {
		return string(key)
	}
	tmpl := byLang[l.Normalize()]
	if len(args) == 0 {
		// Templates may contain literal %% even when no args are given.
		return strings.ReplaceAll(tmpl, "%%", "%")
	}
	return fmt.Sprintf(tmpl, args...)
}

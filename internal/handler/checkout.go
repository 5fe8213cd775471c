package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/bazaro/checkout/internal/domain/cart"
	"github.com/bazaro/checkout/internal/domain/delivery"
	"github.com/bazaro/checkout/internal/domain/order"
	"github.com/bazaro/checkout/internal/domain/pricing"
	"github.com/bazaro/checkout/internal/locale"
)

type cartItemPayload struct {
	ProductID        string          `json:"productId"`
	ProductVersionID string          `json:"productVersionId"`
	Price            decimal.Decimal `json:"price"`
	DiscountedPrice  decimal.Decimal `json:"discountedPrice"`
	Step             int32           `json:"step"`
	StepCount        int32           `json:"stepCount"`
	Count            int32           `json:"count"`
	Image            string          `json:"image"`
	Partner          string          `json:"partner"`
}

type cartPayload struct {
	SubTotal decimal.Decimal   `json:"subTotal"`
	Discount decimal.Decimal   `json:"discount"`
	Total    decimal.Decimal   `json:"total"`
	Bonus    int64             `json:"bonus"`
	Items    []cartItemPayload `json:"itemList"`
	Deleted  []string          `json:"deletedList"`
}

type pointPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type addressPayload struct {
	Country   string   `json:"country"`
	City      string   `json:"city"`
	Street    string   `json:"street"`
	Building  string   `json:"building"`
	Apartment string   `json:"apartment"`
	Comment   string   `json:"comment"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

type checkoutPayload struct {
	Language        int             `json:"language"`
	DeliveryMethod  string          `json:"deliveryMethod"`
	Destination     *pointPayload   `json:"destination"`
	DeliveryAddress *addressPayload `json:"deliveryAddress"`
	BillingAddress  *addressPayload `json:"billingAddress"`
	PromoCode       string          `json:"promoCode"`
	Bonuses         int64           `json:"bonuses"`
	PaymentMethod   string          `json:"paymentMethod"`
	Cart            cartPayload     `json:"cart"`
}

func (p *checkoutPayload) toRequest(r *http.Request) order.CheckoutRequest {
	req := order.CheckoutRequest{
		Actor:         actorFromRequest(r),
		Language:      locale.Language(p.Language).Normalize(),
		Method:        delivery.Method(p.DeliveryMethod),
		PromoCode:     p.PromoCode,
		Bonuses:       p.Bonuses,
		PaymentMethod: order.PaymentMethod(p.PaymentMethod),
		Cart: cart.Result{
			SubTotal: p.Cart.SubTotal,
			Discount: p.Cart.Discount,
			Total:    p.Cart.Total,
			Bonus:    p.Cart.Bonus,
			Deleted:  p.Cart.Deleted,
		},
	}
	for _, it := range p.Cart.Items {
		req.Cart.Items = append(req.Cart.Items, cart.Item(it))
	}
	if p.Destination != nil {
		req.Destination = &delivery.Point{Lat: p.Destination.Lat, Lng: p.Destination.Lng}
	}
	req.DeliveryAddress = p.DeliveryAddress.toAddress()
	req.BillingAddress = p.BillingAddress.toAddress()
	return req
}

func (p *addressPayload) toAddress() *order.Address {
	if p == nil {
		return nil
	}
	return &order.Address{
		Country:   p.Country,
		City:      p.City,
		Street:    p.Street,
		Building:  p.Building,
		Apartment: p.Apartment,
		Comment:   p.Comment,
		Lat:       p.Lat,
		Lng:       p.Lng,
	}
}

// Preview runs a pricing pass without persisting anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := h.checkout.Preview(r.Context(), payload.toRequest(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, encodeQuote(quote))
}

// CheckPromo evaluates a promo code against the same fee-inclusive total it
// would see at checkout and reports the discount it yields.
func (h *Handler) CheckPromo(w http.ResponseWriter, r *http.Request) {
	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.PromoCode == "" {
		writeError(w, r, http.StatusBadRequest, "promo code required")
		return
	}

	quote, err := h.checkout.Preview(r.Context(), payload.toRequest(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("discountAmount", func(e *jx.Encoder) { e.Float64(quote.PromoDiscount.InexactFloat64()) })
			e.Field("isFreeShipping", func(e *jx.Encoder) { e.Bool(quote.FreeShipping) })
			e.Field("deliveryFee", func(e *jx.Encoder) { e.Float64(quote.DeliveryFee.InexactFloat64()) })
		})
	})
}

// CreateOrder prices the cart and creates the order with its side effects.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.checkout.Checkout(r.Context(), payload.toRequest(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, encodeOrder(o))
}

func encodeQuote(q *pricing.Quote) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("subTotal", func(e *jx.Encoder) { e.Float64(q.SubTotal.InexactFloat64()) })
			e.Field("discountAmount", func(e *jx.Encoder) { e.Float64(q.Discount.InexactFloat64()) })
			e.Field("deliveryFee", func(e *jx.Encoder) { e.Float64(q.DeliveryFee.InexactFloat64()) })
			e.Field("promoCodeDiscountAmount", func(e *jx.Encoder) { e.Float64(q.PromoDiscount.InexactFloat64()) })
			e.Field("usedBonuses", func(e *jx.Encoder) { e.Int64(q.UsedBonuses) })
			e.Field("receivingBonuses", func(e *jx.Encoder) { e.Int64(q.ReceivingBonuses) })
			e.Field("isFreeShipping", func(e *jx.Encoder) { e.Bool(q.FreeShipping) })
			e.Field("total", func(e *jx.Encoder) { e.Float64(q.Total.InexactFloat64()) })
			e.Field("payable", func(e *jx.Encoder) { e.Float64(q.Payable.InexactFloat64()) })
		})
	}
}

func encodeOrder(o *order.Order) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
			e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
			e.Field("subTotal", func(e *jx.Encoder) { e.Float64(o.SubTotal.InexactFloat64()) })
			e.Field("discountAmount", func(e *jx.Encoder) { e.Float64(o.Discount.InexactFloat64()) })
			e.Field("deliveryFee", func(e *jx.Encoder) { e.Float64(o.DeliveryFee.InexactFloat64()) })
			e.Field("promoCodeDiscountAmount", func(e *jx.Encoder) { e.Float64(o.PromoDiscount.InexactFloat64()) })
			e.Field("usedBonuses", func(e *jx.Encoder) { e.Int64(o.UsedBonuses) })
			e.Field("receivingBonuses", func(e *jx.Encoder) { e.Int64(o.ReceivingBonuses) })
			e.Field("total", func(e *jx.Encoder) { e.Float64(o.Total.InexactFloat64()) })
			e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
			e.Field("deliveryMethod", func(e *jx.Encoder) { e.Str(string(o.DeliveryMethod)) })
		})
	}
}

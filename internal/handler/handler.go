// Package handler exposes the checkout and order-lifecycle operations over
// HTTP. Request validation beyond JSON decoding belongs to the callers; this
// layer maps transport to domain requests and domain outcomes back to the
// uniform response envelope.
package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bazaro/checkout/internal/domain/order"
	"github.com/bazaro/checkout/internal/domain/promo"
	"github.com/bazaro/checkout/internal/domain/user"
	"github.com/bazaro/checkout/internal/locale"
)

// Handler carries the domain services behind the HTTP surface.
type Handler struct {
	checkout  *order.Service
	lifecycle *order.Lifecycle
	promos    promo.Repository
}

// New constructs a Handler.
func New(checkout *order.Service, lifecycle *order.Lifecycle, promos promo.Repository) *Handler {
	return &Handler{checkout: checkout, lifecycle: lifecycle, promos: promos}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout/preview", h.Preview)
	mux.HandleFunc("POST /api/promo/check", h.CheckPromo)
	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("POST /api/orders/{id}/activate", h.ActivateOrder)
	mux.HandleFunc("POST /api/orders/{id}/review", h.ReviewOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.CancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/finish", h.FinishOrder)
	mux.HandleFunc("POST /api/admin/promo-codes", h.CreatePromo)
	mux.HandleFunc("DELETE /api/admin/promo-codes/{id}", h.DeletePromo)
}

// actorFromRequest reads the identity resolved by the upstream auth layer.
// Exactly one of the user and guest headers is expected for customer calls.
func actorFromRequest(r *http.Request) user.Actor {
	a := user.Actor{}
	if id := r.Header.Get("X-User-ID"); id != "" {
		a.Kind = user.KindUser
		a.ID = id
	} else if id := r.Header.Get("X-Guest-ID"); id != "" {
		a.Kind = user.KindGuest
		a.ID = id
	}
	if r.Header.Get("X-Admin") == "true" {
		a.Admin = true
	}
	return a
}

// respondDomainError maps a domain error to the envelope. Business-rule
// failures become success:false with the localized message; precondition
// violations and unknown errors become system failures.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var rule *locale.RuleError
	if errors.As(err, &rule) {
		writeFailure(w, r, rule.Message)
		return
	}

	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, user.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "customer not found")
	case errors.Is(err, order.ErrIllegalTransition):
		writeError(w, r, http.StatusConflict, "operation not allowed in the current order state")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaro/checkout/internal/domain/promo"
)

type promoPayload struct {
	Code         string           `json:"code"`
	Type         string           `json:"type"`
	Amount       *decimal.Decimal `json:"amount"`
	FreeShipping bool             `json:"isFreeShipping"`
	MinPrice     *decimal.Decimal `json:"minPrice"`
	MaxPrice     *decimal.Decimal `json:"maxPrice"`
	StartDate    *time.Time       `json:"startDate"`
	EndDate      *time.Time       `json:"endDate"`
	UsageLimit   *int32           `json:"usageLimit"`
}

// CreatePromo registers a new promo code. The code is normalized and
// structurally validated before it is persisted. Administrator only.
func (h *Handler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	if !actorFromRequest(r).Admin {
		writeError(w, r, http.StatusForbidden, "administrator only")
		return
	}

	var payload promoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	code, err := promo.Normalize(payload.Code)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c := &promo.Code{
		ID:           uuid.New().String(),
		Code:         code,
		Type:         promo.Type(payload.Type),
		FreeShipping: payload.FreeShipping,
		MinPrice:     payload.MinPrice,
		MaxPrice:     payload.MaxPrice,
		StartDate:    payload.StartDate,
		EndDate:      payload.EndDate,
		UsageLimit:   payload.UsageLimit,
	}
	if payload.Amount != nil {
		c.Amount = *payload.Amount
	}
	if err := c.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.promos.Create(r.Context(), c); err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
			e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		})
	})
}

// DeletePromo soft-deletes a promo code, keeping the row for historical
// accounting. Administrator only.
func (h *Handler) DeletePromo(w http.ResponseWriter, r *http.Request) {
	if !actorFromRequest(r).Admin {
		writeError(w, r, http.StatusForbidden, "administrator only")
		return
	}

	id := r.PathValue("id")
	if err := h.promos.SoftDelete(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, encodeOrderID(id))
}

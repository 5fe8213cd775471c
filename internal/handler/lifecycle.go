package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"
)

type cancelPayload struct {
	Reason string `json:"reason"`
}

// ActivateOrder moves a draft order to pending after payment capture.
func (h *Handler) ActivateOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.lifecycle.Activate(r.Context(), id, actorFromRequest(r)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, encodeOrderID(id))
}

// ReviewOrder flags a pending order for manual attention.
func (h *Handler) ReviewOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.lifecycle.Review(r.Context(), id, actorFromRequest(r)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, encodeOrderID(id))
}

// CancelOrder cancels a pending order (owner) or a pending/review order
// (administrator), applying the compensating side effects.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var payload cancelPayload
	if r.Body != nil {
		// The reason is optional; decoding failures leave it empty.
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	id := r.PathValue("id")
	if err := h.lifecycle.Cancel(r.Context(), id, actorFromRequest(r), payload.Reason); err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, encodeOrderID(id))
}

// FinishOrder completes an order. Administrator only.
func (h *Handler) FinishOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.lifecycle.Finish(r.Context(), id, actorFromRequest(r)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, encodeOrderID(id))
}

func encodeOrderID(id string) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(id) })
		})
	}
}

// internal/offer/handler.go
package offer

import (
	"context"
	"net/http"

	"barternexus/internal/httpapi"
	"barternexus/internal/market"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the party-facing offer routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/offers", h.handleCreate)
	r.Get("/offers/{offerID}", h.handleGet)
	r.Get("/offers/{offerID}/history", h.handleHistory)
	r.Post("/offers/{offerID}/transition", h.handleTransition)
	r.Post("/offers/{offerID}/accept", h.partyAction(h.service.AcceptOffer))
	r.Post("/offers/{offerID}/confirm", h.partyAction(h.service.ConfirmTransaction))
	r.Post("/offers/{offerID}/cancel", h.partyAction(h.service.CancelTransaction))
}

// RegisterInternal mounts routes for in-network callers such as the expiry
// sweep. They carry no user identity.
func (h *Handler) RegisterInternal(r chi.Router) {
	r.Post("/internal/offers/{offerID}/expire", h.handleExpire)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	req.UserID = userID

	o, err := h.service.CreateOffer(r.Context(), req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}
	offerID, err := httpapi.PathID(r, "offerID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	o, err := h.service.GetOffer(r.Context(), offerID, userID)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}
	offerID, err := httpapi.PathID(r, "offerID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	events, err := h.service.History(r.Context(), offerID, userID)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}
	offerID, err := httpapi.PathID(r, "offerID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	var req struct {
		Status market.OfferStatus `json:"status"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	o, err := h.service.Transition(r.Context(), offerID, req.Status, userID)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) partyAction(action func(ctx context.Context, offerID, userID uuid.UUID) (*market.Offer, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := httpapi.ActingUser(w, r)
		if !ok {
			return
		}
		offerID, err := httpapi.PathID(r, "offerID")
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}

		o, err := action(r.Context(), offerID, userID)
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, o)
	}
}

func (h *Handler) handleExpire(w http.ResponseWriter, r *http.Request) {
	offerID, err := httpapi.PathID(r, "offerID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	o, err := h.service.ExpireOffer(r.Context(), offerID)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, o)
}

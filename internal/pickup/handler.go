// internal/pickup/handler.go
package pickup

import (
	"net/http"

	"barternexus/internal/httpapi"
	"barternexus/internal/market"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/offers/{offerID}/pickup", h.handleCreate)
	r.Get("/pickups/{pickupID}", h.handleGet)
	r.Post("/pickups/{pickupID}/accept", h.handleAccept)
	r.Post("/pickups/{pickupID}/reschedule", h.handleReschedule)
	r.Post("/pickups/{pickupID}/status", h.handleStatus)
	r.Post("/pickups/{pickupID}/cancel", h.handleCancel)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}
	offerID, err := httpapi.PathID(r, "offerID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	var req ProposeRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	req.OfferID = offerID
	req.UserID = userID

	p, err := h.service.CreatePickup(r.Context(), req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}
	pickupID, err := httpapi.PathID(r, "pickupID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	p, err := h.service.GetPickup(r.Context(), pickupID, userID)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}
	pickupID, err := httpapi.PathID(r, "pickupID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	var req struct {
		Date market.Date      `json:"selected_date"`
		Time market.TimeOfDay `json:"selected_time"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	p, err := h.service.AcceptPickup(r.Context(), pickupID, req.Date, req.Time, userID)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleReschedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}
	pickupID, err := httpapi.PathID(r, "pickupID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	var req RescheduleRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	req.PickupID = pickupID
	req.UserID = userID

	p, err := h.service.ReschedulePickup(r.Context(), req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}
	pickupID, err := httpapi.PathID(r, "pickupID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	var req struct {
		Status market.PickupStatus `json:"status"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	p, err := h.service.UpdatePickupStatus(r.Context(), pickupID, req.Status, userID)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}
	pickupID, err := httpapi.PathID(r, "pickupID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	p, err := h.service.CancelPickup(r.Context(), pickupID, userID)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

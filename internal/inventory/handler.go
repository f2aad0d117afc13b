// internal/inventory/handler.go
package inventory

import (
	"net/http"

	"barternexus/internal/httpapi"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/items", h.handleRegisterItem)
	r.Get("/items/{itemID}", h.handleGetItem)
}

func (h *Handler) handleRegisterItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := httpapi.ActingUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Name          string `json:"name"`
		StockQuantity int    `json:"stock_quantity"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	item, err := h.service.RegisterItem(r.Context(), ownerID, req.Name, req.StockQuantity)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "itemID")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, item)
}

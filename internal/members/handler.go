// internal/members/handler.go
package members

import (
	"errors"
	"net/http"

	"barternexus/internal/auth"
	"barternexus/internal/httpapi"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	issuer  *auth.Issuer
}

func NewHandler(service Service, issuer *auth.Issuer) *Handler {
	return &Handler{service: service, issuer: issuer}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/members", h.handleRegisterMember)
	r.Get("/members/{memberID}", h.handleGetMember)
	r.Post("/login", h.handleLogin)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	member, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.issuer.Issue(member.ID, member.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, Session{Token: token, Member: member})
}

func (h *Handler) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	member, err := h.service.RegisterMember(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, member)
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "memberID")
	if err != nil {
		writeError(w, err)
		return
	}

	member, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, member.Profile())
}

func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		status = http.StatusTooManyRequests
	default:
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

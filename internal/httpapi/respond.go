// internal/httpapi/respond.go
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"barternexus/internal/auth"
	"barternexus/internal/market"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// StatusFor maps a core error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, market.ErrInvalidTransition),
		errors.Is(err, market.ErrIllegalState),
		errors.Is(err, market.ErrInsufficientInventory),
		errors.Is(err, market.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, market.ErrInvalidSchedule),
		errors.Is(err, market.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	WriteJSON(w, status, map[string]string{"error": message})
}

func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", market.ErrInvalidArgument, err)
	}
	return nil
}

// PathID parses the named chi URL parameter as a uuid.
func PathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", market.ErrInvalidArgument, name)
	}
	return id, nil
}

// ActingUser returns the authenticated user or writes 401.
func ActingUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

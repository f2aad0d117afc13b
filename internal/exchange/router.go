// internal/exchange/router.go
package exchange

import (
	"net/http"

	"barternexus/internal/auth"
	"barternexus/internal/httpapi"
	"barternexus/internal/inventory"
	"barternexus/internal/offer"
	"barternexus/internal/pickup"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Handlers groups the HTTP surface of the exchange service.
type Handlers struct {
	Inventory *inventory.Handler
	Offers    *offer.Handler
	Pickups   *pickup.Handler
}

// NewRouter mounts the member-facing routes behind token authentication. A
// nil limiter disables rate limiting.
func NewRouter(h Handlers, issuer *auth.Issuer, limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(httpapi.RateLimit(limiter))
		}
		r.Use(issuer.Middleware)
		h.Inventory.Register(r)
		h.Offers.Register(r)
		h.Pickups.Register(r)
	})
	return r
}

// NewInternalRouter serves the routes used by in-network callers such as the
// expiry sweep. They carry no user identity, so it must only be bound to a
// listener that is not reachable from outside.
func NewInternalRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	h.Offers.RegisterInternal(r)
	return r
}

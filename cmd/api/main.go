// cmd/api/main.go
package main

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"

	"barternexus/internal/config"
	"barternexus/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("api-gateway")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := observability.NewLogger(cfg.ServiceName, false)
	defer logger.Sync()

	exchangeURL, err := url.Parse(cfg.ExchangeServiceURL)
	if err != nil {
		logger.Fatal("Invalid EXCHANGE_SERVICE_URL", zap.Error(err))
	}
	membersURL, err := url.Parse(cfg.MembersServiceURL)
	if err != nil {
		logger.Fatal("Invalid MEMBERS_SERVICE_URL", zap.Error(err))
	}

	logger.Info("API Gateway listening",
		zap.String("port", cfg.Port),
		zap.String("exchange", exchangeURL.String()),
		zap.String("members", membersURL.String()),
	)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, newRouter(exchangeURL, membersURL)))
}

func newRouter(exchangeURL, membersURL *url.URL) http.Handler {
	exchangeProxy := httputil.NewSingleHostReverseProxy(exchangeURL)
	membersProxy := httputil.NewSingleHostReverseProxy(membersURL)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Mount("/api/v1/exchange", http.StripPrefix("/api/v1/exchange", rejectInternal(exchangeProxy)))
	router.Mount("/api/v1/members", http.StripPrefix("/api/v1/members", rejectInternal(membersProxy)))
	return router
}

// rejectInternal keeps /internal routes of the upstream services off the
// public surface.
func rejectInternal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean("/" + r.URL.Path)
		if p == "/internal" || strings.HasPrefix(p, "/internal/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cmd/members/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barternexus/internal/auth"
	"barternexus/internal/config"
	"barternexus/internal/httpapi"
	"barternexus/internal/members"
	"barternexus/internal/observability"
	"barternexus/internal/storage/postgres"
	"barternexus/pkg/eventstore"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load("members-service")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireStore(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.RequireAuth(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	tel, err := observability.Setup(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up telemetry: %v", err)
	}
	logger := observability.NewLogger(cfg.ServiceName, tel.Exporting())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("Telemetry shutdown failed", zap.Error(err))
		}
		_ = logger.Sync()
	}()

	var repo members.Repository
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := members.Migrate(ctx, db); err != nil {
			logger.Fatal("Failed to migrate schema", zap.Error(err))
		}
		repo = members.NewPostgresRepository(db, eventstore.NewEventStore(db.DB))
	default:
		logger.Warn("Using the in-memory member repository, members are lost on restart")
		repo = members.NewMemoryRepository()
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to create token issuer", zap.Error(err))
	}

	// Registration and login share one budget: five attempts per minute.
	svc := members.NewService(repo, rate.NewLimiter(rate.Every(time.Minute/5), 5), logger)
	handler := members.NewHandler(svc, issuer)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	handler.Register(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting members service",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreDriver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down members service")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
}

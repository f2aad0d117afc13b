// cmd/exchange/main.go
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
	"barternexus/internal/clients"
	"barternexus/internal/config"
	"barternexus/internal/exchange"
	"barternexus/internal/inventory"
	"barternexus/internal/market"
	"barternexus/internal/notify"
	"barternexus/internal/observability"
	"barternexus/internal/offer"
	"barternexus/internal/pickup"
	"barternexus/internal/storage/memory"
	"barternexus/internal/storage/postgres"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 15 * time.Second

// store is what the exchange needs from a storage backend.
type store interface {
	market.Gateway
	market.EventLog
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load("exchange-service")
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

	// Storage
	var st store
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		gateway := postgres.NewGateway(db, logger)
		if err := gateway.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate schema", zap.Error(err))
		}
		st = gateway
	default:
		logger.Warn("Using the in-memory store, state is lost on restart")
		st = memory.NewStore()
	}

	// Notifications
	var sink market.NotificationSink = notify.NewLogSink(logger)
	if cfg.KafkaBroker != "" {
		producer, err := notify.NewKafkaProducer(cfg.KafkaBroker, cfg.NotificationTopic, cfg.ServiceName, tel.TracerProvider)
		if err != nil {
			logger.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		kafkaSink := notify.NewKafkaSink(producer)
		defer kafkaSink.Close()
		sink = kafkaSink
		logger.Info("Publishing notifications to Kafka",
			zap.String("broker", cfg.KafkaBroker),
			zap.String("topic", cfg.NotificationTopic),
		)
	}
	async := notify.NewAsync(sink, cfg.NotificationQueueSize, logger)

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to create token issuer", zap.Error(err))
	}
	users := clients.NewMembersClient(cfg.MembersServiceURL, cfg.MembersTimeout, logger)

	ledger := inventory.NewLedger(logger)
	machine := offer.NewMachine(ledger, logger)
	inventorySvc := inventory.NewService(st, ledger, logger)
	offerSvc := offer.NewService(st, machine, ledger, users, st, async, logger)
	pickupSvc := pickup.NewService(st, machine, async, cfg.PickupLocation, logger)

	handlers := exchange.Handlers{
		Inventory: inventory.NewHandler(inventorySvc),
		Offers:    offer.NewHandler(offerSvc),
		Pickups:   pickup.NewHandler(pickupSvc),
	}
	servers := []*http.Server{
		{
			Addr:              ":" + cfg.Port,
			Handler:           exchange.NewRouter(handlers, issuer, rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)),
			ReadHeaderTimeout: 5 * time.Second,
		},
		{
			Addr:              ":" + cfg.InternalPort,
			Handler:           exchange.NewInternalRouter(handlers),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	logger.Info("Starting exchange service",
		zap.String("port", cfg.Port),
		zap.String("internal_port", cfg.InternalPort),
		zap.String("store", cfg.StoreDriver),
	)
	for _, server := range servers {
		go func(server *http.Server) {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", zap.String("addr", server.Addr), zap.Error(err))
				cancel()
			}
		}(server)
	}

	<-ctx.Done()
	logger.Info("Shutting down exchange service")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", zap.String("addr", server.Addr), zap.Error(err))
		}
	}
	if err := async.Close(shutdownCtx); err != nil {
		logger.Error("Notification queue did not drain", zap.Error(err))
	}
}
